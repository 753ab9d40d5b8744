package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question answering session",
	Long: `Starts an interactive session against the indexed documents. Besides
questions, the session understands a few commands:

  help     show available commands
  stats    show index statistics
  history  show the questions asked so far
  save     write the session transcript to a JSON file
  quit     end the session`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatExchange is one question/answer pair in the session transcript.
type chatExchange struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   int       `json:"sources"`
	Timestamp time.Time `json:"timestamp"`
}

// chatSession is the persisted transcript shape.
type chatSession struct {
	SessionID string         `json:"session_id"`
	StartedAt time.Time      `json:"started_at"`
	SavedAt   time.Time      `json:"saved_at"`
	Exchanges []chatExchange `json:"exchanges"`
}

func runChat(cmd *cobra.Command, _ []string) error {
	application, err := newApp(true)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, _, err := application.indexer.EnsureIndex(ctx, false); err != nil {
		return err
	}
	engine, err := application.queryEngine(true)
	if err != nil {
		return err
	}

	session := &chatSession{
		SessionID: uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		cmd.Println(headingStyle.Render("docquery chat"))
		cmd.Println(sourceStyle.Render("Ask a question, or type 'help' for commands."))
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		if interactive {
			cmd.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			cmd.Println("Bye.")
			return nil

		case "help":
			cmd.Println("Commands: help, stats, history, save, quit. Anything else is a question.")
			continue

		case "stats":
			stats, err := application.indexer.Stats(ctx)
			if err != nil {
				cmd.PrintErrf("stats unavailable: %v\n", err)
				continue
			}
			cmd.Print(renderStats(stats))
			continue

		case "history":
			if len(session.Exchanges) == 0 {
				cmd.Println("No questions asked yet.")
				continue
			}
			for i, ex := range session.Exchanges {
				cmd.Printf("  %d. %s\n", i+1, ex.Question)
			}
			continue

		case "save":
			path, err := saveSession(session)
			if err != nil {
				cmd.PrintErrf("save failed: %v\n", err)
				continue
			}
			cmd.Printf("Session saved to %s\n", path)
			continue
		}

		answer, chunks, err := engine.Ask(ctx, line, domain.QueryOptions{})
		if err != nil {
			cmd.PrintErrf("error: %v\n", err)
			continue
		}
		cmd.Print(renderAnswer(answer, chunks))

		session.Exchanges = append(session.Exchanges, chatExchange{
			Question:  line,
			Answer:    answer.Text,
			Sources:   len(chunks),
			Timestamp: time.Now().UTC(),
		})
	}
	return scanner.Err()
}

// saveSession writes the transcript next to the working directory,
// named after the session ID.
func saveSession(session *chatSession) (string, error) {
	session.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	path := fmt.Sprintf("chat_session_%s.json", session.SessionID)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write session: %w", err)
	}
	return path, nil
}
