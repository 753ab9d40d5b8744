package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/veridian-labs/docquery/internal/logger"
)

var (
	indexForce bool
	indexWatch bool
)

// watchDebounce coalesces bursts of filesystem events into one rebuild.
const watchDebounce = 2 * time.Second

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the document index",
	Long: `Scans the documents directory and builds the vector index. When an
index already exists and neither the corpus nor the indexing parameters
have changed, the existing index is reused without any embedding calls.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "rebuild even if the existing index is current")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep running and rebuild when documents change")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	application, err := newApp(true)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manifest, rebuilt, err := application.indexer.EnsureIndex(ctx, indexForce)
	if err != nil {
		return err
	}
	cmd.Println(describeIndexOutcome(manifest, rebuilt))

	if !indexWatch {
		return nil
	}
	return watchAndReindex(ctx, cmd, application)
}

// watchAndReindex blocks, rebuilding the index whenever files under
// the documents directory change. Events are debounced so one save
// does not trigger several rebuilds.
func watchAndReindex(ctx context.Context, cmd *cobra.Command, application *app) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchRecursive(watcher, application.cfg.DocsDir); err != nil {
		return err
	}
	cmd.Printf("Watching %s for changes (interrupt to stop)\n", application.cfg.DocsDir)

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New directories need to be watched too.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					watchRecursive(watcher, event.Name) //nolint:errcheck // best effort
				}
			}
			if !relevantEvent(event) {
				continue
			}
			logger.Debug("Change detected: %s", event)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-pending:
			manifest, rebuilt, err := application.indexer.EnsureIndex(ctx, false)
			if err != nil {
				cmd.PrintErrf("Reindex failed: %v\n", err)
				continue
			}
			if rebuilt {
				cmd.Println(describeIndexOutcome(manifest, true))
			}
		}
	}
}

// relevantEvent reports whether the event concerns an indexable file.
func relevantEvent(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".pdf", ".txt", ".md":
		return true
	default:
		return false
	}
}

// watchRecursive adds root and all its subdirectories to the watcher.
func watchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
