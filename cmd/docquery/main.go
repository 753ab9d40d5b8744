package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/veridian-labs/docquery/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env if present so API keys can live outside the shell.
	_ = godotenv.Load()

	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
