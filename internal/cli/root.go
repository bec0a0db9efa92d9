// Package cli implements the docrev command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrev/internal/config"
	"github.com/dgallion1/docrev/internal/engine"
)

// version is set at build time.
var version = "dev"

var verbose bool

// Shared state built before each command runs.
var (
	cfg    config.Config
	logger *slog.Logger
	runner *engine.Runner
)

var rootCmd = &cobra.Command{
	Use:   "docrev",
	Short: "Inspect and resolve tracked changes in .docx files",
	Long: `docrev lists tracked changes and comments in Word documents, computes
review statistics, and accepts or rejects changes without touching the rest of
the package.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		runner = engine.NewRunner(logger, nil)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(data)) > cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%s exceeds max size (%d bytes)", path, cfg.MaxUploadBytes)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
