package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "circuitsync",
	Short: "circuitsync - programmatic KiCad schematic synchronization",
	Long: `circuitsync keeps a KiCad schematic project synchronized with a
programmatic circuit description while preserving every manual edit
made in eeschema (positions, rotations, routed wires, annotations).

Examples:
  circuitsync sync board.csc ./hardware     # Synchronize a project
  circuitsync info ./hardware               # Show project summary
  circuitsync watch board.csc ./hardware    # Re-sync on description change`,
	Version: "1.0.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// newLogger builds the CLI logger: warnings and up by default, debug
// with --verbose, always on stderr so stdout stays machine-readable.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
