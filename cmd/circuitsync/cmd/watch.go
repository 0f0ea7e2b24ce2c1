package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <description> <project-dir>",
	Short: "Re-synchronize whenever the description changes",
	Long: `Watch the circuit description file and run a synchronization pass
after every change, debounced so editors that write in bursts trigger
a single run. Stops on SIGINT/SIGTERM.`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	descPath, projectDir := args[0], args[1]
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: editors replace files by
	// rename, which drops a file-level watch.
	if err := w.Add(filepath.Dir(descPath)); err != nil {
		return err
	}

	target, err := filepath.Abs(descPath)
	if err != nil {
		return err
	}

	logger.Info("watching", slog.String("description", descPath))
	resync(descPath, projectDir, logger)

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(300 * time.Millisecond)
			debounceCh = debounce.C
		} else {
			debounce.Reset(300 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher stopped")
			return nil

		case <-debounceCh:
			resync(descPath, projectDir, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, absErr := filepath.Abs(ev.Name)
			if absErr != nil || abs != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", slog.String("error", watchErr.Error()))
		}
	}
}

func resync(descPath, projectDir string, logger *slog.Logger) {
	report, err := synchronize(descPath, projectDir)
	if err != nil {
		logger.Error("synchronization failed", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintf(os.Stderr, "synced: %d written, %d issues\n", len(report.Written), len(report.Issues))
}
