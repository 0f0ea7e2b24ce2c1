package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/circuitforge/circuitsync/pkg/desc"
	"github.com/circuitforge/circuitsync/pkg/library"
	"github.com/circuitforge/circuitsync/pkg/project"
	"github.com/circuitforge/circuitsync/pkg/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync <description> <project-dir>",
	Short: "Synchronize a schematic project with a circuit description",
	Long: `Parse the circuit description, diff it against the schematic project
and apply the minimal edit set. Untouched elements stay byte-for-byte
identical; manual layout is never moved. Prints a machine-readable
summary (counts per classification per entity kind) on stdout.

Exit code 0 on success, including when no changes were needed.`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	report, err := synchronize(args[0], args[1])
	if report != nil {
		out, marshalErr := json.MarshalIndent(report, "", "  ")
		if marshalErr != nil {
			return marshalErr
		}
		fmt.Println(string(out))
	}
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}
	return nil
}

func synchronize(descPath, projectDir string) (*sync.Report, error) {
	circ, err := desc.Load(descPath)
	if err != nil {
		return nil, fmt.Errorf("parse description: %w", err)
	}

	proj, err := project.Open(projectDir)
	if err != nil {
		return nil, err
	}

	resolver, closer, err := buildResolver(proj)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer()
	}

	return sync.Run(context.Background(), circ, proj.RootPath(), sync.Options{
		Resolver: resolver,
		Logger:   newLogger(),
		Paper:    proj.Config.Paper,
	})
}

// buildResolver assembles the symbol lookup chain: library directories
// from the project config, wrapped in the sqlite cache when enabled.
func buildResolver(proj *project.Project) (library.Resolver, func() error, error) {
	dirs := proj.Config.Libraries
	for _, env := range []string{"KICAD_SYMBOL_DIR"} {
		if dir := os.Getenv(env); dir != "" {
			dirs = append(dirs, dir)
		}
	}

	var resolver library.Resolver = library.NewFileResolver(dirs...)
	if proj.Config.Cache == "" {
		return resolver, nil, nil
	}

	cache, err := library.OpenCache(proj.FragmentPath(proj.Config.Cache), resolver)
	if err != nil {
		return nil, nil, err
	}
	return cache, cache.Close, nil
}
