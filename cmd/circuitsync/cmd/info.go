package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/circuitforge/circuitsync/pkg/circuit"
	"github.com/circuitforge/circuitsync/pkg/kicad/schematic"
	"github.com/circuitforge/circuitsync/pkg/project"
)

var infoCmd = &cobra.Command{
	Use:   "info <project-dir>",
	Short: "Show a schematic project summary",
	Long: `Display the components, nets and sub-circuit instances of every
fragment in a schematic project, as the synchronization engine sees
them.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	proj, err := project.Open(args[0])
	if err != nil {
		return err
	}
	return showFragment(proj, filepath.Base(proj.RootPath()), 0)
}

func showFragment(proj *project.Project, file string, depth int) error {
	sch, err := schematic.ParseFile(proj.FragmentPath(file))
	if err != nil {
		return fmt.Errorf("error parsing fragment %s: %w", file, err)
	}
	model := circuit.FromSchematic(sch)

	indent := ""
	for range depth {
		indent += "  "
	}

	fmt.Printf("%sFragment: %s\n", indent, file)
	fmt.Printf("%s  Version: %d  Paper: %s\n", indent, sch.Version(), sch.Paper())
	fmt.Printf("%s  Components: %d  Nets: %d  Instances: %d\n",
		indent, len(model.Components), len(model.Nets), len(model.Instances))

	for _, comp := range model.Components {
		fmt.Printf("%s  %-8s %-24s %s\n", indent, comp.Ref, comp.LibID, comp.Prop("Value"))
	}

	names := make([]string, 0, len(model.Nets))
	byName := make(map[string]*circuit.Net)
	for _, n := range model.Nets {
		names = append(names, n.Name)
		byName[n.Name] = n
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s  net %-16s %d endpoints\n", indent, name, len(byName[name].Endpoints))
	}

	for _, sheet := range sch.Sheets() {
		fmt.Println()
		if err := showFragment(proj, sheet.FileName(), depth+1); err != nil {
			return err
		}
	}
	return nil
}
