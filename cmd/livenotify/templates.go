package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/livenotify/internal/config"
	"github.com/jmylchreest/livenotify/internal/layout"
)

var templatesOpts struct {
	dir string
}

var templatesCmd = &cobra.Command{
	Use:   "templates [name]",
	Short: "List layout templates and their slots",
	Long: `List the layout templates available to show-bound: the built-in ones
plus any *.xml templates in the user template directory, which override
built-ins of the same name. With a name, list that template's slots.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTemplates,
}

func init() {
	rootCmd.AddCommand(templatesCmd)

	templatesCmd.Flags().StringVar(&templatesOpts.dir, "dir", "",
		"User template directory (default: ~/.config/livenotify/templates)")
}

func runTemplates(cmd *cobra.Command, args []string) error {
	dir := templatesOpts.dir
	if dir == "" {
		dir = config.DefaultDaemonConfig().TemplateDir()
	}

	registry := layout.NewRegistry(logger)
	if _, err := registry.LoadDir(dir); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if len(args) == 1 {
		t, ok := registry.Lookup(args[0])
		if !ok {
			return fmt.Errorf("template %q not found", args[0])
		}
		fmt.Fprintln(w, "SLOT\tTYPE")
		for _, s := range t.Slots() {
			fmt.Fprintf(w, "%s\t%s\n", s.Name, s.Type)
		}
		return nil
	}

	fmt.Fprintln(w, "NAME\tSLOTS\tHEIGHT")
	for _, name := range registry.Names() {
		t, _ := registry.Lookup(name)
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, len(t.Slots()), heightRange(t))
	}
	return nil
}

func heightRange(t *layout.Template) string {
	switch {
	case t.MinHeight == 0 && t.MaxHeight == 0:
		return "-"
	case t.MaxHeight == 0:
		return fmt.Sprintf("%ddp+", t.MinHeight)
	default:
		return fmt.Sprintf("%d-%ddp", t.MinHeight, t.MaxHeight)
	}
}
