package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/snipforge/internal/app"
)

var interpretersCmd = &cobra.Command{
	Use:     "interpreters",
	Aliases: []string{"interps", "i"},
	Short:   "List available interpreters",
	Args:    cobra.NoArgs,
	RunE:    runInterpreters,
}

func init() {
	rootCmd.AddCommand(interpretersCmd)
}

func runInterpreters(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := app.BuildRegistry(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s %-36s %-8s %-8s %s\n", "NAME", "LANGUAGES", "LEVEL", "DEFAULT", "REPL")
	fmt.Fprintln(out, strings.Repeat("─", 82))

	for _, d := range reg.List() {
		langs := strings.Join(d.Languages, ", ")
		if len(langs) > 34 {
			langs = langs[:34] + ".."
		}
		fmt.Fprintf(out, "%-20s %-36s %-8s %-8s %s\n",
			d.Name, langs, d.MaxLevel, yesNo(d.DefaultForFiletype), yesNo(d.ReplLike))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
