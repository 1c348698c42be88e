package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/snipforge/internal/storage"
	"github.com/michaelbrown/snipforge/internal/storage/sqlite"
)

var (
	statusFilter      string
	interpreterFilter string
	limitFlag         int
	exportFormat      string
	exportOutput      string
	forceFlag         bool
	keepFlag          int
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"runs", "h"},
	Short:   "Inspect past runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run's input and output",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyExportCmd = &cobra.Command{
	Use:   "export [run-id...]",
	Short: "Export runs as markdown or JSON",
	RunE:  runHistoryExport,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd, historyExportCmd, historyPruneCmd)

	historyListCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (succeeded, failed)")
	historyListCmd.Flags().StringVar(&interpreterFilter, "interpreter", "", "Filter by interpreter name")
	historyListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max runs to show")

	historyExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md or json")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	historyExportCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max runs to export when no IDs are given")

	historyDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")

	historyPruneCmd.Flags().IntVar(&keepFlag, "keep", 100, "Number of newest runs to keep")
}

func openStore() (storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return sqlite.Open(cfg.Storage.DBPath)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), storage.RunListOptions{
		Interpreter: interpreterFilter,
		Status:      storage.RunStatus(statusFilter),
		Limit:       limitFlag,
	})
	if err != nil {
		return err
	}

	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(out io.Writer, runs []storage.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return
	}

	// Header
	fmt.Fprintf(out, "%-10s %-10s %-18s %-40s %s\n", "ID", "STATUS", "INTERPRETER", "INPUT", "WHEN")
	fmt.Fprintln(out, strings.Repeat("─", 95))

	for _, r := range runs {
		input := firstLine(r.Input)
		if len(input) > 38 {
			input = input[:38] + ".."
		}
		if input == "" {
			input = "(empty)"
		}

		fmt.Fprintf(out, "%-10s %-10s %-18s %-40s %s\n",
			shortID(r.ID), r.Status, r.Interpreter, input, timeAgo(r.CreatedAt))
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:         %s\n", run.ID)
	fmt.Fprintf(out, "Interpreter: %s\n", run.Interpreter)
	fmt.Fprintf(out, "Language:    %s\n", run.Language)
	fmt.Fprintf(out, "Level:       %s\n", run.Level)
	fmt.Fprintf(out, "Status:      %s\n", run.Status)
	if len(run.Args) > 0 {
		fmt.Fprintf(out, "Args:        %s\n", strings.Join(run.Args, " "))
	}
	fmt.Fprintf(out, "Duration:    %dms\n", run.DurationMS)
	fmt.Fprintf(out, "Created:     %s\n", run.CreatedAt.Format(time.RFC3339))

	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintln(out, ensureNewline(run.Input))
	fmt.Fprintln(out, strings.Repeat("─", 60))
	if run.Status == storage.StatusFailed {
		fmt.Fprintf(out, "\033[31m%s error\033[0m\n%s", run.ErrorKind, ensureNewline(run.ErrorText))
	} else {
		fmt.Fprint(out, ensureNewline(run.Output))
	}
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	run, err := store.GetRun(ctx, args[0])
	if err != nil {
		return err
	}

	if !forceFlag {
		fmt.Printf("Delete run %s - %q? [y/N] ", shortID(run.ID), firstLine(run.Input))
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", shortID(run.ID))
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	var runs []storage.Run
	if len(args) == 0 {
		runs, err = store.ListRuns(ctx, storage.RunListOptions{Limit: limitFlag})
		if err != nil {
			return err
		}
	}
	for _, id := range args {
		run, err := store.GetRun(ctx, id)
		if err != nil {
			return err
		}
		runs = append(runs, *run)
	}

	var output string
	switch exportFormat {
	case "json":
		data, err := storage.ExportJSON(runs)
		if err != nil {
			return err
		}
		output = string(data)
	case "md", "markdown":
		output = storage.ExportMarkdown(runs)
	default:
		return fmt.Errorf("unknown export format %q", exportFormat)
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, []byte(output), 0o644)
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.PruneRuns(context.Background(), keepFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs\n", n)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
