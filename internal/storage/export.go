package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportMarkdown renders runs as a markdown document, one section per run.
func ExportMarkdown(runs []Run) string {
	var b strings.Builder

	for i, r := range runs {
		if i > 0 {
			b.WriteString("---\n\n")
		}
		b.WriteString(fmt.Sprintf("# Run %s\n\n", r.ID))
		b.WriteString(fmt.Sprintf("- **Interpreter:** %s\n", r.Interpreter))
		b.WriteString(fmt.Sprintf("- **Language:** %s\n", r.Language))
		b.WriteString(fmt.Sprintf("- **Level:** %s\n", r.Level))
		b.WriteString(fmt.Sprintf("- **Status:** %s\n", r.Status))
		if len(r.Args) > 0 {
			b.WriteString(fmt.Sprintf("- **Args:** `%s`\n", strings.Join(r.Args, " ")))
		}
		b.WriteString(fmt.Sprintf("- **Duration:** %dms\n", r.DurationMS))
		b.WriteString(fmt.Sprintf("- **Created:** %s\n\n", r.CreatedAt.Format("2006-01-02 15:04:05")))

		b.WriteString(fmt.Sprintf("## Code\n\n```%s\n%s\n```\n\n", strings.ToLower(r.Language), r.Input))

		if r.Status == StatusSucceeded {
			b.WriteString(fmt.Sprintf("## Output\n\n```\n%s\n```\n\n", r.Output))
			continue
		}
		b.WriteString(fmt.Sprintf("## Error (%s)\n\n```\n%s\n```\n\n", r.ErrorKind, r.ErrorText))
	}

	return b.String()
}

// ExportJSON renders runs as formatted JSON.
func ExportJSON(runs []Run) ([]byte, error) {
	export := struct {
		Runs []Run `json:"runs"`
	}{
		Runs: runs,
	}
	return json.MarshalIndent(export, "", "  ")
}
