package storage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRuns() []Run {
	created := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	return []Run{
		{
			ID: "r1", Interpreter: "Perl_original", Language: "perl", Level: "bloc",
			Input: `print "Hello,World!"`, Status: StatusSucceeded, Output: "Hello,World!",
			Args: []string{"a"}, DurationMS: 5, CreatedAt: created,
		},
		{
			ID: "r2", Interpreter: "Perl_original", Language: "perl", Level: "line",
			Input: "print (", Status: StatusFailed, ErrorKind: "runtime",
			ErrorText: "syntax error", CreatedAt: created,
		},
	}
}

func TestExportMarkdown(t *testing.T) {
	md := ExportMarkdown(sampleRuns())

	assert.Contains(t, md, "# Run r1")
	assert.Contains(t, md, "- **Args:** `a`")
	assert.Contains(t, md, "```perl\nprint \"Hello,World!\"\n```")
	assert.Contains(t, md, "## Output\n\n```\nHello,World!\n```")
	assert.Contains(t, md, "## Error (runtime)\n\n```\nsyntax error\n```")
	assert.Equal(t, 1, strings.Count(md, "---\n"))
	assert.Contains(t, md, "2026-10-17 09:30:00")
}

func TestExportJSON(t *testing.T) {
	data, err := ExportJSON(sampleRuns())
	require.NoError(t, err)

	var decoded struct {
		Runs []Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Runs, 2)
	assert.Equal(t, StatusFailed, decoded.Runs[1].Status)
	assert.Equal(t, "runtime", decoded.Runs[1].ErrorKind)
}
