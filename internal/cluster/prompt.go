package cluster

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
)

const previewChars = 200

type docSummary struct {
	Index    int      `json:"index"`
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Words    int      `json:"words"`
	Title    string   `json:"title"`
	Age      string   `json:"age"`
	Headings []string `json:"headings,omitempty"`
	Preview  string   `json:"preview"`
}

func ageBucket(now, modified time.Time) string {
	days := int(now.Sub(modified).Hours() / 24)
	switch {
	case days <= 7:
		return "this week"
	case days <= 30:
		return "this month"
	case days <= 90:
		return "this quarter"
	case days <= 365:
		return "this year"
	default:
		return "over a year"
	}
}

func summarize(docs []*models.Document, now time.Time) []docSummary {
	out := make([]docSummary, 0, len(docs))
	for i, d := range docs {
		headings := d.Metadata.Headings
		if len(headings) > 3 {
			headings = headings[:3]
		}
		out = append(out, docSummary{
			Index:    i + 1,
			Name:     d.Name,
			Path:     d.RelativePath,
			Words:    d.Metadata.WordCount,
			Title:    d.Metadata.Title,
			Age:      ageBucket(now, d.ModTime),
			Headings: headings,
			Preview:  parser.Preview(parser.Body(d.Content), previewChars),
		})
	}
	return out
}

// buildPrompt renders the indexed summaries and the expected answer shape.
func buildPrompt(docs []*models.Document, now time.Time) (string, error) {
	summaries, err := json.MarshalIndent(summarize(docs, now), "", "  ")
	if err != nil {
		return "", fmt.Errorf("cluster: encode summaries: %w", err)
	}
	var b strings.Builder
	b.WriteString("Group the following documentation files into topic clusters for consolidation.\n")
	b.WriteString("Each file is identified by its 1-based index.\n\n")
	b.WriteString("Files:\n")
	b.Write(summaries)
	b.WriteString("\n\nRespond with exactly one JSON object of this shape:\n")
	b.WriteString(`{"clusters":[{"name":"","description":"","fileIndices":[1],"suggestedFilename":"TOPIC.md",` +
		`"consolidationStrategy":"merge|summarize|link-only","reasoning":""}],"staleFiles":[],"standaloneFiles":[]}`)
	b.WriteString("\n")
	return b.String(), nil
}
