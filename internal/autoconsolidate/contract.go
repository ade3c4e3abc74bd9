package autoconsolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/laguz/internal/cluster"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
)

// ClassifyKind tags a classification request.
type ClassifyKind string

// KindClassifyDocumentation asks whether a plain-text file is documentation.
const KindClassifyDocumentation ClassifyKind = "classify-documentation"

// ClassifyRequest is a typed classification request.
type ClassifyRequest struct {
	Kind   ClassifyKind
	Path   string
	Prompt string
}

// ClassifyResponse carries free text expected to contain one JSON object.
type ClassifyResponse struct {
	Kind ClassifyKind
	Text string
}

// DocClassifier judges whether non-markdown text files are documentation.
type DocClassifier interface {
	ClassifyDocument(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error)
}

type classification struct {
	IsDocumentation bool   `json:"isDocumentation"`
	Reason          string `json:"reason"`
}

const classifyPreviewChars = 600

func classifyPrompt(doc *models.Document) string {
	var b strings.Builder
	b.WriteString("Decide whether the following file is project documentation worth consolidating ")
	b.WriteString("(notes, guides, design records) rather than program output, data, or logs of a running system.\n\n")
	fmt.Fprintf(&b, "File: %s (%d bytes)\n", doc.RelativePath, doc.Size)
	b.WriteString("Content preview:\n")
	b.WriteString(truncateRunes(parser.Body(doc.Content), classifyPreviewChars))
	b.WriteString("\n\nRespond with exactly one JSON object: {\"isDocumentation\": true|false, \"reason\": \"\"}\n")
	return b.String()
}

// isDocumentation asks the classifier about doc. Any failure counts as "no".
func isDocumentation(ctx context.Context, c DocClassifier, doc *models.Document) (bool, error) {
	resp, err := c.ClassifyDocument(ctx, ClassifyRequest{
		Kind:   KindClassifyDocumentation,
		Path:   doc.Path,
		Prompt: classifyPrompt(doc),
	})
	if err != nil {
		return false, err
	}
	if resp.Kind != KindClassifyDocumentation {
		return false, fmt.Errorf("classify: response kind %q does not match request", resp.Kind)
	}
	raw, ok := cluster.ExtractJSON(resp.Text)
	if !ok {
		return false, fmt.Errorf("classify: no JSON object in response")
	}
	var out classification
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return false, fmt.Errorf("classify: decode response: %w", err)
	}
	return out.IsDocumentation, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
