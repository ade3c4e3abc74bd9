// Package parser extracts frontmatter and structural metadata from Markdown content.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/laguz/internal/models"
)

// Untitled is the title of documents with neither a frontmatter title nor an H1.
const Untitled = "Untitled"

var (
	atxHeadingRe = regexp.MustCompile(`^ {0,3}(#{1,6})[ \t]+(.*?)(?:[ \t]+#+)?[ \t]*$`)
	imageRe      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	refLinkRe    = regexp.MustCompile(`\[([^\]]*)\]\[[^\]]*\]`)

	md = goldmark.New()
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Metadata    models.Metadata
}

// Parse splits frontmatter from body and derives metadata.
func Parse(data []byte) *Result {
	fm, body := splitFrontmatter(data)

	meta := models.Metadata{
		Title:       deriveTitle(fm, body),
		Headings:    Headings(body),
		WordCount:   CountWords(body),
		Frontmatter: fm,
	}
	countStructure([]byte(body), &meta)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Metadata:    meta,
	}
}

// Body returns content without its leading frontmatter block.
func Body(content string) string {
	_, body := splitFrontmatter([]byte(content))
	return body
}

// splitFrontmatter separates a leading YAML block from the body. Missing or
// malformed frontmatter yields a nil map and the whole input as body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return nil, string(data)
	}

	var fm map[string]any
	rest, err := frontmatter.Parse(bytes.NewReader(trimmed), &fm)
	if err != nil {
		return nil, string(data)
	}
	if len(fm) == 0 {
		fm = nil
	}
	return fm, strings.TrimLeft(string(rest), "\n\r")
}

// deriveTitle returns the frontmatter "title", else the first H1, else Untitled.
func deriveTitle(fm map[string]any, body string) string {
	if t, ok := fm["title"].(string); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	for _, h := range atxHeadings(body) {
		if h.level == 1 && h.text != "" {
			return h.text
		}
	}
	return Untitled
}

type heading struct {
	level int
	text  string
}

// atxHeadings scans ATX heading lines outside fenced code.
func atxHeadings(body string) []heading {
	var out []heading
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		if isFence(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		m := atxHeadingRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		out = append(out, heading{level: len(m[1]), text: strings.TrimSpace(m[2])})
	}
	return out
}

// Headings returns the text of every ATX heading (levels 1-6) in order.
func Headings(body string) []string {
	hs := atxHeadings(body)
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.text)
	}
	return out
}

func isFence(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}

// StripCode removes fenced code blocks, fences included.
func StripCode(body string) string {
	var b strings.Builder
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		if isFence(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// CountWords counts whitespace tokens after removing fenced code and link syntax.
func CountWords(body string) int {
	s := StripCode(body)
	s = imageRe.ReplaceAllString(s, "$1")
	s = linkRe.ReplaceAllString(s, "$1")
	s = refLinkRe.ReplaceAllString(s, "$1")
	return len(strings.Fields(s))
}

// CountTokens counts raw whitespace-separated tokens.
func CountTokens(s string) int {
	return len(strings.Fields(s))
}

// countStructure walks the goldmark AST for links, images, and fenced code blocks.
func countStructure(src []byte, meta *models.Metadata) {
	doc := md.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			meta.LinkCount++
			meta.Links = append(meta.Links, string(node.Destination))
		case *ast.AutoLink:
			meta.LinkCount++
			meta.Links = append(meta.Links, string(node.URL(src)))
		case *ast.Image:
			meta.ImageCount++
		case *ast.FencedCodeBlock:
			meta.CodeBlockCount++
		}
		return ast.WalkContinue, nil
	})
}
