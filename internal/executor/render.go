package executor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/goliatone/go-slug"

	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
)

const (
	// DefaultTitle heads a merge whose inputs share no title words.
	DefaultTitle = "Consolidated Documentation"

	previewChars       = 200
	folderHeadings     = 5
	summaryParagraphs  = 3
	dateLayout         = "2006-01-02"
	sectionSeparator   = "\n---\n\n"
	minSharedWordChars = 4
)

func renderMergeByTopic(inputs []*models.Document, now time.Time) string {
	docs := append([]*models.Document(nil), inputs...)
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Metadata.WordCount != docs[j].Metadata.WordCount {
			return docs[i].Metadata.WordCount > docs[j].Metadata.WordCount
		}
		return docs[i].RelativePath < docs[j].RelativePath
	})

	anchors := newAnchorSet()
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = anchors.add(sectionTitle(d))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", MergedTitle(docs))
	fmt.Fprintf(&b, "> Consolidated from %d documents on %s.\n\n", len(docs), now.Format(dateLayout))

	b.WriteString("## Table of Contents\n\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "- [%s](#%s)\n", sectionTitle(d), ids[i])
	}

	for i, d := range docs {
		b.WriteString(sectionSeparator)
		fmt.Fprintf(&b, "<a id=\"%s\"></a>\n\n", ids[i])
		fmt.Fprintf(&b, "## %s\n\n", sectionTitle(d))
		fmt.Fprintf(&b, "*Source: `%s`*\n\n", d.RelativePath)
		body := strings.TrimSpace(parser.StripLeadingH1(parser.Body(d.Content)))
		if body != "" {
			b.WriteString(body)
			b.WriteString("\n")
		}
	}

	b.WriteString(sectionSeparator)
	b.WriteString("## Source Files\n\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "- `%s` (%d words, modified %s)\n", d.RelativePath, d.Metadata.WordCount, d.ModTime.Format(dateLayout))
	}
	return b.String()
}

func renderMergeByFolder(inputs []*models.Document, outDir string) string {
	title := DefaultTitle
	if len(inputs) > 0 {
		title = filepath.Base(filepath.Dir(inputs[0].Path)) + " Documentation"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)
	for _, d := range inputs {
		link := d.RelativePath
		if rel, err := filepath.Rel(outDir, d.Path); err == nil {
			link = filepath.ToSlash(rel)
		}
		fmt.Fprintf(&b, "\n## [%s](%s)\n\n", sectionTitle(d), link)
		body := parser.Body(d.Content)
		if preview := parser.Preview(body, previewChars); preview != "" {
			b.WriteString(preview)
			b.WriteString("\n")
		}
		headings := d.Metadata.Headings
		if len(headings) > folderHeadings {
			headings = headings[:folderHeadings]
		}
		if len(headings) > 0 {
			b.WriteString("\n")
		}
		for _, h := range headings {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	return b.String()
}

func renderSummary(name string, inputs []*models.Document, now time.Time) string {
	if strings.TrimSpace(name) == "" {
		name = DefaultTitle
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "> Summary of %d documents, generated %s.\n\n", len(inputs), now.Format(dateLayout))

	b.WriteString("## Overview\n\n")
	for _, d := range inputs {
		preview := parser.Preview(parser.Body(d.Content), previewChars)
		if preview == "" {
			fmt.Fprintf(&b, "- **%s**\n", sectionTitle(d))
			continue
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", sectionTitle(d), preview)
	}

	for _, d := range inputs {
		b.WriteString(sectionSeparator)
		fmt.Fprintf(&b, "## %s\n\n", sectionTitle(d))
		fmt.Fprintf(&b, "*Source: `%s`*\n\n", d.RelativePath)
		paras := parser.Paragraphs(parser.StripLeadingH1(parser.Body(d.Content)))
		if len(paras) > summaryParagraphs {
			paras = paras[:summaryParagraphs]
		}
		for _, p := range paras {
			b.WriteString(p)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// MergedTitle joins the words (longer than three characters) that appear in
// at least half of the input titles, in order of first appearance.
func MergedTitle(docs []*models.Document) string {
	if len(docs) == 0 {
		return DefaultTitle
	}
	counts := make(map[string]int)
	var order []string
	for _, d := range docs {
		seen := make(map[string]bool)
		for _, w := range titleWords(sectionTitle(d)) {
			key := strings.ToLower(w)
			if seen[key] {
				continue
			}
			seen[key] = true
			if counts[key] == 0 {
				order = append(order, w)
			}
			counts[key]++
		}
	}
	var shared []string
	for _, w := range order {
		if len([]rune(w)) >= minSharedWordChars && counts[strings.ToLower(w)]*2 >= len(docs) {
			shared = append(shared, capitalize(w))
		}
	}
	if len(shared) == 0 {
		return DefaultTitle
	}
	return strings.Join(shared, " ")
}

func titleWords(title string) []string {
	return strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func sectionTitle(d *models.Document) string {
	if d.Metadata.Title != "" && d.Metadata.Title != parser.Untitled {
		return d.Metadata.Title
	}
	return trimExt(d.Name)
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

type anchorSet map[string]int

func newAnchorSet() anchorSet { return make(anchorSet) }

// add returns a unique anchor for title.
func (a anchorSet) add(title string) string {
	base, err := slug.Normalize(title)
	if err != nil || base == "" {
		base = "section"
	}
	a[base]++
	if n := a[base]; n > 1 {
		return fmt.Sprintf("%s-%d", base, n)
	}
	return base
}
