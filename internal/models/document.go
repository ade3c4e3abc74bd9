// Package models defines the domain types shared across the consolidation pipeline.
package models

import "time"

// Metadata is the structural summary derived from a Markdown file at scan time.
type Metadata struct {
	Title          string         `json:"title"`
	Headings       []string       `json:"headings"`
	WordCount      int            `json:"word_count"`
	LinkCount      int            `json:"link_count"`
	CodeBlockCount int            `json:"code_block_count"`
	ImageCount     int            `json:"image_count"`
	Frontmatter    map[string]any `json:"frontmatter,omitempty"`
	// Links holds raw link destinations in document order.
	Links []string `json:"links,omitempty"`
}

// Document is a scanned Markdown file. Identity is the absolute Path.
type Document struct {
	Path         string    `json:"path"`
	RelativePath string    `json:"relative_path"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ModTime      time.Time `json:"modified_at"`
	Content      string    `json:"-"`
	Metadata     Metadata  `json:"metadata"`
}

// TotalWords sums the word counts of docs.
func TotalWords(docs []*Document) int {
	total := 0
	for _, d := range docs {
		total += d.Metadata.WordCount
	}
	return total
}

// Paths returns the absolute paths of docs in order.
func Paths(docs []*Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Path)
	}
	return out
}
