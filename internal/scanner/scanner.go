// Package scanner discovers Markdown files under a root and extracts their metadata.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
)

// DefaultExcludes are directories never descended into: dependencies, build
// output, VCS metadata, and backup locations.
var DefaultExcludes = []string{
	"node_modules", "vendor", ".git", "dist", "build", "target", "out",
	".next", "coverage", "__pycache__", ".venv",
	"backups", ".backups", ".laguz", "*.backup", "*.bak",
}

// Options controls discovery.
type Options struct {
	Recursive     bool
	Exclude       []string
	IncludeHidden bool
	// Extensions defaults to [".md"].
	Extensions []string
}

// Scanner walks directories and parses matching files.
type Scanner struct {
	logger *slog.Logger
}

// New creates a Scanner. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Scan returns every matching document under root sorted by relative path.
// Unreadable files are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, root string, opts Options) ([]*models.Document, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("scanner: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanner: root is not a directory: %s", absRoot)
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = []string{".md"}
	}
	excludes := append(append([]string(nil), DefaultExcludes...), opts.Exclude...)

	seen := make(map[string]struct{})
	var docs []*models.Document

	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("scan: walk failed", slog.String("path", p), slog.String("error", walkErr.Error()))
			if d != nil && d.IsDir() && p != absRoot {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(absRoot, p)
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p == absRoot {
				return nil
			}
			if !opts.Recursive || Excluded(rel, excludes) || (!opts.IncludeHidden && isHidden(d.Name())) {
				return fs.SkipDir
			}
			return nil
		}

		if !hasExtension(d.Name(), exts) || Excluded(rel, excludes) {
			return nil
		}
		if !opts.IncludeHidden && isHidden(d.Name()) {
			return nil
		}
		if _, dup := seen[p]; dup {
			return nil
		}

		doc, err := LoadFile(absRoot, p)
		if err != nil {
			s.logger.Warn("scan: skipping unreadable file", slog.String("path", p), slog.String("error", err.Error()))
			return nil
		}
		seen[p] = struct{}{}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: walk: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].RelativePath < docs[j].RelativePath })
	s.logger.Debug("scan: complete", slog.String("root", absRoot), slog.Int("documents", len(docs)))
	return docs, nil
}

// LoadFile reads and parses a single file relative to root.
func LoadFile(root, p string) (*models.Document, error) {
	absPath, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		rel = filepath.Base(absPath)
	}
	res := parser.Parse(data)
	return &models.Document{
		Path:         absPath,
		RelativePath: filepath.ToSlash(rel),
		Name:         filepath.Base(absPath),
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		Content:      string(data),
		Metadata:     res.Metadata,
	}, nil
}

// Excluded reports whether rel (slash-separated) matches any pattern, either
// by any single path segment or by the whole relative path.
func Excluded(rel string, patterns []string) bool {
	segments := strings.Split(rel, "/")
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(filepath.ToSlash(pattern))
		if pattern == "" {
			continue
		}
		pattern = strings.ReplaceAll(pattern, "**/", "")
		pattern = strings.TrimSuffix(pattern, "/**")
		if strings.Contains(pattern, "/") {
			if ok, _ := path.Match(pattern, rel); ok {
				return true
			}
			if strings.HasPrefix(rel, strings.TrimSuffix(pattern, "/")+"/") {
				return true
			}
			continue
		}
		for _, seg := range segments {
			if ok, _ := path.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
