// Package boundary lists the independent repository roots under a directory.
package boundary

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/starford/laguz/internal/scanner"
)

// GitLister treats the root and every nested directory holding a .git entry
// as a separate boundary.
type GitLister struct {
	Exclude []string
}

// List returns absolute boundary roots, the root first and the rest sorted.
// With flatten the root is the only boundary.
func (l GitLister) List(ctx context.Context, root string, flatten bool) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("boundary: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("boundary: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("boundary: %s is not a directory", abs)
	}
	if flatten {
		return []string{abs}, nil
	}

	excludes := append(append([]string(nil), scanner.DefaultExcludes...), l.Exclude...)
	var nested []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == abs {
				return walkErr
			}
			return fs.SkipDir
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() || p == abs {
			return nil
		}
		rel, _ := filepath.Rel(abs, p)
		if d.Name() == ".git" || scanner.Excluded(filepath.ToSlash(rel), excludes) {
			return fs.SkipDir
		}
		if _, err := os.Stat(filepath.Join(p, ".git")); err == nil {
			nested = append(nested, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boundary: walk %s: %w", abs, err)
	}
	sort.Strings(nested)
	return append([]string{abs}, nested...), nil
}
