// Package validate checks consolidated output against its inputs.
package validate

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/starford/laguz/internal/models"
)

// Loss thresholds as fractions of the original word count.
const (
	MaxLoss  = 0.30
	WarnLoss = 0.10
)

var md = goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))

// Validator checks outputs.
type Validator struct {
	logger *slog.Logger
}

// New creates a Validator.
func New(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// Validate checks existence, content preservation, and relative links of
// every consolidated path. Broken links are warnings, never errors.
func (v *Validator) Validate(originals []*models.Document, consolidated []string) models.ValidationResult {
	res := models.ValidationResult{Errors: []string{}, Warnings: []string{}}

	outputWords := 0
	for _, p := range consolidated {
		data, err := os.ReadFile(p)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("output %s is missing", p))
			continue
		}
		outputWords += len(strings.Fields(string(data)))
		for _, target := range BrokenLinks(p, data) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: unresolved link %s", filepath.Base(p), target))
		}
	}

	inputWords := models.TotalWords(originals)
	if inputWords > 0 {
		loss := float64(inputWords-outputWords) / float64(inputWords)
		switch {
		case loss > MaxLoss:
			res.Errors = append(res.Errors, fmt.Sprintf("content loss %.0f%% (%d of %d words kept)", loss*100, outputWords, inputWords))
		case loss > WarnLoss:
			res.Warnings = append(res.Warnings, fmt.Sprintf("content loss %.0f%% (%d of %d words kept)", loss*100, outputWords, inputWords))
		}
	}

	res.Valid = len(res.Errors) == 0
	if !res.Valid {
		v.logger.Warn("validate: consolidation failed checks", slog.Int("errors", len(res.Errors)))
	}
	return res
}

// BrokenLinks renders data and returns the relative link and image targets
// that do not resolve against the directory of path.
func BrokenLinks(path string, data []byte) []string {
	var broken []string
	eachLocal(path, data, func(raw, abs string) {
		if _, err := os.Stat(abs); err != nil {
			broken = append(broken, raw)
		}
	})
	return broken
}

// LinksTo returns the relative link and image targets of data that resolve
// to one of the absolute paths in targets.
func LinksTo(path string, data []byte, targets map[string]bool) []string {
	var hits []string
	eachLocal(path, data, func(raw, abs string) {
		if targets[abs] {
			hits = append(hits, raw)
		}
	})
	return hits
}

// eachLocal calls fn once per distinct local link or image target of data,
// with the target resolved against the directory of path.
func eachLocal(path string, data []byte, fn func(raw, abs string)) {
	var buf bytes.Buffer
	if err := md.Convert(data, &buf); err != nil {
		return
	}
	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		return
	}

	dir := filepath.Dir(path)
	seen := make(map[string]bool)
	visit := func(raw string) {
		target, ok := localTarget(raw)
		if !ok || seen[raw] {
			return
		}
		seen[raw] = true
		fn(raw, filepath.Join(dir, filepath.FromSlash(target)))
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		visit(href)
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		visit(src)
	})
}

// localTarget strips fragment and query from a relative reference. Absolute
// URLs, protocol-relative links, and same-page anchors are not local.
func localTarget(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "//") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	return u.Path, true
}
