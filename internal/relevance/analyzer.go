// Package relevance scores documents on recency, content quality,
// connectivity, and uniqueness.
package relevance

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/starford/laguz/internal/models"
)

// SimilarityThreshold is the title Jaccard similarity above which two
// documents count as similar.
const SimilarityThreshold = 0.7

// Analyzer computes relevance scores. Now is injectable for deterministic tests.
type Analyzer struct {
	now func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the time source used for recency.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeRelevance scores doc against the full document set.
func (a *Analyzer) AnalyzeRelevance(doc *models.Document, all []*models.Document) models.RelevanceScore {
	ageDays := int(a.now().Sub(doc.ModTime).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}
	similar := a.similarCount(doc, all)

	f := models.RelevanceFactors{
		Recency:        recencyScore(ageDays),
		ContentQuality: qualityScore(doc.Metadata),
		Connectivity:   connectivityScore(doc, all),
		Uniqueness:     uniquenessScore(similar),
	}
	total := f.Total()
	return models.RelevanceScore{
		Path:      doc.Path,
		Score:     total,
		Factors:   f,
		Status:    models.StatusForScore(total),
		Reasoning: reasoning(f, ageDays, similar),
	}
}

// AnalyzeAll scores every document and returns results ordered by descending score.
func (a *Analyzer) AnalyzeAll(docs []*models.Document) []models.RelevanceScore {
	out := make([]models.RelevanceScore, 0, len(docs))
	for _, d := range docs {
		out = append(out, a.AnalyzeRelevance(d, docs))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func recencyScore(ageDays int) int {
	switch {
	case ageDays <= 7:
		return 25
	case ageDays <= 30:
		return 20
	case ageDays <= 90:
		return 15
	case ageDays <= 180:
		return 10
	default:
		return 5
	}
}

func qualityScore(m models.Metadata) int {
	score := 0
	switch {
	case m.WordCount >= 500:
		score += 10
	case m.WordCount >= 200:
		score += 7
	case m.WordCount >= 50:
		score += 4
	default:
		score++
	}
	switch h := len(m.Headings); {
	case h >= 5:
		score += 8
	case h >= 3:
		score += 5
	case h >= 1:
		score += 3
	}
	switch {
	case m.CodeBlockCount >= 3:
		score += 4
	case m.CodeBlockCount >= 1:
		score += 2
	}
	switch {
	case m.LinkCount >= 5:
		score += 3
	case m.LinkCount >= 1:
		score += 2
	}
	return min(score, models.MaxFactorScore)
}

func connectivityScore(doc *models.Document, all []*models.Document) int {
	inbound := 0
	for _, other := range all {
		if other.Path == doc.Path {
			continue
		}
		if strings.Contains(other.Content, doc.Name) ||
			(doc.RelativePath != "" && strings.Contains(other.Content, doc.RelativePath)) {
			inbound++
		}
	}
	outbound := 0
	for _, link := range doc.Metadata.Links {
		if IsLocalMarkdownLink(link) {
			outbound++
		}
	}
	return min(min(inbound*3, 15)+min(outbound*2, 10), models.MaxFactorScore)
}

// IsLocalMarkdownLink reports whether a link destination points at a
// relative .md file rather than a URL or an in-page anchor.
func IsLocalMarkdownLink(dest string) bool {
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "//") {
		return false
	}
	if u, err := url.Parse(dest); err == nil && u.Scheme != "" {
		return false
	}
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	return strings.EqualFold(path.Ext(dest), ".md")
}

func (a *Analyzer) similarCount(doc *models.Document, all []*models.Document) int {
	words := titleWords(doc.Metadata.Title)
	n := 0
	for _, other := range all {
		if other.Path == doc.Path {
			continue
		}
		if Jaccard(words, titleWords(other.Metadata.Title)) > SimilarityThreshold {
			n++
		}
	}
	return n
}

func uniquenessScore(similar int) int {
	switch {
	case similar == 0:
		return 25
	case similar == 1:
		return 20
	case similar <= 3:
		return 15
	case similar <= 5:
		return 10
	default:
		return 5
	}
}

func titleWords(title string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,:;!?()[]{}\"'`")
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when both sets are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// notable factor bounds: below 40% or above 80% of the maximum.
const (
	lowMark  = models.MaxFactorScore * 40 / 100
	highMark = models.MaxFactorScore * 80 / 100
)

func reasoning(f models.RelevanceFactors, ageDays, similar int) string {
	var parts []string
	switch {
	case f.Recency < lowMark:
		parts = append(parts, fmt.Sprintf("low recency (last updated %d days ago)", ageDays))
	case f.Recency > highMark:
		parts = append(parts, "high recency (updated this week)")
	}
	switch {
	case f.ContentQuality < lowMark:
		parts = append(parts, "low content quality (thin or unstructured)")
	case f.ContentQuality > highMark:
		parts = append(parts, "high content quality")
	}
	switch {
	case f.Connectivity < lowMark:
		parts = append(parts, "weak connectivity (few references)")
	case f.Connectivity > highMark:
		parts = append(parts, "strong connectivity")
	}
	switch {
	case f.Uniqueness < lowMark:
		parts = append(parts, fmt.Sprintf("low uniqueness (%d similar documents)", similar))
	case f.Uniqueness > highMark:
		parts = append(parts, "high uniqueness")
	}
	if len(parts) == 0 {
		return "no notable factors"
	}
	return strings.Join(parts, "; ")
}
