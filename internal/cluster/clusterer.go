package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/goliatone/go-slug"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/models"
)

// Source records which path produced a clustering.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Result is the full clustering outcome.
type Result struct {
	Clusters   []models.TopicCluster
	Stale      []*models.Document
	Standalone []*models.Document
	Source     Source
	// Warning explains why the fallback was used, if it was.
	Warning string
}

// Clusterer groups documents by topic.
type Clusterer struct {
	suggester TopicSuggester
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Clusterer.
type Option func(*Clusterer)

// WithTimeout bounds each suggester call; expiry counts as a suggester failure.
func WithTimeout(d time.Duration) Option {
	return func(c *Clusterer) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Clusterer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the clock used for age buckets in prompts.
func WithClock(now func() time.Time) Option {
	return func(c *Clusterer) { c.now = now }
}

// New creates a Clusterer. suggester may be nil: absence of the capability
// always selects the deterministic fallback.
func New(suggester TopicSuggester, opts ...Option) *Clusterer {
	c := &Clusterer{
		suggester: suggester,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClusterByTopic returns the topic clusters for docs.
func (c *Clusterer) ClusterByTopic(ctx context.Context, docs []*models.Document) []models.TopicCluster {
	return c.Cluster(ctx, docs).Clusters
}

// Cluster runs the suggester path and falls back to folder grouping whenever
// the suggester is absent, fails, times out, or returns unusable text.
func (c *Clusterer) Cluster(ctx context.Context, docs []*models.Document) Result {
	if len(docs) == 0 {
		return Result{Source: SourceFallback}
	}
	if !c.hasSuggester() {
		return fallbackResult(docs, apperr.ErrAIUnavailable.Error())
	}

	res, err := c.suggest(ctx, docs)
	if err != nil {
		c.logger.Warn("cluster: falling back to folder grouping", slog.String("error", err.Error()))
		return fallbackResult(docs, err.Error())
	}
	return res
}

func (c *Clusterer) hasSuggester() bool {
	if c.suggester == nil {
		return false
	}
	v := reflect.ValueOf(c.suggester)
	return !(v.Kind() == reflect.Ptr && v.IsNil())
}

func (c *Clusterer) suggest(ctx context.Context, docs []*models.Document) (Result, error) {
	prompt, err := buildPrompt(docs, c.now())
	if err != nil {
		return Result{}, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.suggester.SuggestTopics(ctx, Request{
		Kind:          KindClusterDocuments,
		Prompt:        prompt,
		DocumentCount: len(docs),
	})
	if err != nil {
		return Result{}, fmt.Errorf("cluster: suggest topics: %w", err)
	}
	if resp.Kind != KindClusterDocuments {
		return Result{}, fmt.Errorf("cluster: response kind %q does not match request", resp.Kind)
	}
	return parseResponse(resp.Text, docs)
}

// parseResponse maps 1-based indices back to documents. Indices that do not
// resolve are dropped silently; a document joins at most one cluster.
func parseResponse(text string, docs []*models.Document) (Result, error) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return Result{}, fmt.Errorf("cluster: no JSON object in response")
	}
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Result{}, fmt.Errorf("cluster: decode response: %w", err)
	}

	resolve := func(idx int) (*models.Document, bool) {
		if idx < 1 || idx > len(docs) {
			return nil, false
		}
		return docs[idx-1], true
	}

	assigned := make(map[int]bool)
	var clusters []models.TopicCluster
	for _, pc := range p.Clusters {
		var members []*models.Document
		for _, idx := range pc.FileIndices {
			d, ok := resolve(idx)
			if !ok || assigned[idx] {
				continue
			}
			assigned[idx] = true
			members = append(members, d)
		}
		if len(members) == 0 {
			continue
		}
		strategy, err := models.ParseClusterStrategy(strings.ToLower(strings.TrimSpace(pc.ConsolidationStrategy)))
		if err != nil {
			strategy = models.ClusterMerge
		}
		name := strings.TrimSpace(pc.Name)
		if name == "" {
			name = fmt.Sprintf("Topic %d", len(clusters)+1)
		}
		clusters = append(clusters, models.TopicCluster{
			Name:              name,
			Description:       pc.Description,
			Documents:         members,
			SuggestedFilename: sanitizeFilename(pc.SuggestedFilename, name),
			Strategy:          strategy,
			Reasoning:         pc.Reasoning,
		})
	}
	if len(clusters) == 0 {
		return Result{}, fmt.Errorf("cluster: response contained no usable clusters")
	}

	res := Result{Clusters: clusters, Source: SourceAI}
	for _, idx := range p.StaleFiles {
		if d, ok := resolve(idx); ok {
			res.Stale = append(res.Stale, d)
		}
	}
	for _, idx := range p.StandaloneFiles {
		if d, ok := resolve(idx); ok {
			res.Standalone = append(res.Standalone, d)
		}
	}
	return res, nil
}

// sanitizeFilename keeps only a base name ending in .md.
func sanitizeFilename(suggested, name string) string {
	base := filepath.Base(strings.TrimSpace(suggested))
	if base == "." || base == "/" || base == "" {
		base = UpperSlug(name) + ".md"
	}
	if !strings.EqualFold(filepath.Ext(base), ".md") {
		base += ".md"
	}
	return base
}

// UpperSlug turns a topic name into an upper-case, underscore separated slug.
func UpperSlug(name string) string {
	s, err := slug.Normalize(name)
	if err != nil || s == "" {
		s = strings.ToLower(strings.Join(strings.FieldsFunc(name, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}), "-"))
	}
	if s == "" {
		s = "docs"
	}
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}

// Fallback groups documents by the first segment of their relative path.
// The result depends only on the inputs.
func Fallback(docs []*models.Document) []models.TopicCluster {
	groups := make(map[string][]*models.Document)
	for _, d := range docs {
		seg := firstSegment(d.RelativePath)
		groups[seg] = append(groups[seg], d)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.TopicCluster, 0, len(keys))
	for _, k := range keys {
		members := groups[k]
		sort.SliceStable(members, func(i, j int) bool { return members[i].RelativePath < members[j].RelativePath })
		out = append(out, models.TopicCluster{
			Name:              capitalize(k),
			Description:       fmt.Sprintf("Documents grouped by location (%s)", k),
			Documents:         members,
			SuggestedFilename: strings.ToUpper(k) + ".md",
			Strategy:          models.ClusterMerge,
			Reasoning:         "grouped by top-level directory",
		})
	}
	return out
}

func fallbackResult(docs []*models.Document, warning string) Result {
	return Result{
		Clusters: Fallback(docs),
		Source:   SourceFallback,
		Warning:  warning,
	}
}

func firstSegment(rel string) string {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if i := strings.Index(rel, "/"); i > 0 {
		return rel[:i]
	}
	return "root"
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
