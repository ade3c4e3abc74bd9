// Package planner turns topic clusters into executable consolidation plans.
package planner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/cluster"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/navigation"
)

// Output names used by the auxiliary plans.
const (
	SuperReadmeFile = "DOCUMENTATION.md"
	ArchiveDir      = "archive"
)

// Clusterer is the topic grouping capability the planner consumes.
type Clusterer interface {
	Cluster(ctx context.Context, docs []*models.Document) cluster.Result
}

// Options bound and shape a plan.
type Options struct {
	MaxOutputFiles    int
	PreserveOriginals bool
	CreateSuperReadme bool
	ArchiveStale      bool
	// OutputDir receives every output; defaults to the directory of the first document.
	OutputDir string
}

// Validate validates the options.
func (o *Options) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.MaxOutputFiles, validation.Required, validation.Min(1)),
	)
}

// Outcome is a plan together with the clustering it came from. Link-only
// clusters stay in Clusters for navigation even though they yield no plan.
type Outcome struct {
	Plans    []models.ConsolidationPlan
	Clusters []models.TopicCluster
	Stale    []*models.Document
	Source   cluster.Source
	Warning  string
}

// Planner creates consolidation plans.
type Planner struct {
	clusterer Clusterer
	logger    *slog.Logger
}

// New creates a Planner.
func New(c Clusterer, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{clusterer: c, logger: logger}
}

// CreatePlan returns the plans for docs.
func (p *Planner) CreatePlan(ctx context.Context, docs []*models.Document, opts Options) ([]models.ConsolidationPlan, error) {
	out, err := p.Plan(ctx, docs, opts)
	if err != nil {
		return nil, err
	}
	return out.Plans, nil
}

// Plan clusters docs and maps the first MaxOutputFiles clusters to plans.
func (p *Planner) Plan(ctx context.Context, docs []*models.Document, opts Options) (Outcome, error) {
	if err := opts.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("planner: invalid options: %w", err)
	}
	if len(docs) == 0 {
		return Outcome{}, apperr.ErrNoDocuments
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(docs[0].Path)
	}

	res := p.clusterer.Cluster(ctx, docs)
	out := Outcome{Clusters: res.Clusters, Stale: res.Stale, Source: res.Source, Warning: res.Warning}

	taken := make(map[string]bool)
	clusters := res.Clusters
	if len(clusters) > opts.MaxOutputFiles {
		clusters = clusters[:opts.MaxOutputFiles]
	}
	for _, c := range clusters {
		strategy, ok := planStrategy(c.Strategy)
		if !ok {
			continue
		}
		out.Plans = append(out.Plans, models.ConsolidationPlan{
			Strategy:          strategy,
			Cluster:           c.Name,
			Inputs:            c.Documents,
			OutputFile:        UniquePath(filepath.Join(outDir, c.SuggestedFilename), taken),
			PreserveOriginals: opts.PreserveOriginals,
			Confidence:        confidence(res.Source, c.Strategy),
			Reasoning:         reasoningFor(c, res.Source),
		})
	}

	if opts.CreateSuperReadme && len(out.Plans) < opts.MaxOutputFiles {
		out.Plans = append(out.Plans, models.ConsolidationPlan{
			Strategy:          models.PlanCreateSuperReadme,
			Inputs:            docs,
			OutputFile:        HubPath(outDir, taken),
			PreserveOriginals: true,
			Confidence:        0.9,
			Reasoning:         "navigation hub over every scanned document",
		})
	}
	if opts.ArchiveStale && len(res.Stale) > 0 && len(out.Plans) < opts.MaxOutputFiles {
		out.Plans = append(out.Plans, models.ConsolidationPlan{
			Strategy:          models.PlanArchiveStale,
			Inputs:            res.Stale,
			OutputFile:        UniquePath(filepath.Join(outDir, ArchiveDir), taken),
			PreserveOriginals: false,
			Confidence:        0.6,
			Reasoning:         fmt.Sprintf("%d documents judged stale", len(res.Stale)),
		})
	}

	p.logger.Debug("planner: plan created",
		slog.Int("clusters", len(res.Clusters)),
		slog.Int("plans", len(out.Plans)),
		slog.String("source", string(res.Source)),
	)
	return out, nil
}

func planStrategy(s models.ClusterStrategy) (models.PlanStrategy, bool) {
	switch s {
	case models.ClusterMerge:
		return models.PlanMergeByTopic, true
	case models.ClusterSummarize:
		return models.PlanSummarizeCluster, true
	case models.ClusterLinkOnly:
		return "", false
	}
	return "", false
}

func confidence(src cluster.Source, s models.ClusterStrategy) float64 {
	c := 0.6
	if src == cluster.SourceAI {
		c = 0.8
	}
	if s == models.ClusterSummarize {
		c -= 0.1
	}
	return c
}

func reasoningFor(c models.TopicCluster, src cluster.Source) string {
	if r := strings.TrimSpace(c.Reasoning); r != "" {
		return r
	}
	return fmt.Sprintf("%d documents about %s (%s clustering)", len(c.Documents), c.Name, src)
}

// UniquePath returns path, or path with a _N suffix before the extension,
// such that the result is not yet in taken. The result is recorded in taken.
func UniquePath(path string, taken map[string]bool) string {
	candidate := path
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	taken[candidate] = true
	return candidate
}

// HubPath returns where the hub for dir is written: DOCUMENTATION.md, or the
// first _N variant that is absent or holds a hub from an earlier run. A
// hand-written file is never chosen.
func HubPath(dir string, taken map[string]bool) string {
	stem := strings.TrimSuffix(SuperReadmeFile, filepath.Ext(SuperReadmeFile))
	candidate := filepath.Join(dir, SuperReadmeFile)
	for n := 2; taken[candidate] || userOwned(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d.md", stem, n))
	}
	taken[candidate] = true
	return candidate
}

func userOwned(path string) bool {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	if err != nil {
		return true
	}
	return !navigation.IsHub(string(data))
}
