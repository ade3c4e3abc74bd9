// Package executor backs up plan inputs and renders consolidated output.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/storage"
)

// BackupStore is the backup capability consumed before any output is written.
type BackupStore interface {
	BackupFile(ctx context.Context, path string, tag models.BackupTag) (models.BackupEntry, error)
	CreateManifest(ctx context.Context, entries []models.BackupEntry, label string) (models.BackupManifest, error)
}

// HubRenderer renders the navigation hub used by create-super-readme plans.
type HubRenderer interface {
	Generate(docs []*models.Document, existingReadme string, related []models.TopicCluster) string
}

// Executor runs consolidation plans.
type Executor struct {
	backups BackupStore
	hub     HubRenderer
	related []models.TopicCluster
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithHub sets the renderer for create-super-readme plans.
func WithHub(h HubRenderer) Option {
	return func(e *Executor) { e.hub = h }
}

// WithRelated passes clusters through to the hub renderer.
func WithRelated(clusters []models.TopicCluster) Option {
	return func(e *Executor) { e.related = clusters }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the clock used in attribution lines.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an Executor.
func New(backups BackupStore, opts ...Option) *Executor {
	e := &Executor{
		backups: backups,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute backs up every input under one manifest, renders the plan, and
// writes the output. An output file already on disk joins the manifest
// before it is overwritten. A failure affects this plan only.
func (e *Executor) Execute(ctx context.Context, plan models.ConsolidationPlan) (models.ConsolidationResult, error) {
	res := models.ConsolidationResult{
		OutputFile: plan.OutputFile,
		InputCount: len(plan.Inputs),
		Strategy:   plan.Strategy,
	}
	fail := func(err error) (models.ConsolidationResult, error) {
		res.Error = err.Error()
		e.logger.Error("executor: plan failed",
			slog.String("strategy", string(plan.Strategy)),
			slog.String("path", plan.OutputFile),
			slog.String("error", err.Error()),
		)
		return res, err
	}

	manifest, err := e.backup(ctx, plan)
	if err != nil {
		return fail(err)
	}
	res.ManifestID = manifest.ID
	res.Manifest = &manifest

	if plan.Strategy == models.PlanArchiveStale {
		if err := e.relocate(plan); err != nil {
			return fail(fmt.Errorf("%w: %w", apperr.ErrPlanExecution, err))
		}
		res.Success = true
		return res, nil
	}

	content, err := e.render(plan)
	if err != nil {
		return fail(err)
	}
	if err := writeOutput(plan.OutputFile, []byte(content)); err != nil {
		return fail(fmt.Errorf("%w: %w", apperr.ErrPlanExecution, err))
	}

	res.Success = true
	e.logger.Info("executor: plan executed",
		slog.String("strategy", string(plan.Strategy)),
		slog.String("path", plan.OutputFile),
		slog.Int("inputs", len(plan.Inputs)),
		slog.String("manifest_id", manifest.ID),
	)
	return res, nil
}

func (e *Executor) backup(ctx context.Context, plan models.ConsolidationPlan) (models.BackupManifest, error) {
	if e.backups == nil {
		return models.BackupManifest{}, fmt.Errorf("executor: no backup store: %w", apperr.ErrBackupIntegrity)
	}
	paths := models.Paths(plan.Inputs)
	if plan.Strategy != models.PlanArchiveStale && !slices.Contains(paths, plan.OutputFile) {
		if _, err := os.Stat(plan.OutputFile); err == nil {
			paths = append(paths, plan.OutputFile)
		}
	}
	entries := make([]models.BackupEntry, 0, len(paths))
	for _, p := range paths {
		entry, err := e.backups.BackupFile(ctx, p, models.BackupModify)
		if err != nil {
			return models.BackupManifest{}, fmt.Errorf("executor: back up %s: %w", p, errors.Join(apperr.ErrBackupIntegrity, err))
		}
		entries = append(entries, entry)
	}
	label := fmt.Sprintf("%s %s", plan.Strategy, filepath.Base(plan.OutputFile))
	m, err := e.backups.CreateManifest(ctx, entries, label)
	if err != nil {
		return models.BackupManifest{}, fmt.Errorf("executor: create manifest: %w", errors.Join(apperr.ErrBackupIntegrity, err))
	}
	return m, nil
}

func (e *Executor) render(plan models.ConsolidationPlan) (string, error) {
	switch plan.Strategy {
	case models.PlanMergeByTopic:
		return renderMergeByTopic(plan.Inputs, e.now()), nil
	case models.PlanMergeByFolder:
		return renderMergeByFolder(plan.Inputs, filepath.Dir(plan.OutputFile)), nil
	case models.PlanSummarizeCluster:
		return renderSummary(plan.Cluster, plan.Inputs, e.now()), nil
	case models.PlanCreateSuperReadme:
		if e.hub == nil {
			return "", fmt.Errorf("executor: no navigation renderer for %s", plan.Strategy)
		}
		existing, _ := os.ReadFile(filepath.Join(filepath.Dir(plan.OutputFile), "README.md"))
		return e.hub.Generate(plan.Inputs, string(existing), e.related), nil
	case models.PlanArchiveStale:
		return "", fmt.Errorf("executor: %s is a relocation, not a render", plan.Strategy)
	}
	return "", fmt.Errorf("executor: strategy %q: %w", plan.Strategy, apperr.ErrUnknownStrategy)
}

// relocate moves stale inputs into the plan's output directory.
func (e *Executor) relocate(plan models.ConsolidationPlan) error {
	if err := os.MkdirAll(plan.OutputFile, 0o755); err != nil {
		return fmt.Errorf("executor: create %s: %w", plan.OutputFile, err)
	}
	root := filepath.Dir(plan.OutputFile)
	fsys, err := storage.NewFS(root)
	if err != nil {
		return err
	}
	taken := make(map[string]bool)
	for _, d := range plan.Inputs {
		dst := filepath.Join(plan.OutputFile, filepath.Base(d.Path))
		for n := 2; taken[dst] || fsys.Exists(dst); n++ {
			ext := filepath.Ext(d.Path)
			dst = filepath.Join(plan.OutputFile, fmt.Sprintf("%s_%d%s", trimExt(filepath.Base(d.Path)), n, ext))
		}
		taken[dst] = true
		if err := fsys.Move(d.Path, dst); err != nil {
			return err
		}
	}
	return nil
}

func writeOutput(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("executor: create %s: %w", dir, err)
	}
	fsys, err := storage.NewFS(dir)
	if err != nil {
		return err
	}
	return fsys.Write(filepath.Base(path), content)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
