// Package docservice coordinates the pipeline components behind the HTTP,
// MCP, and CLI surfaces.
package docservice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/autoconsolidate"
	"github.com/starford/laguz/internal/cluster"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/navigation"
	"github.com/starford/laguz/internal/planner"
	"github.com/starford/laguz/internal/relevance"
	"github.com/starford/laguz/internal/scanner"
	"github.com/starford/laguz/internal/storage"
)

// BackupCatalog lists and restores backup manifests.
type BackupCatalog interface {
	Manifests(ctx context.Context) ([]models.BackupManifest, error)
	Manifest(ctx context.Context, id string) (models.BackupManifest, error)
	Restore(ctx context.Context, manifestID string) ([]string, error)
}

// DocumentItem is a scanned document without its content.
type DocumentItem struct {
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	Words      int       `json:"words"`
	Headings   int       `json:"headings"`
	Links      int       `json:"links"`
	CodeBlocks int       `json:"code_blocks"`
	Images     int       `json:"images"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ClusterView is a topic cluster with member paths.
type ClusterView struct {
	Name              string                 `json:"name"`
	Description       string                 `json:"description,omitempty"`
	Strategy          models.ClusterStrategy `json:"strategy"`
	SuggestedFilename string                 `json:"suggested_filename"`
	Files             []string               `json:"files"`
}

// PlanItem is a plan with input paths.
type PlanItem struct {
	Strategy   models.PlanStrategy `json:"strategy"`
	Cluster    string              `json:"cluster,omitempty"`
	Inputs     []string            `json:"inputs"`
	OutputFile string              `json:"output_file"`
	Confidence float64             `json:"confidence"`
	Reasoning  string              `json:"reasoning"`
}

// PlanView is a plan preview.
type PlanView struct {
	Source   cluster.Source `json:"source"`
	Warning  string         `json:"warning,omitempty"`
	Clusters []ClusterView  `json:"clusters"`
	Plans    []PlanItem     `json:"plans"`
}

// RunRequest overrides the configured run defaults.
type RunRequest struct {
	Root         string `json:"root"`
	Mode         string `json:"mode,omitempty"`
	DryRun       bool   `json:"dry_run"`
	Flatten      *bool  `json:"flatten,omitempty"`
	Parallel     *bool  `json:"parallel,omitempty"`
	ArchiveStale *bool  `json:"archive_stale,omitempty"`
}

// Deps are the collaborators of a Service.
type Deps struct {
	Base         storage.Provider
	Backups      BackupCatalog
	Clusterer    planner.Clusterer
	Orchestrator *autoconsolidate.Orchestrator
	Defaults     autoconsolidate.Options
	Logger       *slog.Logger
	Now          func() time.Time
}

// Service runs read-only analyses and consolidation runs under a base directory.
type Service struct {
	base         storage.Provider
	backups      BackupCatalog
	clusterer    planner.Clusterer
	orchestrator *autoconsolidate.Orchestrator
	defaults     autoconsolidate.Options
	scanner      *scanner.Scanner
	analyzer     *relevance.Analyzer
	nav          *navigation.Generator
	logger       *slog.Logger
}

// NewService creates a new document service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Clusterer == nil {
		d.Clusterer = cluster.New(nil, cluster.WithLogger(d.Logger), cluster.WithClock(d.Now))
	}
	return &Service{
		base:         d.Base,
		backups:      d.Backups,
		clusterer:    d.Clusterer,
		orchestrator: d.Orchestrator,
		defaults:     d.Defaults,
		scanner:      scanner.New(d.Logger),
		analyzer:     relevance.New(relevance.WithClock(d.Now)),
		nav:          navigation.New(navigation.WithClock(d.Now)),
		logger:       d.Logger,
	}
}

// Resolve maps a root relative to the base directory to an absolute directory.
func (s *Service) Resolve(root string) (string, error) {
	abs, err := s.base.Resolve(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalidPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("root %q: %w", root, apperr.ErrNotFound)
	}
	return abs, nil
}

func (s *Service) scan(ctx context.Context, root string, recursive bool) (string, []*models.Document, error) {
	abs, err := s.Resolve(root)
	if err != nil {
		return "", nil, err
	}
	docs, err := s.scanner.Scan(ctx, abs, scanner.Options{Recursive: recursive, Exclude: s.defaults.Exclude})
	if err != nil {
		return "", nil, err
	}
	return abs, docs, nil
}

// ListDocuments scans root.
func (s *Service) ListDocuments(ctx context.Context, root string, recursive bool) ([]DocumentItem, error) {
	_, docs, err := s.scan(ctx, root, recursive)
	if err != nil {
		return nil, err
	}
	items := make([]DocumentItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, DocumentItem{
			Path:       d.RelativePath,
			Title:      d.Metadata.Title,
			Words:      d.Metadata.WordCount,
			Headings:   len(d.Metadata.Headings),
			Links:      d.Metadata.LinkCount,
			CodeBlocks: d.Metadata.CodeBlockCount,
			Images:     d.Metadata.ImageCount,
			Size:       d.Size,
			ModifiedAt: d.ModTime,
		})
	}
	return items, nil
}

// Relevance scores every document under root, highest first.
func (s *Service) Relevance(ctx context.Context, root string, recursive bool) ([]models.RelevanceScore, error) {
	_, docs, err := s.scan(ctx, root, recursive)
	if err != nil {
		return nil, err
	}
	scores := s.analyzer.AnalyzeAll(docs)
	byPath := make(map[string]string, len(docs))
	for _, d := range docs {
		byPath[d.Path] = d.RelativePath
	}
	for i := range scores {
		if rel, ok := byPath[scores[i].Path]; ok {
			scores[i].Path = rel
		}
	}
	return scores, nil
}

// Plan previews the consolidation of the candidates directly under root.
func (s *Service) Plan(ctx context.Context, root string, maxOutputFiles int) (*PlanView, error) {
	abs, docs, err := s.scan(ctx, root, false)
	if err != nil {
		return nil, err
	}
	candidates := docs[:0]
	for _, d := range docs {
		if !autoconsolidate.IsProtected(d.Name) && !autoconsolidate.IsGeneratedDocument(d) {
			candidates = append(candidates, d)
		}
	}
	if maxOutputFiles <= 0 {
		maxOutputFiles = s.defaults.MaxOutputFiles
	}
	out, err := planner.New(s.clusterer, s.logger).Plan(ctx, candidates, planner.Options{
		MaxOutputFiles:    maxOutputFiles,
		PreserveOriginals: s.defaults.Mode == autoconsolidate.ModeArchive,
		CreateSuperReadme: s.defaults.CreateSuperReadme,
		ArchiveStale:      s.defaults.ArchiveStale,
		OutputDir:         abs,
	})
	if err != nil {
		return nil, err
	}

	view := &PlanView{Source: out.Source, Warning: out.Warning, Clusters: []ClusterView{}, Plans: []PlanItem{}}
	for _, c := range out.Clusters {
		view.Clusters = append(view.Clusters, ClusterView{
			Name:              c.Name,
			Description:       c.Description,
			Strategy:          c.Strategy,
			SuggestedFilename: c.SuggestedFilename,
			Files:             relPaths(c.Documents),
		})
	}
	for _, p := range out.Plans {
		rel, relErr := filepath.Rel(abs, p.OutputFile)
		if relErr != nil {
			rel = p.OutputFile
		}
		view.Plans = append(view.Plans, PlanItem{
			Strategy:   p.Strategy,
			Cluster:    p.Cluster,
			Inputs:     relPaths(p.Inputs),
			OutputFile: filepath.ToSlash(rel),
			Confidence: p.Confidence,
			Reasoning:  p.Reasoning,
		})
	}
	return view, nil
}

// Hub renders the navigation hub for every document under root.
func (s *Service) Hub(ctx context.Context, root string) (string, error) {
	abs, docs, err := s.scan(ctx, root, true)
	if err != nil {
		return "", err
	}
	return s.renderHub(abs, docs), nil
}

// WriteHub renders the hub and writes it to root/DOCUMENTATION.md. A
// hand-written file of that name is left alone and the hub goes to the next
// free DOCUMENTATION_N.md.
func (s *Service) WriteHub(ctx context.Context, root string) (string, error) {
	abs, docs, err := s.scan(ctx, root, true)
	if err != nil {
		return "", err
	}
	fsys, err := storage.NewFS(abs)
	if err != nil {
		return "", err
	}
	path := planner.HubPath(abs, map[string]bool{})
	content := s.renderHub(abs, docs)
	if existing, readErr := fsys.Read(path); readErr == nil && string(existing) == content {
		return path, nil
	}
	if err := fsys.Write(path, []byte(content)); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Service) renderHub(abs string, docs []*models.Document) string {
	listed := docs[:0]
	for _, d := range docs {
		if !navigation.IsHub(d.Content) {
			listed = append(listed, d)
		}
	}
	readme, _ := os.ReadFile(filepath.Join(abs, "README.md"))
	return s.nav.Generate(listed, string(readme), nil)
}

// Run executes a consolidation run.
func (s *Service) Run(ctx context.Context, req RunRequest) (*autoconsolidate.Summary, error) {
	if s.orchestrator == nil {
		return nil, fmt.Errorf("docservice: runs are not available")
	}
	abs, err := s.Resolve(req.Root)
	if err != nil {
		return nil, err
	}
	opts := s.defaults
	if req.Mode != "" {
		opts.Mode = autoconsolidate.Mode(req.Mode)
	}
	opts.DryRun = opts.DryRun || req.DryRun
	if req.Flatten != nil {
		opts.Flatten = *req.Flatten
	}
	if req.Parallel != nil {
		opts.Parallel = *req.Parallel
	}
	if req.ArchiveStale != nil {
		opts.ArchiveStale = *req.ArchiveStale
	}
	return s.orchestrator.Run(ctx, abs, opts)
}

// Manifests lists backup manifests, newest first.
func (s *Service) Manifests(ctx context.Context) ([]models.BackupManifest, error) {
	return s.backups.Manifests(ctx)
}

// Manifest returns one manifest.
func (s *Service) Manifest(ctx context.Context, id string) (models.BackupManifest, error) {
	return s.backups.Manifest(ctx, id)
}

// Restore rewrites every file of a manifest.
func (s *Service) Restore(ctx context.Context, id string) ([]string, error) {
	restored, err := s.backups.Restore(ctx, id)
	if err != nil {
		return restored, err
	}
	s.logger.Info("restored manifest", slog.String("manifest_id", id), slog.Int("files", len(restored)))
	return restored, nil
}

func relPaths(docs []*models.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.RelativePath)
	}
	return out
}
