// Package autoconsolidate runs the consolidation pipeline over every
// repository boundary under a root, in compress or document-archive mode.
package autoconsolidate

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"github.com/starford/laguz/internal/boundary"
	"github.com/starford/laguz/internal/cluster"
	"github.com/starford/laguz/internal/executor"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/navigation"
	"github.com/starford/laguz/internal/planner"
	"github.com/starford/laguz/internal/scanner"
	"github.com/starford/laguz/internal/validate"
)

// Mode selects the workflow.
type Mode string

const (
	ModeCompress Mode = "compress"
	ModeArchive  Mode = "document-archive"
)

// State is a step of the per-boundary state machine.
type State string

const (
	StateScanning        State = "scanning"
	StateFiltering       State = "filtering"
	StateClusterPlanning State = "cluster-planning"
	StateExecuting       State = "executing"
	StateBackupIndexing  State = "backup-indexing"
	StateDeleting        State = "deleting"
	StateArchiving       State = "archiving"
	StateDone            State = "done"
)

// Fixed names and limits.
const (
	GeneratedPrefix   = "CONSOLIDATED_"
	DefaultArchiveDir = "documents"
	BackupIndexPath   = ".laguz/backups/BACKUP_INDEX.md"
	MaxTextFileBytes  = 1 << 20
	ReadmeMarkerStart = "<!-- laguz:consolidated:start -->"
	ReadmeMarkerEnd   = "<!-- laguz:consolidated:end -->"
	readmeName        = "README.md"
)

// ProtectedNames are lowercase basenames that are never candidates and never deleted.
var ProtectedNames = map[string]bool{
	"readme.md":          true,
	"license":            true,
	"license.md":         true,
	"license.txt":        true,
	"changelog.md":       true,
	"contributing.md":    true,
	"code_of_conduct.md": true,
	"security.md":        true,
	"authors.md":         true,
	"claude.md":          true,
	"agents.md":          true,
}

// LegacyArtifacts are stray backup files purged from the root in compress mode.
var LegacyArtifacts = []string{"*.md.bak", "*.md.backup", "*.md.orig"}

// Backups is the backup capability: snapshot, group, and confirm.
type Backups interface {
	executor.BackupStore
	Confirm(ctx context.Context, entry models.BackupEntry) error
}

// BoundaryLister lists independent repository roots.
type BoundaryLister interface {
	List(ctx context.Context, root string, flatten bool) ([]string, error)
}

// Event reports a state transition of one boundary.
type Event struct {
	Root    string    `json:"root"`
	State   State     `json:"state"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// EventSink receives orchestrator events.
type EventSink interface {
	Publish(Event)
}

// Options shape one run.
type Options struct {
	Mode              Mode
	MaxOutputFiles    int
	CreateSuperReadme bool
	ArchiveStale      bool
	StripTOC          bool
	IncludeTextFiles  bool
	Flatten           bool
	Parallel          bool
	DryRun            bool
	ArchiveDir        string
	Exclude           []string
}

// Validate validates the options.
func (o *Options) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.Mode, validation.Required, validation.In(ModeCompress, ModeArchive)),
		validation.Field(&o.MaxOutputFiles, validation.Required, validation.Min(1)),
	)
}

// BoundaryReport is the outcome for one repository boundary.
type BoundaryReport struct {
	Root          string                       `json:"root"`
	State         State                        `json:"state"`
	Candidates    []string                     `json:"candidates"`
	Plans         []models.ConsolidationPlan   `json:"plans,omitempty"`
	Results       []models.ConsolidationResult `json:"results,omitempty"`
	Consolidated  []string                     `json:"consolidated"`
	Deleted       []string                     `json:"deleted"`
	Archived      []string                     `json:"archived"`
	Purged        []string                     `json:"purged,omitempty"`
	ReadmeUpdated bool                         `json:"readme_updated"`
	Validation    *models.ValidationResult     `json:"validation,omitempty"`
	ClusterSource cluster.Source               `json:"cluster_source,omitempty"`
	Warnings      []string                     `json:"warnings"`
	Errors        []string                     `json:"errors"`
	// Safe is false when the destructive phase could not be made safe.
	Safe bool `json:"safe"`
}

// Changed reports whether the run touched the file system of this boundary.
func (r *BoundaryReport) Changed() bool {
	return len(r.Consolidated) > 0 || len(r.Deleted) > 0 || len(r.Archived) > 0 ||
		len(r.Purged) > 0 || r.ReadmeUpdated
}

// Summary aggregates every boundary of a run.
type Summary struct {
	Mode         Mode              `json:"mode"`
	DryRun       bool              `json:"dry_run"`
	Boundaries   []*BoundaryReport `json:"boundaries"`
	Processed    int               `json:"processed"`
	Consolidated []string          `json:"consolidated"`
	Deleted      int               `json:"deleted"`
	Archived     int               `json:"archived"`
	Changed      bool              `json:"changed"`
	Success      bool              `json:"success"`
}

// Orchestrator drives the pipeline.
type Orchestrator struct {
	backups    Backups
	scanner    *scanner.Scanner
	clusterer  planner.Clusterer
	classifier DocClassifier
	hub        executor.HubRenderer
	validator  *validate.Validator
	lister     BoundaryLister
	sink       EventSink
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClusterer sets the topic clusterer.
func WithClusterer(c planner.Clusterer) Option {
	return func(o *Orchestrator) { o.clusterer = c }
}

// WithClassifier enables AI classification of .txt and .log files.
func WithClassifier(c DocClassifier) Option {
	return func(o *Orchestrator) {
		if c != nil && !isNilPointer(c) {
			o.classifier = c
		}
	}
}

// WithLister sets the boundary lister.
func WithLister(l BoundaryLister) Option {
	return func(o *Orchestrator) { o.lister = l }
}

// WithEventSink publishes state transitions to sink.
func WithEventSink(sink EventSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator. Without WithClusterer the deterministic
// folder clustering is used.
func New(backups Backups, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backups: backups,
		lister:  boundary.GitLister{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.scanner = scanner.New(o.logger)
	o.validator = validate.New(o.logger)
	o.hub = navigation.New(navigation.WithClock(o.now))
	if o.clusterer == nil {
		o.clusterer = cluster.New(nil, cluster.WithLogger(o.logger), cluster.WithClock(o.now))
	}
	return o
}

// Run processes every boundary under root and aggregates the outcome.
func (o *Orchestrator) Run(ctx context.Context, root string, opts Options) (*Summary, error) {
	if opts.ArchiveDir == "" {
		opts.ArchiveDir = DefaultArchiveDir
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("autoconsolidate: invalid options: %w", err)
	}
	roots, err := o.lister.List(ctx, root, opts.Flatten)
	if err != nil {
		return nil, fmt.Errorf("autoconsolidate: list boundaries: %w", err)
	}

	reports := make([]*BoundaryReport, len(roots))
	if opts.Parallel && len(roots) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i, r := range roots {
			g.Go(func() error {
				reports[i] = o.runBoundary(gctx, r, opts)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, r := range roots {
			reports[i] = o.runBoundary(ctx, r, opts)
		}
	}
	return summarize(opts, reports), nil
}

func summarize(opts Options, reports []*BoundaryReport) *Summary {
	s := &Summary{Mode: opts.Mode, DryRun: opts.DryRun, Boundaries: reports, Consolidated: []string{}, Success: true}
	for _, r := range reports {
		s.Processed += len(r.Candidates)
		s.Consolidated = append(s.Consolidated, r.Consolidated...)
		s.Deleted += len(r.Deleted)
		s.Archived += len(r.Archived)
		s.Changed = s.Changed || r.Changed()
		s.Success = s.Success && r.Safe
	}
	return s
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
