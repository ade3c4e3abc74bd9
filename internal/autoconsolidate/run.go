package autoconsolidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/checksum"
	"github.com/starford/laguz/internal/cluster"
	"github.com/starford/laguz/internal/executor"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/navigation"
	"github.com/starford/laguz/internal/planner"
	"github.com/starford/laguz/internal/scanner"
	"github.com/starford/laguz/internal/storage"
	"github.com/starford/laguz/internal/validate"
)

// run holds the state of one boundary.
type run struct {
	o      *Orchestrator
	opts   Options
	root   string
	fsys   storage.Provider
	report *BoundaryReport
	logger *slog.Logger

	candidates []*models.Document
	outcome    planner.Outcome
	// executed pairs every successful plan with its result.
	executed []executedPlan
	// sideManifests are snapshots taken outside plan execution.
	sideManifests []models.BackupManifest
	// halted stops every later destructive step.
	halted bool
}

type executedPlan struct {
	plan   models.ConsolidationPlan
	result models.ConsolidationResult
}

func (o *Orchestrator) runBoundary(ctx context.Context, root string, opts Options) *BoundaryReport {
	r := &run{
		o:    o,
		opts: opts,
		root: root,
		report: &BoundaryReport{
			Root:         root,
			Candidates:   []string{},
			Consolidated: []string{},
			Deleted:      []string{},
			Archived:     []string{},
			Warnings:     []string{},
			Errors:       []string{},
			Safe:         true,
		},
		logger: o.logger.With(slog.String("root", root)),
	}
	fsys, err := storage.NewFS(root)
	if err != nil {
		r.fail(StateScanning, err)
		r.report.State = StateDone
		return r.report
	}
	r.fsys = fsys

	for state := StateScanning; ; {
		r.enter(state)
		if state == StateDone {
			break
		}
		state = r.step(ctx, state)
	}
	return r.report
}

func (r *run) enter(s State) {
	r.report.State = s
	r.logger.Debug("autoconsolidate: state", slog.String("state", string(s)))
	if r.o.sink != nil {
		r.o.sink.Publish(Event{Root: r.root, State: s, Time: r.o.now()})
	}
}

// step runs s and returns the next state. Failures jump to BackupIndexing
// or Done with whatever partial results exist.
func (r *run) step(ctx context.Context, s State) State {
	if err := ctx.Err(); err != nil && s != StateBackupIndexing {
		r.fail(s, err)
		r.halted = true
		return StateDone
	}
	switch s {
	case StateScanning:
		return r.scan(ctx)
	case StateFiltering:
		return r.filter(ctx)
	case StateClusterPlanning:
		return r.plan(ctx)
	case StateExecuting:
		return r.execute(ctx)
	case StateBackupIndexing:
		return r.index(ctx)
	case StateDeleting:
		r.delete(ctx)
		return StateDone
	case StateArchiving:
		r.archive(ctx)
		return StateDone
	case StateDone:
		return StateDone
	}
	r.fail(s, fmt.Errorf("unknown state %q", s))
	return StateDone
}

func (r *run) fail(s State, err error) {
	r.report.Errors = append(r.report.Errors, fmt.Sprintf("%s: %v", s, err))
	r.logger.Error("autoconsolidate: step failed", slog.String("state", string(s)), slog.String("error", err.Error()))
}

func (r *run) warn(msg string) {
	r.report.Warnings = append(r.report.Warnings, msg)
	r.logger.Warn("autoconsolidate: " + msg)
}

// unsafe records a condition that blocks the destructive phase.
func (r *run) unsafe(s State, err error) {
	r.fail(s, err)
	r.halted = true
	r.report.Safe = false
}

func (r *run) scan(ctx context.Context) State {
	docs, err := r.o.scanner.Scan(ctx, r.root, scanner.Options{Exclude: r.opts.Exclude})
	if err != nil {
		r.fail(StateScanning, err)
		return StateDone
	}
	r.candidates = docs
	return StateFiltering
}

func (r *run) filter(ctx context.Context) State {
	kept := r.candidates[:0]
	for _, d := range r.candidates {
		if IsProtected(d.Name) || IsGeneratedDocument(d) {
			continue
		}
		kept = append(kept, d)
	}
	r.candidates = kept

	if r.opts.IncludeTextFiles && r.o.classifier != nil {
		r.candidates = append(r.candidates, r.textCandidates(ctx)...)
	}
	for _, d := range r.candidates {
		r.report.Candidates = append(r.report.Candidates, d.RelativePath)
	}
	if len(r.candidates) == 0 {
		return StateDone
	}
	return StateClusterPlanning
}

func (r *run) textCandidates(ctx context.Context) []*models.Document {
	docs, err := r.o.scanner.Scan(ctx, r.root, scanner.Options{
		Exclude:    r.opts.Exclude,
		Extensions: []string{".txt", ".log"},
	})
	if err != nil {
		r.warn(fmt.Sprintf("text file scan: %v", err))
		return nil
	}
	var out []*models.Document
	for _, d := range docs {
		if IsProtected(d.Name) || d.Size > MaxTextFileBytes {
			continue
		}
		ok, err := isDocumentation(ctx, r.o.classifier, d)
		if err != nil {
			r.warn(fmt.Sprintf("classify %s: %v", d.RelativePath, err))
			continue
		}
		if ok {
			out = append(out, d)
		}
	}
	return out
}

func (r *run) plan(ctx context.Context) State {
	p := planner.New(r.o.clusterer, r.logger)
	out, err := p.Plan(ctx, r.candidates, planner.Options{
		MaxOutputFiles:    r.opts.MaxOutputFiles,
		PreserveOriginals: r.opts.Mode == ModeArchive,
		CreateSuperReadme: r.opts.CreateSuperReadme,
		ArchiveStale:      r.opts.ArchiveStale,
		OutputDir:         r.root,
	})
	if err != nil {
		r.fail(StateClusterPlanning, err)
		return StateBackupIndexing
	}
	if out.Warning != "" {
		r.warn("clustering fell back to folder grouping: " + out.Warning)
	}
	r.report.ClusterSource = out.Source

	taken := make(map[string]bool)
	for i := range out.Plans {
		if isTopicPlan(out.Plans[i].Strategy) {
			out.Plans[i].OutputFile = r.generatedName(out.Plans[i], taken)
		}
	}
	out.Plans = pruneStale(out.Plans)
	r.outcome = out
	r.report.Plans = out.Plans
	if r.opts.DryRun || len(out.Plans) == 0 {
		return StateDone
	}
	return StateExecuting
}

// generatedName returns root/CONSOLIDATED_<SLUG>.md, unique within the run
// and on disk.
func (r *run) generatedName(p models.ConsolidationPlan, taken map[string]bool) string {
	name := p.Cluster
	if name == "" {
		base := filepath.Base(p.OutputFile)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	stem := GeneratedPrefix + cluster.UpperSlug(name)
	candidate := filepath.Join(r.root, stem+".md")
	for n := 2; taken[candidate] || r.fsys.Exists(candidate); n++ {
		candidate = filepath.Join(r.root, fmt.Sprintf("%s_%d.md", stem, n))
	}
	taken[candidate] = true
	return candidate
}

// pruneStale drops archive-stale inputs that a topic plan already consumes.
func pruneStale(plans []models.ConsolidationPlan) []models.ConsolidationPlan {
	consumed := make(map[string]bool)
	for _, p := range plans {
		if isTopicPlan(p.Strategy) {
			for _, d := range p.Inputs {
				consumed[d.Path] = true
			}
		}
	}
	kept := plans[:0]
	for _, p := range plans {
		if p.Strategy == models.PlanArchiveStale {
			var inputs []*models.Document
			for _, d := range p.Inputs {
				if !consumed[d.Path] {
					inputs = append(inputs, d)
				}
			}
			if len(inputs) == 0 {
				continue
			}
			p.Inputs = inputs
		}
		kept = append(kept, p)
	}
	return kept
}

func (r *run) execute(ctx context.Context) State {
	exec := executor.New(r.o.backups,
		executor.WithHub(r.o.hub),
		executor.WithRelated(r.outcome.Clusters),
		executor.WithLogger(r.logger),
		executor.WithClock(r.o.now),
	)

	var inputs []*models.Document
	var outputs []string
	var hubs []models.ConsolidationPlan
	for _, p := range r.outcome.Plans {
		if p.Strategy == models.PlanCreateSuperReadme {
			hubs = append(hubs, p)
			continue
		}
		if !r.executePlan(ctx, exec, p) || p.Strategy == models.PlanArchiveStale {
			continue
		}
		if r.opts.StripTOC && p.Strategy == models.PlanMergeByTopic {
			if err := r.stripTOC(p.OutputFile); err != nil {
				r.warn(fmt.Sprintf("strip table of contents: %v", err))
			}
		}
		r.report.Consolidated = append(r.report.Consolidated, p.OutputFile)
		if isTopicPlan(p.Strategy) {
			inputs = append(inputs, p.Inputs...)
			outputs = append(outputs, p.OutputFile)
		}
	}

	// The hub is rendered last so it lists what survives the run.
	for _, p := range hubs {
		docs, err := r.hubDocs(ctx)
		if err != nil {
			r.fail(StateExecuting, err)
			continue
		}
		p.Inputs = docs
		if r.executePlan(ctx, exec, p) {
			r.report.Consolidated = append(r.report.Consolidated, p.OutputFile)
		}
	}

	if len(outputs) > 0 {
		v := r.o.validator.Validate(inputs, outputs)
		r.report.Validation = &v
		for _, e := range v.Errors {
			r.warn("validation: " + e)
		}
		r.warnDanglingLinks(outputs)
		if err := r.updateReadme(ctx); err != nil {
			r.fail(StateExecuting, err)
		}
	}
	return StateBackupIndexing
}

// executePlan runs p and records it. A backup failure makes the boundary unsafe.
func (r *run) executePlan(ctx context.Context, exec *executor.Executor, p models.ConsolidationPlan) bool {
	res, err := exec.Execute(ctx, p)
	r.report.Results = append(r.report.Results, res)
	if err != nil {
		if errors.Is(err, apperr.ErrBackupIntegrity) {
			r.unsafe(StateExecuting, err)
		} else {
			r.fail(StateExecuting, err)
		}
		return false
	}
	r.executed = append(r.executed, executedPlan{plan: p, result: res})
	return true
}

// consumed returns the paths of originals that leave the root once the run
// finishes: topic plan inputs and relocated stale documents.
func (r *run) consumed() map[string]bool {
	out := make(map[string]bool)
	for _, e := range r.executed {
		if isTopicPlan(e.plan.Strategy) || e.plan.Strategy == models.PlanArchiveStale {
			for _, d := range e.plan.Inputs {
				out[d.Path] = true
			}
		}
	}
	return out
}

// hubDocs rescans the root and keeps untouched documents and generated
// outputs, leaving out consumed originals and earlier hubs.
func (r *run) hubDocs(ctx context.Context) ([]*models.Document, error) {
	docs, err := r.o.scanner.Scan(ctx, r.root, scanner.Options{Exclude: r.opts.Exclude})
	if err != nil {
		return nil, err
	}
	consumed := r.consumed()
	kept := docs[:0]
	for _, d := range docs {
		if consumed[d.Path] || IsProtected(d.Name) || navigation.IsHub(d.Content) {
			continue
		}
		kept = append(kept, d)
	}
	return kept, nil
}

// warnDanglingLinks reports links in merged bodies that point at originals
// which are removed or relocated after this run.
func (r *run) warnDanglingLinks(outputs []string) {
	consumed := r.consumed()
	for _, out := range outputs {
		data, err := r.fsys.Read(out)
		if err != nil {
			continue
		}
		for _, target := range validate.LinksTo(out, data, consumed) {
			r.warn(fmt.Sprintf("%s: link %s points at a consolidated original", filepath.Base(out), target))
		}
	}
}

func (r *run) stripTOC(path string) error {
	data, err := r.fsys.Read(path)
	if err != nil {
		return err
	}
	return r.fsys.Write(path, []byte(StripTOC(string(data))))
}

func (r *run) index(ctx context.Context) State {
	manifests := append([]models.BackupManifest(nil), r.sideManifests...)
	for _, e := range r.executed {
		if e.result.Manifest != nil {
			manifests = append(manifests, *e.result.Manifest)
		}
	}
	if len(manifests) > 0 {
		if err := r.appendBackupIndex(manifests); err != nil {
			r.fail(StateBackupIndexing, err)
		}
	}
	if r.halted || len(r.executed) == 0 || ctx.Err() != nil {
		return StateDone
	}
	if r.opts.Mode == ModeArchive {
		return StateArchiving
	}
	return StateDeleting
}

// destructive returns the inputs of executed plans that consumed their
// originals, each with its backup entry.
func (r *run) destructive() ([]*models.Document, []models.BackupEntry, error) {
	var docs []*models.Document
	var entries []models.BackupEntry
	seen := make(map[string]bool)
	for _, e := range r.executed {
		if !isTopicPlan(e.plan.Strategy) {
			continue
		}
		for _, d := range e.plan.Inputs {
			if seen[d.Path] || IsProtected(d.Name) {
				continue
			}
			entry, ok := e.result.Manifest.Covers(d.Path)
			if !ok {
				return nil, nil, fmt.Errorf("%s has no backup entry: %w", d.RelativePath, apperr.ErrBackupIntegrity)
			}
			seen[d.Path] = true
			docs = append(docs, d)
			entries = append(entries, entry)
		}
	}
	return docs, entries, nil
}

func (r *run) confirmAll(ctx context.Context, entries []models.BackupEntry) error {
	for _, e := range entries {
		if err := r.o.backups.Confirm(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) delete(ctx context.Context) {
	docs, entries, err := r.destructive()
	if err == nil {
		err = r.confirmAll(ctx, entries)
	}
	if err != nil {
		r.unsafe(StateDeleting, err)
		return
	}
	for _, d := range docs {
		if err := r.fsys.Delete(d.Path); err != nil {
			r.fail(StateDeleting, err)
			continue
		}
		r.report.Deleted = append(r.report.Deleted, d.RelativePath)
	}
	r.purgeLegacy(ctx)
}

// purgeLegacy removes stray legacy backup files from the root after
// snapshotting them.
func (r *run) purgeLegacy(ctx context.Context) {
	var paths []string
	for _, pattern := range LegacyArtifacts {
		matches, err := filepath.Glob(filepath.Join(r.root, pattern))
		if err != nil {
			continue
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return
	}
	entries := make([]models.BackupEntry, 0, len(paths))
	for _, p := range paths {
		e, err := r.o.backups.BackupFile(ctx, p, models.BackupModify)
		if err != nil {
			r.warn(fmt.Sprintf("legacy artifacts kept: %v", err))
			return
		}
		entries = append(entries, e)
	}
	m, err := r.o.backups.CreateManifest(ctx, entries, "legacy artifacts")
	if err != nil {
		r.warn(fmt.Sprintf("legacy artifacts kept: %v", err))
		return
	}
	if err := r.appendBackupIndex([]models.BackupManifest{m}); err != nil {
		r.warn(fmt.Sprintf("legacy artifacts kept: backup index: %v", err))
		return
	}
	if err := r.confirmAll(ctx, entries); err != nil {
		r.warn(fmt.Sprintf("legacy artifacts kept: %v", err))
		return
	}
	for _, p := range paths {
		if err := r.fsys.Delete(p); err != nil {
			r.warn(err.Error())
			continue
		}
		r.report.Purged = append(r.report.Purged, filepath.Base(p))
	}
}

func (r *run) archive(ctx context.Context) {
	docs, entries, err := r.destructive()
	if err == nil {
		err = r.confirmAll(ctx, entries)
	}
	if err != nil {
		r.unsafe(StateArchiving, err)
		return
	}
	for i, d := range docs {
		dst, err := r.archiveCopy(d, entries[i])
		if err != nil {
			r.unsafe(StateArchiving, err)
			return
		}
		if err := r.fsys.Delete(d.Path); err != nil {
			r.fail(StateArchiving, err)
			continue
		}
		r.report.Archived = append(r.report.Archived, dst)
	}
}

// archiveCopy copies d into the archive directory and verifies the copy
// against the backup checksum. An identical existing copy is reused.
func (r *run) archiveCopy(d *models.Document, entry models.BackupEntry) (string, error) {
	rel := filepath.ToSlash(filepath.Join(r.opts.ArchiveDir, d.Name))
	ext := filepath.Ext(d.Name)
	stem := strings.TrimSuffix(d.Name, ext)
	for n := 2; r.fsys.Exists(rel); n++ {
		if data, err := r.fsys.Read(rel); err == nil && checksum.Matches(data, entry.Checksum) {
			return rel, nil
		}
		rel = filepath.ToSlash(filepath.Join(r.opts.ArchiveDir, fmt.Sprintf("%s_%d%s", stem, n, ext)))
	}
	if err := r.fsys.Copy(d.Path, rel); err != nil {
		return "", err
	}
	data, err := r.fsys.Read(rel)
	if err != nil {
		return "", err
	}
	if !checksum.Matches(data, entry.Checksum) {
		return "", fmt.Errorf("archive copy of %s does not match its backup: %w", d.RelativePath, apperr.ErrBackupIntegrity)
	}
	return rel, nil
}

func isTopicPlan(s models.PlanStrategy) bool {
	switch s {
	case models.PlanMergeByTopic, models.PlanMergeByFolder, models.PlanSummarizeCluster:
		return true
	case models.PlanCreateSuperReadme, models.PlanArchiveStale:
		return false
	}
	return false
}

// IsProtected reports whether name is on the protected allow-list.
func IsProtected(name string) bool {
	return ProtectedNames[strings.ToLower(name)]
}

// IsGenerated reports whether name carries the prefix of consolidated outputs.
func IsGenerated(name string) bool {
	return strings.HasPrefix(name, GeneratedPrefix)
}

// IsGeneratedDocument reports whether d is an output of a previous run: a
// consolidated file or a rendered hub. A hand-written DOCUMENTATION.md is an
// ordinary candidate.
func IsGeneratedDocument(d *models.Document) bool {
	return IsGenerated(d.Name) || navigation.IsHub(d.Content)
}
