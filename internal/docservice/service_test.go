package docservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/autoconsolidate"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/testutil"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	base, fsys := testutil.TestRoot(t)
	testutil.WriteFiles(t, base, map[string]string{
		"proj/README.md":         "# Project\n\nA small project.\n",
		"proj/NOTES.md":          "# Notes\n\nRelease notes and the deploy checklist.\n",
		"proj/TODO.md":           "# Todo\n\n- write docs\n",
		"proj/docs/guide.md":     "# Setup Guide\n\nInstall the tool.\n\n## Steps\n\nRun it.\n",
		"proj/CONSOLIDATED_X.md": "# Old output\n",
	})
	store := testutil.TestBackupStore(t)
	defaults := autoconsolidate.Options{Mode: autoconsolidate.ModeCompress, MaxOutputFiles: 1, Flatten: true}
	svc := NewService(Deps{
		Base:         fsys,
		Backups:      store,
		Orchestrator: autoconsolidate.New(store, autoconsolidate.WithClock(clock)),
		Defaults:     defaults,
		Now:          clock,
	})
	return svc, base
}

func TestResolveRejectsEscape(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Resolve("../outside"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if _, err := svc.Resolve("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Resolve("proj"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}

func TestListDocuments(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	flat, err := svc.ListDocuments(ctx, "proj", false)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(flat) != 4 {
		t.Fatalf("expected 4 top-level docs, got %d", len(flat))
	}

	all, err := svc.ListDocuments(ctx, "proj", true)
	if err != nil {
		t.Fatalf("ListDocuments recursive: %v", err)
	}
	found := false
	for _, d := range all {
		if d.Path == "docs/guide.md" {
			found = true
			if d.Title != "Setup Guide" || d.Headings != 2 {
				t.Errorf("unexpected item %+v", d)
			}
		}
	}
	if !found {
		t.Fatal("docs/guide.md not listed")
	}
}

func TestRelevanceUsesRelativePaths(t *testing.T) {
	svc, _ := newTestService(t)
	scores, err := svc.Relevance(context.Background(), "proj", true)
	if err != nil {
		t.Fatalf("Relevance: %v", err)
	}
	if len(scores) != 5 {
		t.Fatalf("expected 5 scores, got %d", len(scores))
	}
	for i, s := range scores {
		if filepath.IsAbs(s.Path) {
			t.Errorf("score path %q is absolute", s.Path)
		}
		if i > 0 && scores[i-1].Score < s.Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestPlanSkipsProtectedAndGenerated(t *testing.T) {
	svc, _ := newTestService(t)
	view, err := svc.Plan(context.Background(), "proj", 0)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(view.Plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(view.Plans))
	}
	for _, in := range view.Plans[0].Inputs {
		if in == "README.md" || strings.HasPrefix(in, "CONSOLIDATED_") {
			t.Errorf("plan includes %q", in)
		}
	}
	if view.Source != "fallback" {
		t.Errorf("source = %q, want fallback", view.Source)
	}
	if filepath.IsAbs(view.Plans[0].OutputFile) {
		t.Errorf("output file %q is absolute", view.Plans[0].OutputFile)
	}
}

func TestWriteHub(t *testing.T) {
	svc, base := newTestService(t)
	ctx := context.Background()

	path, err := svc.WriteHub(ctx, "proj")
	if err != nil {
		t.Fatalf("WriteHub: %v", err)
	}
	if path != filepath.Join(base, "proj", "DOCUMENTATION.md") {
		t.Fatalf("unexpected path %q", path)
	}
	hub := testutil.ReadFile(t, filepath.Join(base, "proj"), "DOCUMENTATION.md")
	if !strings.Contains(hub, "# Documentation Hub") || !strings.Contains(hub, "docs/guide.md") {
		t.Fatalf("unexpected hub:\n%s", hub)
	}
	if strings.Contains(hub, "(DOCUMENTATION.md)") {
		t.Error("hub lists itself")
	}

	again, err := svc.Hub(ctx, "proj")
	if err != nil {
		t.Fatalf("Hub: %v", err)
	}
	if again != hub {
		t.Error("hub output is not stable across regenerations")
	}
}

func TestWriteHubKeepsHandWrittenFile(t *testing.T) {
	svc, base := newTestService(t)
	proj := filepath.Join(base, "proj")
	testutil.WriteFiles(t, proj, map[string]string{"DOCUMENTATION.md": "# Docs\n\nprecious content\n"})

	path, err := svc.WriteHub(context.Background(), "proj")
	if err != nil {
		t.Fatalf("WriteHub: %v", err)
	}
	if path != filepath.Join(proj, "DOCUMENTATION_2.md") {
		t.Fatalf("unexpected path %q", path)
	}
	if got := testutil.ReadFile(t, proj, "DOCUMENTATION.md"); got != "# Docs\n\nprecious content\n" {
		t.Errorf("hand-written file overwritten: %q", got)
	}
	if !strings.Contains(testutil.ReadFile(t, proj, "DOCUMENTATION_2.md"), "(DOCUMENTATION.md)") {
		t.Error("hand-written file should be listed in the hub")
	}
}

func TestRunAndRestore(t *testing.T) {
	svc, base := newTestService(t)
	ctx := context.Background()
	proj := filepath.Join(base, "proj")

	dry, err := svc.Run(ctx, RunRequest{Root: "proj", DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if dry.Changed {
		t.Fatal("dry run changed files")
	}

	sum, err := svc.Run(ctx, RunRequest{Root: "proj"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sum.Success || sum.Deleted == 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if _, err := os.Stat(filepath.Join(proj, "NOTES.md")); !os.IsNotExist(err) {
		t.Fatal("NOTES.md should be deleted")
	}

	manifests, err := svc.Manifests(ctx)
	if err != nil {
		t.Fatalf("Manifests: %v", err)
	}
	var deletion *models.BackupManifest
	for i := range manifests {
		if _, ok := manifests[i].Covers(filepath.Join(proj, "NOTES.md")); ok {
			deletion = &manifests[i]
			break
		}
	}
	if deletion == nil {
		t.Fatal("no manifest covers NOTES.md")
	}
	if _, err := svc.Restore(ctx, deletion.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := testutil.ReadFile(t, proj, "NOTES.md"); !strings.Contains(got, "deploy checklist") {
		t.Errorf("restored content = %q", got)
	}
}

func TestRunWithoutOrchestrator(t *testing.T) {
	_, fsys := testutil.TestRoot(t)
	svc := NewService(Deps{Base: fsys, Backups: testutil.TestBackupStore(t)})
	if _, err := svc.Run(context.Background(), RunRequest{Root: ""}); err == nil {
		t.Fatal("expected error without orchestrator")
	}
}
