package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/cluster"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/navigation"
)

type stubClusterer struct {
	res cluster.Result
}

func (s stubClusterer) Cluster(context.Context, []*models.Document) cluster.Result {
	return s.res
}

func docs(names ...string) []*models.Document {
	out := make([]*models.Document, 0, len(names))
	for _, n := range names {
		out = append(out, &models.Document{Path: filepath.Join("/repo", n), RelativePath: n, Name: n})
	}
	return out
}

func TestPlanMapsStrategies(t *testing.T) {
	d := docs("a.md", "b.md", "c.md")
	p := New(stubClusterer{res: cluster.Result{Source: cluster.SourceAI, Clusters: []models.TopicCluster{
		{Name: "A", Documents: d[:1], SuggestedFilename: "A.md", Strategy: models.ClusterMerge},
		{Name: "B", Documents: d[1:2], SuggestedFilename: "B.md", Strategy: models.ClusterSummarize},
		{Name: "C", Documents: d[2:], SuggestedFilename: "C.md", Strategy: models.ClusterLinkOnly},
	}}}, nil)

	out, err := p.Plan(context.Background(), d, Options{MaxOutputFiles: 5, OutputDir: "/out"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(out.Plans) != 2 {
		t.Fatalf("got %d plans, want 2", len(out.Plans))
	}
	if out.Plans[0].Strategy != models.PlanMergeByTopic || out.Plans[1].Strategy != models.PlanSummarizeCluster {
		t.Errorf("strategies = %q, %q", out.Plans[0].Strategy, out.Plans[1].Strategy)
	}
	if out.Plans[0].OutputFile != "/out/A.md" {
		t.Errorf("output = %q", out.Plans[0].OutputFile)
	}
	if len(out.Clusters) != 3 {
		t.Errorf("link-only cluster should stay in the outcome")
	}
}

func TestPlanHonoursMaxOutputFiles(t *testing.T) {
	d := docs("a.md", "b.md")
	p := New(stubClusterer{res: cluster.Result{Clusters: []models.TopicCluster{
		{Name: "A", Documents: d[:1], SuggestedFilename: "A.md", Strategy: models.ClusterMerge},
		{Name: "B", Documents: d[1:], SuggestedFilename: "B.md", Strategy: models.ClusterMerge},
	}}}, nil)

	plans, err := p.CreatePlan(context.Background(), d, Options{MaxOutputFiles: 1, CreateSuperReadme: true})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if len(plans) != 1 || plans[0].Cluster != "A" {
		t.Fatalf("plans = %+v, want only cluster A", plans)
	}
	if plans[0].OutputFile != "/repo/A.md" {
		t.Errorf("output dir should default to the first document's directory, got %q", plans[0].OutputFile)
	}
}

func TestPlanOutputsAreUnique(t *testing.T) {
	d := docs("a.md", "b.md")
	p := New(stubClusterer{res: cluster.Result{Clusters: []models.TopicCluster{
		{Name: "A", Documents: d[:1], SuggestedFilename: "SAME.md", Strategy: models.ClusterMerge},
		{Name: "B", Documents: d[1:], SuggestedFilename: "SAME.md", Strategy: models.ClusterMerge},
	}}}, nil)

	plans, err := p.CreatePlan(context.Background(), d, Options{MaxOutputFiles: 2, OutputDir: "/out"})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plans[0].OutputFile == plans[1].OutputFile {
		t.Fatalf("duplicate output %q", plans[0].OutputFile)
	}
	if plans[1].OutputFile != "/out/SAME_2.md" {
		t.Errorf("second output = %q", plans[1].OutputFile)
	}
}

func TestPlanAuxiliaryPlans(t *testing.T) {
	d := docs("a.md", "old.md")
	p := New(stubClusterer{res: cluster.Result{
		Clusters: []models.TopicCluster{{Name: "A", Documents: d[:1], SuggestedFilename: "A.md", Strategy: models.ClusterMerge}},
		Stale:    d[1:],
	}}, nil)

	plans, err := p.CreatePlan(context.Background(), d, Options{
		MaxOutputFiles: 3, OutputDir: "/out", CreateSuperReadme: true, ArchiveStale: true,
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("got %d plans, want 3", len(plans))
	}
	if plans[1].Strategy != models.PlanCreateSuperReadme || plans[1].OutputFile != "/out/DOCUMENTATION.md" {
		t.Errorf("super readme plan = %+v", plans[1])
	}
	if plans[2].Strategy != models.PlanArchiveStale || len(plans[2].Inputs) != 1 {
		t.Errorf("archive plan = %+v", plans[2])
	}
}

func TestPlanRejectsBadInput(t *testing.T) {
	p := New(stubClusterer{}, nil)
	if _, err := p.CreatePlan(context.Background(), docs("a.md"), Options{}); err == nil {
		t.Error("expected validation error for zero MaxOutputFiles")
	}
	if _, err := p.CreatePlan(context.Background(), nil, Options{MaxOutputFiles: 1}); !errors.Is(err, apperr.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}
}

func TestPlanWithFallbackClusterer(t *testing.T) {
	d := docs("docs/a.md", "docs/b.md", "root.md")
	d[0].Path, d[1].Path = "/repo/docs/a.md", "/repo/docs/b.md"
	plans, err := New(cluster.New(nil), nil).CreatePlan(context.Background(), d, Options{MaxOutputFiles: 5, OutputDir: "/repo"})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if len(plans) != 2 || plans[0].OutputFile != "/repo/DOCS.md" || plans[1].OutputFile != "/repo/ROOT.md" {
		t.Fatalf("plans = %+v", plans)
	}
}

func TestHubPathSkipsHandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	if got := HubPath(dir, map[string]bool{}); got != filepath.Join(dir, SuperReadmeFile) {
		t.Fatalf("HubPath on empty dir = %q", got)
	}

	if err := os.WriteFile(filepath.Join(dir, SuperReadmeFile), []byte("# Docs\n\nprecious content\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := HubPath(dir, map[string]bool{}); got != filepath.Join(dir, "DOCUMENTATION_2.md") {
		t.Errorf("hand-written hub chosen: %q", got)
	}

	hub := navigation.New().Generate(nil, "", nil)
	if err := os.WriteFile(filepath.Join(dir, SuperReadmeFile), []byte(hub), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := HubPath(dir, map[string]bool{}); got != filepath.Join(dir, SuperReadmeFile) {
		t.Errorf("generated hub not reused: %q", got)
	}
}
