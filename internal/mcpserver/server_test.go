package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/laguz/internal/autoconsolidate"
	"github.com/starford/laguz/internal/docservice"
	"github.com/starford/laguz/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	base, fsys := testutil.TestRoot(t)
	testutil.WriteFiles(t, base, map[string]string{
		"README.md": "# Project\n\nA small project.\n",
		"NOTES.md":  "# Notes\n\nRelease notes and the deploy checklist.\n",
		"TODO.md":   "# Todo\n\n- write docs\n",
	})
	store := testutil.TestBackupStore(t)
	clock := func() time.Time { return time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC) }
	svc := docservice.NewService(docservice.Deps{
		Base:         fsys,
		Backups:      store,
		Orchestrator: autoconsolidate.New(store, autoconsolidate.WithClock(clock)),
		Defaults:     autoconsolidate.Options{Mode: autoconsolidate.ModeCompress, MaxOutputFiles: 1, Flatten: true},
		Now:          clock,
	})
	return New(svc, "test"), base
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "scan_documents":
		result, err = srv.scanDocuments(ctx, req)
	case "analyze_relevance":
		result, err = srv.analyzeRelevance(ctx, req)
	case "plan_consolidation":
		result, err = srv.planConsolidation(ctx, req)
	case "run_consolidation":
		result, err = srv.runConsolidation(ctx, req)
	case "navigation_hub":
		result, err = srv.navigationHub(ctx, req)
	case "list_backups":
		result, err = srv.listBackups(ctx, req)
	case "get_conventions":
		result, err = srv.getConventions(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestScanDocuments(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "scan_documents", map[string]interface{}{})
	var items []docservice.DocumentItem
	if err := json.Unmarshal([]byte(resultText(r)), &items); err != nil {
		t.Fatalf("decode: %v (%s)", err, resultText(r))
	}
	if len(items) != 3 {
		t.Errorf("items = %d, want 3", len(items))
	}
}

func TestScanDocuments_Escape(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "scan_documents", map[string]interface{}{"root": "../.."})
	if !r.IsError {
		t.Error("expected error for path outside the base")
	}
}

func TestAnalyzeRelevance(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "analyze_relevance", map[string]interface{}{})
	if r.IsError || !strings.Contains(resultText(r), `"status"`) {
		t.Errorf("unexpected result %q", resultText(r))
	}
}

func TestPlanConsolidation(t *testing.T) {
	srv, base := testServer(t)
	r := callTool(t, srv, "plan_consolidation", map[string]interface{}{"max_output_files": 1})
	var view docservice.PlanView
	if err := json.Unmarshal([]byte(resultText(r)), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Plans) != 1 {
		t.Errorf("plans = %d, want 1", len(view.Plans))
	}
	if _, err := os.Stat(filepath.Join(base, "NOTES.md")); err != nil {
		t.Error("planning must not touch files")
	}
}

func TestRunConsolidation_DefaultsToDryRun(t *testing.T) {
	srv, base := testServer(t)

	r := callTool(t, srv, "run_consolidation", map[string]interface{}{"root": ""})
	if r.IsError {
		t.Fatalf("run failed: %s", resultText(r))
	}
	if _, err := os.Stat(filepath.Join(base, "NOTES.md")); err != nil {
		t.Fatal("dry run deleted NOTES.md")
	}

	r = callTool(t, srv, "run_consolidation", map[string]interface{}{"root": "", "dry_run": false})
	if r.IsError {
		t.Fatalf("run failed: %s", resultText(r))
	}
	if _, err := os.Stat(filepath.Join(base, "NOTES.md")); !os.IsNotExist(err) {
		t.Fatal("NOTES.md should be consolidated and removed")
	}

	r = callTool(t, srv, "list_backups", map[string]interface{}{})
	if r.IsError || resultText(r) == "no backups found" {
		t.Errorf("expected manifests, got %q", resultText(r))
	}
}

func TestRunConsolidation_RequiresRoot(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "run_consolidation", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error without root")
	}
}

func TestNavigationHub(t *testing.T) {
	srv, base := testServer(t)

	r := callTool(t, srv, "navigation_hub", map[string]interface{}{})
	if !strings.HasPrefix(resultText(r), "# Documentation Hub") {
		t.Errorf("hub = %q", resultText(r))
	}

	r = callTool(t, srv, "navigation_hub", map[string]interface{}{"write": true})
	if !strings.HasPrefix(resultText(r), "written: ") {
		t.Errorf("write result = %q", resultText(r))
	}
	if _, err := os.Stat(filepath.Join(base, "DOCUMENTATION.md")); err != nil {
		t.Errorf("hub not written: %v", err)
	}
}

func TestListBackupsEmpty(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_backups", map[string]interface{}{})
	if resultText(r) != "no backups found" {
		t.Errorf("list_backups = %q", resultText(r))
	}
}

func TestConventions(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_conventions", map[string]interface{}{})
	if !strings.Contains(resultText(r), autoconsolidate.ReadmeMarkerStart) {
		t.Error("conventions do not name the README markers")
	}
}
