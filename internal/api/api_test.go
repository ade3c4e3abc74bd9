package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/laguz/internal/autoconsolidate"
	"github.com/starford/laguz/internal/docservice"
	"github.com/starford/laguz/internal/testutil"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

// testEnv sets up a temp base directory, backup store, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (http.Handler, string) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (http.Handler, string) {
	t.Helper()
	base, fsys := testutil.TestRoot(t)
	testutil.WriteFiles(t, base, map[string]string{
		"proj/README.md": "# Project\n\nA small project.\n",
		"proj/NOTES.md":  "# Notes\n\nRelease notes and the deploy checklist.\n",
		"proj/TODO.md":   "# Todo\n\n- write docs\n",
	})
	store := testutil.TestBackupStore(t)
	clock := func() time.Time { return now }
	svc := docservice.NewService(docservice.Deps{
		Base:         fsys,
		Backups:      store,
		Orchestrator: autoconsolidate.New(store, autoconsolidate.WithClock(clock)),
		Defaults:     autoconsolidate.Options{Mode: autoconsolidate.ModeCompress, MaxOutputFiles: 1, Flatten: true},
		Now:          clock,
	})
	return NewRouter(svc, authEnabled, token, sseHandler), base
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListDocuments(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/scan?root=proj", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp DocumentListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 || len(resp.Documents) != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
}

func TestListDocuments_Errors(t *testing.T) {
	router, _ := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/scan?root=missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing root = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/scan?root=../../etc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("escaping root = %d, want 400", w.Code)
	}
}

func TestRelevanceEndpoint(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/relevance?root=proj", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp RelevanceResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Scores) != 3 {
		t.Fatalf("scores = %d, want 3", len(resp.Scores))
	}
	for _, s := range resp.Scores {
		if s.Score < 0 || s.Score > 100 || s.Status == "" {
			t.Errorf("bad score %+v", s)
		}
	}
}

func TestPlanEndpoint(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/plan?root=proj&max=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp PlanResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Plans) != 1 || len(resp.Plans[0].Inputs) != 2 {
		t.Fatalf("unexpected plan %+v", resp)
	}
}

func TestHubEndpoints(t *testing.T) {
	router, base := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/hub?root=proj", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(base, "proj", "DOCUMENTATION.md")); !os.IsNotExist(err) {
		t.Fatal("GET /hub must not write the hub")
	}

	w = do(t, router, http.MethodPost, "/hub?root=proj", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp HubResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Content, "# Documentation Hub") || resp.Path == "" {
		t.Errorf("unexpected hub response %+v", resp)
	}
	if got := testutil.ReadFile(t, filepath.Join(base, "proj"), "DOCUMENTATION.md"); got != resp.Content {
		t.Error("written hub differs from response")
	}
}

func TestRunAndRestore(t *testing.T) {
	router, base := testEnv(t, "")
	proj := filepath.Join(base, "proj")

	w := do(t, router, http.MethodPost, "/runs", map[string]any{"root": "proj"})
	if w.Code != http.StatusOK {
		t.Fatalf("run status = %d, body = %s", w.Code, w.Body.String())
	}
	var sum RunResponse
	if err := json.NewDecoder(w.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	if !sum.Success || sum.Deleted != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	w = do(t, router, http.MethodGet, "/manifests", nil)
	var list ManifestListResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Manifests) == 0 {
		t.Fatal("no manifests after run")
	}

	var id string
	for _, m := range list.Manifests {
		if _, ok := m.Covers(filepath.Join(proj, "TODO.md")); ok {
			id = m.ID
			break
		}
	}
	if id == "" {
		t.Fatal("no manifest covers TODO.md")
	}

	w = do(t, router, http.MethodGet, "/manifests/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get manifest status = %d", w.Code)
	}
	w = do(t, router, http.MethodPost, "/manifests/"+id+"/restore", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := testutil.ReadFile(t, proj, "TODO.md"); !strings.Contains(got, "write docs") {
		t.Errorf("TODO.md not restored: %q", got)
	}
}

func TestRun_BadRequests(t *testing.T) {
	router, _ := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/runs", map[string]any{"root": "proj", "mode": "shred"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown mode = %d, want 400", w.Code)
	}
}

func TestManifest_NotFound(t *testing.T) {
	router, _ := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/manifests/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing manifest = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/manifests/nope/restore", nil); w.Code != http.StatusNotFound {
		t.Errorf("restore missing = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/scan?root=proj", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/scan", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/scan", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/scan?root=proj&access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/runs?access_token=secret123", map[string]any{"root": "proj"}); w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
}

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvWithSSE(t, true, "secret", blockingSSE)

	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _ := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
