package internal

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testRuntime(t *testing.T) (*Runtime, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "NOTES.md"), []byte("# Notes\n\nSome notes.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	cfg.Consolidation.Root = root
	cfg.Backup.Path = filepath.Join(t.TempDir(), "state", "backups.db")
	cfg.AI.Enabled = true
	cfg.AI.Endpoint = "http://127.0.0.1:1/v1/chat/completions"
	cfg.AI.Model = "unused"

	rt, err := NewRuntime(WithConfig(cfg), WithLogOutput(io.Discard), WithoutAI())
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt, root
}

func TestNewRuntime_RequiresConfig(t *testing.T) {
	if _, err := NewRuntime(); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestRuntimeHandler(t *testing.T) {
	rt, _ := testRuntime(t)
	h := rt.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Fatalf("ready = %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/scan", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "NOTES.md") {
		t.Fatalf("scan = %d %s", w.Code, w.Body.String())
	}
}

func TestRuntimeHandler_TokenAuth(t *testing.T) {
	rt, _ := testRuntime(t)
	rt.Config.Auth = AuthConfig{Mode: AuthModeToken, Token: "tok"}
	h := rt.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/scan", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("scan without token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", w.Code)
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	var sb strings.Builder
	cfg := NewDefaultConfig().App
	cfg.LogFormat = LogFormatText
	NewLogger(cfg, &sb).Info("hello", "k", "v")
	if !strings.Contains(sb.String(), "msg=hello") {
		t.Errorf("text output = %q", sb.String())
	}
}
