package boundary

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func mkdir(t *testing.T, parts ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(parts...), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestListFindsNestedRepositories(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, ".git")
	mkdir(t, root, "services", "api", ".git")
	mkdir(t, root, "libs", "core", ".git")
	mkdir(t, root, "node_modules", "dep", ".git")
	mkdir(t, root, "plain")

	got, err := GitLister{}.List(context.Background(), root, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{
		root,
		filepath.Join(root, "libs", "core"),
		filepath.Join(root, "services", "api"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("boundary %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListFlatten(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "nested", ".git")

	got, err := GitLister{}.List(context.Background(), root, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0] != root {
		t.Fatalf("got %v, want only the root", got)
	}
}

func TestListRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (GitLister{}).List(context.Background(), f, false); err == nil {
		t.Fatal("expected error for a file root")
	}
}
