package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestAbsolutePathInsideRoot(t *testing.T) {
	s := tempRoot(t)
	abs := filepath.Join(s.Root(), "docs", "a.md")
	if err := s.Write(abs, []byte("abs")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Exists("docs/a.md") {
		t.Error("expected file at relative path")
	}
}

func TestDelete(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("del.md") {
		t.Error("file should be gone")
	}
	if err := s.Delete(""); err == nil {
		t.Error("deleting root must fail")
	}
}

func TestMove(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("old.md", []byte("data"))
	if err := s.Move("old.md", "sub/new.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.md")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if s.Exists("old.md") {
		t.Error("old path should not exist")
	}
}

func TestCopyPreservesModTime(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("src.md", []byte("copy me"))
	past := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(filepath.Join(s.Root(), "src.md"), past, past); err != nil {
		t.Fatal(err)
	}
	if err := s.Copy("src.md", "documents/src.md"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	info, err := s.Stat("documents/src.md")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.ModTime().Equal(past) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), past)
	}
	if !s.Exists("src.md") {
		t.Error("source must remain after copy")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("atomic.md", []byte("original"))
	if err := s.Write("atomic.md", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".laguz-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "laguz-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestResolve(t *testing.T) {
	s := tempRoot(t)
	got, err := s.Resolve("docs/a.md")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != filepath.Join(s.root, "docs", "a.md") {
		t.Errorf("Resolve = %q", got)
	}
	if root, err := s.Resolve(""); err != nil || root != s.root {
		t.Errorf("empty path should resolve to the root, got %q %v", root, err)
	}
	if _, err := s.Resolve("../outside"); err == nil {
		t.Error("expected error for path outside the root")
	}
}
