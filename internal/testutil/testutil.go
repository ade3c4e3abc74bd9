// Package testutil provides shared test helpers for setting up document roots and backup stores.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/laguz/internal/backup"
	"github.com/starford/laguz/internal/storage"
)

// TestBackupStore creates a temporary SQLite backup store that is automatically cleaned up.
func TestBackupStore(t *testing.T) *backup.Store {
	t.Helper()
	store, err := backup.Open(filepath.Join(t.TempDir(), "backups.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestRoot creates a temporary document root with a storage.Provider.
func TestRoot(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	fsys, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, fsys
}

// WriteFiles writes name -> content pairs under root, creating directories.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// Touch sets the modification time of root/name to now minus age.
func Touch(t *testing.T, root, name string, now time.Time, age time.Duration) {
	t.Helper()
	mod := now.Add(-age)
	if err := os.Chtimes(filepath.Join(root, name), mod, mod); err != nil {
		t.Fatal(err)
	}
}

// ReadFile returns the content of root/name or fails the test.
func ReadFile(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
