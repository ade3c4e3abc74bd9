package autoconsolidate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/laguz/internal/models"
)

const backupIndexHeader = "# Backup Index\n\nNewest first. Restore with `laguz restore <manifest-id>`.\n"

// PrependIndexEntry inserts entry directly below the index header.
func PrependIndexEntry(index, entry string) string {
	body := strings.TrimPrefix(index, backupIndexHeader)
	body = strings.TrimLeft(body, "\n")
	out := backupIndexHeader + "\n" + strings.TrimRight(entry, "\n") + "\n"
	if body != "" {
		out += "\n" + body
	}
	return out
}

func (r *run) indexEntry(manifests []models.BackupManifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%s)\n\n", r.o.now().Format("2006-01-02 15:04:05"), r.opts.Mode)
	for _, m := range manifests {
		fmt.Fprintf(&b, "- `%s` %s: %d files\n", m.ID, m.Label, len(m.Entries))
		for _, e := range m.Entries {
			rel, err := filepath.Rel(r.root, e.Path)
			if err != nil {
				rel = e.Path
			}
			fmt.Fprintf(&b, "  - `%s`\n", filepath.ToSlash(rel))
		}
	}
	return b.String()
}

func (r *run) appendBackupIndex(manifests []models.BackupManifest) error {
	var current string
	if r.fsys.Exists(BackupIndexPath) {
		data, err := r.fsys.Read(BackupIndexPath)
		if err != nil {
			return err
		}
		current = string(data)
	}
	return r.fsys.Write(BackupIndexPath, []byte(PrependIndexEntry(current, r.indexEntry(manifests))))
}
