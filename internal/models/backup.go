package models

import "time"

// BackupTag records why a file was snapshotted.
type BackupTag string

const (
	BackupModify BackupTag = "modify"
	BackupDelete BackupTag = "delete"
	BackupCreate BackupTag = "create"
)

// BackupEntry is one file snapshot.
type BackupEntry struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Tag       BackupTag `json:"tag"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupManifest groups entries taken before one destructive action.
type BackupManifest struct {
	ID         string        `json:"id"`
	Label      string        `json:"label,omitempty"`
	Entries    []BackupEntry `json:"entries"`
	Reversible bool          `json:"reversible"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Covers reports whether the manifest has an entry for path.
func (m *BackupManifest) Covers(path string) (BackupEntry, bool) {
	if m == nil {
		return BackupEntry{}, false
	}
	for _, e := range m.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return BackupEntry{}, false
}
