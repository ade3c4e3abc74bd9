// Package backup provides the SQLite-backed snapshot store that guarantees
// every destructive action can be reversed.
package backup

const schemaSQL = `
CREATE TABLE IF NOT EXISTS manifests (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	reversible INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
	id          TEXT PRIMARY KEY,
	manifest_id TEXT NULL REFERENCES manifests(id),
	path        TEXT NOT NULL,
	tag         TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	size        INTEGER NOT NULL,
	mode        INTEGER NOT NULL DEFAULT 420,
	content     BLOB NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_manifest ON entries(manifest_id);
CREATE INDEX IF NOT EXISTS idx_entries_path ON entries(path);
`
