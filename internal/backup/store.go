package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/checksum"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/storage"
)

// timeLayout is fixed-width so lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists file snapshots and the manifests grouping them.
type Store struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the backup database and applies the schema.
func Open(dsn string) (*Store, error) {
	if dir := filepath.Dir(dsn); dir != "" && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("backup: create dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("backup: open db: %w", err)
	}
	// One writer at a time; parallel boundaries share the store.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("backup: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("backup: apply schema: %w", err)
	}
	return &Store{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// BackupFile snapshots the current bytes of path.
func (s *Store) BackupFile(ctx context.Context, path string, tag models.BackupTag) (models.BackupEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.BackupEntry{}, fmt.Errorf("backup: read %s: %w", path, err)
	}
	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	entry := models.BackupEntry{
		ID:        uuid.NewString(),
		Path:      path,
		Tag:       tag,
		Checksum:  checksum.Sum(data),
		Size:      int64(len(data)),
		CreatedAt: s.now().UTC(),
	}

	query, args, err := sq.Insert("entries").
		Columns("id", "path", "tag", "checksum", "size", "mode", "content", "created_at").
		Values(entry.ID, entry.Path, string(entry.Tag), entry.Checksum, entry.Size, int64(mode), data,
			entry.CreatedAt.Format(timeLayout)).
		ToSql()
	if err != nil {
		return models.BackupEntry{}, fmt.Errorf("backup: build insert: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return models.BackupEntry{}, fmt.Errorf("backup: insert entry: %w", err)
	}
	return entry, nil
}

// CreateManifest binds unbound entries to a new manifest. Entries already
// bound to another manifest are rejected; a manifest never gains entries later.
func (s *Store) CreateManifest(ctx context.Context, entries []models.BackupEntry, label string) (models.BackupManifest, error) {
	m := models.BackupManifest{
		ID:         uuid.NewString(),
		Label:      label,
		Entries:    append([]models.BackupEntry(nil), entries...),
		Reversible: true,
		CreatedAt:  s.now().UTC(),
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.BackupManifest{}, fmt.Errorf("backup: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := sq.Insert("manifests").
		Columns("id", "label", "reversible", "created_at").
		Values(m.ID, m.Label, 1, m.CreatedAt.Format(timeLayout)).
		ToSql()
	if err != nil {
		return models.BackupManifest{}, fmt.Errorf("backup: build manifest insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return models.BackupManifest{}, fmt.Errorf("backup: insert manifest: %w", err)
	}

	if len(entries) > 0 {
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		query, args, err = sq.Update("entries").
			Set("manifest_id", m.ID).
			Where(sq.Eq{"id": ids}).
			Where(sq.Eq{"manifest_id": nil}).
			ToSql()
		if err != nil {
			return models.BackupManifest{}, fmt.Errorf("backup: build bind: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return models.BackupManifest{}, fmt.Errorf("backup: bind entries: %w", err)
		}
		if n, _ := res.RowsAffected(); n != int64(len(ids)) {
			return models.BackupManifest{}, fmt.Errorf("backup: bound %d of %d entries: %w", n, len(ids), apperr.ErrBackupIntegrity)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.BackupManifest{}, fmt.Errorf("backup: commit: %w", err)
	}
	return m, nil
}

// Confirm checks that the stored snapshot for entry is intact and still
// matches the file on disk, so the file can be deleted and later restored.
func (s *Store) Confirm(ctx context.Context, entry models.BackupEntry) error {
	query, args, err := sq.Select("checksum", "content").
		From("entries").
		Where(sq.Eq{"id": entry.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("backup: build confirm: %w", err)
	}
	var stored string
	var content []byte
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&stored, &content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("backup: entry %s missing: %w", entry.ID, apperr.ErrBackupIntegrity)
		}
		return fmt.Errorf("backup: load entry: %w", err)
	}
	if stored != entry.Checksum || !checksum.Matches(content, entry.Checksum) {
		return fmt.Errorf("backup: entry %s corrupt: %w", entry.ID, apperr.ErrBackupIntegrity)
	}
	current, err := os.ReadFile(entry.Path)
	if err != nil {
		return fmt.Errorf("backup: read %s: %w", entry.Path, apperr.ErrBackupIntegrity)
	}
	if !checksum.Matches(current, entry.Checksum) {
		return fmt.Errorf("backup: %s changed since snapshot: %w", entry.Path, apperr.ErrBackupIntegrity)
	}
	return nil
}

// Restore rewrites every file of the manifest byte-identically and returns the
// restored paths.
func (s *Store) Restore(ctx context.Context, manifestID string) ([]string, error) {
	if _, err := s.loadManifest(ctx, manifestID); err != nil {
		return nil, err
	}

	query, args, err := sq.Select("path", "checksum", "mode", "content").
		From("entries").
		Where(sq.Eq{"manifest_id": manifestID}).
		OrderBy("created_at", "path").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("backup: build restore: %w", err)
	}
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("backup: query entries: %w", err)
	}
	defer rows.Close()

	type snapshot struct {
		path, sum string
		mode      int64
		content   []byte
	}
	var snaps []snapshot
	for rows.Next() {
		var sn snapshot
		if err := rows.Scan(&sn.path, &sn.sum, &sn.mode, &sn.content); err != nil {
			return nil, fmt.Errorf("backup: scan entry: %w", err)
		}
		snaps = append(snaps, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var restored []string
	for _, sn := range snaps {
		if !checksum.Matches(sn.content, sn.sum) {
			return restored, fmt.Errorf("backup: snapshot of %s corrupt: %w", sn.path, apperr.ErrBackupIntegrity)
		}
		if err := writeSnapshot(sn.path, sn.content, fs.FileMode(sn.mode)); err != nil {
			return restored, err
		}
		restored = append(restored, sn.path)
	}
	return restored, nil
}

func writeSnapshot(path string, content []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("backup: mkdir %s: %w", dir, err)
	}
	fsys, err := storage.NewFS(dir)
	if err != nil {
		return fmt.Errorf("backup: restore %s: %w", path, err)
	}
	if err := fsys.Write(path, content); err != nil {
		return fmt.Errorf("backup: restore %s: %w", path, err)
	}
	if mode != 0 {
		_ = os.Chmod(path, mode)
	}
	return nil
}

// Manifest returns one manifest with its entries.
func (s *Store) Manifest(ctx context.Context, id string) (models.BackupManifest, error) {
	m, err := s.loadManifest(ctx, id)
	if err != nil {
		return models.BackupManifest{}, err
	}
	entries, err := s.entries(ctx, id)
	if err != nil {
		return models.BackupManifest{}, err
	}
	m.Entries = entries
	return m, nil
}

// Manifests lists every manifest, newest first, with entries populated.
func (s *Store) Manifests(ctx context.Context) ([]models.BackupManifest, error) {
	query, args, err := sq.Select("id", "label", "reversible", "created_at").
		From("manifests").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("backup: build list: %w", err)
	}
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("backup: list manifests: %w", err)
	}
	var out []models.BackupManifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		entries, err := s.entries(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Entries = entries
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanManifest(row scanner) (models.BackupManifest, error) {
	var m models.BackupManifest
	var reversible int
	var created string
	if err := row.Scan(&m.ID, &m.Label, &reversible, &created); err != nil {
		return models.BackupManifest{}, err
	}
	m.Reversible = reversible == 1
	m.CreatedAt, _ = time.Parse(timeLayout, created)
	return m, nil
}

func (s *Store) loadManifest(ctx context.Context, id string) (models.BackupManifest, error) {
	query, args, err := sq.Select("id", "label", "reversible", "created_at").
		From("manifests").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.BackupManifest{}, fmt.Errorf("backup: build get: %w", err)
	}
	m, err := scanManifest(s.conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.BackupManifest{}, fmt.Errorf("backup: manifest %s: %w", id, apperr.ErrNotFound)
		}
		return models.BackupManifest{}, fmt.Errorf("backup: get manifest: %w", err)
	}
	return m, nil
}

func (s *Store) entries(ctx context.Context, manifestID string) ([]models.BackupEntry, error) {
	query, args, err := sq.Select("id", "path", "tag", "checksum", "size", "created_at").
		From("entries").
		Where(sq.Eq{"manifest_id": manifestID}).
		OrderBy("created_at", "path").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("backup: build entries: %w", err)
	}
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("backup: query entries: %w", err)
	}
	defer rows.Close()

	var out []models.BackupEntry
	for rows.Next() {
		var e models.BackupEntry
		var tag, created string
		if err := rows.Scan(&e.ID, &e.Path, &tag, &e.Checksum, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("backup: scan entry: %w", err)
		}
		e.Tag = models.BackupTag(tag)
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, e)
	}
	return out, rows.Err()
}
