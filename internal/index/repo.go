package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/voxsync/internal/models"
)

// NoteRow represents a row in the notes table. CreatedAt and UpdatedAt hold
// the frontmatter values exactly as written, since the documents are the
// authoritative ledger.
type NoteRow struct {
	Path        string
	Title       string
	RecordingID string
	Checksum    string
	Tags        []string
	CreatedAt   string
	UpdatedAt   string
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// SyncRefRow pairs a ledger reference with the document that carries it.
type SyncRefRow struct {
	Ref  models.SyncRef
	Path string
}

// UpsertNote inserts or replaces a note, its FTS entry, and links within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(n.Tags)

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, recording_id, checksum, tags, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title        = excluded.title,
			recording_id = excluded.recording_id,
			checksum     = excluded.checksum,
			tags         = excluded.tags,
			body         = excluded.body,
			created_at   = excluded.created_at,
			updated_at   = excluded.updated_at
	`, n.Path, n.Title, n.RecordingID, n.Checksum, string(tagsJSON), body, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when the FTS5 build tag is absent).
	if err := ftsUpsert(tx, n.Path, n.Title, body, n.Tags); err != nil {
		return err
	}

	// Replace links: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, 'inline')`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.Path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note, its FTS entry, and outgoing links.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, path)

	return tx.Commit()
}

// GetNote returns the indexed row at path, or nil when absent.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`
		SELECT path, title, recording_id, checksum, tags, created_at, updated_at
		FROM notes WHERE path = ?
	`, path)
	n, err := scanNoteRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns every indexed path mapped to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// SyncRefs returns the ledger reference of every sync-managed document
// (rows with a non-empty recording_id).
func (db *DB) SyncRefs() ([]SyncRefRow, error) {
	rows, err := db.conn.Query(`
		SELECT path, recording_id, updated_at
		FROM notes WHERE recording_id != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("index: sync refs: %w", err)
	}
	defer rows.Close()

	var out []SyncRefRow
	for rows.Next() {
		var r SyncRefRow
		if err := rows.Scan(&r.Path, &r.Ref.RecordingID, &r.Ref.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PathByRecordingID returns the document path carrying the given
// recording_id, or "" when none does.
func (db *DB) PathByRecordingID(recordingID string) (string, error) {
	var p string
	err := db.conn.QueryRow(`SELECT path FROM notes WHERE recording_id = ?`, recordingID).Scan(&p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("index: path by recording id: %w", err)
	}
	return p, nil
}

// ListNotes returns rows paginated and optionally filtered by tag.
func (db *DB) ListNotes(limit, offset int, tag string) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if tag != "" {
		// Tags are stored as a JSON array of strings.
		where = `WHERE tags LIKE ?`
		args = append(args, `%"`+tag+`"%`)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.conn.Query(`
		SELECT path, title, recording_id, checksum, tags, created_at, updated_at
		FROM notes `+where+`
		ORDER BY updated_at DESC, path
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNoteRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// Backlinks returns all note paths that link to the given target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ?`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const watermarkKey = "last_synced_note_updated_at"

// Watermark returns the persisted sync watermark, "" when unset.
func (db *DB) Watermark() (string, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, watermarkKey).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("index: read watermark: %w", err)
	}
	return v, nil
}

// SetWatermark persists the sync watermark. An empty value clears it.
func (db *DB) SetWatermark(value string) error {
	if value == "" {
		_, err := db.conn.Exec(`DELETE FROM sync_state WHERE key = ?`, watermarkKey)
		if err != nil {
			return fmt.Errorf("index: clear watermark: %w", err)
		}
		return nil
	}
	_, err := db.conn.Exec(`
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, watermarkKey, value)
	if err != nil {
		return fmt.Errorf("index: set watermark: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNoteRow(s rowScanner) (*NoteRow, error) {
	var n NoteRow
	var tagsJSON string
	if err := s.Scan(&n.Path, &n.Title, &n.RecordingID, &n.Checksum, &tagsJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tagsJSON), &n.Tags)
	return &n, nil
}
