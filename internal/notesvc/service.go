// Package notesvc coordinates reads, searches and local deletions of
// synced documents across the vault storage, the index and the ledger.
package notesvc

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/starford/voxsync/internal/apperr"
	"github.com/starford/voxsync/internal/checksum"
	"github.com/starford/voxsync/internal/index"
	"github.com/starford/voxsync/internal/ledger"
	"github.com/starford/voxsync/internal/models"
	"github.com/starford/voxsync/internal/parser"
	"github.com/starford/voxsync/internal/storage"
)

// NoteDetail is the full representation of a synced document.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	RecordingID string         `json:"recording_id,omitempty"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Backlinks   []string       `json:"backlinks"`
	CreatedAt   string         `json:"created_at,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path        string   `json:"path"`
	Title       string   `json:"title"`
	RecordingID string   `json:"recording_id,omitempty"`
	Checksum    string   `json:"checksum"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

// Service coordinates storage, index and ledger operations.
type Service struct {
	store     storage.Provider
	db        *index.DB
	led       *ledger.Ledger
	changedAt string
}

// NewService creates a note service. changedAt is the frontmatter
// property used for day matching; empty means created_at.
func NewService(store storage.Provider, db *index.DB, led *ledger.Ledger, changedAt string) *Service {
	if changedAt == "" {
		changedAt = "created_at"
	}
	return &Service{store: store, db: db, led: led, changedAt: changedAt}
}

// GetNote reads a document from storage, parses it, and enriches it with
// backlinks from the index.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildNoteDetail(path, data)
}

// DeleteLocal removes a document from storage and index. If the document
// was sync-managed, its reference moves to the ledger's deletion list so
// the next pass reports it to the server.
func (s *Service) DeleteLocal(_ context.Context, path string) error {
	row, err := s.db.GetNote(path)
	if err != nil {
		return err
	}
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteNote(path); err != nil {
		return err
	}
	if row != nil && row.RecordingID != "" {
		s.led.RecordDeletion(models.SyncRef{RecordingID: row.RecordingID, UpdatedAt: row.UpdatedAt})
		return s.ReconcileWatermark()
	}
	return nil
}

// ReconcileWatermark lowers the persisted watermark to the remaining
// sync-managed documents' maximum updated_at. Without this, deleting the
// most recently synced document would leave the watermark past the
// deleted record and the next pass would never fetch it again.
func (s *Service) ReconcileWatermark() error {
	stored, err := s.db.Watermark()
	if err != nil {
		return err
	}
	if stored == "" {
		return nil
	}
	refs, err := s.db.SyncRefs()
	if err != nil {
		return err
	}
	max := ""
	for _, ref := range refs {
		if max == "" || ledger.CompareTimestamps(ref.Ref.UpdatedAt, max) > 0 {
			max = ref.Ref.UpdatedAt
		}
	}
	if max == "" || ledger.CompareTimestamps(stored, max) > 0 {
		return s.db.SetWatermark(max)
	}
	return nil
}

// StripRemoteRef rewrites a document's frontmatter without the
// recording_id key, detaching it from sync so future passes treat it as
// an ordinary note and never touch it.
func (s *Service) StripRemoteRef(_ context.Context, path string) error {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	stripped, changed := removeFrontmatterKey(string(data), "recording_id")
	if !changed {
		return nil
	}
	if err := s.store.Write(path, []byte(stripped)); err != nil {
		return err
	}
	return s.IndexFile(path, []byte(stripped))
}

// ListNotes returns paginated synced documents with an optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:        r.Path,
			Title:       r.Title,
			RecordingID: r.RecordingID,
			Checksum:    r.Checksum,
			Tags:        nonNilSlice(r.Tags),
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		}
	}
	return items, total, nil
}

// TodayRecordings lists sync-managed documents whose changed-at property
// falls on the given day (YYYY-MM-DD). With the default created_at the
// index row carries the value verbatim; a custom property is read from
// the document's frontmatter.
func (s *Service) TodayRecordings(_ context.Context, day string) ([]NoteListItem, error) {
	refs, err := s.db.SyncRefs()
	if err != nil {
		return nil, err
	}
	var items []NoteListItem
	for _, ref := range refs {
		row, err := s.db.GetNote(ref.Path)
		if err != nil {
			return nil, err
		}
		if row == nil || !sameDay(s.dayField(row), day) {
			continue
		}
		items = append(items, NoteListItem{
			Path:        row.Path,
			Title:       row.Title,
			RecordingID: row.RecordingID,
			Checksum:    row.Checksum,
			Tags:        nonNilSlice(row.Tags),
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return items, nil
}

// dayField returns the raw timestamp used for day matching.
func (s *Service) dayField(row *index.NoteRow) string {
	if s.changedAt == "created_at" {
		return row.CreatedAt
	}
	data, err := s.store.Read(row.Path)
	if err != nil {
		return ""
	}
	res, err := parser.Parse(data)
	if err != nil {
		return ""
	}
	return res.StringField(s.changedAt)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Backlinks returns all document paths that link to the given target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	return s.db.Backlinks(target)
}

// IndexFile parses data and upserts it into the index.
// Exported so that the renderer and watcher can reuse it.
func (s *Service) IndexFile(path string, data []byte) error {
	return index.IndexFile(s.db, path, data)
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(path)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Path:        path,
		Title:       res.Title,
		RecordingID: res.RecordingID(),
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(bl),
		CreatedAt:   res.StringField("created_at"),
		UpdatedAt:   res.StringField("updated_at"),
	}, nil
}

// sameDay reports whether the raw timestamp falls on the given
// YYYY-MM-DD day.
func sameDay(raw, day string) bool {
	t, ok := ledger.ParseTimestamp(raw)
	if !ok {
		return false
	}
	return t.Format("2006-01-02") == day
}

// removeFrontmatterKey drops a top-level scalar key from the frontmatter
// block, preserving the rest of the document byte for byte.
func removeFrontmatterKey(doc, key string) (string, bool) {
	if !strings.HasPrefix(doc, "---\n") {
		return doc, false
	}
	end := strings.Index(doc[4:], "\n---")
	if end < 0 {
		return doc, false
	}
	header := doc[4 : 4+end]
	rest := doc[4+end:]

	lines := strings.Split(header, "\n")
	kept := lines[:0]
	changed := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), key+":") {
			changed = true
			continue
		}
		kept = append(kept, line)
	}
	if !changed {
		return doc, false
	}
	return "---\n" + strings.Join(kept, "\n") + rest, true
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
