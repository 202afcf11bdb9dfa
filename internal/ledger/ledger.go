// Package ledger tracks which remote recordings are represented locally.
// The synced documents themselves are the durable record: the ledger is
// rebuilt by scanning their frontmatter at the start of every sync pass.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/starford/voxsync/internal/models"
	"github.com/starford/voxsync/internal/parser"
	"github.com/starford/voxsync/internal/storage"
)

// Ledger holds the in-memory synced set and pending local deletions for one
// sync lifecycle. A mutex guards it because the vault watcher can report
// deletions while a pass is rendering.
type Ledger struct {
	mu      sync.Mutex
	records []models.SyncRef
	deleted []models.SyncRef
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Scan walks the sync directory and seeds the ledger from the frontmatter
// of every document carrying a recording_id. Documents without one are not
// sync-managed and are ignored. A sync directory that does not exist yet
// is an empty set, not an error.
func (l *Ledger) Scan(store storage.Provider, syncDir string) error {
	metas, err := store.List(syncDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			metas = nil
		} else {
			return fmt.Errorf("ledger: scan: %w", err)
		}
	}

	var refs []models.SyncRef
	for _, m := range metas {
		data, err := store.Read(m.Path)
		if err != nil {
			continue
		}
		res, err := parser.Parse(data)
		if err != nil {
			continue
		}
		id := res.RecordingID()
		if id == "" {
			continue
		}
		refs = append(refs, models.SyncRef{
			RecordingID: id,
			UpdatedAt:   res.StringField("updated_at"),
		})
	}

	l.mu.Lock()
	l.records = refs
	l.mu.Unlock()
	return nil
}

// Upsert replaces the entry for the ref's recording id, or appends it.
func (l *Ledger) Upsert(ref models.SyncRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		if l.records[i].RecordingID == ref.RecordingID {
			l.records[i].UpdatedAt = ref.UpdatedAt
			return
		}
	}
	l.records = append(l.records, ref)
}

// RecordDeletion removes a tracked recording from the known set and
// remembers it so the next pass can report it to the remote. Untracked
// refs (empty recording id) are ignored.
func (l *Ledger) RecordDeletion(ref models.SyncRef) {
	if ref.RecordingID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.records[:0]
	for _, r := range l.records {
		if r.RecordingID != ref.RecordingID {
			kept = append(kept, r)
		}
	}
	l.records = kept
	l.deleted = append(l.deleted, ref)
}

// Records returns a copy of the known synced set.
func (l *Ledger) Records() []models.SyncRef {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.SyncRef, len(l.records))
	copy(out, l.records)
	return out
}

// DeletedIDs returns the recording ids of locally deleted documents.
func (l *Ledger) DeletedIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.deleted))
	for _, r := range l.deleted {
		out = append(out, r.RecordingID)
	}
	return out
}

// ClearDeleted forgets recorded deletions once they have been reported.
func (l *Ledger) ClearDeleted() {
	l.mu.Lock()
	l.deleted = nil
	l.mu.Unlock()
}

// Watermark returns the maximum updated_at across the known set, or ""
// when the set is empty. Recomputing after a deletion keeps the watermark
// honest so the deleted record is not silently excluded forever.
func (l *Ledger) Watermark() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	max := ""
	for _, r := range l.records {
		if max == "" || CompareTimestamps(r.UpdatedAt, max) > 0 {
			max = r.UpdatedAt
		}
	}
	return max
}

// MaxUpdatedAt returns the maximum updated_at across a fetched record set.
// The comparison is a total order on parsed timestamps, so the result does
// not depend on iteration order.
func MaxUpdatedAt(recordings []models.Recording) string {
	max := ""
	for _, r := range recordings {
		if max == "" || CompareTimestamps(r.UpdatedAt, max) > 0 {
			max = r.UpdatedAt
		}
	}
	return max
}

// CompareTimestamps orders two timestamp strings: negative when a < b,
// positive when a > b. Parsed times are compared when both parse; ties and
// unparseable values fall back to string comparison so the order stays
// total and deterministic.
func CompareTimestamps(a, b string) int {
	ta, okA := ParseTimestamp(a)
	tb, okB := ParseTimestamp(b)
	switch {
	case okA && okB:
		if ta.Before(tb) {
			return -1
		}
		if ta.After(tb) {
			return 1
		}
		return strings.Compare(a, b)
	case okA:
		return 1
	case okB:
		return -1
	default:
		return strings.Compare(a, b)
	}
}
