package index

import (
	"log/slog"

	"github.com/starford/voxsync/internal/checksum"
	"github.com/starford/voxsync/internal/parser"
	"github.com/starford/voxsync/internal/storage"
)

// Rebuild walks the vault and brings the index cache up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Rebuild(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("index: rebuild read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("index: rebuild index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("index: rebuilt", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("index: rebuild delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("index: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts it into the index cache.
func IndexFile(db *DB, path string, data []byte) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}

	row := NoteRow{
		Path:        path,
		Title:       res.Title,
		RecordingID: res.RecordingID(),
		Checksum:    checksum.Sum(data),
		Tags:        res.Tags,
		CreatedAt:   res.StringField("created_at"),
		UpdatedAt:   res.StringField("updated_at"),
	}
	return db.UpsertNote(row, res.Body, res.Links)
}
