// Package syncer runs sync passes: it rebuilds the frontmatter ledger,
// drains the remote feed from the last watermark, hands each recording to
// the renderer and advances the persisted watermark.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/voxsync/internal/apperr"
	"github.com/starford/voxsync/internal/index"
	"github.com/starford/voxsync/internal/ledger"
	"github.com/starford/voxsync/internal/notify"
	"github.com/starford/voxsync/internal/render"
	"github.com/starford/voxsync/internal/storage"
)

// Report is the outcome of one completed sync pass.
type Report struct {
	Fetched    int       `json:"fetched"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Excluded   int       `json:"excluded"`
	Failed     int       `json:"failed"`
	Watermark  string    `json:"watermark"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// PublishFunc receives pass lifecycle events for fan-out to listeners.
// The payload is a Report for completed passes, nil for pass starts.
type PublishFunc func(event string, payload any)

// Syncer coordinates sync passes. At most one pass runs at a time;
// concurrent triggers are rejected rather than queued.
type Syncer struct {
	remote   Lister
	store    storage.Provider
	db       *index.DB
	led      *ledger.Ledger
	renderer *render.Renderer
	syncDir  string
	logger   *slog.Logger
	notifier notify.Notifier
	publish  PublishFunc

	running atomic.Bool

	mu   sync.Mutex
	last *Report
}

// New creates a Syncer. publish may be nil.
func New(remote Lister, store storage.Provider, db *index.DB, led *ledger.Ledger, renderer *render.Renderer, syncDir string, logger *slog.Logger, notifier notify.Notifier, publish PublishFunc) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if publish == nil {
		publish = func(string, any) {}
	}
	return &Syncer{
		remote:   remote,
		store:    store,
		db:       db,
		led:      led,
		renderer: renderer,
		syncDir:  syncDir,
		logger:   logger,
		notifier: notifier,
		publish:  publish,
	}
}

// Running reports whether a pass is currently in flight.
func (s *Syncer) Running() bool { return s.running.Load() }

// LastReport returns the most recent completed pass, or nil before the
// first one finishes.
func (s *Syncer) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

// Sync runs one full pass. A pass already in flight yields ErrConflict.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("syncer: pass already running: %w", apperr.ErrConflict)
	}
	defer s.running.Store(false)

	report := &Report{StartedAt: time.Now()}
	s.publish("sync.started", nil)

	// A fresh vault has no sync directory yet.
	if err := s.store.EnsureDir(s.syncDir); err != nil {
		return nil, fmt.Errorf("syncer: ensure sync dir: %w", err)
	}

	// The documents are the source of truth for what has been synced:
	// rescan them every pass so out-of-band edits and deletions are
	// reflected before we talk to the server.
	if err := s.led.Scan(s.store, s.syncDir); err != nil {
		return nil, fmt.Errorf("syncer: ledger scan: %w", err)
	}

	// The ledger watermark is rebuilt from frontmatter and may carry only
	// date precision; the stored one keeps the server's full timestamp.
	// Use whichever is later.
	since := s.led.Watermark()
	if stored, err := s.db.Watermark(); err == nil && stored != "" {
		if since == "" || ledger.CompareTimestamps(stored, since) > 0 {
			since = stored
		}
	}
	deleted := s.led.DeletedIDs()

	s.logger.Info("syncer: pass started",
		slog.String("since", since),
		slog.Int("deleted", len(deleted)))

	recordings, err := FetchAll(ctx, s.remote, since, deleted)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthExpired) || errors.Is(err, apperr.ErrNotAuthenticated) {
			s.notifier.Notice("Login token was invalid, please try logging in again.")
		} else {
			s.notifier.Notice("Error occurred fetching notes from the server.")
		}
		return nil, fmt.Errorf("syncer: fetch: %w", err)
	}
	s.led.ClearDeleted()
	report.Fetched = len(recordings)

	var res render.Result
	for _, rec := range recordings {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("syncer: pass interrupted: %w", err)
		}
		s.renderer.Process(ctx, rec, &res)
	}
	report.Created = res.Created
	report.Updated = res.Updated
	report.Excluded = res.Excluded
	report.Failed = res.Failed

	watermark := since
	if batch := ledger.MaxUpdatedAt(recordings); batch != "" {
		if watermark == "" || ledger.CompareTimestamps(batch, watermark) > 0 {
			watermark = batch
		}
	}
	if watermark != "" && watermark != since {
		if err := s.db.SetWatermark(watermark); err != nil {
			s.logger.Warn("syncer: watermark persist failed", slog.String("error", err.Error()))
		}
	}
	report.Watermark = watermark
	report.FinishedAt = time.Now()

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	s.logger.Info("syncer: pass finished",
		slog.Int("fetched", report.Fetched),
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("excluded", report.Excluded),
		slog.Int("failed", report.Failed),
		slog.String("watermark", report.Watermark),
		slog.Duration("took", report.FinishedAt.Sub(report.StartedAt)))

	s.notifier.Notice(fmt.Sprintf("Sync complete: %d new, %d updated, %d excluded, %d failed.",
		report.Created, report.Updated, report.Excluded, report.Failed))
	s.publish("sync.finished", report)
	return report, nil
}

// Run performs an immediate pass and then repeats on the given interval
// until the context is cancelled. Errors from individual passes are logged
// and do not stop the loop; only context cancellation ends it.
func (s *Syncer) Run(ctx context.Context, every time.Duration) error {
	if _, err := s.Sync(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("syncer: initial pass failed", slog.String("error", err.Error()))
	}
	if every <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sync(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("syncer: scheduled pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
