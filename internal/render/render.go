// Package render turns remote recordings into Markdown documents in the
// vault: filename generation, template expansion, audio and attachment
// side effects, and the write/skip policy.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/voxsync/internal/apperr"
	"github.com/starford/voxsync/internal/ledger"
	"github.com/starford/voxsync/internal/models"
	"github.com/starford/voxsync/internal/notify"
	"github.com/starford/voxsync/internal/storage"
	"github.com/starford/voxsync/internal/template"
)

// Remote is the subset of the Voicenotes client the renderer needs.
type Remote interface {
	SignedURL(ctx context.Context, recordingID string) (*models.SignedURL, error)
	DownloadFile(ctx context.Context, store storage.Provider, rawURL, destPath string) error
	DeleteRecording(ctx context.Context, recordingID string) (bool, error)
}

// Options are the render-relevant settings, all opaque configuration.
type Options struct {
	SyncDir             string
	DownloadAudio       bool
	DeleteSynced        bool
	ExcludeTags         []string
	TodoTag             string
	DateFormat          string // Go reference layout for document date fields
	FilenameDateFormat  string // Go reference layout for the filename date
	FilenameTemplate    string // {{date}} and {{title}} placeholders
	NoteTemplate        string
	FrontmatterTemplate string
}

// Result aggregates the outcome of rendering a batch of recordings.
type Result struct {
	Created  int
	Updated  int
	Excluded int
	Failed   int
}

// IndexFunc is called with the final document after a successful write so
// the vault index cache stays current without waiting for the watcher.
type IndexFunc func(path string, data []byte) error

// Renderer materialises recordings as vault documents.
type Renderer struct {
	opts     Options
	store    storage.Provider
	remote   Remote
	led      *ledger.Ledger
	indexFn  IndexFunc
	logger   *slog.Logger
	notifier notify.Notifier
}

// New creates a Renderer. indexFn may be nil.
func New(opts Options, store storage.Provider, remote Remote, led *ledger.Ledger, indexFn IndexFunc, logger *slog.Logger, notifier notify.Notifier) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Renderer{
		opts:     opts,
		store:    store,
		remote:   remote,
		led:      led,
		indexFn:  indexFn,
		logger:   logger,
		notifier: notifier,
	}
}

// Process renders one top-level recording and, recursively, its subnotes.
// Errors are contained per record: a bad recording is logged and noticed
// but never aborts the batch.
func (r *Renderer) Process(ctx context.Context, rec models.Recording, res *Result) {
	r.process(ctx, rec, false, "", res)
}

func (r *Renderer) process(ctx context.Context, rec models.Recording, isSubnote bool, parentTitle string, res *Result) {
	if rec.Title == "" {
		r.notifier.Notice(fmt.Sprintf("Unable to grab voice recording with id: %s", rec.ID))
		return
	}

	title := r.SanitizedTitle(rec.Title, rec.CreatedAt)

	// Subnotes always come first so parent cross-links resolve to files
	// that exist, and so children are refreshed even when the parent
	// document is stable.
	for _, sub := range rec.Subnotes {
		r.process(ctx, sub, true, title, res)
	}

	if r.hasExcludedTag(rec) {
		res.Excluded++
		return
	}

	docPath := path.Join(r.opts.SyncDir, title+".md")
	exists := r.store.Exists(docPath)

	// Existing top-level documents are left untouched; subnotes are
	// rewritten every pass because their path derives from title+date
	// and may need correction as the parent's context changes.
	if exists && !isSubnote {
		return
	}

	if err := r.renderDoc(ctx, rec, docPath, isSubnote, parentTitle, exists); err != nil {
		res.Failed++
		r.handleRecordError(rec, err)
		return
	}
	if exists {
		res.Updated++
	} else {
		res.Created++
	}
}

func (r *Renderer) hasExcludedTag(rec models.Recording) bool {
	for _, tag := range rec.Tags {
		for _, excluded := range r.opts.ExcludeTags {
			if tag.Name == excluded {
				return true
			}
		}
	}
	return false
}

// SanitizedTitle computes the filesystem-safe document title from the
// configured filename template.
func (r *Renderer) SanitizedTitle(title, createdAt string) string {
	date := FormatDate(createdAt, r.opts.FilenameDateFormat)
	name := strings.ReplaceAll(r.opts.FilenameTemplate, "{{date}}", date)
	name = strings.ReplaceAll(name, "{{title}}", title)
	return SanitizeFilename(strings.TrimSpace(name))
}

func (r *Renderer) renderDoc(ctx context.Context, rec models.Recording, docPath string, isSubnote bool, parentTitle string, exists bool) error {
	tctx, err := r.buildContext(ctx, rec, isSubnote, parentTitle)
	if err != nil {
		return err
	}

	body := template.Render(r.opts.NoteTemplate, tctx)
	body = CollapseBlankLines(body)
	body = StripHTML(body)

	// recording_id is the sync key and must survive any user template, so
	// it is forced ahead of the configurable header fields.
	header := template.Render("recording_id: {{recording_id}}\n"+r.opts.FrontmatterTemplate, tctx)
	header = CollapseBlankLines(header)

	doc := "---\n" + strings.TrimRight(header, "\n") + "\n---\n" + body + "\n"

	if err := r.store.Write(docPath, []byte(doc)); err != nil {
		return err
	}
	action := "created"
	if exists {
		action = "updated"
	}
	r.logger.Debug("render: wrote document",
		slog.String("path", docPath),
		slog.String("recording_id", rec.RecordingID),
		slog.String("action", action))

	r.led.Upsert(models.SyncRef{RecordingID: rec.RecordingID, UpdatedAt: rec.UpdatedAt})

	if r.indexFn != nil {
		if err := r.indexFn(docPath, []byte(doc)); err != nil {
			r.logger.Warn("render: index update failed",
				slog.String("path", docPath),
				slog.String("error", err.Error()))
		}
	}

	// A failed remote delete must neither undo the local write nor abort
	// the rest of the pass.
	if r.opts.DeleteSynced {
		if _, err := r.remote.DeleteRecording(ctx, rec.RecordingID); err != nil {
			r.logger.Warn("render: post-sync remote delete failed",
				slog.String("recording_id", rec.RecordingID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// buildContext assembles every template variable for one recording.
func (r *Renderer) buildContext(ctx context.Context, rec models.Recording, isSubnote bool, parentTitle string) (map[string]string, error) {
	creations := make(map[string]*models.Creation, len(models.CreationKinds))
	for i := range rec.Creations {
		c := &rec.Creations[i]
		for _, kind := range models.CreationKinds {
			if c.Type == kind {
				creations[kind] = c
				break
			}
		}
	}

	tctx := map[string]string{
		"recording_id": rec.RecordingID,
		"title":        rec.Title,
		"date":         FormatDate(rec.CreatedAt, r.opts.DateFormat),
		"duration":     FormatDuration(rec.Duration),
		"created_at":   FormatDate(rec.CreatedAt, r.opts.DateFormat),
		"updated_at":   FormatDate(rec.UpdatedAt, r.opts.DateFormat),
		"transcript":   rec.Transcript,
	}

	for _, kind := range []string{models.CreationSummary, models.CreationTidy, models.CreationTweet, models.CreationBlog, models.CreationEmail, models.CreationCustom} {
		if c := creations[kind]; c != nil {
			tctx[kind] = c.MarkdownContent
		}
	}
	if c := creations[models.CreationPoints]; c != nil {
		lines := make([]string, 0, len(c.Content.Data))
		for _, item := range c.Content.Data {
			lines = append(lines, "- "+item)
		}
		tctx["points"] = strings.Join(lines, "\n")
	}
	if c := creations[models.CreationTodo]; c != nil {
		suffix := ""
		if r.opts.TodoTag != "" {
			suffix = " #" + r.opts.TodoTag
		}
		lines := make([]string, 0, len(c.Content.Data))
		for _, item := range c.Content.Data {
			lines = append(lines, "- [ ] "+item+suffix)
		}
		tctx["todo"] = strings.Join(lines, "\n")
	}

	if audio, filename, err := r.ensureAudio(ctx, rec); err != nil {
		return nil, err
	} else if filename != "" {
		tctx["embedded_audio_link"] = audio
		tctx["audio_filename"] = filename
	}

	attachments, err := r.renderAttachments(ctx, rec)
	if err != nil {
		return nil, err
	}
	tctx["attachments"] = attachments

	if names := tagNames(rec.Tags); len(names) > 0 {
		formatted := make([]string, 0, len(names))
		for _, name := range names {
			formatted = append(formatted, "#"+whitespaceRe.ReplaceAllString(name, "-"))
		}
		tctx["tags"] = strings.Join(formatted, " ")
		tctx["tag_names"] = strings.Join(names, ", ")
	}

	if len(rec.RelatedNotes) > 0 {
		lines := make([]string, 0, len(rec.RelatedNotes))
		for _, related := range rec.RelatedNotes {
			lines = append(lines, "- [["+r.SanitizedTitle(related.Title, related.CreatedAt)+"]]")
		}
		tctx["related_notes"] = strings.Join(lines, "\n")
	}
	if len(rec.Subnotes) > 0 {
		lines := make([]string, 0, len(rec.Subnotes))
		for _, sub := range rec.Subnotes {
			lines = append(lines, "- [["+r.SanitizedTitle(sub.Title, sub.CreatedAt)+"]]")
		}
		tctx["subnotes"] = strings.Join(lines, "\n")
	}
	if isSubnote {
		tctx["parent_note"] = "[[" + parentTitle + "]]"
	}

	return tctx, nil
}

// ensureAudio downloads the recording's audio once and returns the embed
// link and filename. The embed reference is produced whether or not the
// download just happened.
func (r *Renderer) ensureAudio(ctx context.Context, rec models.Recording) (embed, filename string, err error) {
	if !r.opts.DownloadAudio {
		return "", "", nil
	}
	audioDir := path.Join(r.opts.SyncDir, "audio")
	if !r.store.Exists(audioDir) {
		if err := r.store.EnsureDir(audioDir); err != nil {
			return "", "", err
		}
	}
	filename = rec.RecordingID + ".mp3"
	audioPath := path.Join(audioDir, filename)
	if !r.store.Exists(audioPath) {
		signed, err := r.remote.SignedURL(ctx, rec.RecordingID)
		if err != nil {
			return "", "", err
		}
		if err := r.remote.DownloadFile(ctx, r.store, signed.URL, audioPath); err != nil {
			return "", "", err
		}
	}
	return "![[" + filename + "]]", filename, nil
}

// renderAttachments emits one line per attachment: a plain text line for
// links, an embed for downloaded images. Unrecognised types produce
// nothing, which is not an error.
func (r *Renderer) renderAttachments(ctx context.Context, rec models.Recording) (string, error) {
	if len(rec.Attachments) == 0 {
		return "", nil
	}
	attachDir := path.Join(r.opts.SyncDir, "attachments")
	if !r.store.Exists(attachDir) {
		if err := r.store.EnsureDir(attachDir); err != nil {
			return "", err
		}
	}
	var lines []string
	for _, a := range rec.Attachments {
		switch a.Type {
		case models.AttachmentLink:
			lines = append(lines, "- "+a.Description)
		case models.AttachmentImage:
			name := FilenameFromURL(a.URL)
			if name == "" {
				continue
			}
			dest := path.Join(attachDir, name)
			if err := r.remote.DownloadFile(ctx, r.store, a.URL, dest); err != nil {
				return "", err
			}
			lines = append(lines, "- ![["+name+"]]")
		}
	}
	return strings.Join(lines, "\n"), nil
}

// handleRecordError logs all diagnostic detail the error carries and posts
// a single user notice. Authentication expiry needs a distinct notice: the
// client has already cleared the token and the user must log in again.
func (r *Renderer) handleRecordError(rec models.Recording, err error) {
	attrs := []any{
		slog.String("recording_id", rec.RecordingID),
		slog.String("error", err.Error()),
	}
	var reqErr *apperr.RequestError
	if errors.As(err, &reqErr) {
		attrs = append(attrs,
			slog.Int("status", reqErr.Status),
			slog.String("body", reqErr.Body),
			slog.Any("headers", reqErr.Headers))
	}
	r.logger.Error("render: recording failed", attrs...)

	switch {
	case errors.Is(err, apperr.ErrAuthExpired):
		r.notifier.Notice("Login token was invalid, please try logging in again.")
	case errors.Is(err, apperr.ErrBadRequest) && reqErr != nil && reqErr.Message != "":
		r.notifier.Notice(reqErr.Message)
	default:
		r.notifier.Notice("Error occurred syncing some notes to this vault.")
	}
}

func tagNames(tags []models.Tag) []string {
	var out []string
	for _, t := range tags {
		name := strings.TrimSpace(t.Name)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
