package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/voxsync/internal/ledger"
	"github.com/starford/voxsync/internal/models"
	"github.com/starford/voxsync/internal/notify"
	"github.com/starford/voxsync/internal/storage"
)

type fakeRemote struct {
	signedErr  error
	signedURLs int
	downloads  []string
	deleted    []string
}

func (f *fakeRemote) SignedURL(_ context.Context, recordingID string) (*models.SignedURL, error) {
	f.signedURLs++
	if f.signedErr != nil {
		return nil, f.signedErr
	}
	return &models.SignedURL{URL: "https://cdn.example.com/audio/" + recordingID + ".mp3"}, nil
}

func (f *fakeRemote) DownloadFile(_ context.Context, store storage.Provider, rawURL, destPath string) error {
	f.downloads = append(f.downloads, destPath)
	return store.Write(destPath, []byte("audio-bytes"))
}

func (f *fakeRemote) DeleteRecording(_ context.Context, recordingID string) (bool, error) {
	f.deleted = append(f.deleted, recordingID)
	return true, nil
}

func testOptions() Options {
	return Options{
		SyncDir:             "voicenotes",
		DateFormat:          "2006-01-02",
		FilenameDateFormat:  "2006-01-02",
		FilenameTemplate:    "{{date}} {{title}}",
		NoteTemplate:        "# {{title}}\n\n{{transcript}}",
		FrontmatterTemplate: "created_at: {{created_at}}\nupdated_at: {{updated_at}}",
	}
}

func testRenderer(t *testing.T, opts Options, remote Remote) (*Renderer, storage.Provider, *ledger.Ledger, *[]string) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	led := ledger.New()
	var notices []string
	notifier := notify.Func(func(msg string) { notices = append(notices, msg) })
	return New(opts, store, remote, led, nil, nil, notifier), store, led, &notices
}

func sampleRecording() models.Recording {
	return models.Recording{
		ID:          "1",
		RecordingID: "rec-1",
		Title:       "Standup",
		Duration:    65000,
		Transcript:  "Hello world",
		CreatedAt:   "2024-05-01T10:00:00Z",
		UpdatedAt:   "2024-05-02T10:00:00Z",
	}
}

func TestProcess_CreatesDocument(t *testing.T) {
	r, store, led, _ := testRenderer(t, testOptions(), &fakeRemote{})

	var res Result
	r.Process(context.Background(), sampleRecording(), &res)

	if res.Created != 1 || res.Failed != 0 {
		t.Fatalf("res = %+v", res)
	}
	data, err := store.Read("voicenotes/2024-05-01 Standup.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	doc := string(data)
	if !strings.HasPrefix(doc, "---\nrecording_id: rec-1\n") {
		t.Errorf("recording_id must lead the frontmatter, got:\n%s", doc)
	}
	if !strings.Contains(doc, "created_at: 2024-05-01\n") {
		t.Errorf("missing formatted created_at:\n%s", doc)
	}
	if !strings.Contains(doc, "# Standup") || !strings.Contains(doc, "Hello world") {
		t.Errorf("body missing:\n%s", doc)
	}

	refs := led.Records()
	if len(refs) != 1 || refs[0].RecordingID != "rec-1" || refs[0].UpdatedAt != "2024-05-02T10:00:00Z" {
		t.Errorf("ledger refs = %v", refs)
	}
}

func TestProcess_ExistingDocumentUntouched(t *testing.T) {
	r, store, _, _ := testRenderer(t, testOptions(), &fakeRemote{})

	path := "voicenotes/2024-05-01 Standup.md"
	if err := store.Write(path, []byte("user edited content")); err != nil {
		t.Fatal(err)
	}

	var res Result
	r.Process(context.Background(), sampleRecording(), &res)

	if res.Created != 0 || res.Updated != 0 {
		t.Errorf("res = %+v, want all zero", res)
	}
	data, _ := store.Read(path)
	if string(data) != "user edited content" {
		t.Errorf("existing document was overwritten: %q", data)
	}
}

func TestProcess_SubnoteAlwaysRewritten(t *testing.T) {
	opts := testOptions()
	opts.NoteTemplate = "{{transcript}}{% if parent_note %} from {{parent_note}}{% endif %}"
	r, store, _, _ := testRenderer(t, opts, &fakeRemote{})

	rec := sampleRecording()
	rec.Subnotes = []models.Recording{{
		ID:          "2",
		RecordingID: "rec-2",
		Title:       "Detail",
		Transcript:  "child text",
		CreatedAt:   "2024-05-01T11:00:00Z",
		UpdatedAt:   "2024-05-01T11:00:00Z",
	}}

	subPath := "voicenotes/2024-05-01 Detail.md"
	if err := store.Write(subPath, []byte("stale")); err != nil {
		t.Fatal(err)
	}
	// The parent exists too, so only the subnote should be written.
	parentPath := "voicenotes/2024-05-01 Standup.md"
	if err := store.Write(parentPath, []byte("parent kept")); err != nil {
		t.Fatal(err)
	}

	var res Result
	r.Process(context.Background(), rec, &res)

	if res.Updated != 1 || res.Created != 0 {
		t.Errorf("res = %+v", res)
	}
	data, _ := store.Read(subPath)
	if !strings.Contains(string(data), "child text") {
		t.Errorf("subnote not rewritten: %q", data)
	}
	if !strings.Contains(string(data), "from [[2024-05-01 Standup]]") {
		t.Errorf("missing parent link: %q", data)
	}
	parent, _ := store.Read(parentPath)
	if string(parent) != "parent kept" {
		t.Errorf("parent was touched: %q", parent)
	}
}

func TestProcess_ExcludedTagSkipsParentNotSubnotes(t *testing.T) {
	opts := testOptions()
	opts.ExcludeTags = []string{"private"}
	r, store, _, _ := testRenderer(t, opts, &fakeRemote{})

	rec := sampleRecording()
	rec.Tags = []models.Tag{{Name: "private"}}
	rec.Subnotes = []models.Recording{{
		ID:          "2",
		RecordingID: "rec-2",
		Title:       "Detail",
		Transcript:  "child text",
		CreatedAt:   "2024-05-01T11:00:00Z",
		UpdatedAt:   "2024-05-01T11:00:00Z",
	}}

	var res Result
	r.Process(context.Background(), rec, &res)

	if res.Excluded != 1 {
		t.Errorf("Excluded = %d, want 1", res.Excluded)
	}
	if store.Exists("voicenotes/2024-05-01 Standup.md") {
		t.Error("excluded parent must not be written")
	}
	if !store.Exists("voicenotes/2024-05-01 Detail.md") {
		t.Error("subnote of excluded parent should still be written")
	}
}

func TestProcess_MissingTitleNotice(t *testing.T) {
	r, _, _, notices := testRenderer(t, testOptions(), &fakeRemote{})

	rec := sampleRecording()
	rec.Title = ""

	var res Result
	r.Process(context.Background(), rec, &res)

	if res.Created != 0 || res.Failed != 0 {
		t.Errorf("res = %+v", res)
	}
	if len(*notices) != 1 || !strings.Contains((*notices)[0], rec.ID) {
		t.Errorf("notices = %v", *notices)
	}
}

func TestProcess_TodoCreationWithTag(t *testing.T) {
	opts := testOptions()
	opts.TodoTag = "todos"
	opts.NoteTemplate = "{% if todo %}{{todo}}{% endif %}"
	r, store, _, _ := testRenderer(t, opts, &fakeRemote{})

	rec := sampleRecording()
	rec.Creations = []models.Creation{{
		Type:    models.CreationTodo,
		Content: models.CreationContent{Data: []string{"buy milk", "call home"}},
	}}

	var res Result
	r.Process(context.Background(), rec, &res)

	data, err := store.Read("voicenotes/2024-05-01 Standup.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(string(data), "- [ ] buy milk #todos\n- [ ] call home #todos") {
		t.Errorf("todo rendering wrong:\n%s", data)
	}
}

func TestProcess_AudioDownloadedOnce(t *testing.T) {
	opts := testOptions()
	opts.DownloadAudio = true
	remote := &fakeRemote{}
	r, store, _, _ := testRenderer(t, opts, remote)

	var res Result
	r.Process(context.Background(), sampleRecording(), &res)

	if len(remote.downloads) != 1 || remote.downloads[0] != "voicenotes/audio/rec-1.mp3" {
		t.Fatalf("downloads = %v", remote.downloads)
	}
	if !store.Exists("voicenotes/audio/rec-1.mp3") {
		t.Error("audio file missing")
	}

	// Second recording with the same id but a forced rewrite must not
	// re-download existing audio.
	_ = store.Delete("voicenotes/2024-05-01 Standup.md")
	r.Process(context.Background(), sampleRecording(), &res)
	if remote.signedURLs != 1 {
		t.Errorf("signed URL requested %d times, want 1", remote.signedURLs)
	}
}

func TestProcess_FailureIsContained(t *testing.T) {
	opts := testOptions()
	opts.DownloadAudio = true
	remote := &fakeRemote{signedErr: errors.New("boom")}
	r, store, _, notices := testRenderer(t, opts, remote)

	var res Result
	r.Process(context.Background(), sampleRecording(), &res)

	second := sampleRecording()
	second.RecordingID = "rec-2"
	second.Title = "Second"
	remote.signedErr = nil
	r.Process(context.Background(), second, &res)

	if res.Failed != 1 || res.Created != 1 {
		t.Errorf("res = %+v, want 1 failed and 1 created", res)
	}
	if store.Exists("voicenotes/2024-05-01 Standup.md") {
		t.Error("failed recording must not leave a document")
	}
	if len(*notices) == 0 {
		t.Error("expected a user notice for the failed recording")
	}
}

func TestProcess_DeleteSyncedReportsToServer(t *testing.T) {
	opts := testOptions()
	opts.DeleteSynced = true
	remote := &fakeRemote{}
	r, _, _, _ := testRenderer(t, opts, remote)

	var res Result
	r.Process(context.Background(), sampleRecording(), &res)

	if len(remote.deleted) != 1 || remote.deleted[0] != "rec-1" {
		t.Errorf("deleted = %v", remote.deleted)
	}
}

func TestSanitizedTitle(t *testing.T) {
	r, _, _, _ := testRenderer(t, testOptions(), &fakeRemote{})
	got := r.SanitizedTitle(`a/b: c?`, "2024-05-01T10:00:00Z")
	if got != "2024-05-01 ab c" {
		t.Errorf("got %q", got)
	}
}
