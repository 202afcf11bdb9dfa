package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/voxsync/internal/ledger"
	"github.com/starford/voxsync/internal/models"
	"github.com/starford/voxsync/internal/notesvc"
	"github.com/starford/voxsync/internal/render"
	"github.com/starford/voxsync/internal/storage"
	"github.com/starford/voxsync/internal/syncer"
	"github.com/starford/voxsync/internal/testutil"
)

type fakeFeed struct {
	page models.RecordingPage
}

func (f *fakeFeed) Recordings(ctx context.Context, since string, deletedIDs []string) (*models.RecordingPage, error) {
	page := f.page
	return &page, nil
}

func (f *fakeFeed) RecordingsFromLink(ctx context.Context, link string) (*models.RecordingPage, error) {
	return &models.RecordingPage{}, nil
}

type nullRemote struct{}

func (nullRemote) SignedURL(context.Context, string) (*models.SignedURL, error) {
	return &models.SignedURL{}, nil
}

func (nullRemote) DownloadFile(context.Context, storage.Provider, string, string) error {
	return nil
}

func (nullRemote) DeleteRecording(context.Context, string) (bool, error) {
	return true, nil
}

func testServer(t *testing.T) (*Server, storage.Provider, *notesvc.Service, *fakeFeed) {
	t.Helper()

	db := testutil.TestDB(t)
	_, store := testutil.TestVault(t)
	led := ledger.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := notesvc.NewService(store, db, led, "")

	renderer := render.New(render.Options{
		SyncDir:             "voicenotes",
		FilenameTemplate:    "{{title}}",
		NoteTemplate:        "# {{title}}\n\n{{transcript}}",
		FrontmatterTemplate: "created_at: {{created_at}}\nupdated_at: {{updated_at}}",
		DateFormat:          "2006-01-02",
		FilenameDateFormat:  "2006-01-02",
	}, store, nullRemote{}, led, svc.IndexFile, logger, nil)

	feed := &fakeFeed{}
	syn := syncer.New(feed, store, db, led, renderer, "voicenotes", logger, nil, nil)

	srv := New(store, svc, syn)
	return srv, store, svc, feed
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go does not expose a direct "call tool" test helper, so the tool
	// handler functions are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "sync_now":
		result, err = srv.syncNow(ctx, req)
	case "search_recordings":
		result, err = srv.searchRecordings(ctx, req)
	case "todays_recordings":
		result, err = srv.todaysRecordings(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSyncNow(t *testing.T) {
	srv, store, _, feed := testServer(t)
	feed.page = models.RecordingPage{Data: []models.Recording{
		{
			ID:          "1",
			RecordingID: "rec-1",
			Title:       "Standup",
			Transcript:  "talked about things",
			CreatedAt:   "2024-05-01T10:00:00Z",
			UpdatedAt:   "2024-05-01T10:00:00Z",
		},
	}}

	r := callTool(t, srv, "sync_now", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "1 fetched") || !strings.Contains(text, "1 created") {
		t.Errorf("sync result = %q", text)
	}
	if !store.Exists("voicenotes/Standup.md") {
		t.Error("document not written")
	}
}

func TestSearchRecordings(t *testing.T) {
	srv, store, svc, _ := testServer(t)
	doc := []byte("---\nrecording_id: rec-a\ntitle: Groceries\n---\nbuy milk and bread\n")
	if err := store.Write("voicenotes/a.md", doc); err != nil {
		t.Fatal(err)
	}
	if err := svc.IndexFile("voicenotes/a.md", doc); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "search_recordings", map[string]interface{}{"query": "milk"})
	text := resultText(r)
	if !strings.Contains(text, "voicenotes/a.md") {
		t.Errorf("search result = %q", text)
	}
}

func TestSearchRecordingsMissingQuery(t *testing.T) {
	srv, _, _, _ := testServer(t)
	r := callTool(t, srv, "search_recordings", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing query")
	}
}

func TestTodaysRecordings(t *testing.T) {
	srv, store, svc, _ := testServer(t)
	doc := []byte("---\nrecording_id: rec-a\ntitle: Morning\ncreated_at: 2024-05-01T09:00:00Z\n---\nA\n")
	if err := store.Write("voicenotes/a.md", doc); err != nil {
		t.Fatal(err)
	}
	if err := svc.IndexFile("voicenotes/a.md", doc); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "todays_recordings", map[string]interface{}{"day": "2024-05-01"})
	text := resultText(r)
	if !strings.Contains(text, "voicenotes/a.md") {
		t.Errorf("result = %q", text)
	}

	r = callTool(t, srv, "todays_recordings", map[string]interface{}{"day": "1999-01-01"})
	if text := resultText(r); text != "no recordings on 1999-01-01" {
		t.Errorf("empty day result = %q", text)
	}
}

func TestReadNote(t *testing.T) {
	srv, store, _, _ := testServer(t)
	if err := store.Write("voicenotes/a.md", []byte("# Hello\nBody")); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "voicenotes/a.md"})
	if text := resultText(r); text != "# Hello\nBody" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _, _, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}
