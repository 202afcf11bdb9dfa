package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunDeleteRemoteDetachesDocument(t *testing.T) {
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/recordings/") {
			deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/recordings/"))
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := NewDefaultConfig()
	cfg.Vault.Path = t.TempDir()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Voicenotes.BaseURL = srv.URL
	cfg.Voicenotes.Token = "test-token"

	docPath := filepath.Join(cfg.Vault.Path, "voicenotes", "a.md")
	if err := os.MkdirAll(filepath.Dir(docPath), 0o755); err != nil {
		t.Fatal(err)
	}
	doc := "---\nrecording_id: rec-a\nduration: 1m05s\n---\nBody stays.\n"
	if err := os.WriteFile(docPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RunDeleteRemote(context.Background(), "voicenotes/a.md", WithConfig(cfg)); err != nil {
		t.Fatalf("RunDeleteRemote: %v", err)
	}

	if len(deleted) != 1 || deleted[0] != "rec-a" {
		t.Errorf("server deletions = %v, want [rec-a]", deleted)
	}
	data, err := os.ReadFile(docPath)
	if err != nil {
		t.Fatalf("document should remain: %v", err)
	}
	if strings.Contains(string(data), "recording_id") {
		t.Errorf("recording_id survived detach:\n%s", data)
	}
	if !strings.Contains(string(data), "Body stays.") {
		t.Errorf("document body damaged:\n%s", data)
	}
}

func TestRunDeleteRemoteRejectsUnmanagedDocument(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Vault.Path = t.TempDir()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Voicenotes.Token = "test-token"

	docPath := filepath.Join(cfg.Vault.Path, "plain.md")
	if err := os.WriteFile(docPath, []byte("# Plain\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := RunDeleteRemote(context.Background(), "plain.md", WithConfig(cfg))
	if err == nil || !strings.Contains(err.Error(), "not a synced document") {
		t.Errorf("err = %v, want not-a-synced-document error", err)
	}
}
