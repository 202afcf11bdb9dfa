// Package internal provides application initialization and the entry
// points behind each CLI command.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/voxsync/internal/api"
	"github.com/starford/voxsync/internal/index"
	"github.com/starford/voxsync/internal/ledger"
	"github.com/starford/voxsync/internal/mcpserver"
	"github.com/starford/voxsync/internal/notesvc"
	"github.com/starford/voxsync/internal/notify"
	"github.com/starford/voxsync/internal/render"
	"github.com/starford/voxsync/internal/sse"
	"github.com/starford/voxsync/internal/storage"
	"github.com/starford/voxsync/internal/syncer"
	"github.com/starford/voxsync/internal/voicenotes"
)

// components holds everything the entry points share after bootstrap.
type components struct {
	cfg      *Config
	logger   *slog.Logger
	store    storage.Provider
	db       *index.DB
	led      *ledger.Ledger
	client   *voicenotes.Client
	renderer *render.Renderer
	syn      *syncer.Syncer
	svc      *notesvc.Service
	notifier notify.Notifier
}

func (c *components) close() {
	if c.db != nil {
		_ = c.db.Close()
	}
}

// bootstrap wires the application from options. publish may be nil; when
// set it receives syncer lifecycle events (daemon mode hands it the SSE
// broker).
func bootstrap(opts []Option, publish syncer.PublishFunc) (*components, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Rebuild(db, store, logger); err != nil {
		logger.Warn("initial index rebuild failed", slog.String("error", err.Error()))
	}

	client, err := voicenotes.New(voicenotes.Config{
		BaseURL: cfg.Voicenotes.BaseURL,
		Token:   cfg.Voicenotes.Token,
		Logger:  logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init client: %w", err)
	}

	led := ledger.New()
	notifier := notify.NewWriter(os.Stdout)
	svc := notesvc.NewService(store, db, led, cfg.Sync.ChangedAt())

	renderer := render.New(render.Options{
		SyncDir:             cfg.Sync.Directory,
		DownloadAudio:       cfg.Sync.DownloadAudio,
		DeleteSynced:        cfg.Sync.DeleteFromServer(),
		ExcludeTags:         cfg.Sync.ExcludeTags,
		TodoTag:             cfg.Sync.TodoTag,
		DateFormat:          cfg.Sync.DateFormat,
		FilenameDateFormat:  cfg.Sync.FilenameDateFormat,
		FilenameTemplate:    cfg.Sync.FilenameTemplate,
		NoteTemplate:        cfg.Sync.NoteTemplate,
		FrontmatterTemplate: cfg.Sync.FrontmatterTemplate,
	}, store, client, led, svc.IndexFile, logger, notifier)

	syn := syncer.New(client, store, db, led, renderer, cfg.Sync.Directory, logger, notifier, publish)

	return &components{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		db:       db,
		led:      led,
		client:   client,
		renderer: renderer,
		syn:      syn,
		svc:      svc,
		notifier: notifier,
	}, nil
}

// RunSync performs one sync pass and exits.
func RunSync(ctx context.Context, opts ...Option) error {
	c, err := bootstrap(opts, nil)
	if err != nil {
		return err
	}
	defer c.close()

	_, err = c.syn.Sync(ctx)
	return err
}

// RunToday prints documents recorded on the given day (YYYY-MM-DD, empty
// for today).
func RunToday(ctx context.Context, day string, opts ...Option) error {
	c, err := bootstrap(opts, nil)
	if err != nil {
		return err
	}
	defer c.close()

	if day == "" {
		day = time.Now().Format("2006-01-02")
	}
	items, err := c.svc.TodayRecordings(ctx, day)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Printf("no recordings on %s\n", day)
		return nil
	}
	for _, item := range items {
		fmt.Printf("%s\t%s\n", item.Path, item.Title)
	}
	return nil
}

// RunWhoami probes the remote credentials and prints the account profile.
func RunWhoami(ctx context.Context, opts ...Option) error {
	c, err := bootstrap(opts, nil)
	if err != nil {
		return err
	}
	defer c.close()

	user := c.client.UserInfo(ctx)
	if user == nil {
		return fmt.Errorf("not logged in: token is missing or invalid")
	}
	fmt.Printf("%s <%s>\n", user.Name, user.Email)
	return nil
}

// RunDeleteRemote deletes the recording behind a synced document on the
// server, then strips the document's recording_id so sync stops managing
// it. The local file stays in place.
func RunDeleteRemote(ctx context.Context, path string, opts ...Option) error {
	c, err := bootstrap(opts, nil)
	if err != nil {
		return err
	}
	defer c.close()

	return deleteRemote(ctx, c, path)
}

func deleteRemote(ctx context.Context, c *components, path string) error {
	note, err := c.svc.GetNote(ctx, path)
	if err != nil {
		return err
	}
	if note.RecordingID == "" {
		return fmt.Errorf("%s is not a synced document", path)
	}

	ok, err := c.client.DeleteRecording(ctx, note.RecordingID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("server refused to delete recording %s", note.RecordingID)
	}
	if err := c.svc.StripRemoteRef(ctx, path); err != nil {
		return fmt.Errorf("recording deleted but detach failed: %w", err)
	}
	fmt.Printf("deleted recording %s, detached %s\n", note.RecordingID, path)
	return nil
}

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	c, err := bootstrap(opts, nil)
	if err != nil {
		return err
	}
	defer c.close()

	return mcpserver.New(c.store, c.svc, c.syn).ServeStdio()
}

// Run starts daemon mode: HTTP API, SSE, file watcher, and the auto-sync
// loop, shutting down cleanly on SIGINT/SIGTERM.
func Run(ctx context.Context, opts ...Option) error {
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := bootstrap(opts, broker.PublishSyncEvent)
	if err != nil {
		return err
	}
	defer c.close()
	cfg, logger := c.cfg, c.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("sync_dir", cfg.Sync.Directory),
		slog.String("log_level", cfg.App.LogLevel.String()))

	apiRouter := api.NewRouter(c.svc, c.syn, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Signal cancellation flows through gCtx so the watcher and the
	// auto-sync loop stop alongside the HTTP server.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// File watcher keeps the index current and routes local deletions of
	// sync-managed documents into the ledger.
	g.Go(func() error {
		return index.Watch(gCtx, c.db, c.store, cfg.Vault.Path, logger, func(ev index.Event) {
			if ev.Kind == "deleted" && ev.Ref.RecordingID != "" {
				c.led.RecordDeletion(ev.Ref)
				if err := c.svc.ReconcileWatermark(); err != nil {
					logger.Warn("watermark reconcile failed", slog.String("error", err.Error()))
				}
			}
			broker.PublishNoteEvent(ev.Kind, ev.Path)
		})
	})

	// Auto-sync loop.
	g.Go(func() error {
		err := c.syn.Run(gCtx, cfg.Sync.Frequency())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
