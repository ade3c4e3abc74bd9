// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/laguz/internal/ai"
	"github.com/starford/laguz/internal/api"
	"github.com/starford/laguz/internal/autoconsolidate"
	"github.com/starford/laguz/internal/backup"
	"github.com/starford/laguz/internal/cluster"
	"github.com/starford/laguz/internal/docservice"
	"github.com/starford/laguz/internal/planner"
	"github.com/starford/laguz/internal/sse"
	"github.com/starford/laguz/internal/storage"
	"github.com/starford/laguz/internal/watch"
)

// Runtime holds the wired components of one process.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Backups *backup.Store
	Broker  *sse.Broker
	Service *docservice.Service
}

// NewLogger builds the process logger from the application configuration.
func NewLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// stageSink forwards orchestrator state transitions to the logger and the SSE broker.
type stageSink struct {
	broker *sse.Broker
	logger *slog.Logger
}

func (s stageSink) Publish(e autoconsolidate.Event) {
	s.logger.Debug("run state",
		slog.String("root", e.Root),
		slog.String("state", string(e.State)),
		slog.String("message", e.Message))
	s.broker.PublishStage(e.Root, string(e.State), e.Message)
}

// NewRuntime wires storage, the backup store, the optional AI client, the
// orchestrator, and the document service. Close releases them.
func NewRuntime(opts ...Option) (*Runtime, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg.App, app.logOut)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("root", cfg.Consolidation.Root),
		slog.String("mode", cfg.Consolidation.Mode),
		slog.String("backup_path", cfg.Backup.Path),
		slog.Bool("ai_enabled", cfg.AI.Enabled && !app.noAI),
		slog.String("log_level", cfg.App.LogLevel.String()))

	base, err := storage.NewFS(cfg.Consolidation.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Backup.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	store, err := backup.Open(cfg.Backup.Path)
	if err != nil {
		return nil, fmt.Errorf("init backup store: %w", err)
	}

	var client *ai.Client
	if cfg.AI.Enabled && !app.noAI {
		client = ai.New(cfg.AI.ClientConfig())
	}
	clusterer := cluster.New(client,
		cluster.WithLogger(logger),
		cluster.WithTimeout(cfg.AI.Timeout))

	broker := sse.NewBroker(2 * time.Second)
	orchestrator := autoconsolidate.New(store,
		autoconsolidate.WithClusterer(clusterer),
		autoconsolidate.WithClassifier(client),
		autoconsolidate.WithEventSink(stageSink{broker: broker, logger: logger}),
		autoconsolidate.WithLogger(logger))

	svc := docservice.NewService(docservice.Deps{
		Base:         base,
		Backups:      store,
		Clusterer:    clusterer,
		Orchestrator: orchestrator,
		Defaults:     cfg.Consolidation.Options(),
		Logger:       logger,
	})

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Backups: store,
		Broker:  broker,
		Service: svc,
	}, nil
}

// Close releases the backup store and the broker.
func (rt *Runtime) Close() error {
	rt.Broker.Close()
	return rt.Backups.Close()
}

// Handler builds the HTTP handler: health checks, the API, and SSE events.
func (rt *Runtime) Handler() http.Handler {
	cfg := rt.Config

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

	r.Mount("/api", api.NewRouter(rt.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.Broker))
	return r
}

// Watch keeps DOCUMENTATION.md under root current until ctx is done.
func (rt *Runtime) Watch(ctx context.Context, root string) error {
	abs, err := rt.Service.Resolve(root)
	if err != nil {
		return err
	}
	regenerate := func(ctx context.Context) error {
		path, err := rt.Service.WriteHub(ctx, root)
		if err == nil {
			rt.Logger.Info("hub regenerated", slog.String("path", path))
		}
		return err
	}
	if err := regenerate(ctx); err != nil {
		return fmt.Errorf("initial hub: %w", err)
	}
	return watch.Watch(ctx, abs, planner.SuperReadmeFile, regenerate, rt.Logger, rt.Broker.PublishDocEvent)
}

// Serve runs the HTTP server and the hub watcher until a shutdown signal.
func (rt *Runtime) Serve(ctx context.Context) error {
	cfg := rt.Config
	logger := rt.Logger

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: rt.Handler(),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start hub watcher with SSE callback.
	g.Go(func() error {
		if err := rt.Watch(gCtx, ""); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

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
