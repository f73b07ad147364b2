// Package internal provides the main application initialization and runtime logic.
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

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/api"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/cache"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/docservice"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/index"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/mcpserver"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/sse"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/storage"
)

// core is the state shared by the HTTP and MCP modes.
type core struct {
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	reg    *cache.Registry
	svc    *docservice.Service
}

func (c *core) close() {
	c.reg.Close()
	if err := c.db.Close(); err != nil {
		c.logger.Warn("index close failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup initialises logging, storage, the index and the document registry,
// then brings the index up to date with the vault.
func (app *application) setup() (*core, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("reparse_policy", cfg.Reparse.Policy),
		slog.Int("cache_capacity", cfg.Cache.Capacity),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// Document registry: open buffers plus an LRU of files loaded from the vault.
	reg, err := cache.New(store,
		cache.WithCapacity(cfg.Cache.Capacity),
		cache.WithPolicy(cfg.Reparse.PolicyValue(), cfg.Reparse.Debounce),
		cache.WithDocumentOptions(cfg.DocumentOptions()...),
		cache.WithLogger(logger),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}

	return &core{
		logger: logger,
		store:  store,
		db:     db,
		reg:    reg,
		svc:    docservice.NewService(store, db, reg, logger),
	}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	c, err := app.setup()
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	// SSE broker fed by registry lifecycle events and vault changes.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	unsubscribe := c.reg.Subscribe(broker.Listen)
	defer unsubscribe()

	// Build API router.
	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher: drop stale cached files, then tell SSE clients.
	g.Go(func() error {
		err := index.Watch(gCtx, c.db, c.store, cfg.Vault.Path, logger, func(kind, path string) {
			c.svc.FileChanged(kind, path)
			broker.PublishChange(kind, path)
		})
		if err != nil {
			logger.Warn("watcher failed", slog.String("error", err.Error()))
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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
// Files changed on disk while it runs are picked up by the watcher.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	c, err := app.setup()
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := index.Watch(gCtx, c.db, c.store, app.config.Vault.Path, c.logger, c.svc.FileChanged); err != nil {
			c.logger.Warn("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		c.logger.Info("MCP server listening on stdio")
		return mcpserver.New(c.svc, app.version).ServeStdio()
	})
	return g.Wait()
}
