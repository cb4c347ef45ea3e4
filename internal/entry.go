// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/fabric-mcp/internal/analytics"
	"github.com/starford/fabric-mcp/internal/api"
	"github.com/starford/fabric-mcp/internal/fabric"
	"github.com/starford/fabric-mcp/internal/ledger"
	"github.com/starford/fabric-mcp/internal/mcpserver"
	"github.com/starford/fabric-mcp/internal/sse"
	"github.com/starford/fabric-mcp/internal/storage"
)

const (
	shutdownTimeout   = 10 * time.Second
	memoThrottle      = 2 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Stdout carries MCP frames in stdio mode, so logs go to stderr there.
	out := app.logOutput
	if out == nil {
		out = os.Stdout
		if cfg.App.Transport == TransportStdio {
			out = os.Stderr
		}
	}
	logger := newLogger(out, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("transport", cfg.App.Transport),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("storage_key", cfg.Storage.DocumentKey()),
		slog.String("workspace_id", cfg.Fabric.WorkspaceID),
		slog.String("lakehouse_id", cfg.Fabric.LakehouseID),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage.
	store, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close storage", slog.String("error", err.Error()))
		}
	}()

	// Fabric client and analytics service.
	httpClient := &http.Client{Timeout: cfg.Fabric.HTTPTimeout}
	tokens := fabric.NewTokenCache(cfg.Fabric.Credentials(), cfg.Fabric.AuthorityURL, cfg.Fabric.Scope, httpClient)
	client := fabric.NewClient(cfg.Fabric.BaseURL, cfg.Fabric.WorkspaceID, cfg.Fabric.LakehouseID, tokens, httpClient)
	svc := analytics.NewService(client, cfg.Fabric.QueryTimeout, logger)

	// SSE broker.
	broker := sse.NewBroker(memoThrottle)
	defer broker.Close()

	// Insight ledger, loaded once per process.
	memo := ledger.New(store,
		ledger.WithKey(cfg.Storage.DocumentKey()),
		ledger.WithPersistTimeout(cfg.Storage.Timeout),
		ledger.WithLogger(logger),
		ledger.WithObserver(broker.PublishInsight),
		ledger.WithFailureObserver(broker.PublishPersistFailed),
	)
	memo.Load(ctx)

	mcpSrv := mcpserver.New(svc, memo, logger)

	switch cfg.App.Transport {
	case TransportHTTP:
		err = serveHTTP(ctx, cfg, logger, newRouter(cfg, store, svc, memo, broker, mcpSrv))
	default:
		err = serveStdio(ctx, logger, mcpSrv)
	}
	if err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// openStore builds the configured document store. The returned func
// releases it.
func openStore(cfg StorageConfig) (storage.Provider, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case BackendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case BackendAzBlob:
		blob, err := storage.NewAzureBlob(cfg.AzBlob.AccountName, cfg.AzBlob.AccountKey, cfg.AzBlob.Container, cfg.AzBlob.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		return blob, noop, nil
	case BackendFS, "":
		fs, err := storage.NewFS(cfg.FS.Root)
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func serveStdio(ctx context.Context, logger *slog.Logger, srv *mcpserver.Server) error {
	logger.Info("Serving MCP on stdio")
	if err := srv.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server error: %w", err)
	}
	return nil
}

// newRouter builds the HTTP surface: health probes, the REST shim under
// /api and the MCP streamable-HTTP endpoint at /mcp.
func newRouter(cfg *Config, store storage.Provider, svc *analytics.Service, memo *ledger.Ledger, broker *sse.Broker, mcpSrv *mcpserver.Server) chi.Router {
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
	r.Get("/health/ready", readyHandler(store, cfg.Storage.DocumentKey(), memo, broker))

	// Mount API routes under /api; the SSE feed lives at /api/events.
	r.Mount("/api", api.NewRouter(api.NewHandler(svc, memo), cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	// MCP streamable HTTP shares the bearer token with the REST shim.
	mcpHandler := api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)(mcpSrv.HTTPHandler())
	r.Handle("/mcp", mcpHandler)

	return r
}

// readyHandler reports memo state. When the store records checksums it also
// reports whether the persisted document matches the in-memory version; a
// store error makes the probe fail.
func readyHandler(store storage.Provider, key string, memo *ledger.Ledger, broker *sse.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]any{
			"status":          "ok",
			"insights":        memo.Count(),
			"version":         memo.Version(),
			"sse_subscribers": broker.ClientCount(),
		}
		if cs, ok := store.(storage.Checksummer); ok {
			stored, err := cs.Checksum(r.Context(), key)
			if err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
				body["error"] = err.Error()
			} else {
				body["stored_version"] = stored
				body["in_sync"] = stored == memo.Version()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func serveHTTP(ctx context.Context, cfg *Config, logger *slog.Logger, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		// Cancelled on signal so open SSE streams end before Shutdown waits on them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down on signal or when the server fails.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	return g.Wait()
}
