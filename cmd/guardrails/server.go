package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/artpar/guardrails/internal/shell/api"
	"github.com/artpar/guardrails/internal/shell/seed"
	"github.com/artpar/guardrails/internal/shell/store"
	"github.com/artpar/guardrails/internal/shell/templates"
	"github.com/artpar/guardrails/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitSeedError       = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the guardrails application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      *store.SQLiteStore
	refresher  *workers.SeedRefresher
	logger     *slog.Logger
}

// NewServer creates a new server with the given config. It opens and
// migrates the database and applies the predefined seed file if configured.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	if err := ensureDataDir(cfg.Database.DSN); err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDatabaseError}
	}

	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	var refresher *workers.SeedRefresher
	if cfg.Seed.PredefinedFile != "" {
		applied, err := applySeed(cfg.Seed.PredefinedFile, s, logger)
		if err != nil {
			s.Close()
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      err,
				ExitCode: ExitSeedError,
			}
		}
		if cfg.Seed.RefreshInterval > 0 {
			refresher = workers.NewSeedRefresher(s, workers.SeedRefresherConfig{
				Path:     cfg.Seed.PredefinedFile,
				Interval: cfg.Seed.RefreshInterval,
			}, applied, logger)
		}
	}

	svc := templates.NewService(s, templates.NewValidator(s), logger)
	handler := api.NewHandler(svc, s, logger, api.Config{
		TenantHeader:    cfg.Tenant.Header,
		RequireTenant:   cfg.Tenant.Require,
		DefaultPageSize: cfg.API.DefaultPageSize,
		MaxPageSize:     cfg.API.MaxPageSize,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		refresher:  refresher,
		logger:     logger,
	}, nil
}

// applySeed loads and applies the seed file, returning the modification time
// of the file that was applied.
func applySeed(path string, s *store.SQLiteStore, logger *slog.Logger) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	file, err := seed.Load(path)
	if err != nil {
		return time.Time{}, err
	}
	if _, err := seed.Apply(context.Background(), s, file, logger); err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// ensureDataDir creates the parent directory of a file DSN.
func ensureDataDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if s.refresher != nil {
		s.refresher.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if s.refresher != nil {
			s.refresher.Stop()
		}
		s.store.Close()
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.refresher != nil {
		s.refresher.Stop()
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
