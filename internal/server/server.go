// Package server assembles the examgate HTTP server: persistence backend,
// stores, lifecycle controller and HTTP surfaces.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite"

	"github.com/proctorhq/examgate/pkg/admin"
	"github.com/proctorhq/examgate/pkg/database/migrate"
	"github.com/proctorhq/examgate/pkg/examapi"
	"github.com/proctorhq/examgate/pkg/examcfg"
	examcfgpg "github.com/proctorhq/examgate/pkg/examcfg/postgres"
	examcfgsqlite "github.com/proctorhq/examgate/pkg/examcfg/sqlite"
	"github.com/proctorhq/examgate/pkg/health"
	"github.com/proctorhq/examgate/pkg/platform"
	"github.com/proctorhq/examgate/pkg/scoring"
	"github.com/proctorhq/examgate/pkg/session"
	sessionpg "github.com/proctorhq/examgate/pkg/session/postgres"
	sessionsqlite "github.com/proctorhq/examgate/pkg/session/sqlite"
)

// Version is set at build time.
var Version = "dev"

// Server is the assembled examgate service.
type Server struct {
	cfg     *platform.Config
	db      *sql.DB
	http    *http.Server
	checker *health.Checker
}

// New creates a Server from the given configuration: it opens the configured
// database, applies migrations and mounts all routes.
func New(cfg *platform.Config) (*Server, error) {
	db, sessStore, cfgStore, err := openBackend(cfg.Database)
	if err != nil {
		return nil, err
	}

	svc := session.NewService(session.ServiceConfig{Store: sessStore})
	checker := health.NewChecker(cfg.Database.Driver)

	s := &Server{
		cfg:     cfg,
		db:      db,
		checker: checker,
		http: &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           buildMux(cfg, cfgStore, svc, checker),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	return s, nil
}

// openBackend opens the configured database, runs migrations and builds the
// matching store implementations. The rest of the server only sees the store
// interfaces and never branches on the driver again.
func openBackend(cfg platform.DatabaseConfig) (*sql.DB, session.Store, examcfg.Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("pinging postgres: %w", err)
		}
		if err := migrate.Run(db, migrate.Postgres); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return db, sessionpg.New(db), examcfgpg.New(db), nil

	case "sqlite":
		dsn := filepath.Clean(cfg.Path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("pinging sqlite: %w", err)
		}
		if err := migrate.Run(db, migrate.SQLite); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return db, sessionsqlite.New(db), examcfgsqlite.New(db), nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

// buildMux mounts every HTTP surface. Candidate session routes carry the exam
// gate inside the examapi handler; admin routes carry Basic auth.
func buildMux(cfg *platform.Config, cfgStore examcfg.Store, svc *session.Service, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", checker.LivenessHandler())
	mux.HandleFunc("GET /readyz", checker.ReadinessHandler())

	candidate := examapi.NewHandler(examapi.Config{
		ConfigStore: cfgStore,
		Sessions:    svc,
	})
	mux.Handle("/api/config", candidate)
	mux.Handle("/api/session/", candidate)

	adminHandler := admin.NewHandler(admin.Config{
		ConfigStore: cfgStore,
		Sessions:    svc,
		Auth: &admin.BasicAuthenticator{
			Username: cfg.Admin.Username,
			Password: cfg.Admin.Password,
		},
	})
	mux.Handle("/api/admin/", adminHandler)

	if scoringCfg := scoring.Config(cfg.Scoring); scoringCfg.Enabled() {
		scorer := scoring.New(scoringCfg)
		mux.HandleFunc("POST /api/score-writing", scorer.Handler())
	}

	return mux
}

// Handler exposes the root handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves HTTP until the context is canceled, then drains gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("examgate listening",
			"address", s.cfg.Server.Address,
			"backend", s.cfg.Database.Driver,
			"version", Version)
		errCh <- s.http.ListenAndServe()
	}()
	s.checker.SetReady()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.checker.SetDraining()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	slog.Info("examgate stopped")
	return nil
}

// Close releases the database handle.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
