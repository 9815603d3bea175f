package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/internal/collab"
	"github.com/xkilldash9x/cartographer/internal/config"
	"github.com/xkilldash9x/cartographer/internal/engine"
	"github.com/xkilldash9x/cartographer/internal/graph"
	"github.com/xkilldash9x/cartographer/internal/guard"
	"github.com/xkilldash9x/cartographer/internal/observability"
	"github.com/xkilldash9x/cartographer/internal/store"
)

// Components holds the initialized services for one exploration run and
// centralizes their lifecycle.
type Components struct {
	Store   store.DocumentStore
	Browser *collab.Browser
	Guard   *guard.Guard
	Session *engine.Session
	DBPool  *pgxpool.Pool
}

// Shutdown releases resources in reverse dependency order.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()

	if c.Browser != nil {
		c.Browser.Close()
		logger.Debug("Browser closed.")
	}
	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}
}

// newComponents performs the full dependency injection for an exploration
// run: store backend, browser, collaborators, retry guard and the session.
func newComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	logger := observability.GetLogger()
	components := &Components{}

	// Ensure partial initialization is cleaned up on failure.
	var initErr error
	defer func() {
		if initErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initErr))
			components.Shutdown()
		}
	}()

	// 1. Document store.
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			initErr = fmt.Errorf("failed to create database connection pool: %w", err)
			return nil, initErr
		}
		components.DBPool = pool

		pgStore, err := store.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			initErr = err
			return nil, initErr
		}
		if err := pgStore.EnsureSchema(ctx); err != nil {
			initErr = err
			return nil, initErr
		}
		components.Store = pgStore
	default:
		fileStore, err := store.NewFileStore(cfg.Store.DataDir, logger)
		if err != nil {
			initErr = err
			return nil, initErr
		}
		components.Store = fileStore
	}
	logger.Debug("Document store initialized.", zap.String("backend", cfg.Store.Backend))

	// 2. Browser and collaborators.
	browser, err := collab.NewBrowser(ctx, cfg.Browser, logger)
	if err != nil {
		initErr = fmt.Errorf("failed to launch browser: %w", err)
		return nil, initErr
	}
	components.Browser = browser

	capturer, err := collab.NewScreenCapturer(browser, cfg.Store.DataDir, logger)
	if err != nil {
		initErr = err
		return nil, initErr
	}
	detector := collab.NewDOMDetector(browser, logger)
	activator := collab.NewClickActivator(browser, logger)
	logger.Debug("Browser collaborators initialized.")

	// 3. Retry guard with its per-app attempt log.
	attemptLog := filepath.Join(cfg.Store.DataDir, graph.Slugify(cfg.Explore.AppName)+"_attempts.json")
	gd, err := guard.New(cfg.Guard, attemptLog, guard.NewPixelComparator(), logger)
	if err != nil {
		initErr = fmt.Errorf("failed to initialize retry guard: %w", err)
		return nil, initErr
	}
	components.Guard = gd

	// 4. Session.
	session, err := engine.NewSession(cfg, components.Store, capturer, detector, activator, nil, gd, logger)
	if err != nil {
		initErr = err
		return nil, initErr
	}
	components.Session = session

	logger.Info("All exploration components initialized.")
	return components, nil
}

// newReportStore builds only the document store, for read-side commands that
// need no browser.
func newReportStore(ctx context.Context, cfg *config.Config) (store.DocumentStore, func(), error) {
	logger := observability.GetLogger()

	if cfg.Store.Backend == "postgres" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
		}
		pgStore, err := store.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pgStore, pool.Close, nil
	}

	fileStore, err := store.NewFileStore(cfg.Store.DataDir, logger)
	if err != nil {
		return nil, nil, err
	}
	return fileStore, func() {}, nil
}
