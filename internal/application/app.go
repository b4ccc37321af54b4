// Package application wires configuration, definitions, the target store
// and the run service together for the commands.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/dataimport/internal/admin"
	"github.com/JonMunkholm/dataimport/internal/config"
	"github.com/JonMunkholm/dataimport/internal/definition"
	"github.com/JonMunkholm/dataimport/internal/jobs"
	"github.com/JonMunkholm/dataimport/internal/source"
	"github.com/JonMunkholm/dataimport/internal/store"
)

// App holds the long-lived collaborators of a process.
type App struct {
	Config  *config.Config
	Catalog *definition.Catalog
	Jobs    *jobs.Service
	Admin   *admin.Resetter

	pool   *pgxpool.Pool
	memory *store.Memory
}

// Open loads the definitions, connects the target store and creates the run
// service. Definition files that fail to load are logged and skipped.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	catalog, err := definition.LoadDir(cfg.Import.DefinitionsDir)
	if err != nil {
		slog.Warn("some import definitions were not loaded", "dir", cfg.Import.DefinitionsDir, "error", err)
	}
	if catalog == nil {
		catalog = definition.NewCatalog()
	}
	slog.Info("definitions loaded", "count", catalog.Len(), "groups", len(catalog.Groups()))
	for _, group := range catalog.Groups() {
		slog.Debug("definition group", "group", group, "definitions", len(catalog.ByGroup(group)))
	}

	app := &App{Config: cfg, Catalog: catalog}

	var factory jobs.StoreFactory
	if cfg.Database.Enabled() {
		pool, err := connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		app.pool = pool
		factory = func(context.Context) (jobs.Store, error) {
			return store.NewPostgres(pool), nil
		}
		app.Admin = admin.NewResetter(store.NewPostgres(pool))
	} else {
		slog.Info("no database configured, using the in-memory store")
		app.memory = store.NewMemory()
		factory = func(context.Context) (jobs.Store, error) {
			return app.memory, nil
		}
		app.Admin = admin.NewResetter(app.memory)
	}

	if cfg.Import.CreateRoots {
		if err := app.createRoots(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}

	env := source.Env{
		MediaPrefix:    cfg.Import.MediaPrefix,
		BaseDir:        cfg.Import.BaseDir,
		MaxFileSize:    cfg.Import.MaxFileSize,
		StrictEncoding: cfg.Import.StrictEncoding,
	}
	if app.pool != nil {
		env.Pool = app.pool
	}

	svc, err := jobs.NewService(jobs.Options{
		Catalog:       catalog,
		NewStore:      factory,
		Env:           env,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		RunTimeout:    cfg.Import.RunTimeout,
		Retention:     cfg.Import.ResultRetention,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Jobs = svc
	return app, nil
}

// Memory returns the in-memory store, or nil when a database is configured.
func (a *App) Memory() *store.Memory {
	return a.memory
}

// Close releases the database pool.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// createRoots makes sure the root container of every definition exists.
func (a *App) createRoots(ctx context.Context) error {
	var errs []error
	for _, def := range a.Catalog.All() {
		if a.memory != nil {
			a.memory.EnsurePath(def.Root)
			continue
		}
		if _, err := store.NewPostgres(a.pool).EnsurePath(ctx, def.Root); err != nil {
			errs = append(errs, fmt.Errorf("create root %s for %s: %w", def.Root, def.Key, err))
		}
	}
	return errors.Join(errs...)
}

func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// Reset wipes all imported content and recreates the definition roots when
// CreateRoots is set.
func (a *App) Reset(ctx context.Context) error {
	if err := a.Admin.ResetAll(ctx); err != nil {
		return err
	}
	if a.Config.Import.CreateRoots {
		return a.createRoots(ctx)
	}
	return nil
}
