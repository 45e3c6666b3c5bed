// Package app assembles the snippet engine from configuration.
//
// Both entry points (the HTTP server and the CLI) need the same chain:
//
//	config.Config → repository.Store → source.Source → service.SnippetService
//
// App builds it once and owns what must be closed afterwards.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/snippet-box/internal/config"
	"github.com/sakif/snippet-box/internal/metrics"
	"github.com/sakif/snippet-box/internal/repository"
	badgerRepo "github.com/sakif/snippet-box/internal/repository/badger"
	"github.com/sakif/snippet-box/internal/repository/memory"
	sqliteRepo "github.com/sakif/snippet-box/internal/repository/sqlite"
	"github.com/sakif/snippet-box/internal/service"
	"github.com/sakif/snippet-box/internal/source"
)

// App is a loaded snippet engine.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    repository.Store
	Source   source.Source
	Metrics  *metrics.Metrics
	Snippets *service.SnippetService

	closer io.Closer
}

// New opens the configured store, loads the persisted collection and returns
// the assembled App. A load failure is logged and leaves the collection empty;
// it does not fail New.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, closer, err := OpenStore(cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Source:  NewSource(cfg.Source),
		Metrics: metrics.New(),
		closer:  closer,
	}
	a.Snippets = service.NewSnippetService(store, logger,
		service.WithSource(a.Source),
		service.WithMetrics(a.Metrics),
	)

	if err := a.Snippets.Load(ctx); err != nil {
		logger.Warn("starting with an empty collection", slog.String("error", err.Error()))
	}
	return a, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// OpenStore opens the store named by cfg.Driver. The closer is nil for stores
// that hold no resources.
func OpenStore(cfg config.StoreConfig, logger *slog.Logger) (repository.Store, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.Path != ":memory:" {
			if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
				return nil, nil, err
			}
		}
		db, err := sqliteRepo.New(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("app: opening sqlite store: %w", err)
		}
		logger.Debug("sqlite store opened", slog.String("path", cfg.Path))
		return db, db, nil

	case config.DriverBadger:
		if cfg.Path != "" {
			if err := ensureDir(cfg.Path); err != nil {
				return nil, nil, err
			}
		}
		st, err := badgerRepo.Open(cfg.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("app: opening badger store: %w", err)
		}
		return st, st, nil

	case config.DriverMemory:
		return memory.New(), nil, nil
	}
	return nil, nil, fmt.Errorf("app: unknown store driver %q", cfg.Driver)
}

// NewSource picks the snippet source: a URL first, then a file, then the
// list compiled into the binary.
func NewSource(cfg config.SourceConfig) source.Source {
	switch {
	case cfg.URL != "":
		return source.NewHTTP(cfg.URL, source.WithRateLimit(cfg.Rate))
	case cfg.File != "":
		return source.NewFile(cfg.File)
	default:
		return source.Bundled()
	}
}

// WatchFile starts a watcher on the file source, if there is one, calling
// onChange whenever the file is rewritten. It returns nil when the source is
// not a file.
func (a *App) WatchFile(onChange func()) (*source.Watcher, error) {
	f, ok := a.Source.(*source.File)
	if !ok {
		return nil, nil
	}
	w, err := source.NewWatcher(f.Path(), func(path string) {
		a.Logger.Info("snippet file changed", slog.String("path", path))
		onChange()
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("app: watching %s: %w", f.Path(), err)
	}
	w.StartAsync()
	return w, nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("app: creating %s: %w", dir, err)
	}
	return nil
}
