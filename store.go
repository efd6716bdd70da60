package aoide

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/aoide/internal/adapters/file"
	"github.com/aretw0/aoide/internal/config"
	"github.com/aretw0/aoide/pkg/adapters/memory"
	"github.com/aretw0/aoide/pkg/adapters/redis"
	"github.com/aretw0/aoide/pkg/adapters/sqlite"
	"github.com/aretw0/aoide/pkg/persistence/middleware"
	"github.com/aretw0/aoide/pkg/ports"
)

// OpenedStore is a project store built from config, with what it needs
// released on shutdown.
type OpenedStore struct {
	Store ports.ProjectStore
	// Locker is set for backends shared between replicas.
	Locker ports.DistributedLocker
	// Sink is set for backends that also keep log events.
	Sink    ports.EventSink
	Closers []io.Closer
}

// Close releases every resource held by the store.
func (o OpenedStore) Close() error {
	var errs []error
	for _, c := range o.Closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// OpenStore builds the project store named by cfg.Store and wraps it with
// the configured middlewares.
func OpenStore(cfg config.Config, logger *slog.Logger) (OpenedStore, error) {
	opened, err := openBackend(cfg, logger)
	if err != nil {
		return OpenedStore{}, err
	}
	mws, err := storeMiddlewares(cfg)
	if err != nil {
		if cerr := opened.Close(); cerr != nil {
			logger.Warn("failed to release store", "err", cerr)
		}
		return OpenedStore{}, err
	}
	opened.Store = middleware.Chain(opened.Store, mws...)
	return opened, nil
}

var openBackend = func(cfg config.Config, logger *slog.Logger) (OpenedStore, error) {
	var opened OpenedStore

	switch cfg.Store {
	case config.StoreMemory:
		opened.Store = memory.NewStore()
	case config.StoreFile, "":
		opened.Store = file.New(cfg.StorePath)
	case config.StoreRedis:
		rs := redis.New(cfg.RedisAddr, cfg.RedisPassword, 0)
		opened.Store = rs
		opened.Locker = redis.NewLocker(rs.Client(), redis.DefaultPrefix)
		opened.Closers = append(opened.Closers, rs)
	case config.StoreSQLite:
		path := cfg.StorePath
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "aoide.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return OpenedStore{}, fmt.Errorf("create store dir: %w", err)
		}
		db, err := sqlite.Open(path, logger)
		if err != nil {
			return OpenedStore{}, err
		}
		opened.Store = db
		opened.Sink = db
		opened.Closers = append(opened.Closers, db)
	default:
		return OpenedStore{}, fmt.Errorf("unknown store %q", cfg.Store)
	}

	return opened, nil
}

func storeMiddlewares(cfg config.Config) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if cfg.RedactSecrets {
		mw, err := middleware.NewRedactMiddleware(middleware.DefaultSecretPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.EncryptionKey != "" {
		key, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}
