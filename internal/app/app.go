// Package app assembles the client from a Config. Every component is built here and
// handed its collaborators explicitly; nothing is process-global.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jason-s-yu/clique/internal/api"
	"github.com/jason-s-yu/clique/internal/auth"
	"github.com/jason-s-yu/clique/internal/cache"
	"github.com/jason-s-yu/clique/internal/config"
	"github.com/jason-s-yu/clique/internal/database"
	"github.com/jason-s-yu/clique/internal/friends"
	"github.com/jason-s-yu/clique/internal/keystore"
	"github.com/jason-s-yu/clique/internal/location"
	"github.com/jason-s-yu/clique/internal/models"
	"github.com/jason-s-yu/clique/internal/statuses"
	"github.com/sirupsen/logrus"
)

// App is a fully wired client.
type App struct {
	Config   config.Config
	Logger   *logrus.Logger
	API      *api.Client
	Session  *auth.Manager
	Friends  *friends.Holder
	Statuses *statuses.Holder

	cache    cache.Store
	keystore keystore.Store
	closers  []io.Closer
}

// Deps lets callers (tests, mostly) supply components instead of building them from the
// config.
type Deps struct {
	Cache    cache.Store
	Keystore keystore.Store
	Locator  location.Provider
	Logger   *logrus.Logger
}

// New builds the client and restores any stored session. The caller must call Close.
func New(ctx context.Context, cfg config.Config, deps Deps) (*App, error) {
	a := &App{Config: cfg, Logger: deps.Logger}
	if a.Logger == nil {
		a.Logger = cfg.Logger()
	}

	a.cache = deps.Cache
	if a.cache == nil {
		store, err := a.openCache(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.cache = store
	}

	a.keystore = deps.Keystore
	if a.keystore == nil {
		ks, err := openKeystore(cfg.Keystore)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.keystore = ks
	}

	locator := deps.Locator
	if locator == nil {
		locator = locatorFor(cfg.Location)
	}

	tokens := auth.NewTokenCache(a.keystore)
	opts := []api.Option{api.WithLogger(a.Logger)}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.HTTPTimeout))
	}
	client, err := api.NewClient(cfg.BaseURL, tokens, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.API = client

	a.Session = auth.NewManager(client, tokens, a.cache, a.Logger)
	a.Friends = friends.NewHolder(client, a.cache, a.Logger)
	a.Statuses = statuses.NewHolder(client, a.cache, locator, a.Logger)
	a.Session.Register(a.Friends, a.Statuses)

	if err := a.Session.Restore(ctx); err != nil {
		a.Logger.WithError(err).Warn("failed to restore session")
	}
	if a.Session.IsLoggedIn() {
		if err := a.Friends.Load(ctx); err != nil {
			a.Logger.WithError(err).Warn("failed to load cached friends")
		}
		if err := a.Statuses.Load(ctx); err != nil {
			a.Logger.WithError(err).Warn("failed to load cached statuses")
		}
	}
	return a, nil
}

// Start runs the launch sequence: refresh the token and, if the session survived,
// republish the location when sharing is on.
func (a *App) Start(ctx context.Context) {
	a.Session.RefreshIfNeeded(ctx)
	if !a.Session.IsLoggedIn() {
		return
	}
	if err := a.Statuses.RefreshLocation(ctx); err != nil {
		a.Logger.WithError(err).Warn("failed to refresh shared location")
	}
}

// Close waits for background edits and releases the storage backends.
func (a *App) Close() error {
	if a.Friends != nil {
		a.Friends.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openCache(ctx context.Context) (cache.Store, error) {
	cfg := a.Config.Cache
	switch cfg.Backend {
	case "memory":
		return cache.NewMemory(), nil
	case "redis":
		r, err := cache.ConnectRedis(ctx, cache.RedisOptions{
			Addr:   cfg.RedisAddr,
			DB:     cfg.RedisDB,
			Prefix: cfg.Namespace + ":",
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r)
		return r, nil
	case "sqlite":
		s, err := cache.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil
	case "postgres":
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closerFunc(func() error { pool.Close(); return nil }))
		kv := database.NewKV(pool, cfg.Namespace)
		if err := kv.Migrate(ctx); err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func openKeystore(cfg config.KeystoreConfig) (keystore.Store, error) {
	switch cfg.Backend {
	case "memory":
		return keystore.NewMemory(), nil
	case "age":
		return keystore.NewAgeFile(cfg.Path), nil
	case "sealed":
		return keystore.NewSealedFile(cfg.Path, cfg.Passphrase), nil
	default:
		return nil, fmt.Errorf("unknown keystore backend %q", cfg.Backend)
	}
}

func locatorFor(cfg config.LocationConfig) location.Provider {
	if cfg.Latitude == nil || cfg.Longitude == nil {
		return location.Unavailable{}
	}
	return location.Static{Coordinate: models.Coordinate{
		Latitude:  *cfg.Latitude,
		Longitude: *cfg.Longitude,
	}}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
