package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jason-s-yu/clique/internal/api"
	"github.com/jason-s-yu/clique/internal/apitest"
	"github.com/jason-s-yu/clique/internal/cache"
	"github.com/jason-s-yu/clique/internal/config"
	"github.com/jason-s-yu/clique/internal/keystore"
	"github.com/jason-s-yu/clique/internal/location"
	"github.com/jason-s-yu/clique/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, baseURL string) config.Config {
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.LogLevel = "panic"
	cfg.Cache.SQLitePath = filepath.Join(t.TempDir(), "cache.db")
	cfg.Keystore.Path = filepath.Join(t.TempDir(), "keys")
	return cfg
}

func TestSessionSurvivesRestart(t *testing.T) {
	srv := apitest.New(t)
	alice := srv.AddAccount("alice", "pw", "Alice", "Liddell")
	bob := srv.AddAccount("bob", "pw", "Bob", "Builder")
	srv.MakeFriends(alice, bob)
	cfg := testConfig(t, srv.URL())
	ctx := context.Background()

	a, err := New(ctx, cfg, Deps{})
	require.NoError(t, err)
	assert.False(t, a.Session.IsLoggedIn())
	require.NoError(t, a.Session.Login(ctx, "alice", "pw"))
	require.NoError(t, a.Friends.FetchAll(ctx))
	require.NoError(t, a.Statuses.Fetch(ctx))
	require.NoError(t, a.Close())

	// sqlite cache and age keystore carry the session over
	b, err := New(ctx, cfg, Deps{})
	require.NoError(t, err)
	defer b.Close()
	require.True(t, b.Session.IsLoggedIn())
	u, _ := b.Session.CurrentUser()
	assert.Equal(t, alice, u.ID)
	assert.Len(t, b.Friends.Friends(), 1, "cached friends are loaded")
	assert.Len(t, b.Statuses.Others(), 1, "cached statuses are loaded")

	b.Start(ctx)
	assert.True(t, b.Session.IsLoggedIn())
	assert.Equal(t, 1, srv.Calls(api.PathRefreshToken))
}

func TestLogoutPurgesHolders(t *testing.T) {
	srv := apitest.New(t)
	alice := srv.AddAccount("alice", "pw", "Alice", "Liddell")
	bob := srv.AddAccount("bob", "pw", "Bob", "Builder")
	srv.MakeFriends(alice, bob)
	ctx := context.Background()

	store := cache.NewMemory()
	a, err := New(ctx, testConfig(t, srv.URL()), Deps{
		Cache:    store,
		Keystore: keystore.NewMemory(),
		Logger:   logrus.New(),
	})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Session.Login(ctx, "alice", "pw"))
	require.NoError(t, a.Friends.FetchAll(ctx))
	require.NoError(t, a.Statuses.Fetch(ctx))
	require.NotEmpty(t, a.Friends.Friends())

	require.NoError(t, a.Session.Logout(ctx))
	assert.Empty(t, a.Friends.Friends())
	assert.Empty(t, a.Statuses.Others())
	_, ok := a.Statuses.Current()
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestStartRepublishesLocation(t *testing.T) {
	srv := apitest.New(t)
	srv.AddAccount("alice", "pw", "Alice", "Liddell")
	ctx := context.Background()
	store := cache.NewMemory()

	a, err := New(ctx, testConfig(t, srv.URL()), Deps{
		Cache:    store,
		Keystore: keystore.NewMemory(),
		Locator:  location.Static{Coordinate: models.Coordinate{Latitude: 1, Longitude: 1}},
	})
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Session.Login(ctx, "alice", "pw"))
	require.NoError(t, cache.SetJSON(ctx, store, cache.ShareLocationKey, true))

	a.Start(ctx)
	assert.Equal(t, 1, srv.Calls(api.PathUpdateLocation))
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	cfg.Cache.Backend = "etcd"
	_, err := New(context.Background(), cfg, Deps{})
	assert.ErrorContains(t, err, "unknown cache backend")

	cfg = testConfig(t, "http://localhost")
	cfg.Keystore.Backend = "vault"
	_, err = New(context.Background(), cfg, Deps{Cache: cache.NewMemory()})
	assert.ErrorContains(t, err, "unknown keystore backend")

	cfg = testConfig(t, "not a url")
	_, err = New(context.Background(), cfg, Deps{Cache: cache.NewMemory(), Keystore: keystore.NewMemory()})
	assert.ErrorIs(t, err, api.ErrInvalidURL)
}

func TestLocatorFor(t *testing.T) {
	assert.Equal(t, location.Unavailable{}, locatorFor(config.LocationConfig{}))
	lat, lon := 1.0, 2.0
	assert.Equal(t,
		location.Static{Coordinate: models.Coordinate{Latitude: 1, Longitude: 2}},
		locatorFor(config.LocationConfig{Latitude: &lat, Longitude: &lon}))
}
