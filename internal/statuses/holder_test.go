package statuses

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jason-s-yu/clique/internal/api"
	"github.com/jason-s-yu/clique/internal/apitest"
	"github.com/jason-s-yu/clique/internal/cache"
	"github.com/jason-s-yu/clique/internal/location"
	"github.com/jason-s-yu/clique/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type fixture struct {
	srv   *apitest.Server
	store *cache.Memory
	h     *Holder
	me    string
	bob   string
}

func newFixture(t *testing.T, locator location.Provider) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	f := &fixture{srv: apitest.New(t), store: cache.NewMemory()}
	f.me = f.srv.AddAccount("alice", "pw", "Alice", "Liddell")
	f.bob = f.srv.AddAccount("bob", "pw", "Bob", "Builder")
	f.srv.MakeFriends(f.me, f.bob)

	client, err := api.NewClient(f.srv.URL(), staticToken(f.srv.IssueToken(f.me)), api.WithLogger(logger))
	require.NoError(t, err)
	f.h = NewHolder(client, f.store, locator, logger)
	return f
}

func TestFetchPartitionsAndPersists(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.SetStatus(f.bob, "🔨", "Building")
	ctx := context.Background()

	require.NoError(t, f.h.Fetch(ctx))
	current, ok := f.h.Current()
	require.True(t, ok)
	assert.Equal(t, f.me, current.ID)
	assert.True(t, current.IsCurrentUser)

	others := f.h.Others()
	require.Len(t, others, 1)
	assert.Equal(t, "Building", others[0].StatusText)
	assert.False(t, f.h.IsLoading())

	reloaded := NewHolder(nil, f.store, nil, nil)
	require.NoError(t, reloaded.Load(ctx))
	got, ok := reloaded.Current()
	require.True(t, ok)
	assert.Equal(t, current, got)
	assert.Equal(t, others, reloaded.Others())
}

func TestLoadWithEmptyCache(t *testing.T) {
	h := NewHolder(nil, cache.NewMemory(), nil, nil)
	require.NoError(t, h.Load(context.Background()))
	_, ok := h.Current()
	assert.False(t, ok)
	assert.Empty(t, h.Others())
}

func TestFetchErrorKeepsState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.h.Fetch(ctx))

	f.srv.Fail(api.PathStatuses, http.StatusServiceUnavailable)
	err := f.h.Fetch(ctx)
	assert.ErrorIs(t, err, api.ErrRequestFailed)
	assert.Equal(t, "Request failed", f.h.ErrorMessage())
	assert.Len(t, f.h.Others(), 1)
	_, ok := f.h.Current()
	assert.True(t, ok)
}

func TestNewerFetchWins(t *testing.T) {
	f := newFixture(t, nil)
	release := f.srv.Hold(api.PathStatuses)
	defer release()

	first := make(chan error, 1)
	go func() { first <- f.h.Fetch(context.Background()) }()
	require.Eventually(t, func() bool { return f.srv.Calls(api.PathStatuses) == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- f.h.Fetch(context.Background()) }()

	assert.ErrorIs(t, <-first, ErrSuperseded)
	_, ok := f.h.Current()
	assert.False(t, ok, "superseded fetch writes nothing")

	require.Eventually(t, func() bool { return f.srv.Calls(api.PathStatuses) == 2 }, time.Second, 5*time.Millisecond)
	f.srv.SetStatus(f.bob, "", "Latest")
	release()

	require.NoError(t, <-second)
	others := f.h.Others()
	require.Len(t, others, 1)
	assert.Equal(t, "Latest", others[0].StatusText)
}

func TestCancelledFetchWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	release := f.srv.Hold(api.PathStatuses)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.h.Fetch(ctx) }()
	require.Eventually(t, func() bool { return f.srv.Calls(api.PathStatuses) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Empty(t, f.h.Others())
	assert.Empty(t, f.h.ErrorMessage())
	assert.False(t, f.h.IsLoading())
}

func TestPurge(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.h.Fetch(context.Background()))

	release := f.srv.Hold(api.PathStatuses)
	defer release()
	errc := make(chan error, 1)
	go func() { errc <- f.h.Fetch(context.Background()) }()
	require.Eventually(t, func() bool { return f.srv.Calls(api.PathStatuses) == 2 }, time.Second, 5*time.Millisecond)

	f.h.Purge()
	assert.ErrorIs(t, <-errc, ErrSuperseded)
	_, ok := f.h.Current()
	assert.False(t, ok)
	assert.Empty(t, f.h.Others())
}

// stubGateway answers FetchStatuses with a fixed list and records updates.
type stubGateway struct {
	statuses []models.Status
	err      error
}

func (g *stubGateway) FetchStatuses(context.Context) ([]models.Status, error) { return g.statuses, nil }
func (g *stubGateway) UpdateStatus(context.Context, string, string) error      { return g.err }
func (g *stubGateway) UpdateIconColor(context.Context, models.IconColor) error { return g.err }
func (g *stubGateway) UpdateLocation(context.Context, models.Coordinate) error { return g.err }
func (g *stubGateway) ClearLocation(context.Context) error                     { return g.err }

func TestUpdateCurrentStatusOptimistically(t *testing.T) {
	wave := "👋"
	lat, lon := 10.0, 20.0
	g := &stubGateway{statuses: []models.Status{
		{ID: "u1", StatusText: "Hello", StatusEmoji: &wave, FirstName: "Ada", LastName: "L", IsCurrentUser: true, Latitude: &lat, Longitude: &lon},
		{ID: "u2", StatusText: "Other", FirstName: "Bo"},
	}}
	store := cache.NewMemory()
	h := NewHolder(g, store, nil, nil)
	ctx := context.Background()

	assert.False(t, h.UpdateCurrentStatusOptimistically(ctx, "🎉", "Party"), "nothing to patch yet")

	require.NoError(t, h.Fetch(ctx))
	require.True(t, h.UpdateCurrentStatusOptimistically(ctx, "🎉", "Party"))

	current, _ := h.Current()
	assert.Equal(t, "u1", current.ID)
	assert.Equal(t, "🎉", current.Emoji())
	assert.Equal(t, "Party", current.StatusText)
	assert.Equal(t, "Ada", current.FirstName)
	assert.True(t, current.IsCurrentUser)
	_, ok := current.Location()
	assert.True(t, ok)

	var cached models.Status
	require.NoError(t, cache.GetJSON(ctx, store, cache.CurrentUserStatusKey, &cached))
	assert.Equal(t, current, cached)
	assert.Equal(t, []models.Status{g.statuses[1]}, h.Others())
}

func TestFetchWithoutCurrentUserClearsCachedStatus(t *testing.T) {
	g := &stubGateway{statuses: []models.Status{{ID: "u1", IsCurrentUser: true}}}
	store := cache.NewMemory()
	h := NewHolder(g, store, nil, nil)
	ctx := context.Background()
	require.NoError(t, h.Fetch(ctx))

	g.statuses = []models.Status{{ID: "u2"}}
	require.NoError(t, h.Fetch(ctx))
	_, ok := h.Current()
	assert.False(t, ok)
	_, err := store.Get(ctx, cache.CurrentUserStatusKey)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestFetchWarnsOnDuplicateCurrentUser(t *testing.T) {
	logger, hook := test.NewNullLogger()
	g := &stubGateway{statuses: []models.Status{
		{ID: "u1", StatusText: "first", IsCurrentUser: true},
		{ID: "u2", StatusText: "friend"},
		{ID: "u3", StatusText: "second", IsCurrentUser: true},
	}}
	h := NewHolder(g, cache.NewMemory(), nil, logger)
	require.NoError(t, h.Fetch(context.Background()))

	current, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, "u1", current.ID)
	assert.Equal(t, []models.Status{g.statuses[1]}, h.Others())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "u1", entry.Data["kept_id"])
	assert.Equal(t, "u3", entry.Data["dropped_id"])
}

func TestUpdateStatusAgainstServer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.h.Fetch(ctx))

	require.NoError(t, f.h.UpdateStatus(ctx, "☕", "Coffee"))
	current, _ := f.h.Current()
	assert.Equal(t, "Coffee", current.StatusText)

	// the server agrees
	require.NoError(t, f.h.Fetch(ctx))
	current, _ = f.h.Current()
	assert.Equal(t, "☕", current.Emoji())

	f.srv.Fail(api.PathUpdateStatus, http.StatusInternalServerError)
	assert.Error(t, f.h.UpdateStatus(ctx, "", "Nope"))
	current, _ = f.h.Current()
	assert.Equal(t, "Coffee", current.StatusText, "a rejected update leaves the local copy alone")
	assert.Equal(t, "Request failed", f.h.ErrorMessage())
}

func TestUpdateIconColor(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.h.Fetch(ctx))

	require.NoError(t, f.h.UpdateIconColor(ctx, models.IconPurple))
	current, _ := f.h.Current()
	assert.Equal(t, models.IconPurple, models.ColorOf(current.IconColor))

	// unknown colours fall back to blue before they reach the server
	require.NoError(t, f.h.UpdateIconColor(ctx, models.IconColor("plaid")))
	require.NoError(t, f.h.Fetch(ctx))
	current, _ = f.h.Current()
	assert.Equal(t, models.IconBlue, models.ColorOf(current.IconColor))

	g := &stubGateway{err: errors.New("offline")}
	h := NewHolder(g, cache.NewMemory(), nil, nil)
	assert.Error(t, h.UpdateIconColor(ctx, models.IconRed))
	assert.Equal(t, "offline", h.ErrorMessage())
}
