package statuses

import (
	"context"
	"testing"

	"github.com/jason-s-yu/clique/internal/api"
	"github.com/jason-s-yu/clique/internal/cache"
	"github.com/jason-s-yu/clique/internal/location"
	"github.com/jason-s-yu/clique/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationSharing(t *testing.T) {
	here := models.Coordinate{Latitude: 48.8566, Longitude: 2.3522}
	f := newFixture(t, location.Static{Coordinate: here})
	ctx := context.Background()
	require.NoError(t, f.h.Fetch(ctx))
	assert.False(t, f.h.ShareLocation(ctx))

	require.NoError(t, f.h.SetLocationSharing(ctx, true))
	assert.True(t, f.h.ShareLocation(ctx))
	current, _ := f.h.Current()
	loc, ok := current.Location()
	require.True(t, ok)
	assert.Equal(t, here, loc)

	require.NoError(t, f.h.Fetch(ctx))
	current, _ = f.h.Current()
	loc, ok = current.Location()
	require.True(t, ok, "server kept the location")
	assert.Equal(t, here, loc)

	require.NoError(t, f.h.SetLocationSharing(ctx, false))
	assert.False(t, f.h.ShareLocation(ctx))
	current, _ = f.h.Current()
	_, ok = current.Location()
	assert.False(t, ok)
	assert.Equal(t, 1, f.srv.Calls(api.PathClearLocation))
}

func TestLocationSharingDenied(t *testing.T) {
	f := newFixture(t, location.Denied{})
	ctx := context.Background()

	err := f.h.SetLocationSharing(ctx, true)
	assert.ErrorIs(t, err, location.ErrAuthorizationDenied)
	assert.False(t, f.h.ShareLocation(ctx))
	assert.Contains(t, f.h.ErrorMessage(), "Location access denied")
	assert.Zero(t, f.srv.Calls(api.PathUpdateLocation))
}

func TestLocationOutOfRangeIsRejected(t *testing.T) {
	f := newFixture(t, location.Static{Coordinate: models.Coordinate{Latitude: 123}})
	err := f.h.SetLocationSharing(context.Background(), true)
	assert.ErrorIs(t, err, location.ErrLocationUnavailable)
	assert.Zero(t, f.srv.Calls(api.PathUpdateLocation))
}

func TestRefreshLocation(t *testing.T) {
	f := newFixture(t, location.Static{Coordinate: models.Coordinate{Latitude: 1, Longitude: 2}})
	ctx := context.Background()

	require.NoError(t, f.h.RefreshLocation(ctx))
	assert.Zero(t, f.srv.Calls(api.PathUpdateLocation), "nothing is sent while sharing is off")

	require.NoError(t, cache.SetJSON(ctx, f.store, cache.ShareLocationKey, true))
	require.NoError(t, f.h.RefreshLocation(ctx))
	assert.Equal(t, 1, f.srv.Calls(api.PathUpdateLocation))
}
