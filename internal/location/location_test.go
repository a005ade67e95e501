package location

import (
	"context"
	"errors"
	"testing"

	"github.com/jason-s-yu/clique/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviders(t *testing.T) {
	ctx := context.Background()
	want := models.Coordinate{Latitude: 37.77, Longitude: -122.42}

	got, err := Static{Coordinate: want}.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Denied{}.Current(ctx)
	assert.ErrorIs(t, err, ErrAuthorizationDenied)

	_, err = Unavailable{}.Current(ctx)
	assert.ErrorIs(t, err, ErrLocationUnavailable)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Static{Coordinate: want}.Current(cancelled)
	var failed *FailedError
	require.True(t, errors.As(err, &failed))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(models.Coordinate{Latitude: 90, Longitude: -180}))
	assert.NoError(t, Validate(models.Coordinate{}))
	assert.ErrorIs(t, Validate(models.Coordinate{Latitude: 90.1}), ErrLocationUnavailable)
	assert.ErrorIs(t, Validate(models.Coordinate{Longitude: 181}), ErrLocationUnavailable)
}
