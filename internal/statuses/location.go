// internal/statuses/location.go
package statuses

import (
	"context"
	"errors"

	"github.com/jason-s-yu/clique/internal/cache"
	"github.com/jason-s-yu/clique/internal/location"
	"github.com/jason-s-yu/clique/internal/models"
)

// ShareLocation reports the stored location-sharing preference. Off when never set.
func (h *Holder) ShareLocation(ctx context.Context) bool {
	var on bool
	if err := cache.GetJSON(ctx, h.store, cache.ShareLocationKey, &on); err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			h.logger.WithError(err).Warn("failed to read location preference")
		}
		return false
	}
	return on
}

// SetLocationSharing turns location sharing on or off. Turning it on reads the device
// location and publishes it; turning it off clears it on the server. The preference is
// only stored once the server call succeeded.
func (h *Holder) SetLocationSharing(ctx context.Context, on bool) error {
	if !on {
		if err := h.gateway.ClearLocation(ctx); err != nil {
			h.setError(err)
			return err
		}
		h.patchLocation(ctx, nil)
		return h.storePreference(ctx, false)
	}

	coord, err := h.publishLocation(ctx)
	if err != nil {
		return err
	}
	h.patchLocation(ctx, &coord)
	return h.storePreference(ctx, true)
}

// RefreshLocation republishes the device location if sharing is on. Nothing happens
// when it is off.
func (h *Holder) RefreshLocation(ctx context.Context) error {
	if !h.ShareLocation(ctx) {
		return nil
	}
	coord, err := h.publishLocation(ctx)
	if err != nil {
		return err
	}
	h.patchLocation(ctx, &coord)
	return nil
}

func (h *Holder) publishLocation(ctx context.Context) (models.Coordinate, error) {
	coord, err := h.locator.Current(ctx)
	if err == nil {
		err = location.Validate(coord)
	}
	if err == nil {
		err = h.gateway.UpdateLocation(ctx, coord)
	}
	if err != nil {
		h.setError(err)
		return models.Coordinate{}, err
	}
	return coord, nil
}

func (h *Holder) patchLocation(ctx context.Context, coord *models.Coordinate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return
	}
	updated := *h.current
	if coord == nil {
		updated.Latitude, updated.Longitude = nil, nil
	} else {
		lat, lon := coord.Latitude, coord.Longitude
		updated.Latitude, updated.Longitude = &lat, &lon
	}
	h.current = &updated
	h.persistCurrentLocked(ctx)
}

func (h *Holder) storePreference(ctx context.Context, on bool) error {
	return cache.SetJSON(ctx, h.store, cache.ShareLocationKey, on)
}
