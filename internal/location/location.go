// Package location supplies the device coordinate used when a user shares their location.
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/clique/internal/models"
)

var (
	ErrAuthorizationDenied = errors.New("location access denied")
	ErrLocationUnavailable = errors.New("location unavailable")
)

// FailedError wraps a failure reported by the underlying location source.
type FailedError struct {
	Err error
}

func (e *FailedError) Error() string { return fmt.Sprintf("location error: %v", e.Err) }
func (e *FailedError) Unwrap() error { return e.Err }

// Provider returns the current device coordinate.
type Provider interface {
	Current(ctx context.Context) (models.Coordinate, error)
}

// Static always reports the same coordinate. The CLI uses it with values from config.
type Static struct {
	Coordinate models.Coordinate
}

func (s Static) Current(ctx context.Context) (models.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinate{}, &FailedError{Err: err}
	}
	return s.Coordinate, nil
}

// Denied behaves like a device where the user refused location access.
type Denied struct{}

func (Denied) Current(context.Context) (models.Coordinate, error) {
	return models.Coordinate{}, ErrAuthorizationDenied
}

// Unavailable behaves like a device that has no fix.
type Unavailable struct{}

func (Unavailable) Current(context.Context) (models.Coordinate, error) {
	return models.Coordinate{}, ErrLocationUnavailable
}

// Validate rejects coordinates outside the valid latitude/longitude ranges.
func Validate(c models.Coordinate) error {
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: coordinate out of range (%f, %f)", ErrLocationUnavailable, c.Latitude, c.Longitude)
	}
	return nil
}
