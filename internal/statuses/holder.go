// Package statuses holds the current user's status and the statuses of everyone in
// their feed.
package statuses

import (
	"context"
	"errors"
	"sync"

	"github.com/jason-s-yu/clique/internal/api"
	"github.com/jason-s-yu/clique/internal/cache"
	"github.com/jason-s-yu/clique/internal/location"
	"github.com/jason-s-yu/clique/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrSuperseded is returned by a Fetch that a newer Fetch cancelled.
var ErrSuperseded = errors.New("statuses: fetch superseded by a newer one")

// Gateway is the subset of the API the status state needs.
type Gateway interface {
	FetchStatuses(ctx context.Context) ([]models.Status, error)
	UpdateStatus(ctx context.Context, emoji, text string) error
	UpdateIconColor(ctx context.Context, color models.IconColor) error
	UpdateLocation(ctx context.Context, coord models.Coordinate) error
	ClearLocation(ctx context.Context) error
}

// Holder is the status state. All methods are safe for concurrent use.
type Holder struct {
	gateway Gateway
	store   cache.Store
	locator location.Provider
	logger  *logrus.Logger

	mu      sync.Mutex
	current *models.Status
	others  []models.Status
	errMsg  string
	loading bool

	// gen identifies the newest Fetch; cancel stops the one in flight.
	gen    uint64
	cancel context.CancelFunc
}

func NewHolder(gateway Gateway, store cache.Store, locator location.Provider, logger *logrus.Logger) *Holder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if locator == nil {
		locator = location.Unavailable{}
	}
	return &Holder{
		gateway: gateway,
		store:   store,
		locator: locator,
		logger:  logger,
	}
}

// Load fills the state from the local cache.
func (h *Holder) Load(ctx context.Context) error {
	var (
		current models.Status
		others  []models.Status
	)
	hasCurrent := true
	if err := cache.GetJSON(ctx, h.store, cache.CurrentUserStatusKey, &current); err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			return err
		}
		hasCurrent = false
	}
	if err := cache.GetJSON(ctx, h.store, cache.FriendStatusesKey, &others); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
	if hasCurrent {
		h.current = &current
	}
	h.others = others
	return nil
}

// Current returns the logged in user's own status.
func (h *Holder) Current() (models.Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return models.Status{}, false
	}
	return *h.current, true
}

// Others returns a copy of everyone else's statuses.
func (h *Holder) Others() []models.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.Status(nil), h.others...)
}

func (h *Holder) ErrorMessage() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errMsg
}

func (h *Holder) IsLoading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading
}

// Purge cancels any fetch in flight and drops all in-memory state.
func (h *Holder) Purge() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.gen++
	h.current, h.others = nil, nil
	h.errMsg = ""
	h.loading = false
}

// Fetch loads every status and splits off the current user's. Starting a Fetch cancels
// the one before it; only the newest Fetch ever writes state, and a cancelled one
// writes nothing.
func (h *Holder) Fetch(ctx context.Context) error {
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.gen++
	gen := h.gen
	h.cancel = cancel
	h.loading = true
	h.errMsg = ""
	h.mu.Unlock()

	all, err := h.gateway.FetchStatuses(fctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gen != gen {
		return ErrSuperseded
	}
	h.cancel = nil
	h.loading = false
	if fctx.Err() != nil {
		return fctx.Err()
	}
	if err != nil {
		h.errMsg = api.Message(err)
		return err
	}

	var current *models.Status
	others := make([]models.Status, 0, len(all))
	for i := range all {
		if !all[i].IsCurrentUser {
			others = append(others, all[i])
			continue
		}
		if current != nil {
			h.logger.WithFields(logrus.Fields{
				"kept_id":    current.ID,
				"dropped_id": all[i].ID,
			}).Warn("server returned more than one status for the current user")
			continue
		}
		st := all[i]
		current = &st
	}
	h.current = current
	h.others = others
	h.persistLocked(ctx)
	return nil
}

// UpdateCurrentStatusOptimistically rewrites the local copy of the user's status with a
// new emoji and text, keeping every other field, and re-persists it. It is meant to run
// right after the server accepted the same change. Returns false when there is no
// current status to patch.
func (h *Holder) UpdateCurrentStatusOptimistically(ctx context.Context, emoji, text string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return false
	}
	updated := h.current.WithText(emoji, text)
	h.current = &updated
	h.persistCurrentLocked(ctx)
	return true
}

// UpdateStatus writes the status to the server, then patches the local copy.
func (h *Holder) UpdateStatus(ctx context.Context, emoji, text string) error {
	if err := h.gateway.UpdateStatus(ctx, emoji, text); err != nil {
		h.setError(err)
		return err
	}
	h.UpdateCurrentStatusOptimistically(ctx, emoji, text)
	return nil
}

// UpdateIconColor stores a new avatar colour on the server and locally.
func (h *Holder) UpdateIconColor(ctx context.Context, color models.IconColor) error {
	if !color.Valid() {
		color = models.ParseIconColor(string(color))
	}
	if err := h.gateway.UpdateIconColor(ctx, color); err != nil {
		h.setError(err)
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		updated := *h.current
		c := color
		updated.IconColor = &c
		h.current = &updated
		h.persistCurrentLocked(ctx)
	}
	return nil
}

func (h *Holder) setError(err error) {
	h.mu.Lock()
	h.errMsg = api.Message(err)
	h.mu.Unlock()
}

func (h *Holder) persistLocked(ctx context.Context) {
	h.persistCurrentLocked(ctx)
	if err := cache.SetJSON(context.WithoutCancel(ctx), h.store, cache.FriendStatusesKey, h.others); err != nil {
		h.logger.WithError(err).Warn("failed to persist friend statuses")
	}
}

func (h *Holder) persistCurrentLocked(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if h.current == nil {
		err = h.store.Delete(ctx, cache.CurrentUserStatusKey)
	} else {
		err = cache.SetJSON(ctx, h.store, cache.CurrentUserStatusKey, h.current)
	}
	if err != nil {
		h.logger.WithError(err).Warn("failed to persist current status")
	}
}
