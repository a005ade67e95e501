// Package friends holds the friends list and both friend-request lists, and applies
// optimistic edits to them while the server catches up.
package friends

import (
	"context"
	"errors"
	"sync"

	"github.com/jason-s-yu/clique/internal/api"
	"github.com/jason-s-yu/clique/internal/cache"
	"github.com/jason-s-yu/clique/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Gateway is the subset of the API the friend state needs.
type Gateway interface {
	FetchFriends(ctx context.Context) ([]models.Friend, error)
	FetchPendingRequests(ctx context.Context) ([]models.FriendRequest, error)
	FetchOutgoingRequests(ctx context.Context) ([]models.OutgoingFriendRequest, error)
	AddFriend(ctx context.Context, username string) (*models.AddFriendResponse, error)
	RemoveFriend(ctx context.Context, friendID string) error
	RespondToFriendRequest(ctx context.Context, friendshipID string, action models.FriendAction) error
}

// Holder is the friend state. All methods are safe for concurrent use.
//
// Background refreshes never overwrite a collection that an optimistic edit is working
// on: friend edits gate the friends and outgoing lists, request edits gate the incoming
// list. Gating looks both at edits still in flight and at edits that started after the
// refresh did.
type Holder struct {
	gateway Gateway
	store   cache.Store
	logger  *logrus.Logger
	seq     *sequencer
	wg      sync.WaitGroup

	mu       sync.Mutex
	friends  []models.Friend
	incoming []models.FriendRequest
	outgoing []models.OutgoingFriendRequest
	errMsg   string
	loading  int // fetches in flight

	// pending counts in-flight edits per id.
	pendingMutations        map[string]int
	pendingRequestMutations map[string]int

	// epochs advance when an edit starts; purges advance on logout.
	friendEpoch  uint64
	requestEpoch uint64
	purges       uint64
}

func NewHolder(gateway Gateway, store cache.Store, logger *logrus.Logger) *Holder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Holder{
		gateway:                 gateway,
		store:                   store,
		logger:                  logger,
		seq:                     newSequencer(),
		pendingMutations:        make(map[string]int),
		pendingRequestMutations: make(map[string]int),
	}
}

// Load fills the collections from the local cache so the last known state shows before
// the first fetch completes. Missing keys are not an error.
func (h *Holder) Load(ctx context.Context) error {
	var (
		friends  []models.Friend
		incoming []models.FriendRequest
		outgoing []models.OutgoingFriendRequest
	)
	for _, c := range []struct {
		key string
		v   interface{}
	}{
		{cache.FriendsKey, &friends},
		{cache.PendingRequestsKey, &incoming},
		{cache.OutgoingRequestsKey, &outgoing},
	} {
		if err := cache.GetJSON(ctx, h.store, c.key, c.v); err != nil && !errors.Is(err, cache.ErrNotFound) {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.friends, h.incoming, h.outgoing = friends, incoming, outgoing
	return nil
}

// Friends returns a copy of the friends list.
func (h *Holder) Friends() []models.Friend {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.Friend(nil), h.friends...)
}

func (h *Holder) IncomingRequests() []models.FriendRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.FriendRequest(nil), h.incoming...)
}

func (h *Holder) OutgoingRequests() []models.OutgoingFriendRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.OutgoingFriendRequest(nil), h.outgoing...)
}

// ErrorMessage is the last failure, formatted for display. Empty when none.
func (h *Holder) ErrorMessage() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errMsg
}

func (h *Holder) ClearError() {
	h.mu.Lock()
	h.errMsg = ""
	h.mu.Unlock()
}

func (h *Holder) IsLoading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading > 0
}

// HasPendingMutations reports whether any optimistic edit is still in flight.
func (h *Holder) HasPendingMutations() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pendingMutations) > 0 || len(h.pendingRequestMutations) > 0
}

// Wait blocks until every background edit has finished.
func (h *Holder) Wait() { h.wg.Wait() }

// Purge drops all in-memory state. Edits still in flight finish their network call but
// no longer touch the collections.
func (h *Holder) Purge() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.friends, h.incoming, h.outgoing = nil, nil, nil
	h.errMsg = ""
	h.purges++
}

// FetchAll refreshes all three collections concurrently. It does nothing while a friend
// edit is pending.
func (h *Holder) FetchAll(ctx context.Context) error {
	h.mu.Lock()
	if len(h.pendingMutations) > 0 {
		h.mu.Unlock()
		h.logger.Debug("skipping friends fetch, edits pending")
		return nil
	}
	friendEpoch, requestEpoch, purges := h.friendEpoch, h.requestEpoch, h.purges
	h.loading++
	h.errMsg = ""
	h.mu.Unlock()

	var (
		friends  []models.Friend
		incoming []models.FriendRequest
		outgoing []models.OutgoingFriendRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		friends, err = h.gateway.FetchFriends(gctx)
		return err
	})
	g.Go(func() (err error) {
		incoming, err = h.gateway.FetchPendingRequests(gctx)
		return err
	})
	g.Go(func() (err error) {
		outgoing, err = h.gateway.FetchOutgoingRequests(gctx)
		return err
	})
	err := g.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.loading--
	if err != nil {
		if ctx.Err() == nil && h.purges == purges {
			h.errMsg = api.Message(err)
		}
		return err
	}
	if h.purges != purges {
		return nil
	}

	if len(h.pendingMutations) == 0 && h.friendEpoch == friendEpoch {
		h.friends = friends
		h.outgoing = outgoing
		h.persistLocked(ctx, cache.FriendsKey, h.friends)
		h.persistLocked(ctx, cache.OutgoingRequestsKey, h.outgoing)
	} else {
		h.logger.Debug("friend edit started during fetch, keeping local friends")
	}
	if len(h.pendingRequestMutations) == 0 && h.requestEpoch == requestEpoch {
		h.incoming = incoming
		h.persistLocked(ctx, cache.PendingRequestsKey, h.incoming)
	}
	return nil
}

// AddFriend sends a friend request by username. The recipient shows up in the outgoing
// list once the server has recorded it.
func (h *Holder) AddFriend(ctx context.Context, username string) (models.Friend, error) {
	h.ClearError()
	resp, err := h.gateway.AddFriend(ctx, username)
	if err != nil {
		h.setError(err)
		return models.Friend{}, err
	}

	outgoing, err := h.gateway.FetchOutgoingRequests(ctx)
	if err != nil {
		h.logger.WithError(err).Debug("could not refresh outgoing requests after add")
		return resp.Friend, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pendingMutations) == 0 {
		h.outgoing = outgoing
		h.persistLocked(ctx, cache.OutgoingRequestsKey, h.outgoing)
	}
	return resp.Friend, nil
}

func (h *Holder) setError(err error) {
	h.mu.Lock()
	h.errMsg = api.Message(err)
	h.mu.Unlock()
}

// persistLocked writes v to key. Cache failures are logged, never surfaced: the
// in-memory state stays authoritative.
func (h *Holder) persistLocked(ctx context.Context, key string, v interface{}) {
	if err := cache.SetJSON(context.WithoutCancel(ctx), h.store, key, v); err != nil {
		h.logger.WithError(err).WithField("key", key).Warn("failed to persist friends cache")
	}
}
