// internal/friends/optimistic.go
package friends

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/clique/internal/api"
	"github.com/jason-s-yu/clique/internal/cache"
	"github.com/jason-s-yu/clique/internal/models"
	"github.com/sirupsen/logrus"
)

// edit is one optimistic operation: the ids it marks pending, the server call, and the
// rollback applied (under the holder lock) if the call fails.
type edit struct {
	name       string
	friendIDs  []string
	requestIDs []string
	call       func(ctx context.Context) error
	rollback   func()
	failure    string
}

// RemoveOptimistically drops friend from the list immediately and removes it on the
// server in the background. If the server refuses, the friend is put back at its old
// position (or the end, if the list has shrunk) and an error message is set.
// It returns false when friend is not in the list.
func (h *Holder) RemoveOptimistically(ctx context.Context, friend models.Friend) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	index := indexOf(h.friends, func(f models.Friend) bool { return f.ID == friend.ID })
	if index < 0 {
		return false
	}
	removed := h.friends[index]
	h.friends = removeAt(h.friends, index)
	h.persistLocked(ctx, cache.FriendsKey, h.friends)

	h.startLocked(ctx, edit{
		name:      "remove_friend",
		friendIDs: []string{friend.ID},
		call: func(ctx context.Context) error {
			return h.gateway.RemoveFriend(ctx, friend.ID)
		},
		rollback: func() {
			if indexOf(h.friends, func(f models.Friend) bool { return f.ID == removed.ID }) < 0 {
				h.friends = insertAt(h.friends, index, removed)
			}
			h.persistLocked(ctx, cache.FriendsKey, h.friends)
		},
		failure: "Failed to remove friend",
	})
	return true
}

// ApproveOptimistically removes the request and adds the requester as a friend right
// away, then accepts on the server. A refusal restores the request and removes the
// friend again.
func (h *Holder) ApproveOptimistically(ctx context.Context, request models.FriendRequest) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	index := indexOf(h.incoming, func(r models.FriendRequest) bool { return r.ID == request.ID })
	if index < 0 {
		return false
	}
	removed := h.incoming[index]
	friend := removed.AsFriend()

	h.incoming = removeAt(h.incoming, index)
	added := indexOf(h.friends, func(f models.Friend) bool { return f.ID == friend.ID }) < 0
	if added {
		h.friends = append(h.friends, friend)
	}
	h.persistLocked(ctx, cache.PendingRequestsKey, h.incoming)
	h.persistLocked(ctx, cache.FriendsKey, h.friends)

	h.startLocked(ctx, edit{
		name:       "approve_request",
		friendIDs:  []string{friend.ID},
		requestIDs: []string{request.ID},
		call: func(ctx context.Context) error {
			return h.gateway.RespondToFriendRequest(ctx, request.ID, models.FriendActionAccept)
		},
		rollback: func() {
			if added {
				if i := indexOf(h.friends, func(f models.Friend) bool { return f.ID == friend.ID }); i >= 0 {
					h.friends = removeAt(h.friends, i)
				}
			}
			h.restoreRequestLocked(index, removed)
			h.persistLocked(ctx, cache.FriendsKey, h.friends)
			h.persistLocked(ctx, cache.PendingRequestsKey, h.incoming)
		},
		failure: "Failed to accept friend request",
	})
	return true
}

// DenyOptimistically removes the request immediately and denies it on the server,
// restoring it if the server refuses.
func (h *Holder) DenyOptimistically(ctx context.Context, request models.FriendRequest) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	index := indexOf(h.incoming, func(r models.FriendRequest) bool { return r.ID == request.ID })
	if index < 0 {
		return false
	}
	removed := h.incoming[index]
	h.incoming = removeAt(h.incoming, index)
	h.persistLocked(ctx, cache.PendingRequestsKey, h.incoming)

	h.startLocked(ctx, edit{
		name:       "deny_request",
		requestIDs: []string{request.ID},
		call: func(ctx context.Context) error {
			return h.gateway.RespondToFriendRequest(ctx, request.ID, models.FriendActionDeny)
		},
		rollback: func() {
			h.restoreRequestLocked(index, removed)
			h.persistLocked(ctx, cache.PendingRequestsKey, h.incoming)
		},
		failure: "Failed to deny friend request",
	})
	return true
}

func (h *Holder) restoreRequestLocked(index int, r models.FriendRequest) {
	if indexOf(h.incoming, func(x models.FriendRequest) bool { return x.ID == r.ID }) < 0 {
		h.incoming = insertAt(h.incoming, index, r)
	}
}

// startLocked marks the edit pending and runs it in the background. Pending marks are
// released exactly once, when the goroutine finishes, whatever the outcome.
func (h *Holder) startLocked(ctx context.Context, e edit) {
	for _, id := range e.friendIDs {
		h.pendingMutations[id]++
	}
	for _, id := range e.requestIDs {
		h.pendingRequestMutations[id]++
	}
	if len(e.friendIDs) > 0 {
		h.friendEpoch++
	}
	if len(e.requestIDs) > 0 {
		h.requestEpoch++
	}
	purges := h.purges
	t := h.seq.enter(append(prefixed("f:", e.friendIDs), prefixed("r:", e.requestIDs)...)...)

	bg := context.WithoutCancel(ctx)
	log := h.logger.WithFields(logrus.Fields{
		"edit":        e.name,
		"friend_ids":  e.friendIDs,
		"request_ids": e.requestIDs,
	})

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.seq.leave(t)
		defer h.releasePending(e)

		if err := t.wait(bg); err != nil {
			return
		}
		if h.seq.stale(t) {
			log.Debug("earlier edit rolled back, abandoning")
			return
		}

		err := e.call(bg)
		if err == nil {
			log.Debug("edit confirmed")
			return
		}

		log.WithError(err).Warn("edit rejected, rolling back")

		h.mu.Lock()
		defer h.mu.Unlock()
		// no edit may enter between the bump and the rollback
		h.seq.bump(t.ids...)
		if h.purges != purges {
			return
		}
		e.rollback()
		h.errMsg = fmt.Sprintf("%s: %s", e.failure, api.Message(err))
	}()
}

func (h *Holder) releasePending(e edit) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range e.friendIDs {
		if h.pendingMutations[id]--; h.pendingMutations[id] <= 0 {
			delete(h.pendingMutations, id)
		}
	}
	for _, id := range e.requestIDs {
		if h.pendingRequestMutations[id]--; h.pendingRequestMutations[id] <= 0 {
			delete(h.pendingRequestMutations, id)
		}
	}
}

func prefixed(prefix string, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = prefix + id
	}
	return out
}

func indexOf[T any](s []T, match func(T) bool) int {
	for i, v := range s {
		if match(v) {
			return i
		}
	}
	return -1
}

func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

// insertAt places v at min(i, len(s)).
func insertAt[T any](s []T, i int, v T) []T {
	if i > len(s) {
		i = len(s)
	}
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	return append(out, s[i:]...)
}
