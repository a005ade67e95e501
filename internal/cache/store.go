// internal/cache/store.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when a key holds no value.
var ErrNotFound = errors.New("cache: key not found")

// Store is the local, non-sensitive key-value store the state holders persist into.
// Values are opaque bytes; callers use GetJSON/SetJSON for typed access.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// Keys used by the client. Every key except CurrentUserKey is a user cache and is listed
// in UserKeys so logout can wipe them together.
const (
	CurrentUserKey       = "com.clique.currentUser"
	CurrentUserStatusKey = "com.clique.cachedCurrentUserStatus"
	FriendStatusesKey    = "com.clique.cachedFriendStatuses"
	FriendsKey           = "com.clique.cachedFriends"
	PendingRequestsKey   = "com.clique.cachedPendingRequests"
	OutgoingRequestsKey  = "com.clique.cachedOutgoingRequests"
	ShareLocationKey     = "com.clique.shareLocation"
)

// UserKeys are cleared on logout so the next account never sees the previous one's data.
var UserKeys = []string{
	CurrentUserStatusKey,
	FriendStatusesKey,
	FriendsKey,
	PendingRequestsKey,
	OutgoingRequestsKey,
	ShareLocationKey,
}

// GetJSON decodes the value at key into v. A missing key returns ErrNotFound.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s for cache: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
