package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, FriendsKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, FriendsKey, []byte(`[1]`)))
	require.NoError(t, s.Set(ctx, FriendsKey, []byte(`[1,2]`)))
	got, err := s.Get(ctx, FriendsKey)
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(got))

	type profile struct {
		Name string `json:"name"`
	}
	require.NoError(t, SetJSON(ctx, s, CurrentUserKey, profile{Name: "ada"}))
	var p profile
	require.NoError(t, GetJSON(ctx, s, CurrentUserKey, &p))
	assert.Equal(t, "ada", p.Name)

	require.NoError(t, s.Set(ctx, ShareLocationKey, []byte(`true`)))
	require.NoError(t, s.Delete(ctx, UserKeys...))
	_, err = s.Get(ctx, FriendsKey)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, ShareLocationKey)
	assert.ErrorIs(t, err, ErrNotFound)

	// the profile is not a user cache
	require.NoError(t, GetJSON(ctx, s, CurrentUserKey, &p))

	require.NoError(t, s.Delete(ctx))
	require.NoError(t, s.Delete(ctx, "never-set"))
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf))
	buf[0] = 'z'
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	// values survive a reopen
	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	var p struct {
		Name string `json:"name"`
	}
	require.NoError(t, GetJSON(context.Background(), s, CurrentUserKey, &p))
	assert.Equal(t, "ada", p.Name)
}

func TestGetJSONRejectsCorruptValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, FriendsKey, []byte("{not json")))
	var v []string
	err := GetJSON(ctx, m, FriendsKey, &v)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := ConnectRedis(ctx, RedisOptions{Addr: addr, Prefix: "clique-test:" + t.Name() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Delete(ctx, append(UserKeys, CurrentUserKey)...)
		r.Close()
	})

	exerciseStore(t, r)
}
