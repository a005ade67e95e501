package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jason-s-yu/clique/internal/keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenKeystore struct{ keystore.Memory }

func (b *brokenKeystore) Set(context.Context, string) error {
	return keystore.ErrKeystore
}

func TestTokenCacheReadsKeystoreOnce(t *testing.T) {
	ctx := context.Background()
	ks := keystore.NewMemory()
	require.NoError(t, ks.Set(ctx, "stored"))
	tc := NewTokenCache(ks)

	for i := 0; i < 3; i++ {
		tok, err := tc.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "stored", tok)
	}
	assert.Equal(t, 1, ks.Reads)

	require.NoError(t, tc.Set(ctx, "fresh"))
	tok, err := tc.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, 1, ks.Reads, "a write primes the cache")

	tc.Invalidate()
	_, err = tc.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ks.Reads)

	require.NoError(t, tc.Delete(ctx))
	tok, err = tc.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
	assert.Equal(t, 3, ks.Reads)
}

func TestTokenCacheFailedWriteLeavesNothingCached(t *testing.T) {
	ctx := context.Background()
	ks := &brokenKeystore{}
	tc := NewTokenCache(ks)

	err := tc.Set(ctx, "tok")
	assert.True(t, errors.Is(err, keystore.ErrKeystore))

	tok, err := tc.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestClaimsOf(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("whatever"))
	require.NoError(t, err)

	claims, err := ClaimsOf(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(exp))
	assert.True(t, claims.Expired(exp.Add(time.Second)))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("k"))
	require.NoError(t, err)
	claims, err = ClaimsOf(noExp)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.IsZero())
	assert.False(t, claims.Expired(time.Now().Add(100*365*24*time.Hour)))

	_, err = ClaimsOf("opaque-token")
	assert.Error(t, err)
}
