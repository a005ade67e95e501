// internal/auth/token.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jason-s-yu/clique/internal/keystore"
)

// TokenCache sits in front of the keystore so the token is read from secure storage at
// most once between writes. Every Set, Delete or Invalidate drops the memory copy.
type TokenCache struct {
	mu     sync.Mutex
	store  keystore.Store
	cached string
	valid  bool
}

func NewTokenCache(store keystore.Store) *TokenCache {
	return &TokenCache{store: store}
}

// Token returns the stored token, or "" when none is stored.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid {
		return c.cached, nil
	}

	token, err := c.store.Get(ctx)
	if errors.Is(err, keystore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	c.cached, c.valid = token, true
	return token, nil
}

// Set writes token through to the keystore. The cache only holds it once the write
// succeeded.
func (c *TokenCache) Set(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
	if err := c.store.Set(ctx, token); err != nil {
		return err
	}
	c.cached, c.valid = token, true
	return nil
}

func (c *TokenCache) Delete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
	return c.store.Delete(ctx)
}

// Invalidate forces the next Token call to read the keystore.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.invalidateLocked()
	c.mu.Unlock()
}

func (c *TokenCache) invalidateLocked() {
	c.cached, c.valid = "", false
}

// Claims is what the client can learn from a token without the server's key.
type Claims struct {
	Subject   string
	ExpiresAt time.Time // zero when the token never expires
}

// Expired reports whether the token's exp claim is at or before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ClaimsOf decodes a JWT without verifying its signature. Opaque tokens return an error;
// callers treat them as "unknown expiry".
func ClaimsOf(token string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Claims{}, fmt.Errorf("jwt parse error: %w", err)
	}

	var out Claims
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
