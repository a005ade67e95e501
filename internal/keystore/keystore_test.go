package keystore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cheapParams = KDFParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16}

func exerciseKeystore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "first.token"))
	require.NoError(t, s.Set(ctx, "second.token"))
	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second.token", got)

	require.NoError(t, s.Delete(ctx))
	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx), "deleting twice is fine")
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseKeystore(t, m)
	assert.Equal(t, 3, m.Reads)
}

func TestAgeFile(t *testing.T) {
	dir := t.TempDir()
	exerciseKeystore(t, NewAgeFile(dir))

	ctx := context.Background()
	require.NoError(t, NewAgeFile(dir).Set(ctx, "eyJ.secret.sig"))

	raw, err := os.ReadFile(filepath.Join(dir, "token.age"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	info, err := os.Stat(filepath.Join(dir, "identity.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// a fresh instance reads the same identity back
	got, err := NewAgeFile(dir).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "eyJ.secret.sig", got)
}

func TestAgeFileMissingIdentity(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	require.NoError(t, NewAgeFile(dir).Set(ctx, "tok"))
	require.NoError(t, os.Remove(filepath.Join(dir, "identity.txt")))

	_, err := NewAgeFile(dir).Get(ctx)
	assert.ErrorIs(t, err, ErrKeystore)
}

func TestSealedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.sealed")
	exerciseKeystore(t, NewSealedFile(path, "hunter2").WithParams(cheapParams))

	ctx := context.Background()
	require.NoError(t, NewSealedFile(path, "hunter2").WithParams(cheapParams).Set(ctx, "tok"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "$argon2id$v=19$m=1024,t=1,p=1$"))

	// parameters travel with the envelope, so the default-params reader still opens it
	got, err := NewSealedFile(path, "hunter2").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
}

func TestSealedFileWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.sealed")
	ctx := context.Background()
	require.NoError(t, NewSealedFile(path, "right").WithParams(cheapParams).Set(ctx, "tok"))

	_, err := NewSealedFile(path, "wrong").Get(ctx)
	assert.ErrorIs(t, err, ErrKeystore)
}

func TestUnsealRejectsMalformedEnvelopes(t *testing.T) {
	tests := []struct {
		name     string
		envelope string
		want     error
	}{
		{"empty", "", ErrInvalidEnvelope},
		{"wrong algorithm", "$argon2i$v=19$m=1,t=1,p=1$AAAA$AAAA", ErrInvalidEnvelope},
		{"bad version", "$argon2id$v=16$m=1024,t=1,p=1$AAAA$AAAA", ErrIncompatibleVersion},
		{"bad params", "$argon2id$v=19$m=x$AAAA$AAAA", ErrInvalidEnvelope},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$AAAA", ErrInvalidEnvelope},
		{"short box", "$argon2id$v=19$m=1024,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAA", ErrInvalidEnvelope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := unseal(tt.envelope, []byte("pw"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
