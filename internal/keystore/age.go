// internal/keystore/age.go
package keystore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
)

// AgeFile encrypts the token to a device-local X25519 identity. The identity is created
// on first write and kept next to the token with 0600 permissions.
type AgeFile struct {
	mu           sync.Mutex
	identityPath string
	tokenPath    string
}

// NewAgeFile stores the token at dir/token.age and the identity at dir/identity.txt.
func NewAgeFile(dir string) *AgeFile {
	return &AgeFile{
		identityPath: filepath.Join(dir, "identity.txt"),
		tokenPath:    filepath.Join(dir, "token.age"),
	}
}

func (a *AgeFile) Get(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ciphertext, err := os.ReadFile(a.tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading token: %v", ErrKeystore, err)
	}
	identity, err := a.loadIdentity(false)
	if err != nil {
		return "", err
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return "", fmt.Errorf("%w: decrypting token: %v", ErrKeystore, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("%w: reading decrypted token: %v", ErrKeystore, err)
	}
	return string(plaintext), nil
}

func (a *AgeFile) Set(_ context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	identity, err := a.loadIdentity(true)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, identity.Recipient())
	if err != nil {
		return fmt.Errorf("%w: creating age encryptor: %v", ErrKeystore, err)
	}
	if _, err := io.WriteString(w, token); err != nil {
		return fmt.Errorf("%w: writing token: %v", ErrKeystore, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: finalizing age encryption: %v", ErrKeystore, err)
	}
	if err := writeFileAtomic(a.tokenPath, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrKeystore, err)
	}
	return nil
}

// Delete removes the token. The identity stays so later writes reuse it.
func (a *AgeFile) Delete(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := removeIfExists(a.tokenPath); err != nil {
		return fmt.Errorf("%w: %v", ErrKeystore, err)
	}
	return nil
}

func (a *AgeFile) loadIdentity(create bool) (*age.X25519Identity, error) {
	data, err := os.ReadFile(a.identityPath)
	if errors.Is(err, os.ErrNotExist) && create {
		identity, err := age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("%w: generating identity: %v", ErrKeystore, err)
		}
		if err := writeFileAtomic(a.identityPath, []byte(identity.String()+"\n")); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeystore, err)
		}
		return identity, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading identity: %v", ErrKeystore, err)
	}
	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing identity: %v", ErrKeystore, err)
	}
	return identity, nil
}
