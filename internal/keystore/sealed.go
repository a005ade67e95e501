// internal/keystore/sealed.go
package keystore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidEnvelope indicates that the sealed file is not in the expected format.
var ErrInvalidEnvelope = errors.New("the sealed token is not in the correct format")

// ErrIncompatibleVersion indicates that the Argon2 version is incompatible.
var ErrIncompatibleVersion = errors.New("incompatible version of argon2")

// KDFParams holds the Argon2id parameters used to derive the sealing key.
type KDFParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
}

// DefaultKDFParams is the parameter set used for new envelopes.
var DefaultKDFParams = KDFParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
}

// SealedFile encrypts the token with a key derived from a passphrase. The file holds a
// single line:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<nonce||ciphertext>
//
// so the parameters travel with the data and can be raised without breaking old files.
type SealedFile struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
	params     KDFParams
}

func NewSealedFile(path, passphrase string) *SealedFile {
	return &SealedFile{path: path, passphrase: []byte(passphrase), params: DefaultKDFParams}
}

// WithParams overrides the KDF parameters for subsequent writes. Tests use cheap ones.
func (s *SealedFile) WithParams(p KDFParams) *SealedFile {
	s.params = p
	return s
}

func (s *SealedFile) Get(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading sealed token: %v", ErrKeystore, err)
	}
	plaintext, err := unseal(strings.TrimSpace(string(data)), s.passphrase)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeystore, err)
	}
	return string(plaintext), nil
}

func (s *SealedFile) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	envelope, err := seal([]byte(token), s.passphrase, s.params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeystore, err)
	}
	if err := writeFileAtomic(s.path, []byte(envelope+"\n")); err != nil {
		return fmt.Errorf("%w: %v", ErrKeystore, err)
	}
	return nil
}

func (s *SealedFile) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := removeIfExists(s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrKeystore, err)
	}
	return nil
}

// seal derives a key from passphrase with Argon2id and encrypts plaintext with
// XChaCha20-Poly1305.
func seal(plaintext, passphrase []byte, p KDFParams) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(passphrase, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	box := aead.Seal(nonce, nonce, plaintext, nil)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(box)), nil
}

// unseal parses an envelope produced by seal and decrypts it.
func unseal(envelope string, passphrase []byte) ([]byte, error) {
	vals := strings.Split(envelope, "$")
	if len(vals) != 6 || vals[1] != "argon2id" {
		return nil, ErrInvalidEnvelope
	}

	var version int
	if _, err := fmt.Sscanf(vals[2], "v=%d", &version); err != nil {
		return nil, ErrInvalidEnvelope
	}
	if version != argon2.Version {
		return nil, ErrIncompatibleVersion
	}

	var p KDFParams
	if _, err := fmt.Sscanf(vals[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return nil, ErrInvalidEnvelope
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(vals[4])
	if err != nil {
		return nil, ErrInvalidEnvelope
	}
	box, err := base64.RawStdEncoding.Strict().DecodeString(vals[5])
	if err != nil {
		return nil, ErrInvalidEnvelope
	}

	key := argon2.IDKey(passphrase, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(box) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrInvalidEnvelope
	}
	plaintext, err := aead.Open(nil, box[:aead.NonceSize()], box[aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("wrong passphrase or corrupted token: %w", err)
	}
	return plaintext, nil
}
