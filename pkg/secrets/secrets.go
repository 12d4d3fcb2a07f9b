package secrets

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	// ErrInvalidKey indicates the seal key is not exactly 32 bytes.
	ErrInvalidKey = errors.New("seal key must be 32 bytes")
	// ErrDecrypt indicates the sealed blob could not be opened.
	ErrDecrypt = errors.New("sealed value could not be opened")
)

// Sealer encrypts and decrypts small secrets, such as stored gateway passwords,
// with a symmetric key held in configuration.
type Sealer struct {
	key [32]byte
}

// NewSealer builds a Sealer from a raw 32-byte key.
func NewSealer(rawKey string) (*Sealer, error) {
	if len(rawKey) != 32 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidKey, len(rawKey))
	}
	s := &Sealer{}
	copy(s.key[:], rawKey)
	return s, nil
}

// Seal encrypts the plaintext. The random nonce is prepended to the output.
func (s *Sealer) Seal(plaintext string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key), nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
