package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher is the opaque encrypt/decrypt capability for stored credentials:
// session cookies, passwords and proxy secrets. Callers treat tokens as
// opaque strings; when no key is configured the passthrough cipher is used
// and tokens are the plaintext itself.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(token string) ([]byte, error)
}

var ErrInvalidToken = errors.New("vault: invalid token")

// New returns an AEAD cipher derived from key, or the passthrough cipher
// when key is empty.
func New(key string) (Cipher, error) {
	if key == "" {
		return Passthrough{}, nil
	}
	sum := sha256.Sum256([]byte(key))
	aead, err := chacha20poly1305.NewX(sum[:])
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	return &aeadCipher{aead: aead}, nil
}

// Passthrough is the no-op cipher used when encryption is disabled
type Passthrough struct{}

func (Passthrough) Encrypt(plaintext []byte) (string, error) { return string(plaintext), nil }
func (Passthrough) Decrypt(token string) ([]byte, error)     { return []byte(token), nil }

type aeadCipher struct {
	aead cipher.AEAD
}

func (c *aeadCipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

func (c *aeadCipher) Decrypt(token string) ([]byte, error) {
	raw, err := base64.RawStdEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if len(raw) < c.aead.NonceSize() {
		return nil, ErrInvalidToken
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return plaintext, nil
}
