// Package vault provides authenticated encryption and redacted storage for
// workspace credentials.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	ivLength      = 12 // 96 bits, recommended for GCM
	authTagLength = 16 // 128 bits

	// CurrentKeyVersion is stamped on every envelope, reserved for rotation.
	CurrentKeyVersion = 1
)

var (
	// ErrKeyMissing indicates the master key is not configured. This is an
	// operator error and is surfaced on first use, not at startup.
	ErrKeyMissing = errors.New("vault master key is not configured")

	// ErrKeyMalformed indicates the master key is not a 64-character hex string.
	ErrKeyMalformed = errors.New("vault master key must be exactly 64 hex characters (32 bytes)")

	// ErrDecryptFailed indicates tampered data or a key mismatch. The
	// underlying cause is never attached to avoid leaking key material.
	ErrDecryptFailed = errors.New("failed to decrypt secret: data corrupted or key mismatch")
)

// Envelope is the triple representing one encrypted secret. All fields are
// base64-encoded.
type Envelope struct {
	Ciphertext string
	IV         string
	AuthTag    string
}

// Cipher performs AES-256-GCM encryption under the operator-supplied master
// key. The key is resolved lazily on first use and cached for the process
// lifetime; many tenants share the one key, so every encryption uses a fresh
// random IV.
type Cipher struct {
	keyFn func() string

	once sync.Once
	aead cipher.AEAD
	err  error
}

// NewCipher creates a Cipher that resolves the master key via keyFn. keyFn
// must return the 64-hex-character key, or "" when unconfigured.
func NewCipher(keyFn func() string) *Cipher {
	return &Cipher{keyFn: keyFn}
}

func (c *Cipher) init() error {
	c.once.Do(func() {
		hexKey := c.keyFn()
		if hexKey == "" {
			c.err = ErrKeyMissing
			return
		}
		key, err := hex.DecodeString(hexKey)
		if err != nil || len(key) != 32 {
			c.err = ErrKeyMalformed
			return
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			c.err = fmt.Errorf("creating cipher: %w", err)
			return
		}
		c.aead, c.err = cipher.NewGCM(block)
	})
	return c.err
}

// Encrypt seals plaintext under a fresh random 96-bit IV and returns the
// base64-encoded envelope.
func (c *Cipher) Encrypt(plaintext string) (Envelope, error) {
	if err := c.init(); err != nil {
		return Envelope{}, err
	}

	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Envelope{}, fmt.Errorf("generating iv: %w", err)
	}

	// Seal appends the auth tag to the ciphertext; persist them separately.
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-authTagLength]
	authTag := sealed[len(sealed)-authTagLength:]

	return Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		AuthTag:    base64.StdEncoding.EncodeToString(authTag),
	}, nil
}

// Decrypt opens an envelope and returns the plaintext. Any authentication
// failure, malformed field, or key mismatch yields ErrDecryptFailed.
func (c *Cipher) Decrypt(env Envelope) (string, error) {
	if err := c.init(); err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", ErrDecryptFailed
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(iv) != c.aead.NonceSize() {
		return "", ErrDecryptFailed
	}
	authTag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	if err != nil || len(authTag) != authTagLength {
		return "", ErrDecryptFailed
	}

	sealed := make([]byte, 0, len(ciphertext)+len(authTag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, authTag...)

	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
