// Package secret seals credentials so they can live in configuration files.
//
// A sealed value is Prefix followed by base64(salt | nonce | ciphertext).
// The key is derived from a passphrase with PBKDF2-SHA256 and a random salt
// per value; the cipher is AES-256-GCM.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Prefix marks a sealed value.
const Prefix = "enc:v1:"

const (
	saltSize   = 16
	iterations = 100000
	keySize    = 32 // AES-256
)

var (
	ErrNoKey     = errors.New("secret key is empty")
	ErrMalformed = errors.New("malformed sealed value")
	ErrDecrypt   = errors.New("sealed value does not open with this key")
)

// Box seals and opens values with one passphrase.
type Box struct {
	passphrase []byte
}

// New returns a Box for passphrase.
func New(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, ErrNoKey
	}
	return &Box{passphrase: []byte(passphrase)}, nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

func (b *Box) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(b.passphrase, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext.
func (b *Box) Seal(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	gcm, err := b.gcm(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	out := append(salt, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a sealed value. Values without Prefix are returned as they
// are.
func (b *Box) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(data) < saltSize {
		return "", ErrMalformed
	}

	salt, rest := data[:saltSize], data[saltSize:]
	gcm, err := b.gcm(salt)
	if err != nil {
		return "", err
	}
	if len(rest) < gcm.NonceSize() {
		return "", ErrMalformed
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
