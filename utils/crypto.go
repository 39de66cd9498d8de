package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// sealedPrefix marks an access token sealed by TokenCipher.
const sealedPrefix = "enc:"

// TokenCipher seals aggregator access tokens with AES-GCM before they leave
// the server. A nil *TokenCipher passes tokens through unchanged.
type TokenCipher struct {
	gcm cipher.AEAD
}

// NewTokenCipher returns nil when key is empty, which disables sealing.
func NewTokenCipher(key string) (*TokenCipher, error) {
	if key == "" {
		return nil, nil
	}
	if len(key) != 32 {
		return nil, errors.New("DATA_ENCRYPTION_KEY must be exactly 32 characters")
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &TokenCipher{gcm: gcm}, nil
}

// Seal encrypts a token and returns it base64 encoded behind sealedPrefix.
func (c *TokenCipher) Seal(token string) (string, error) {
	if c == nil {
		return token, nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := c.gcm.Seal(nonce, nonce, []byte(token), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal. Tokens without the prefix are returned as they are.
func (c *TokenCipher) Open(token string) (string, error) {
	if !strings.HasPrefix(token, sealedPrefix) {
		return token, nil
	}
	if c == nil {
		return "", errors.New("sealed access token but no DATA_ENCRYPTION_KEY configured")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(token, sealedPrefix))
	if err != nil {
		return "", err
	}

	nonceSize := c.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// IsSealed reports whether token carries the sealed prefix.
func IsSealed(token string) bool {
	return strings.HasPrefix(token, sealedPrefix)
}
