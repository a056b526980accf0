package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/maheshrc27/postdispatch/internal/models"
)

// encPrefix marks a page token that was sealed by a Cipher.
const encPrefix = "enc:"

// Cipher seals page access tokens at rest with AES-GCM. A nil *Cipher
// passes values through unchanged.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		return nil, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c == nil {
		return plaintext, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values without the prefix are
// returned as-is so rows written before encryption was enabled keep working.
func (c *Cipher) Decrypt(value string) (string, error) {
	if c == nil || !strings.HasPrefix(value, encPrefix) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", err
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// DecryptTokens returns a copy of tokens with every access token opened.
func (c *Cipher) DecryptTokens(tokens models.PageTokens) (models.PageTokens, error) {
	out := make(models.PageTokens, len(tokens))
	for i, t := range tokens {
		plain, err := c.Decrypt(t.AccessToken)
		if err != nil {
			return nil, err
		}
		t.AccessToken = plain
		out[i] = t
	}
	return out, nil
}
