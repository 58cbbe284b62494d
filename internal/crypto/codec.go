package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidBlob is returned when a stored template cannot be decoded or
// fails authentication. Callers treat the template as unusable and move on;
// a corrupt record must never abort a whole comparison pass.
var ErrInvalidBlob = errors.New("invalid embedding blob")

// Codec encrypts face embeddings at rest with AES-256-GCM. Each call draws a
// fresh nonce, so encrypting the same vector twice never yields the same
// ciphertext. Blobs are base64(nonce || ciphertext || tag) stored as text.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a codec from a 32-byte key (config.EmbeddingKeySize).
func NewCodec(key []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("embedding key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals an embedding vector. The plaintext is the JSON encoding of
// the vector, so float64 values round-trip exactly.
func (c *Codec) Encrypt(embedding []float64) (string, error) {
	plaintext, err := json.Marshal(embedding)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any malformed input or failed
// authentication tag yields ErrInvalidBlob; no partial vector is ever
// returned.
func (c *Codec) Decrypt(blob string) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	if len(raw) < c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: blob shorter than nonce", ErrInvalidBlob)
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	var embedding []float64
	if err := json.Unmarshal(plaintext, &embedding); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	return embedding, nil
}
