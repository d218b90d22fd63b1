// Package cipher implements the streaming object encryption used for data at
// rest: AES-256 in counter mode with a random 16-byte IV stored in front of
// the ciphertext.
package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// IVSize is the length of the initialization vector prefixed to every object.
const IVSize = aes.BlockSize

// KeySize is the AES-256 key length.
const KeySize = 32

// hkdfInfo binds derived keys to this use so the same secret can safely seed
// other keys elsewhere.
const hkdfInfo = "simple-vault object encryption v1"

// ErrCorruptObject is returned when an object is shorter than its IV.
var ErrCorruptObject = errors.New("corrupt object: missing initialization vector")

// DeriveKey derives the process-wide AES-256 key from a configured secret.
// The derivation is deterministic so every process sharing the secret can
// read every object.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is required")
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Stream encrypts and decrypts objects with a single key.
type Stream struct {
	block gocipher.Block
}

// New creates a Stream from a 32-byte key.
func New(key []byte) (*Stream, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Stream{block: block}, nil
}

// NewFromSecret derives the key from secret and creates a Stream.
func NewFromSecret(secret string) (*Stream, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// Encrypt returns a reader yielding a fresh IV followed by the ciphertext of
// plaintext. Bytes are encrypted as they are read.
func (s *Stream) Encrypt(plaintext io.Reader) (io.Reader, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}
	body := &gocipher.StreamReader{S: gocipher.NewCTR(s.block, iv), R: plaintext}
	return io.MultiReader(bytes.NewReader(iv), body), nil
}

// Decrypt reads exactly IVSize bytes from object and returns a reader that
// decrypts the remainder lazily. The returned reader is single-pass.
func (s *Stream) Decrypt(object io.Reader) (io.Reader, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(object, iv); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrCorruptObject
		}
		return nil, fmt.Errorf("failed to read iv: %w", err)
	}
	return &gocipher.StreamReader{S: gocipher.NewCTR(s.block, iv), R: object}, nil
}
