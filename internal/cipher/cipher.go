// Package cipher implements the reversible text transform applied to each message.
//
// Text is sealed with XChaCha20-Poly1305 under a key derived from a passphrase
// with Argon2id. The random nonce is prefixed to the ciphertext and the result
// is base64url encoded, so the output is printable and can be decrypted with
// the same passphrase.
package cipher

import (
	"context"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/aceteam-ai/seqcipher/internal/message"
)

// DefaultPassphrase is used when no passphrase is configured.
const DefaultPassphrase = "seqcipher"

// keySalt is fixed so the same passphrase always yields the same key.
var keySalt = []byte("seqcipher/v1/key")

var (
	// ErrEmptyPassphrase is returned by New for an empty passphrase.
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")

	// ErrMalformed is returned when a ciphertext cannot be decoded or opened.
	ErrMalformed = errors.New("malformed ciphertext")
)

var encoding = base64.RawURLEncoding

// Cipher encrypts and decrypts text.
type Cipher struct {
	aead stdcipher.AEAD
}

// New derives a key from passphrase and returns a ready Cipher.
func New(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	key := argon2.IDKey([]byte(passphrase), keySalt, 1, 64*1024, 2, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create aead: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns it as base64url text.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := encoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrMalformed)
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(plain), nil
}

// Transform encrypts the message text. Its signature matches the worker's
// transform function so a method value can be passed directly.
func (c *Cipher) Transform(_ context.Context, m message.Message) (message.Message, error) {
	text, err := c.Encrypt(m.Text)
	if err != nil {
		return m, err
	}
	return message.Message{Text: text}, nil
}

// Slow wraps fn so every call takes at least delay. The wait ends early only
// if ctx is cancelled.
func Slow[T any](fn func(context.Context, T) (T, error), delay time.Duration) func(context.Context, T) (T, error) {
	if delay <= 0 {
		return fn
	}
	return func(ctx context.Context, in T) (T, error) {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		out, err := fn(ctx, in)
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		return out, err
	}
}
