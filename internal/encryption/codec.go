// Package encryption implements the at-rest codec for message bodies.
//
// Content is encrypted with AES-256-CBC under a fresh random IV and serialized
// as an envelope: hex(iv) ":" hex(ciphertext). Both directions degrade to
// returning the input unchanged, together with an error describing why, so a
// caller can always show something to the user.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	KeySize   = 32
	Delimiter = ":"

	// developmentKey keeps envelopes written by earlier deployments without ENCRYPTION_KEY readable.
	developmentKey = "a1b2c3d4e5f6g7h8i9j0k1l2m3n4o5p6"
)

// Codec encrypts and decrypts message bodies. It is stateless apart from the
// key and safe for concurrent use.
type Codec struct {
	block    cipher.Block
	fallback bool
	random   io.Reader
}

// NewCodec builds a codec from the configured secret. Secrets shorter than
// KeySize bytes fall back to the development key and log a warning; longer
// secrets are truncated to KeySize bytes.
func NewCodec(secret string) *Codec {
	key, fallback := deriveKey(secret)
	if fallback {
		logrus.WithFields(logrus.Fields{
			"function":   "NewCodec",
			"key_length": len(secret),
		}).Warn("Using fallback encryption key. Set ENCRYPTION_KEY (32+ bytes) for production.")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		// unreachable: key is always KeySize bytes
		panic(fmt.Sprintf("encryption: %v", err))
	}
	return &Codec{block: block, fallback: fallback, random: rand.Reader}
}

func deriveKey(secret string) ([]byte, bool) {
	if len(secret) < KeySize {
		return []byte(developmentKey), true
	}
	return []byte(secret)[:KeySize], false
}

// UsesFallbackKey reports whether the codec runs on the development key.
func (c *Codec) UsesFallbackKey() bool {
	return c.fallback
}

// Encrypt returns the envelope for plaintext. Empty input is returned unchanged.
// On failure the plaintext itself is returned along with ErrCipher.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return plaintext, fmt.Errorf("%w: reading iv: %v", ErrCipher, err)
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + Delimiter + hex.EncodeToString(out), nil
}

// Decrypt returns the plaintext held by envelope. Input that is not an
// envelope, does not parse, or fails verification is returned unchanged with
// ErrNotEnvelope, ErrMalformedEnvelope or ErrCipher respectively.
func (c *Codec) Decrypt(envelope string) (string, error) {
	if envelope == "" {
		return envelope, nil
	}
	iv, ciphertext, err := parseEnvelope(envelope)
	if err != nil {
		return envelope, err
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, ciphertext)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return envelope, err
	}
	if !utf8.Valid(plain) {
		return envelope, fmt.Errorf("%w: plaintext is not valid UTF-8", ErrCipher)
	}
	return string(plain), nil
}

// IsEnvelope reports whether s is an envelope this codec can open.
func (c *Codec) IsEnvelope(s string) bool {
	if !strings.Contains(s, Delimiter) {
		return false
	}
	_, err := c.Decrypt(s)
	return err == nil
}

func parseEnvelope(s string) ([]byte, []byte, error) {
	ivHex, ctHex, found := strings.Cut(s, Delimiter)
	if !found {
		return nil, nil, ErrNotEnvelope
	}
	if ivHex == "" || ctHex == "" || strings.Contains(ctHex, Delimiter) {
		return nil, nil, fmt.Errorf("%w: expected two non-empty fields", ErrMalformedEnvelope)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: iv: %v", ErrMalformedEnvelope, err)
	}
	if len(iv) != aes.BlockSize {
		return nil, nil, fmt.Errorf("%w: iv is %d bytes", ErrMalformedEnvelope, len(iv))
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: ciphertext: %v", ErrMalformedEnvelope, err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, nil, fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrMalformedEnvelope)
	}
	return iv, ciphertext, nil
}

// pad applies PKCS#7 padding.
func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("%w: bad block length", ErrCipher)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("%w: bad padding", ErrCipher)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrCipher)
		}
	}
	return b[:len(b)-n], nil
}
