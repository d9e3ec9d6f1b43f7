package encryption_test

import (
	"strings"
	"testing"

	"duochat/backend/internal/encryption"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestCodec_RoundTrip(t *testing.T) {
	codec := encryption.NewCodec(testSecret)

	for _, plaintext := range []string{
		"hi",
		"exactly sixteen!",
		"a message that spans more than one AES block, with punctuation: yes",
		"юнікод і емодзі 🙂",
		"has:colons:inside",
		strings.Repeat("x", 4096),
	} {
		envelope, err := codec.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, envelope)
		assert.Equal(t, 1, strings.Count(envelope, encryption.Delimiter), "envelope is iv:ciphertext")

		decrypted, err := codec.Decrypt(envelope)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestCodec_FreshIVPerCall(t *testing.T) {
	codec := encryption.NewCodec(testSecret)

	first, err := codec.Encrypt("same text")
	require.NoError(t, err)
	second, err := codec.Encrypt("same text")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	ivA, _, _ := strings.Cut(first, ":")
	ivB, _, _ := strings.Cut(second, ":")
	assert.Len(t, ivA, 32, "128-bit IV in hex")
	assert.NotEqual(t, ivA, ivB)
}

func TestCodec_EmptyIsNoop(t *testing.T) {
	codec := encryption.NewCodec(testSecret)

	out, err := codec.Encrypt("")
	assert.NoError(t, err)
	assert.Equal(t, "", out)

	out, err = codec.Decrypt("")
	assert.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestCodec_DecryptPassThrough(t *testing.T) {
	codec := encryption.NewCodec(testSecret)
	valid, err := codec.Encrypt("secret")
	require.NoError(t, err)
	iv, ct, _ := strings.Cut(valid, ":")

	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"plain text", "hello there", encryption.ErrNotEnvelope},
		{"empty iv", ":" + ct, encryption.ErrMalformedEnvelope},
		{"empty ciphertext", iv + ":", encryption.ErrMalformedEnvelope},
		{"non hex iv", "zz" + iv[2:] + ":" + ct, encryption.ErrMalformedEnvelope},
		{"short iv", "abcd:" + ct, encryption.ErrMalformedEnvelope},
		{"non hex ciphertext", iv + ":nothex", encryption.ErrMalformedEnvelope},
		{"odd block length", iv + ":" + ct[:len(ct)-2], encryption.ErrMalformedEnvelope},
		{"three fields", valid + ":" + ct, encryption.ErrMalformedEnvelope},
		{"time of day", "meet at 10:30", encryption.ErrMalformedEnvelope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := codec.Decrypt(tt.input)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.input, out, "failed decrypt returns the input unchanged")
		})
	}
}

func TestCodec_WrongKeyPassesThrough(t *testing.T) {
	writer := encryption.NewCodec(testSecret)
	reader := encryption.NewCodec("fedcba9876543210fedcba9876543210")

	envelope, err := writer.Encrypt("for the right key only, long enough to span blocks")
	require.NoError(t, err)

	out, err := reader.Decrypt(envelope)
	assert.Error(t, err)
	assert.Equal(t, envelope, out)
}

func TestCodec_FallbackKey(t *testing.T) {
	short := encryption.NewCodec("too-short")
	missing := encryption.NewCodec("")
	configured := encryption.NewCodec(testSecret)

	assert.True(t, short.UsesFallbackKey())
	assert.True(t, missing.UsesFallbackKey())
	assert.False(t, configured.UsesFallbackKey())

	// Both fallback codecs share the development key.
	envelope, err := short.Encrypt("dev data")
	require.NoError(t, err)
	out, err := missing.Decrypt(envelope)
	require.NoError(t, err)
	assert.Equal(t, "dev data", out)
}

func TestCodec_LongSecretIsTruncated(t *testing.T) {
	long := encryption.NewCodec(testSecret + "-ignored-tail")
	exact := encryption.NewCodec(testSecret)

	envelope, err := long.Encrypt("same key")
	require.NoError(t, err)
	out, err := exact.Decrypt(envelope)
	require.NoError(t, err)
	assert.Equal(t, "same key", out)
}

func TestCodec_IsEnvelope(t *testing.T) {
	codec := encryption.NewCodec(testSecret)
	envelope, err := codec.Encrypt("x")
	require.NoError(t, err)

	assert.True(t, codec.IsEnvelope(envelope))
	assert.False(t, codec.IsEnvelope("x"))
	assert.False(t, codec.IsEnvelope("10:30"))
	assert.False(t, encryption.NewCodec("another-key-another-key-another-k").IsEnvelope(envelope))
}
