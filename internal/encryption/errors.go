package encryption

import "errors"

var (
	// ErrNotEnvelope means the input has no delimiter and is treated as legacy plaintext.
	ErrNotEnvelope = errors.New("not an encryption envelope")
	// ErrMalformedEnvelope means the input has a delimiter but its fields do not decode.
	ErrMalformedEnvelope = errors.New("malformed encryption envelope")
	// ErrCipher covers IV generation and cipher verification failures.
	ErrCipher = errors.New("cipher failure")
)
