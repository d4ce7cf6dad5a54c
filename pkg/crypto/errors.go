package crypto

import "errors"

// Crypto package errors.
var (
	// ErrInvalidKeySize is returned when a symmetric key is not SymmetricKeySize bytes.
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrInvalidNonceSize names a nonce that is not NonceSize bytes. No
	// function in this package returns it: Decrypt reports input shorter
	// than a nonce as ErrDecryptFailed.
	ErrInvalidNonceSize = errors.New("crypto: invalid nonce size")

	// ErrDecryptFailed is returned when authenticated decryption fails (tag mismatch).
	// Per spec §7 this is fatal to the session.
	ErrDecryptFailed = errors.New("crypto: decryption failed")

	// ErrInvalidPublicKey is returned when a peer public key does not parse as a
	// 2048-bit RSA public key.
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrUnwrapFailed is returned when a wrapped session key fails to unwrap.
	ErrUnwrapFailed = errors.New("crypto: key unwrap failed")
)
