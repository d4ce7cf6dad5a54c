package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// History file key derivation parameters (spec §6.1).
const (
	// HistorySaltSize is the size of the random salt stored in a history file's header frame.
	HistorySaltSize = 16

	// HistoryPBKDF2Iterations is the PBKDF2 iteration count for history-file keys.
	HistoryPBKDF2Iterations = 100000
)

// HKDFSHA256 derives key material using HKDF-SHA256 (RFC 5869).
//
// Parameters:
//   - inputKey: Input keying material (IKM)
//   - salt: Optional salt value (can be nil or empty)
//   - info: Optional context/application-specific info (can be nil or empty)
//   - length: Number of bytes to derive
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}

// PBKDF2SHA256 derives a key from a password using PBKDF2-HMAC-SHA256.
func PBKDF2SHA256(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
}

// DeriveHistoryKey derives the AES-256 key used to encrypt a client's
// history file from --history-passphrase and the file's stored salt.
func DeriveHistoryKey(passphrase string, salt []byte) []byte {
	return PBKDF2SHA256([]byte(passphrase), salt, HistoryPBKDF2Iterations, SymmetricKeySize)
}
