package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
)

// Symmetric cipher constants, per spec §4.2.
const (
	// SymmetricKeySize is the session key size (256 bits).
	SymmetricKeySize = 32

	// NonceSize is the AES-GCM nonce size (96 bits).
	NonceSize = 12

	// TagSize is the AES-GCM authentication tag size.
	TagSize = 16
)

// Codec is a session's authenticated symmetric cipher. A session holds
// exactly one Codec, keyed by its session_key (spec §3), used for all
// post-handshake envelopes in both directions.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a Codec from a 256-bit session key.
func NewCodec(sessionKey []byte) (*Codec, error) {
	if len(sessionKey) != SymmetricKeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// Encrypt encrypts plaintext, returning nonce || ciphertext || tag, the
// exact frame payload format specified for post-handshake traffic (spec §6).
// A fresh random 96-bit nonce is generated for every call, which is
// acceptable given the bounded number of messages per session (spec §4.2).
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, NonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt reverses Encrypt. It fails closed: any authentication failure
// returns ErrDecryptFailed with no partial plaintext, and per spec §4.2
// the caller must terminate the session.
func (c *Codec) Decrypt(data []byte) ([]byte, error) {
	if len(data) < NonceSize+TagSize {
		return nil, ErrDecryptFailed
	}
	nonce := data[:NonceSize]
	ciphertext := data[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// GenerateSessionKey generates a fresh 256-bit symmetric session key.
func GenerateSessionKey() ([]byte, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Zeroize overwrites key with zero bytes. Call on session termination
// (spec §4.7) so the session key never lingers in memory.
func Zeroize(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
