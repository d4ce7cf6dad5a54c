// Package crypto implements the two cryptographic primitives cmdchat
// depends on (spec §4.2): RSA-OAEP key-wrap for delivering a session key
// at handshake time, and AES-256-GCM for all subsequent traffic.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
)

// RSAKeyBits is the required RSA modulus size for peer public keys, per
// spec §4.2.
const RSAKeyBits = 2048

// ParsePublicKey parses a DER-encoded RSA public key (as supplied by a
// client's hello envelope) and verifies it is 2048 bits, per spec §4.3
// step 3.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		generic, genErr := x509.ParsePKIXPublicKey(der)
		if genErr != nil {
			return nil, ErrInvalidPublicKey
		}
		rsaPub, ok := generic.(*rsa.PublicKey)
		if !ok {
			return nil, ErrInvalidPublicKey
		}
		pub = rsaPub
	}
	if pub.N.BitLen() != RSAKeyBits {
		return nil, ErrInvalidPublicKey
	}
	return pub, nil
}

// EncodePublicKey serializes an RSA public key to the DER form ParsePublicKey expects.
func EncodePublicKey(pub *rsa.PublicKey) []byte {
	return x509.MarshalPKCS1PublicKey(pub)
}

// WrapSessionKey wraps a freshly generated symmetric session key for the
// holder of peerPub's matching private key, using RSA-OAEP (spec §4.2).
func WrapSessionKey(peerPub *rsa.PublicKey, sessionKey []byte) ([]byte, error) {
	if len(sessionKey) != SymmetricKeySize {
		return nil, ErrInvalidKeySize
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, peerPub, sessionKey, nil)
}

// UnwrapSessionKey recovers the session key wrapped by WrapSessionKey.
func UnwrapSessionKey(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	if len(key) != SymmetricKeySize {
		return nil, ErrUnwrapFailed
	}
	return key, nil
}

// GenerateKeyPair generates a new 2048-bit RSA key pair for a client's
// handshake identity.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, RSAKeyBits)
}
