package crypto

import (
	"bytes"
	"testing"
)

func TestCodecRoundtrip(t *testing.T) {
	key, err := GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey() error: %v", err)
	}
	codec, err := NewCodec(key)
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}

	tests := [][]byte{
		nil,
		[]byte("hello"),
		bytes.Repeat([]byte{0x42}, 65516),
	}
	for _, plaintext := range tests {
		ciphertext, err := codec.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt() error: %v", err)
		}
		got, err := codec.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt() error: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("roundtrip mismatch: got %d bytes, want %d bytes", len(got), len(plaintext))
		}
	}
}

func TestCodecNonceIsFreshEveryCall(t *testing.T) {
	key, _ := GenerateSessionKey()
	codec, _ := NewCodec(key)

	a, _ := codec.Encrypt([]byte("same plaintext"))
	b, _ := codec.Encrypt([]byte("same plaintext"))
	if bytes.Equal(a[:NonceSize], b[:NonceSize]) {
		t.Fatal("two encryptions produced the same nonce")
	}
}

func TestDecryptFailsClosedOnTamper(t *testing.T) {
	key, _ := GenerateSessionKey()
	codec, _ := NewCodec(key)

	ciphertext, _ := codec.Encrypt([]byte("integrity matters"))
	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := codec.Decrypt(ciphertext); err != ErrDecryptFailed {
		t.Fatalf("Decrypt() error = %v, want ErrDecryptFailed", err)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key1, _ := GenerateSessionKey()
	key2, _ := GenerateSessionKey()
	codec1, _ := NewCodec(key1)
	codec2, _ := NewCodec(key2)

	ciphertext, _ := codec1.Encrypt([]byte("secret"))
	if _, err := codec2.Decrypt(ciphertext); err != ErrDecryptFailed {
		t.Fatalf("Decrypt() error = %v, want ErrDecryptFailed", err)
	}
}

func TestKeyWrapRoundtrip(t *testing.T) {
	priv, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}
	der := EncodePublicKey(&priv.PublicKey)

	pub, err := ParsePublicKey(der)
	if err != nil {
		t.Fatalf("ParsePublicKey() error: %v", err)
	}

	sessionKey, _ := GenerateSessionKey()
	wrapped, err := WrapSessionKey(pub, sessionKey)
	if err != nil {
		t.Fatalf("WrapSessionKey() error: %v", err)
	}

	unwrapped, err := UnwrapSessionKey(priv, wrapped)
	if err != nil {
		t.Fatalf("UnwrapSessionKey() error: %v", err)
	}
	if !bytes.Equal(unwrapped, sessionKey) {
		t.Fatal("unwrapped session key does not match original")
	}
}

func TestParsePublicKeyRejectsCorruptedDER(t *testing.T) {
	// A corrupted DER encoding must be rejected.
	priv, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}
	der := EncodePublicKey(&priv.PublicKey)
	der[0] ^= 0xFF // corrupt to force a parse error
	if _, err := ParsePublicKey(der); err == nil {
		t.Fatal("ParsePublicKey() accepted corrupted DER")
	}
}

func TestDeriveHistoryKeyDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x01}, HistorySaltSize)
	k1 := DeriveHistoryKey("correct horse battery staple", salt)
	k2 := DeriveHistoryKey("correct horse battery staple", salt)
	if !bytes.Equal(k1, k2) {
		t.Fatal("DeriveHistoryKey not deterministic for same passphrase/salt")
	}
	k3 := DeriveHistoryKey("different", salt)
	if bytes.Equal(k1, k3) {
		t.Fatal("DeriveHistoryKey produced same key for different passphrases")
	}
}

func TestZeroize(t *testing.T) {
	key, _ := GenerateSessionKey()
	Zeroize(key)
	for _, b := range key {
		if b != 0 {
			t.Fatal("Zeroize left nonzero bytes")
		}
	}
}
