package client

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/backkem/cmdchat/pkg/crypto"
	"github.com/backkem/cmdchat/pkg/frame"
)

// history is an append-only, encrypted transcript of every chat envelope
// the client renders, reusing the frame length-prefix format on disk (spec
// §4.1.1/§6.1). The first frame in the file is a plaintext salt record;
// every frame after it is AES-256-GCM ciphertext keyed by
// crypto.DeriveHistoryKey(passphrase, salt).
type history struct {
	f     *os.File
	codec *crypto.Codec
}

// openHistory opens (creating if necessary) path for appending. A fresh
// file is initialized with a random salt header; an existing file's
// stored salt is reused so the same passphrase continues to decrypt it.
func openHistory(path, passphrase string) (*history, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	var salt []byte
	if info.Size() == 0 {
		salt = make([]byte, crypto.HistorySaltSize)
		if _, err := rand.Read(salt); err != nil {
			f.Close()
			return nil, err
		}
		if err := frame.NewWriter(f).WriteFrame(salt); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		salt, err = frame.NewReader(f).ReadFrame()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("read history salt: %w", err)
		}
	}

	key := crypto.DeriveHistoryKey(passphrase, salt)
	codec, err := crypto.NewCodec(key)
	crypto.Zeroize(key)
	if err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.Seek(0, os.SEEK_END); err != nil {
		f.Close()
		return nil, err
	}

	return &history{f: f, codec: codec}, nil
}

// Append encrypts and writes one record (the raw encoded envelope) to
// the history file.
func (h *history) Append(plaintext []byte) error {
	ciphertext, err := h.codec.Encrypt(plaintext)
	if err != nil {
		return err
	}
	return frame.NewWriter(h.f).WriteFrame(ciphertext)
}

func (h *history) Close() error {
	return h.f.Close()
}
