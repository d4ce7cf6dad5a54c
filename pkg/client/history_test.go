package client

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/backkem/cmdchat/pkg/envelope"
	"github.com/backkem/cmdchat/pkg/frame"
)

func TestHistoryRoundTripsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.enc")

	h, err := openHistory(path, "correct horse")
	if err != nil {
		t.Fatalf("openHistory() error: %v", err)
	}
	rec := envelope.Chat{Sender: "alice", Room: "lobby", Text: "hi"}.ToEnvelope().Encode()
	if err := h.Append(rec); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	h2, err := openHistory(path, "correct horse")
	if err != nil {
		t.Fatalf("reopen openHistory() error: %v", err)
	}
	defer h2.Close()

	plaintext, err := h2.codec.Decrypt(readNextRecord(t, h2))
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !bytes.Equal(plaintext, rec) {
		t.Fatalf("decrypted record mismatch")
	}
}

func TestHistoryWrongPassphraseFailsToDecrypt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.enc")

	h, err := openHistory(path, "right")
	if err != nil {
		t.Fatalf("openHistory() error: %v", err)
	}
	rec := envelope.System{Text: "hello"}.ToEnvelope().Encode()
	if err := h.Append(rec); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	h.Close()

	h2, err := openHistory(path, "wrong")
	if err != nil {
		t.Fatalf("reopen openHistory() error: %v", err)
	}
	defer h2.Close()

	ciphertext := readNextRecord(t, h2)
	if _, err := h2.codec.Decrypt(ciphertext); err == nil {
		t.Fatalf("expected decrypt failure with wrong passphrase")
	}
}

// readNextRecord re-reads the file from the start, skips the salt
// header frame, and returns the first data record's raw ciphertext.
func readNextRecord(t *testing.T, h *history) []byte {
	t.Helper()
	f, err := os.Open(h.f.Name())
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer f.Close()

	fr := frame.NewReader(f)
	if _, err := fr.ReadFrame(); err != nil { // salt header
		t.Fatalf("read salt header: %v", err)
	}
	rec, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	return rec
}
