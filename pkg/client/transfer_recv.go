package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/backkem/cmdchat/pkg/envelope"
	"github.com/backkem/cmdchat/pkg/transfer"
)

// inboundTransfer tracks one file-start..file-end sequence received from
// the server, writing chunks to disk as they arrive so the client never
// needs to hold a whole file in memory (spec §3's Transfer, mirrored
// client-side).
type inboundTransfer struct {
	tr   *transfer.Transfer
	f    *os.File
	path string
}

// downloadDir is where /send transfers received from peers are written.
const downloadDir = "cmdchat-downloads"

func (c *Client) handleFileStart(env *envelope.Envelope) error {
	fs, err := envelope.ParseFileStart(env)
	if err != nil {
		return err
	}
	tr, err := transfer.New(fs.TransferID, 0, fs.Filename, fs.Size, fs.TotalChunks)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(downloadDir, fmt.Sprintf("%s-%s", fs.TransferID[:8], filepath.Base(fs.Filename)))
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if c.transfers == nil {
		c.transfers = make(map[string]*inboundTransfer)
	}
	c.transfers[fs.TransferID] = &inboundTransfer{tr: tr, f: f, path: path}
	return nil
}

func (c *Client) handleFileChunk(env *envelope.Envelope) error {
	fc, err := envelope.ParseFileChunk(env)
	if err != nil {
		return err
	}
	in, ok := c.transfers[fc.TransferID]
	if !ok {
		return nil // unknown transfer: nothing to reassemble, rendered as-is
	}
	done, err := in.tr.Accept(fc.Index, len(fc.Data))
	if err != nil {
		in.f.Close()
		delete(c.transfers, fc.TransferID)
		return err
	}
	if _, err := in.f.Write(fc.Data); err != nil {
		return err
	}
	if done {
		in.f.Close()
		delete(c.transfers, fc.TransferID)
		fmt.Fprintf(c.out, "* saved %s\n", in.path)
	}
	return nil
}
