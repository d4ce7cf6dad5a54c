// Package transfer tracks in-progress chunked file relays (spec §3, §4.8).
// The server never persists reassembled content: the accumulator here
// exists only to enforce size bounds and monotonic chunk ordering before
// a chunk is forwarded.
package transfer

import "sync"

const (
	// ChunkSize is the wire chunk size before base64 encoding (spec §4.8).
	ChunkSize = 32 * 1024

	// MaxSize is the maximum total file size a transfer may declare (spec §3).
	MaxSize = 10 * 1024 * 1024
)

// Transfer is one in-progress inbound file reassembly, owned by a single
// Session (spec §3).
type Transfer struct {
	ID             string
	SenderID       uint64
	Filename       string
	TotalSize      uint64
	TotalChunks    uint64
	receivedChunks uint64
	accumulated    uint64

	mu sync.Mutex
}

// New creates a Transfer for a file-start envelope. Returns ErrOversize if
// totalSize exceeds MaxSize.
func New(id string, senderID uint64, filename string, totalSize, totalChunks uint64) (*Transfer, error) {
	if totalSize > MaxSize {
		return nil, ErrOversize
	}
	return &Transfer{
		ID:          id,
		SenderID:    senderID,
		Filename:    filename,
		TotalSize:   totalSize,
		TotalChunks: totalChunks,
	}, nil
}

// Accept records a received chunk at index, enforcing monotonic ordering
// and the total size bound. Returns (done, error): done is true when this
// was the final chunk (index == TotalChunks-1).
func (t *Transfer) Accept(index uint64, chunkLen int) (done bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index != t.receivedChunks {
		return false, ErrOutOfOrder
	}

	newTotal := t.accumulated + uint64(chunkLen)
	if newTotal > t.TotalSize {
		return false, ErrOverflow
	}

	t.accumulated = newTotal
	t.receivedChunks++

	return index == t.TotalChunks-1, nil
}

// ReceivedChunks returns the count of chunks accepted so far.
func (t *Transfer) ReceivedChunks() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.receivedChunks
}

// Accumulated returns the total bytes accepted so far.
func (t *Transfer) Accumulated() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accumulated
}

// Table is a session's map of in-progress transfers, keyed by transfer id.
// It is not safe for concurrent use across goroutines beyond the owning
// session's reader task, matching spec §5's single-writer discipline for
// session-local state.
type Table struct {
	byID map[string]*Transfer
}

// NewTable creates an empty transfer table.
func NewTable() *Table {
	return &Table{byID: make(map[string]*Transfer)}
}

// Start adds a new Transfer to the table. Returns ErrAlreadyExists if the
// transfer id is already in progress.
func (tbl *Table) Start(tr *Transfer) error {
	if _, exists := tbl.byID[tr.ID]; exists {
		return ErrAlreadyExists
	}
	tbl.byID[tr.ID] = tr
	return nil
}

// Get looks up a Transfer by id.
func (tbl *Table) Get(id string) (*Transfer, error) {
	tr, ok := tbl.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tr, nil
}

// Remove discards a Transfer, called on completion (file-end) or session end.
func (tbl *Table) Remove(id string) {
	delete(tbl.byID, id)
}

// Len reports the number of in-progress transfers.
func (tbl *Table) Len() int {
	return len(tbl.byID)
}
