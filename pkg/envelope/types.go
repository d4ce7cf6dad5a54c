package envelope

import "encoding/base64"

// Hello is the client's plaintext handshake opener (spec §4.3 step 2).
type Hello struct {
	PeerPublicKey []byte // DER-encoded RSA public key
	Name          string
	Room          string
	Token         string // optional
}

// ToEnvelope encodes h as an Envelope.
func (h Hello) ToEnvelope() *Envelope {
	e := New(KindHello).
		SetString("peer_public_key", base64.StdEncoding.EncodeToString(h.PeerPublicKey)).
		SetString("name", h.Name).
		SetString("room", h.Room)
	if h.Token != "" {
		e.SetString("token", h.Token)
	}
	return e
}

// ParseHello decodes an Envelope of KindHello.
func ParseHello(e *Envelope) (Hello, error) {
	pub, err := e.RequireString("peer_public_key")
	if err != nil {
		return Hello{}, err
	}
	key, err := base64.StdEncoding.DecodeString(pub)
	if err != nil {
		return Hello{}, ErrInvalidField
	}
	name, err := e.RequireString("name")
	if err != nil {
		return Hello{}, err
	}
	room, err := e.RequireString("room")
	if err != nil {
		return Hello{}, err
	}
	return Hello{
		PeerPublicKey: key,
		Name:          name,
		Room:          room,
		Token:         e.OptString("token", ""),
	}, nil
}

// SessionInit is the server's plaintext handshake reply (spec §4.3 step 4).
type SessionInit struct {
	WrappedKey []byte
	ClientID   uint64
	ServerTime int64 // UTC unix ms
}

func (s SessionInit) ToEnvelope() *Envelope {
	return New(KindSessionInit).
		SetString("wrapped_key", base64.StdEncoding.EncodeToString(s.WrappedKey)).
		SetUint("client_id", s.ClientID).
		SetInt("server_time", s.ServerTime)
}

func ParseSessionInit(e *Envelope) (SessionInit, error) {
	wk, err := e.RequireString("wrapped_key")
	if err != nil {
		return SessionInit{}, err
	}
	key, err := base64.StdEncoding.DecodeString(wk)
	if err != nil {
		return SessionInit{}, ErrInvalidField
	}
	clientID, err := e.RequireUint("client_id")
	if err != nil {
		return SessionInit{}, err
	}
	serverTime, err := e.RequireInt("server_time")
	if err != nil {
		return SessionInit{}, err
	}
	return SessionInit{WrappedKey: key, ClientID: clientID, ServerTime: serverTime}, nil
}

// Chat is a chat message. A client sending one fills only Text; the
// server fills Sender, Room, Ts, and Seq before broadcasting.
type Chat struct {
	Sender string
	Room   string
	Text   string
	Ts     int64
	Seq    uint64
}

func (c Chat) ToEnvelope() *Envelope {
	e := New(KindChat).SetString("text", c.Text)
	if c.Sender != "" {
		e.SetString("sender", c.Sender)
	}
	if c.Room != "" {
		e.SetString("room", c.Room)
	}
	if c.Ts != 0 {
		e.SetInt("ts", c.Ts)
	}
	e.SetUint("seq", c.Seq)
	return e
}

func ParseChat(e *Envelope) (Chat, error) {
	text, err := e.RequireString("text")
	if err != nil {
		return Chat{}, err
	}
	c := Chat{
		Text:   text,
		Sender: e.OptString("sender", ""),
		Room:   e.OptString("room", ""),
	}
	if v, ok := e.String("ts"); ok {
		ts, err := e.RequireInt("ts")
		if err != nil {
			return Chat{}, err
		}
		c.Ts = ts
		_ = v
	}
	if v, ok := e.String("seq"); ok {
		seq, err := e.RequireUint("seq")
		if err != nil {
			return Chat{}, err
		}
		c.Seq = seq
		_ = v
	}
	return c, nil
}

// System is a server-originated informational broadcast.
type System struct {
	Text string
}

func (s System) ToEnvelope() *Envelope {
	return New(KindSystem).SetString("text", s.Text)
}

func ParseSystem(e *Envelope) (System, error) {
	text, err := e.RequireString("text")
	if err != nil {
		return System{}, err
	}
	return System{Text: text}, nil
}

// CmdNick is the structured form of a client's "/nick" command.
type CmdNick struct {
	Name string
}

func (c CmdNick) ToEnvelope() *Envelope {
	return New(KindCmdNick).SetString("name", c.Name)
}

func ParseCmdNick(e *Envelope) (CmdNick, error) {
	name, err := e.RequireString("name")
	if err != nil {
		return CmdNick{}, err
	}
	return CmdNick{Name: name}, nil
}

// CmdJoin is the structured form of a client's "/join" command.
type CmdJoin struct {
	Room string
}

func (c CmdJoin) ToEnvelope() *Envelope {
	return New(KindCmdJoin).SetString("room", c.Room)
}

func ParseCmdJoin(e *Envelope) (CmdJoin, error) {
	room, err := e.RequireString("room")
	if err != nil {
		return CmdJoin{}, err
	}
	return CmdJoin{Room: room}, nil
}

// CmdQuit is the structured form of a client's "/quit" command. It carries
// no fields.
type CmdQuit struct{}

func (CmdQuit) ToEnvelope() *Envelope {
	return New(KindCmdQuit)
}

// FileStart announces the beginning of a chunked file transfer.
type FileStart struct {
	TransferID   string
	Filename     string
	Size         uint64
	TotalChunks  uint64
	Sender       string // set by the server when rebroadcasting
}

func (f FileStart) ToEnvelope() *Envelope {
	e := New(KindFileStart).
		SetString("transfer_id", f.TransferID).
		SetString("filename", f.Filename).
		SetUint("size", f.Size).
		SetUint("total_chunks", f.TotalChunks)
	if f.Sender != "" {
		e.SetString("sender", f.Sender)
	}
	return e
}

func ParseFileStart(e *Envelope) (FileStart, error) {
	id, err := e.RequireString("transfer_id")
	if err != nil {
		return FileStart{}, err
	}
	name, err := e.RequireString("filename")
	if err != nil {
		return FileStart{}, err
	}
	size, err := e.RequireUint("size")
	if err != nil {
		return FileStart{}, err
	}
	chunks, err := e.RequireUint("total_chunks")
	if err != nil {
		return FileStart{}, err
	}
	return FileStart{
		TransferID:  id,
		Filename:    name,
		Size:        size,
		TotalChunks: chunks,
		Sender:      e.OptString("sender", ""),
	}, nil
}

// FileChunk carries one chunk of a file transfer.
type FileChunk struct {
	TransferID string
	Index      uint64
	Data       []byte
}

func (f FileChunk) ToEnvelope() *Envelope {
	return New(KindFileChunk).
		SetString("transfer_id", f.TransferID).
		SetUint("index", f.Index).
		SetString("data_b64", base64.StdEncoding.EncodeToString(f.Data))
}

func ParseFileChunk(e *Envelope) (FileChunk, error) {
	id, err := e.RequireString("transfer_id")
	if err != nil {
		return FileChunk{}, err
	}
	index, err := e.RequireUint("index")
	if err != nil {
		return FileChunk{}, err
	}
	b64, err := e.RequireString("data_b64")
	if err != nil {
		return FileChunk{}, err
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return FileChunk{}, ErrInvalidField
	}
	return FileChunk{TransferID: id, Index: index, Data: data}, nil
}

// FileEnd marks the end of a completed file transfer.
type FileEnd struct {
	TransferID string
}

func (f FileEnd) ToEnvelope() *Envelope {
	return New(KindFileEnd).SetString("transfer_id", f.TransferID)
}

func ParseFileEnd(e *Envelope) (FileEnd, error) {
	id, err := e.RequireString("transfer_id")
	if err != nil {
		return FileEnd{}, err
	}
	return FileEnd{TransferID: id}, nil
}

// Ping is a liveness probe sent by the server.
type Ping struct {
	Nonce uint64
}

func (p Ping) ToEnvelope() *Envelope {
	return New(KindPing).SetUint("nonce", p.Nonce)
}

func ParsePing(e *Envelope) (Ping, error) {
	nonce, err := e.RequireUint("nonce")
	if err != nil {
		return Ping{}, err
	}
	return Ping{Nonce: nonce}, nil
}

// Pong answers a Ping.
type Pong struct {
	Nonce uint64
}

func (p Pong) ToEnvelope() *Envelope {
	return New(KindPong).SetUint("nonce", p.Nonce)
}

func ParsePong(e *Envelope) (Pong, error) {
	nonce, err := e.RequireUint("nonce")
	if err != nil {
		return Pong{}, err
	}
	return Pong{Nonce: nonce}, nil
}

// Error carries a protocol-level error code to the peer.
type Error struct {
	Code    string
	Message string // optional
}

func (e Error) ToEnvelope() *Envelope {
	env := New(KindError).SetString("code", e.Code)
	if e.Message != "" {
		env.SetString("message", e.Message)
	}
	return env
}

func ParseError(e *Envelope) (Error, error) {
	code, err := e.RequireString("code")
	if err != nil {
		return Error{}, err
	}
	return Error{Code: code, Message: e.OptString("message", "")}, nil
}
