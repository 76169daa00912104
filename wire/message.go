package wire

import (
	"bytes"
	"fmt"

	"github.com/archtick/ecsim"
)

// Envelope is the common header every message shares (§6: "Every message
// begins with a one-byte message type and a varint tick").
type Envelope struct {
	Type MessageType
	Tick uint32
}

// HandshakeMsg carries the minimum a peer needs to validate wire
// compatibility before exchanging simulation traffic: the sender's domain
// id and the protocol version it speaks. spec.md leaves the handshake
// payload unspecified beyond "one-byte tag + varint tick"; this is the
// direct, mechanical completion of that contract (SPEC_FULL.md's
// supplemented-features list).
type HandshakeMsg struct {
	Envelope
	Domain          uint32
	ProtocolVersion uint32
}

// ClockSyncMsg is the three-timestamp NTP-style offset probe (§6
// "ClockSync: three f64 timestamps (t0, t1, t2)").
type ClockSyncMsg struct {
	Envelope
	T0, T1, T2 float64
}

// CommandMsg is an opaque, application-defined payload (input commands,
// chat, RPC) the core passes through without interpreting — it rides the
// same envelope as the simulation messages but carries caller-supplied
// bytes verbatim.
type CommandMsg struct {
	Envelope
	Payload []byte
}

// TransactionMsg pairs an Envelope with an encoded Transaction payload.
type TransactionMsg struct {
	Envelope
	Payload []byte
}

// SnapshotMsg pairs an Envelope with an encoded Snapshot payload.
type SnapshotMsg struct {
	Envelope
	Payload []byte
}

func putEnvelope(buf *bytes.Buffer, e Envelope) {
	buf.WriteByte(byte(e.Type))
	putUvarint(buf, uint64(e.Tick))
}

func readEnvelope(r *bytes.Reader) (Envelope, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: read message type: %w", err)
	}
	tick, err := readUvarint(r)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: read message tick: %w", err)
	}
	return Envelope{Type: MessageType(tagByte), Tick: uint32(tick)}, nil
}

// EncodeHandshake frames a HandshakeMsg.
func EncodeHandshake(m HandshakeMsg) []byte {
	buf := new(bytes.Buffer)
	m.Type = Handshake
	putEnvelope(buf, m.Envelope)
	putUvarint(buf, uint64(m.Domain))
	putUvarint(buf, uint64(m.ProtocolVersion))
	return buf.Bytes()
}

// DecodeHandshake parses a message framed by EncodeHandshake.
func DecodeHandshake(data []byte) (HandshakeMsg, error) {
	r := bytes.NewReader(data)
	env, err := readEnvelope(r)
	if err != nil {
		return HandshakeMsg{}, err
	}
	if env.Type != Handshake {
		return HandshakeMsg{}, fmt.Errorf("wire: expected Handshake, got %s", env.Type)
	}
	domain, err := readUvarint(r)
	if err != nil {
		return HandshakeMsg{}, fmt.Errorf("wire: read handshake domain: %w", err)
	}
	version, err := readUvarint(r)
	if err != nil {
		return HandshakeMsg{}, fmt.Errorf("wire: read handshake version: %w", err)
	}
	return HandshakeMsg{Envelope: env, Domain: uint32(domain), ProtocolVersion: uint32(version)}, nil
}

// EncodeClockSync frames a ClockSyncMsg.
func EncodeClockSync(m ClockSyncMsg) []byte {
	buf := new(bytes.Buffer)
	m.Type = ClockSyncT
	putEnvelope(buf, m.Envelope)
	putF64(buf, m.T0)
	putF64(buf, m.T1)
	putF64(buf, m.T2)
	return buf.Bytes()
}

// DecodeClockSync parses a message framed by EncodeClockSync.
func DecodeClockSync(data []byte) (ClockSyncMsg, error) {
	r := bytes.NewReader(data)
	env, err := readEnvelope(r)
	if err != nil {
		return ClockSyncMsg{}, err
	}
	if env.Type != ClockSyncT {
		return ClockSyncMsg{}, fmt.Errorf("wire: expected ClockSync, got %s", env.Type)
	}
	t0, err := readF64(r)
	if err != nil {
		return ClockSyncMsg{}, err
	}
	t1, err := readF64(r)
	if err != nil {
		return ClockSyncMsg{}, err
	}
	t2, err := readF64(r)
	if err != nil {
		return ClockSyncMsg{}, err
	}
	return ClockSyncMsg{Envelope: env, T0: t0, T1: t1, T2: t2}, nil
}

// EncodeCommand frames a CommandMsg: the envelope followed by a varint
// length prefix and the raw payload bytes.
func EncodeCommand(m CommandMsg) []byte {
	buf := new(bytes.Buffer)
	m.Type = Command
	putEnvelope(buf, m.Envelope)
	putUvarint(buf, uint64(len(m.Payload)))
	buf.Write(m.Payload)
	return buf.Bytes()
}

// DecodeCommand parses a message framed by EncodeCommand.
func DecodeCommand(data []byte) (CommandMsg, error) {
	r := bytes.NewReader(data)
	env, err := readEnvelope(r)
	if err != nil {
		return CommandMsg{}, err
	}
	if env.Type != Command {
		return CommandMsg{}, fmt.Errorf("wire: expected Command, got %s", env.Type)
	}
	n, err := readUvarint(r)
	if err != nil {
		return CommandMsg{}, fmt.Errorf("wire: read command length: %w", err)
	}
	payload := make([]byte, n)
	if _, err := r.Read(payload); err != nil && n > 0 {
		return CommandMsg{}, fmt.Errorf("wire: read command payload: %w", err)
	}
	return CommandMsg{Envelope: env, Payload: payload}, nil
}

// EncodeTransactionMsg wraps an encoded Transaction payload in its envelope.
func EncodeTransactionMsg(txn ecsim.Transaction, registry *ecsim.Registry) ([]byte, error) {
	payload, err := EncodeTransaction(txn, registry)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	putEnvelope(buf, Envelope{Type: TransactionT, Tick: txn.Tick})
	buf.Write(payload)
	return buf.Bytes(), nil
}

// DecodeTransactionMsg unwraps a message framed by EncodeTransactionMsg and
// decodes its Transaction payload.
func DecodeTransactionMsg(data []byte, registry *ecsim.Registry) (ecsim.Transaction, error) {
	r := bytes.NewReader(data)
	env, err := readEnvelope(r)
	if err != nil {
		return ecsim.Transaction{}, err
	}
	if env.Type != TransactionT {
		return ecsim.Transaction{}, fmt.Errorf("wire: expected Transaction, got %s", env.Type)
	}
	rest := make([]byte, r.Len())
	if _, err := r.Read(rest); err != nil && len(rest) > 0 {
		return ecsim.Transaction{}, fmt.Errorf("wire: read transaction payload: %w", err)
	}
	return DecodeTransaction(rest, env.Tick, registry)
}

// EncodeSnapshotMsg wraps an encoded Snapshot payload in its envelope.
func EncodeSnapshotMsg(tick uint32, blocks []SnapshotBlock, registry *ecsim.Registry) ([]byte, error) {
	payload, err := EncodeSnapshot(blocks, registry)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	putEnvelope(buf, Envelope{Type: SnapshotT, Tick: tick})
	buf.Write(payload)
	return buf.Bytes(), nil
}

// DecodeSnapshotMsg unwraps a message framed by EncodeSnapshotMsg and
// decodes its Snapshot payload, returning the tick it targets alongside
// the blocks (callers typically pass the tick's composite version on to
// ApplySnapshotBlocks).
func DecodeSnapshotMsg(data []byte, registry *ecsim.Registry) (uint32, []SnapshotBlock, error) {
	r := bytes.NewReader(data)
	env, err := readEnvelope(r)
	if err != nil {
		return 0, nil, err
	}
	if env.Type != SnapshotT {
		return 0, nil, fmt.Errorf("wire: expected Snapshot, got %s", env.Type)
	}
	rest := make([]byte, r.Len())
	if _, err := r.Read(rest); err != nil && len(rest) > 0 {
		return 0, nil, fmt.Errorf("wire: read snapshot payload: %w", err)
	}
	blocks, err := DecodeSnapshot(rest, registry)
	return env.Tick, blocks, err
}

// PeekType reads just the one-byte message tag without consuming the rest
// of data, letting a transport dispatch to the right Decode* function.
func PeekType(data []byte) (MessageType, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("wire: empty message")
	}
	return MessageType(data[0]), nil
}
