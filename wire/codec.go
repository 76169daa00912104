// Package wire implements the §6 binary transport framing: a one-byte
// message tag plus a varint tick, followed by a type-specific payload.
// Every multi-byte numeric field is little-endian, matching the teacher's
// own encoding/binary usage throughout the core (component.go's
// binarySerde) and the rest of the pack's wire-shaped code (erigon,
// aistore, bart all reach for encoding/binary + protobuf-style varints
// for exactly this framing shape — see SPEC_FULL.md's domain stack table).
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MessageType tags the payload that follows a message's tick varint.
type MessageType byte

const (
	Handshake   MessageType = 1
	ClockSyncT  MessageType = 2
	TransactionT MessageType = 3
	SnapshotT   MessageType = 4
	Command     MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case Handshake:
		return "Handshake"
	case ClockSyncT:
		return "ClockSync"
	case TransactionT:
		return "Transaction"
	case SnapshotT:
		return "Snapshot"
	case Command:
		return "Command"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(t))
	}
}

// opTag identifies a ReplicationOp's wire encoding, independent of the
// core's own OpKind iota ordering (the wire format is a stable contract;
// the core's internal enum is free to be renumbered).
type opTag byte

const (
	opSpawn   opTag = 1
	opDespawn opTag = 2
	opSet     opTag = 3
	opRemove  opTag = 4
)

// putUvarint appends x to buf using the same LEB128 varint encoding as
// encoding/binary.PutUvarint (§6 "varint" fields throughout).
func putUvarint(buf *bytes.Buffer, x uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], x)
	buf.Write(tmp[:n])
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("wire: read varint: %w", err)
	}
	return v, nil
}

// putRelPresent writes a one-byte flag: 1 if a rel pair follows (two u32
// ids, relation then object), 0 otherwise. optionalRelPair in §6 is
// present iff the component id is a virtual relation id — callers decide
// that upstream and pass the pair or nil here.
func putRelPresent(buf *bytes.Buffer, relation, object *uint32) {
	if relation == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], *relation)
	buf.Write(tmp[:])
	binary.LittleEndian.PutUint32(tmp[:], *object)
	buf.Write(tmp[:])
}

func readRelPresent(r *bytes.Reader) (relation, object uint32, present bool, err error) {
	flag, err := r.ReadByte()
	if err != nil {
		return 0, 0, false, fmt.Errorf("wire: read rel presence: %w", err)
	}
	if flag == 0 {
		return 0, 0, false, nil
	}
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, 0, false, fmt.Errorf("wire: read rel relation: %w", err)
	}
	relation = binary.LittleEndian.Uint32(tmp[:])
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, 0, false, fmt.Errorf("wire: read rel object: %w", err)
	}
	object = binary.LittleEndian.Uint32(tmp[:])
	return relation, object, true, nil
}

func putU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("wire: read u32: %w", err)
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

func putF64(buf *bytes.Buffer, v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	buf.Write(tmp[:])
}

func readF64(r *bytes.Reader) (float64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("wire: read f64: %w", err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(tmp[:])), nil
}
