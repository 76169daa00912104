package wire

import (
	"bytes"
	"testing"

	"github.com/archtick/ecsim"
)

func TestEncodeDecodeHandshake(t *testing.T) {
	m := HandshakeMsg{Envelope: Envelope{Tick: 3}, Domain: 5, ProtocolVersion: 1}
	data := EncodeHandshake(m)
	if mt, err := PeekType(data); err != nil || mt != Handshake {
		t.Fatalf("expected PeekType to report Handshake, got %v, %v", mt, err)
	}
	got, err := DecodeHandshake(data)
	if err != nil {
		t.Fatalf("DecodeHandshake: %v", err)
	}
	if got.Tick != 3 || got.Domain != 5 || got.ProtocolVersion != 1 {
		t.Errorf("unexpected handshake round-trip, got %+v", got)
	}
}

func TestDecodeHandshakeRejectsWrongType(t *testing.T) {
	m := ClockSyncMsg{Envelope: Envelope{Tick: 1}}
	data := EncodeClockSync(m)
	if _, err := DecodeHandshake(data); err == nil {
		t.Error("expected DecodeHandshake to reject a ClockSync envelope")
	}
}

func TestEncodeDecodeClockSync(t *testing.T) {
	m := ClockSyncMsg{Envelope: Envelope{Tick: 7}, T0: 1.5, T1: 2.5, T2: 3.5}
	data := EncodeClockSync(m)
	got, err := DecodeClockSync(data)
	if err != nil {
		t.Fatalf("DecodeClockSync: %v", err)
	}
	if got.Tick != 7 || got.T0 != 1.5 || got.T1 != 2.5 || got.T2 != 3.5 {
		t.Errorf("unexpected clock sync round-trip, got %+v", got)
	}
}

func TestEncodeDecodeCommand(t *testing.T) {
	m := CommandMsg{Envelope: Envelope{Tick: 2}, Payload: []byte("jump")}
	data := EncodeCommand(m)
	got, err := DecodeCommand(data)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if got.Tick != 2 || !bytes.Equal(got.Payload, []byte("jump")) {
		t.Errorf("unexpected command round-trip, got %+v", got)
	}
}

func TestEncodeDecodeCommandEmptyPayload(t *testing.T) {
	m := CommandMsg{Envelope: Envelope{Tick: 2}}
	data := EncodeCommand(m)
	got, err := DecodeCommand(data)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Errorf("expected an empty payload to round-trip as empty, got %v", got.Payload)
	}
}

func TestEncodeDecodeTransactionMsg(t *testing.T) {
	registry := newWireRegistry()
	txn := ecsim.Transaction{
		Tick: 4,
		Ops:  []ecsim.ReplicationOp{{Kind: ecsim.OpDespawn, Entity: ecsim.Entity(1)}},
	}
	data, err := EncodeTransactionMsg(txn, registry)
	if err != nil {
		t.Fatalf("EncodeTransactionMsg: %v", err)
	}
	if mt, err := PeekType(data); err != nil || mt != TransactionT {
		t.Fatalf("expected PeekType to report Transaction, got %v, %v", mt, err)
	}
	got, err := DecodeTransactionMsg(data, registry)
	if err != nil {
		t.Fatalf("DecodeTransactionMsg: %v", err)
	}
	if got.Tick != 4 || len(got.Ops) != 1 || got.Ops[0].Entity != ecsim.Entity(1) {
		t.Errorf("unexpected transaction message round-trip, got %+v", got)
	}
}

func TestEncodeDecodeSnapshotMsg(t *testing.T) {
	registry := newWireRegistry()
	id := ecsim.GetID[wirePosition](registry)
	blocks := []SnapshotBlock{
		{Component: id, Entities: []ecsim.Entity{1}, Values: []any{wirePosition{X: 1, Y: 2}}},
	}
	data, err := EncodeSnapshotMsg(6, blocks, registry)
	if err != nil {
		t.Fatalf("EncodeSnapshotMsg: %v", err)
	}
	if mt, err := PeekType(data); err != nil || mt != SnapshotT {
		t.Fatalf("expected PeekType to report Snapshot, got %v, %v", mt, err)
	}
	tick, got, err := DecodeSnapshotMsg(data, registry)
	if err != nil {
		t.Fatalf("DecodeSnapshotMsg: %v", err)
	}
	if tick != 6 || len(got) != 1 || got[0].Values[0].(wirePosition) != (wirePosition{X: 1, Y: 2}) {
		t.Errorf("unexpected snapshot message round-trip, tick=%d blocks=%+v", tick, got)
	}
}

func TestPeekTypeRejectsEmptyMessage(t *testing.T) {
	if _, err := PeekType(nil); err == nil {
		t.Error("expected PeekType to reject an empty message")
	}
}
