package wire

import (
	"testing"

	"github.com/archtick/ecsim"
)

type wirePosition struct {
	X, Y float32
}

func newWireRegistry() *ecsim.Registry {
	r := ecsim.NewRegistry()
	ecsim.RegisterComponent[wirePosition](r, "Position")
	return r
}

func TestEncodeDecodeTransactionSpawn(t *testing.T) {
	registry := newWireRegistry()
	id := ecsim.GetID[wirePosition](registry)
	txn := ecsim.Transaction{
		Domain:   1,
		Sequence: 2,
		Tick:     9,
		Ops: []ecsim.ReplicationOp{
			{
				Kind:      ecsim.OpSpawn,
				Entity:    ecsim.Entity(42),
				CausalKey: 7,
				Initial: []ecsim.ComponentValue{
					{ID: id, Value: wirePosition{X: 1, Y: 2}},
				},
			},
		},
	}

	data, err := EncodeTransaction(txn, registry)
	if err != nil {
		t.Fatalf("EncodeTransaction: %v", err)
	}
	got, err := DecodeTransaction(data, txn.Tick, registry)
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	if got.Domain != txn.Domain || got.Sequence != txn.Sequence || got.Tick != txn.Tick {
		t.Fatalf("envelope mismatch, got %+v", got)
	}
	if len(got.Ops) != 1 || got.Ops[0].Kind != ecsim.OpSpawn || got.Ops[0].Entity != ecsim.Entity(42) {
		t.Fatalf("unexpected spawn op, got %+v", got.Ops)
	}
	if got.Ops[0].CausalKey != 7 {
		t.Errorf("expected causal key to round-trip, got %d", got.Ops[0].CausalKey)
	}
	if len(got.Ops[0].Initial) != 1 || got.Ops[0].Initial[0].Value.(wirePosition) != (wirePosition{X: 1, Y: 2}) {
		t.Errorf("expected initial value to round-trip, got %+v", got.Ops[0].Initial)
	}
}

func TestEncodeDecodeTransactionDespawn(t *testing.T) {
	registry := newWireRegistry()
	txn := ecsim.Transaction{
		Ops: []ecsim.ReplicationOp{{Kind: ecsim.OpDespawn, Entity: ecsim.Entity(5)}},
	}
	data, err := EncodeTransaction(txn, registry)
	if err != nil {
		t.Fatalf("EncodeTransaction: %v", err)
	}
	got, err := DecodeTransaction(data, 0, registry)
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	if len(got.Ops) != 1 || got.Ops[0].Kind != ecsim.OpDespawn || got.Ops[0].Entity != ecsim.Entity(5) {
		t.Fatalf("unexpected despawn op, got %+v", got.Ops)
	}
}

func TestEncodeDecodeTransactionSetWithValue(t *testing.T) {
	registry := newWireRegistry()
	id := ecsim.GetID[wirePosition](registry)
	txn := ecsim.Transaction{
		Ops: []ecsim.ReplicationOp{
			{
				Kind:      ecsim.OpSet,
				Entity:    ecsim.Entity(3),
				Component: id,
				Version:   11,
				Value:     wirePosition{X: 9, Y: 10},
			},
		},
	}
	data, err := EncodeTransaction(txn, registry)
	if err != nil {
		t.Fatalf("EncodeTransaction: %v", err)
	}
	got, err := DecodeTransaction(data, 0, registry)
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	op := got.Ops[0]
	if op.Kind != ecsim.OpSet || op.Entity != ecsim.Entity(3) || op.Component != id || op.Version != 11 {
		t.Fatalf("unexpected set op, got %+v", op)
	}
	if op.Value.(wirePosition) != (wirePosition{X: 9, Y: 10}) {
		t.Errorf("expected set value to round-trip, got %+v", op.Value)
	}
	if op.Rel != nil {
		t.Errorf("expected no rel pair on a plain value set, got %+v", op.Rel)
	}
}

func TestEncodeDecodeTransactionSetWithRelation(t *testing.T) {
	registry := newWireRegistry()
	txn := ecsim.Transaction{
		Ops: []ecsim.ReplicationOp{
			{
				Kind:      ecsim.OpSet,
				Entity:    ecsim.Entity(3),
				Component: ecsim.ComponentID(ecsim.VirtualIDBase + 1),
				Rel:       &ecsim.RelPair{Relation: ecsim.ComponentID(50), Object: ecsim.Entity(99)},
			},
		},
	}
	data, err := EncodeTransaction(txn, registry)
	if err != nil {
		t.Fatalf("EncodeTransaction: %v", err)
	}
	got, err := DecodeTransaction(data, 0, registry)
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	op := got.Ops[0]
	if op.Rel == nil || op.Rel.Relation != 50 || op.Rel.Object != ecsim.Entity(99) {
		t.Fatalf("expected rel pair to round-trip, got %+v", op.Rel)
	}
}

func TestEncodeDecodeTransactionRemove(t *testing.T) {
	registry := newWireRegistry()
	id := ecsim.GetID[wirePosition](registry)
	txn := ecsim.Transaction{
		Ops: []ecsim.ReplicationOp{
			{Kind: ecsim.OpRemove, Entity: ecsim.Entity(8), Component: id},
		},
	}
	data, err := EncodeTransaction(txn, registry)
	if err != nil {
		t.Fatalf("EncodeTransaction: %v", err)
	}
	got, err := DecodeTransaction(data, 0, registry)
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	op := got.Ops[0]
	if op.Kind != ecsim.OpRemove || op.Entity != ecsim.Entity(8) || op.Component != id {
		t.Fatalf("unexpected remove op, got %+v", op)
	}
}

func TestDecodeTransactionUnknownComponentManufacturesPlaceholder(t *testing.T) {
	sender := newWireRegistry()
	id := ecsim.GetID[wirePosition](sender)
	txn := ecsim.Transaction{
		Ops: []ecsim.ReplicationOp{
			{Kind: ecsim.OpSet, Entity: ecsim.Entity(1), Component: id, Value: wirePosition{X: 1, Y: 1}},
		},
	}
	data, err := EncodeTransaction(txn, sender)
	if err != nil {
		t.Fatalf("EncodeTransaction: %v", err)
	}

	receiver := ecsim.NewRegistry()
	if _, ok := receiver.Resolve(id); ok {
		t.Fatal("expected the receiver to not yet know about the component")
	}
	got, err := DecodeTransaction(data, 0, receiver)
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	if len(got.Ops) != 1 || got.Ops[0].Component != id {
		t.Fatalf("expected the structural op to still decode, got %+v", got.Ops)
	}
	if _, ok := receiver.Resolve(id); !ok {
		t.Error("expected decoding an unknown component id to manufacture a placeholder")
	}
}
