package wire

import (
	"testing"

	"github.com/archtick/ecsim"
)

func TestEncodeDecodeSnapshotRoundTrip(t *testing.T) {
	registry := newWireRegistry()
	id := ecsim.GetID[wirePosition](registry)
	blocks := []SnapshotBlock{
		{
			Component: id,
			Entities:  []ecsim.Entity{1, 2},
			Values:    []any{wirePosition{X: 1, Y: 1}, wirePosition{X: 2, Y: 2}},
		},
	}

	data, err := EncodeSnapshot(blocks, registry)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	got, err := DecodeSnapshot(data, registry)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if len(got) != 1 || len(got[0].Entities) != 2 {
		t.Fatalf("unexpected decoded blocks: %+v", got)
	}
	if got[0].Values[0].(wirePosition) != (wirePosition{X: 1, Y: 1}) {
		t.Errorf("expected first value to round-trip, got %+v", got[0].Values[0])
	}
	if got[0].Values[1].(wirePosition) != (wirePosition{X: 2, Y: 2}) {
		t.Errorf("expected second value to round-trip, got %+v", got[0].Values[1])
	}
}

func TestEncodeSnapshotRejectsMismatchedLengths(t *testing.T) {
	registry := newWireRegistry()
	id := ecsim.GetID[wirePosition](registry)
	blocks := []SnapshotBlock{
		{Component: id, Entities: []ecsim.Entity{1, 2}, Values: []any{wirePosition{X: 1, Y: 1}}},
	}
	if _, err := EncodeSnapshot(blocks, registry); err == nil {
		t.Error("expected a mismatched entity/value count to be rejected")
	}
}

func TestDecodeSnapshotUnknownComponentManufacturesPlaceholder(t *testing.T) {
	sender := newWireRegistry()
	id := ecsim.GetID[wirePosition](sender)
	blocks := []SnapshotBlock{
		{Component: id, Entities: []ecsim.Entity{1}, Values: []any{wirePosition{X: 1, Y: 1}}},
	}
	data, err := EncodeSnapshot(blocks, sender)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}

	receiver := ecsim.NewRegistry()
	got, err := DecodeSnapshot(data, receiver)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if len(got) != 1 || len(got[0].Entities) != 1 {
		t.Fatalf("expected the structural block to still decode, got %+v", got)
	}
	if _, ok := receiver.Resolve(id); !ok {
		t.Error("expected a placeholder to be manufactured for the unknown component")
	}
}

func TestApplySnapshotBlocksForceWritesIntoWorld(t *testing.T) {
	registry := ecsim.NewRegistry()
	ecsim.RegisterComponent[wirePosition](registry, "Position")
	w := ecsim.NewWorld()
	ecsim.RegisterComponent[wirePosition](w.Components, "Position")
	id := ecsim.GetID[wirePosition](w.Components)
	ecsim.RegisterColumn[wirePosition](w.Store, id)

	e := w.Spawn()
	blocks := []SnapshotBlock{
		{Component: id, Entities: []ecsim.Entity{e}, Values: []any{wirePosition{X: 7, Y: 8}}},
	}
	ApplySnapshotBlocks(w, blocks, 1)

	v, ok := ecsim.GetValue[wirePosition](w, e)
	if !ok || v != (wirePosition{X: 7, Y: 8}) {
		t.Errorf("expected the snapshot block to force-write the value, got %+v, %v", v, ok)
	}
}
