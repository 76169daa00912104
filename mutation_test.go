package ecsim

import "testing"

func TestSpawnAndGetValue(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithValue(w, testPosition{X: 1, Y: 2}))
	v, ok := GetValue[testPosition](w, e)
	if !ok {
		t.Fatal("expected the spawned value to be readable")
	}
	if v != (testPosition{X: 1, Y: 2}) {
		t.Errorf("unexpected value %+v", v)
	}
}

func TestSpawnWithTag(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithTag[testDead](w))
	if !Has[testDead](w, e) {
		t.Error("expected the spawned tag to be present")
	}
}

func TestSpawnWithRelation(t *testing.T) {
	w := newTestWorld()
	type ChildOf struct{}
	RegisterTag[ChildOf](w.Components, "ChildOf")
	parent := w.Spawn()
	child := w.Spawn(WithRelation[ChildOf](w, parent))
	if !Has[ChildOf](w, child) {
		t.Error("expected the bare relation tag to be present on the child")
	}
	node, ok := w.Graph.NodeOf(child)
	if !ok {
		t.Fatal("expected the child to be in the graph")
	}
	objects := node.ObjectsForRelation(GetID[ChildOf](w.Components), w.Relations)
	if len(objects) != 1 || objects[0] != parent {
		t.Errorf("expected exactly one ChildOf object (the parent), got %v", objects)
	}
}

func TestDespawnRemovesFromGraph(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithValue(w, testPosition{X: 1, Y: 1}))
	w.Despawn(e)
	if _, ok := w.Graph.NodeOf(e); ok {
		t.Error("expected a despawned entity to be gone from the graph")
	}
}

func TestDespawnDeferredStoreCleanup(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithValue(w, testPosition{X: 5, Y: 5}))
	row, _ := w.Entities.RowOf(e)
	w.Despawn(e)

	// Column data survives until FlushDeletions, per the §4.4 deferred-
	// cleanup contract, even though the entity is already gone from the
	// graph and GetValue reports it absent.
	id := GetID[testPosition](w.Components)
	if _, ok := w.Store.RawComponentValue(row, id); !ok {
		t.Error("expected raw column data to survive until flush")
	}
	if _, ok := GetValue[testPosition](w, e); ok {
		t.Error("expected GetValue to report the despawned entity absent immediately")
	}

	w.FlushDeletions()
	if _, ok := w.Store.RawComponentValue(row, id); ok {
		t.Error("expected the column to be cleared after FlushDeletions")
	}
	if _, ok := w.Entities.RowOf(e); ok {
		t.Error("expected the row binding to be released after FlushDeletions")
	}
}

func TestAddValueMovesEntityAndWritesValue(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithTag[testDead](w))
	AddValue(w, e, testPosition{X: 3, Y: 4})
	v, ok := GetValue[testPosition](w, e)
	if !ok || v != (testPosition{X: 3, Y: 4}) {
		t.Errorf("expected added value to be readable, got %+v, %v", v, ok)
	}
}

func TestAddValueOnExistingComponentStillWrites(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithValue(w, testPosition{X: 1, Y: 1}))
	AddValue(w, e, testPosition{X: 9, Y: 9})
	v, _ := GetValue[testPosition](w, e)
	if v != (testPosition{X: 9, Y: 9}) {
		t.Errorf("expected overwrite to take effect, got %+v", v)
	}
}

func TestRemoveValueHidesReadsImmediately(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithValue(w, testPosition{X: 1, Y: 1}))
	RemoveValue[testPosition](w, e)
	if _, ok := GetValue[testPosition](w, e); ok {
		t.Error("expected removed value to be hidden immediately")
	}
	if Has[testPosition](w, e) {
		t.Error("expected Has to report false once removed from the node's vec")
	}
}

func TestAddRemoveRelation(t *testing.T) {
	w := newTestWorld()
	type LikedBy struct{}
	RegisterTag[LikedBy](w.Components, "LikedBy")
	a := w.Spawn()
	b := w.Spawn()
	AddRelation[LikedBy](w, a, b)
	if !Has[LikedBy](w, a) {
		t.Error("expected bare relation tag present after AddRelation")
	}
	RemoveRelation[LikedBy](w, a, b)
	if Has[LikedBy](w, a) {
		t.Error("expected bare relation tag gone after the only edge is removed")
	}
}

func TestRemoveRelationKeepsBareTagWhenOtherEdgesRemain(t *testing.T) {
	w := newTestWorld()
	type LikedBy struct{}
	RegisterTag[LikedBy](w.Components, "LikedBy")
	a := w.Spawn()
	b := w.Spawn()
	c := w.Spawn()
	AddRelation[LikedBy](w, a, b)
	AddRelation[LikedBy](w, a, c)
	RemoveRelation[LikedBy](w, a, b)
	if !Has[LikedBy](w, a) {
		t.Error("expected bare relation tag to survive while another instance of the relation remains")
	}
}

func TestSpawnWithReplicatedTagBuffersOp(t *testing.T) {
	w := newTestWorld()
	RegisterTag[Replicated](w.Components, "Replicated")
	w.Spawn(WithTag[Replicated](w), WithValue(w, testPosition{X: 1, Y: 2}))
	txn, ok := w.Commit()
	if !ok {
		t.Fatal("expected a pending Spawn op to produce a transaction")
	}
	if len(txn.Ops) != 1 || txn.Ops[0].Kind != OpSpawn {
		t.Fatalf("expected exactly one Spawn op, got %+v", txn.Ops)
	}
}

func TestSpawnWithoutReplicatedTagBuffersNoOp(t *testing.T) {
	w := newTestWorld()
	RegisterTag[Replicated](w.Components, "Replicated")
	w.Spawn(WithValue(w, testPosition{X: 1, Y: 2}))
	if _, ok := w.Commit(); ok {
		t.Error("expected no transaction when the spawned entity is not Replicated")
	}
}
