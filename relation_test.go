package ecsim

import "testing"

func TestRelationRegistryGetOrCreateVirtualIDIsStable(t *testing.T) {
	r := NewRelationRegistry()
	relation := ComponentID(1)
	object := Entity(2)
	v1 := r.GetOrCreateVirtualID(relation, object)
	v2 := r.GetOrCreateVirtualID(relation, object)
	if v1 != v2 {
		t.Errorf("expected stable virtual id, got %d and %d", v1, v2)
	}
	if !IsVirtual(v1) {
		t.Errorf("expected minted id %d to be in the virtual range", v1)
	}
}

func TestRelationRegistryDistinctPairsGetDistinctIDs(t *testing.T) {
	r := NewRelationRegistry()
	relation := ComponentID(1)
	v1 := r.GetOrCreateVirtualID(relation, Entity(1))
	v2 := r.GetOrCreateVirtualID(relation, Entity(2))
	if v1 == v2 {
		t.Error("expected distinct objects to receive distinct virtual ids")
	}
}

func TestRelationRegistryResolve(t *testing.T) {
	r := NewRelationRegistry()
	relation := ComponentID(1)
	object := Entity(9)
	vid := r.GetOrCreateVirtualID(relation, object)
	pair, ok := r.Resolve(vid)
	if !ok || pair.Relation != relation || pair.Object != object {
		t.Errorf("expected to resolve back to (%d, %d), got %+v, %v", relation, object, pair, ok)
	}
}

func TestRelationRegistryLookupVirtualIDMissing(t *testing.T) {
	r := NewRelationRegistry()
	if _, ok := r.LookupVirtualID(1, Entity(2)); ok {
		t.Error("expected LookupVirtualID to report false before the pair is minted")
	}
}

func TestRelationRegistryRegisterUnregisterIncoming(t *testing.T) {
	r := NewRelationRegistry()
	subject := Entity(1)
	object := Entity(2)
	relation := ComponentID(5)

	r.RegisterIncomingRelation(nil, subject, relation, object)
	edges := r.Subjects(object)
	if len(edges) != 1 || edges[0].subject != subject || edges[0].relation != relation {
		t.Fatalf("expected one incoming edge, got %+v", edges)
	}

	r.UnregisterIncomingRelation(nil, subject, relation, object)
	if len(r.Subjects(object)) != 0 {
		t.Error("expected incoming edge to be gone after unregister")
	}
}

func TestRelationRegistrySnapshotRestore(t *testing.T) {
	r := NewRelationRegistry()
	subject := Entity(1)
	object := Entity(2)
	relation := ComponentID(5)
	r.GetOrCreateVirtualID(relation, object)
	r.RegisterIncomingRelation(nil, subject, relation, object)

	snap := r.Snapshot()
	r.RegisterIncomingRelation(nil, Entity(3), relation, object)

	r.Restore(snap)
	edges := r.Subjects(object)
	if len(edges) != 1 {
		t.Fatalf("expected restore to drop the edge added after snapshot, got %+v", edges)
	}
}

func TestIsVirtual(t *testing.T) {
	if IsVirtual(ComponentID(0)) {
		t.Error("expected an ordinary component id to not be virtual")
	}
	if !IsVirtual(VirtualIDBase) {
		t.Error("expected VirtualIDBase itself to be virtual")
	}
}
