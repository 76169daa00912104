package ecsim

// ApplyTransaction applies a remote peer's reduced transaction to this
// world (§6 "Transport → World ... the reconciliation system ... calls
// applyTransaction"). Every Set op in the transaction is written with the
// same composite version — tick and origin domain folded together — so
// two peers converge on an identical winner regardless of the order their
// transactions are applied in (§4.4, §8 scenario 5).
func (w *World) ApplyTransaction(txn Transaction) {
	version := CompositeVersion(txn.Tick, txn.Domain)
	for _, op := range txn.Ops {
		switch op.Kind {
		case OpSpawn:
			w.applyRemoteSpawn(op, version)
		case OpDespawn:
			w.applyRemoteDespawn(op)
		case OpSet:
			w.applyRemoteSet(op, version)
		case OpRemove:
			w.applyRemoteRemove(op)
		}
	}
}

// resolveRemoteValues manufactures a placeholder descriptor (§7 "unknown
// component on wire") for any id this world has never registered, so
// structural application (vec membership) can proceed even when the
// payload itself cannot be stored.
func (w *World) resolveRemoteValues(in []ComponentValue) []ComponentValue {
	for _, cv := range in {
		if _, ok := w.Components.Resolve(cv.ID); !ok {
			w.Components.Placeholder(cv.ID)
			w.reportUnknownComponent(cv.ID)
		}
		if cv.Rel != nil {
			if _, ok := w.Components.Resolve(cv.Rel.Relation); !ok {
				w.Components.Placeholder(cv.Rel.Relation)
				w.reportUnknownComponent(cv.Rel.Relation)
			}
		}
	}
	return in
}

// applyRemoteSpawn materializes an inbound Spawn op. If its causal key
// matches a locally predicted transient entity, the prediction is promoted
// in place to the authoritative id (§4.10, §8 scenario 6) and the
// authoritative values are applied over it; otherwise a fresh entity is
// placed at the wire-supplied id directly (receivers never choose their
// own id for a replicated spawn).
func (w *World) applyRemoteSpawn(op ReplicationOp, version uint32) {
	values := w.resolveRemoteValues(op.Initial)

	if existing, ok := w.transients[uint64(op.CausalKey)]; ok && existing != op.Entity {
		w.promoteTransient(existing, op.Entity)
		w.applyRemoteValuesToExisting(op.Entity, values, version)
		return
	}
	if _, ok := w.Graph.NodeOf(op.Entity); ok {
		w.applyRemoteValuesToExisting(op.Entity, values, version)
		return
	}
	w.spawnAtEntity(op.Entity, values, version)
}

// applyRemoteValuesToExisting overlays a resolved component list onto an
// entity that already has a row (a promoted transient, or a duplicate
// Spawn delivery), using the same force-write discipline as a fresh spawn.
func (w *World) applyRemoteValuesToExisting(e Entity, values []ComponentValue, version uint32) {
	row, ok := w.Entities.RowOf(e)
	if !ok {
		return
	}
	for _, cv := range values {
		if cv.Rel != nil {
			addRelationID(w, e, cv.Rel.Relation, cv.Rel.Object)
			continue
		}
		desc, _ := w.Components.Resolve(cv.ID)
		if desc != nil && desc.IsTag {
			addComponentID(w, e, cv.ID, true, nil, nil)
			continue
		}
		node, ok := w.Graph.NodeOf(e)
		if !ok || !node.vec.Has(cv.ID) {
			addComponentID(w, e, cv.ID, false, cv.Value, nil)
			continue
		}
		w.Store.ForceSetComponentValue(row, cv.ID, cv.Value, version)
	}
}

// applyRemoteDespawn tears down the entity named by op, if it is still
// known locally (a duplicate or out-of-order Despawn delivery is a no-op).
func (w *World) applyRemoteDespawn(op ReplicationOp) {
	if _, ok := w.Graph.NodeOf(op.Entity); !ok {
		return
	}
	w.despawnInternal(op.Entity)
}

// applyRemoteSet writes op's value at the transaction's composite version,
// dropping (and reporting) a stale write per the §4.4/§7 convergence rule.
// An unresolved component id manufactures a placeholder first so the op's
// structural intent (and, if a column later appears for it, its value) is
// never silently lost to a registry miss.
func (w *World) applyRemoteSet(op ReplicationOp, version uint32) {
	if op.Rel != nil {
		addRelationID(w, op.Entity, op.Rel.Relation, op.Rel.Object)
		return
	}
	if _, ok := w.Components.Resolve(op.Component); !ok {
		w.Components.Placeholder(op.Component)
		w.reportUnknownComponent(op.Component)
	}
	row, ok := w.Entities.RowOf(op.Entity)
	if !ok {
		return
	}
	node, ok := w.Graph.NodeOf(op.Entity)
	if !ok {
		return
	}
	if !node.vec.Has(op.Component) {
		addComponentID(w, op.Entity, op.Component, false, op.Value, nil)
		return
	}
	if !w.Store.HasColumn(op.Component) {
		return
	}
	before := w.Store.VersionAt(row, op.Component)
	desc, _ := w.Components.Resolve(op.Component)
	if !w.Store.SetComponentValue(row, op.Component, desc, op.Value, version) {
		w.reportStaleWrite(op.Entity, op.Component, version, before)
	}
}

// applyRemoteRemove mirrors a Remove op locally.
func (w *World) applyRemoteRemove(op ReplicationOp) {
	if op.Rel != nil {
		removeRelationID(w, op.Entity, op.Rel.Relation, op.Rel.Object)
		return
	}
	removeComponentID(w, op.Entity, op.Component, nil)
}

// ApplySnapshot replaces the named entities' column data for one component
// per block, force-writing every value at the snapshot's own version
// regardless of what is currently stored (§6 "Snapshot payload"). Entities
// named in the snapshot that this world doesn't yet know are spawned bare
// (membership established by the first block that mentions them) so later
// blocks in the same snapshot can fill in their remaining components.
func (w *World) ApplySnapshot(componentID ComponentID, entities []Entity, values []any, version uint32) {
	if _, ok := w.Components.Resolve(componentID); !ok {
		w.Components.Placeholder(componentID)
		w.reportUnknownComponent(componentID)
	}
	for i, e := range entities {
		if _, ok := w.Graph.NodeOf(e); !ok {
			w.spawnAtEntity(e, nil, version)
		}
		row, ok := w.Entities.RowOf(e)
		if !ok {
			continue
		}
		node, ok := w.Graph.NodeOf(e)
		if ok && !node.vec.Has(componentID) {
			addComponentID(w, e, componentID, false, values[i], nil)
		}
		w.Store.ForceSetComponentValue(row, componentID, values[i], version)
	}
}
