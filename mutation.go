package ecsim

// Replicated is the well-known tag a spawn set carries to mark an entity
// as subject to replication (§4.6 "detect whether the Replicated tag is
// present"). Callers register it once: RegisterTag[Replicated](registry,
// "Replicated").
type Replicated struct{}

// SpawnItem is one entry in a Spawn call's component list: a plain value,
// a tag, or a relationship toward an object entity (§4.6 step 4).
type SpawnItem struct {
	id         ComponentID
	isTag      bool
	value      any
	hasValue   bool
	isRelation bool
	relationID ComponentID
	object     Entity
}

// WithValue builds a value-component spawn item.
func WithValue[T any](w *World, value T) SpawnItem {
	id := GetID[T](w.Components)
	RegisterColumn[T](w.Store, id)
	return SpawnItem{id: id, value: value, hasValue: true}
}

// WithTag builds a tag-component spawn item.
func WithTag[T any](w *World) SpawnItem {
	id := GetID[T](w.Components)
	return SpawnItem{id: id, isTag: true}
}

// WithRelation builds a relationship spawn item toward object.
func WithRelation[T any](w *World, object Entity) SpawnItem {
	id := GetID[T](w.Components)
	return SpawnItem{id: id, isRelation: true, relationID: id, object: object}
}

// computeCausalKey folds a tick and a within-tick spawn index into the
// correlation key predicted and authoritative spawns are matched by
// (GLOSSARY "Causal key"). 0x7fff marks a non-replicated spawn, which
// never participates in promotion.
func computeCausalKey(tick uint32, indexWithinTick uint32) uint32 {
	return tick<<15 | (indexWithinTick & 0x7fff)
}

func (w *World) replicatedTagID() (ComponentID, bool) {
	return TryGetID[Replicated](w.Components)
}

// resolveSpawnItems expands relationship items into their virtual + bare
// relation ids, registers incoming edges, and returns the full id set plus
// the resolved component values for the spawn op (§4.6 step 4).
func (w *World) resolveSpawnItems(subject Entity, items []SpawnItem) ([]ComponentID, []ComponentValue) {
	ids := make([]ComponentID, 0, len(items)*2)
	values := make([]ComponentValue, 0, len(items))
	for _, it := range items {
		switch {
		case it.isRelation:
			vid := w.Relations.GetOrCreateVirtualID(it.relationID, it.object)
			w.Relations.RegisterIncomingRelation(w.Graph, subject, it.relationID, it.object)
			ids = append(ids, vid, it.relationID)
			values = append(values, ComponentValue{ID: vid, Rel: &RelPair{Relation: it.relationID, Object: it.object}})
		case it.isTag:
			ids = append(ids, it.id)
			values = append(values, ComponentValue{ID: it.id})
		default:
			ids = append(ids, it.id)
			values = append(values, ComponentValue{ID: it.id, Value: it.value})
		}
	}
	return ids, values
}

// Spawn creates an entity carrying items, buffering a Spawn replication op
// when the Replicated tag is present and the entity lands in this world's
// authoritative domain (§4.6).
func (w *World) Spawn(items ...SpawnItem) Entity {
	replicatedID, hasReplicatedTag := w.replicatedTagID()
	isReplicated := false
	if hasReplicatedTag {
		for _, it := range items {
			if !it.isRelation && it.id == replicatedID {
				isReplicated = true
				break
			}
		}
	}

	var causalIndex uint32 = 0x7fff
	if isReplicated {
		causalIndex = w.tickSpawnCount
		w.tickSpawnCount++
	}
	causalKey := computeCausalKey(w.tick, causalIndex)

	if isReplicated {
		if existing, ok := w.transients[uint64(causalKey)]; ok {
			w.applyItemsToExisting(existing, items)
			return existing
		}
	}

	domain := w.Domain
	if isReplicated && w.History != nil {
		domain = TRANSIENT_DOMAIN
	}

	e := w.Allocator.Spawn(domain)
	row := w.Entities.GetOrCreate(e)

	ids, values := w.resolveSpawnItems(e, items)
	vec := MakeVec(ids)
	node := w.Graph.FindOrCreateNode(vec, PruneWhenEmpty)
	w.Graph.SetEntityNode(e, node, row, w.Relations)

	for _, cv := range values {
		desc, _ := w.Components.Resolve(cv.ID)
		if desc != nil && !desc.IsTag {
			w.Store.SetComponentValue(row, cv.ID, desc, cv.Value, w.tick)
		}
	}

	w.recordUndo(UndoEntry{kind: undoSpawn, entity: e})

	if isReplicated {
		w.transients[uint64(causalKey)] = e
		if domain == w.Domain {
			w.pushOp(ReplicationOp{Kind: OpSpawn, Entity: e, CausalKey: causalKey, Initial: values})
		}
	}
	return e
}

// spawnAtEntity places a fully-resolved component/relation list onto an
// entity id chosen by the caller rather than allocated fresh — the shared
// core behind applying an inbound authoritative Spawn (the wire carries
// the entity id) and behind undo-despawn reversal (§4.6, §4.10,
// §6 "Spawn ... entity (u32)"). It always force-writes (no version
// comparison): a spawn establishes a component's first value.
func (w *World) spawnAtEntity(e Entity, values []ComponentValue, version uint32) {
	w.Allocator.Reserve(e.Domain(), e.Local())
	row := w.Entities.GetOrCreate(e)

	ids := make([]ComponentID, 0, len(values)*2)
	for _, cv := range values {
		ids = append(ids, cv.ID)
		if cv.Rel != nil {
			w.Relations.RegisterIncomingRelation(w.Graph, e, cv.Rel.Relation, cv.Rel.Object)
			ids = append(ids, cv.Rel.Relation)
		}
	}
	vec := MakeVec(ids)
	node := w.Graph.FindOrCreateNode(vec, PruneWhenEmpty)
	w.Graph.SetEntityNode(e, node, row, w.Relations)

	for _, cv := range values {
		if cv.Rel != nil {
			continue
		}
		desc, _ := w.Components.Resolve(cv.ID)
		if desc != nil && !desc.IsTag {
			w.Store.ForceSetComponentValue(row, cv.ID, cv.Value, version)
		}
	}
}

// respawnAt reverses an undo-despawn entry: it restores the entity to
// exactly the component list captured at teardown time (§4.10
// "undo-despawn reallocates and restores components").
func (w *World) respawnAt(e Entity, components []ComponentValue) {
	delete(w.Store.pendingDeletions, e)
	w.spawnAtEntity(e, components, w.tick)
}

// despawnInternal tears e out of the graph and store without touching the
// replication stream — shared by the public Despawn (which pushes a
// Despawn op first) and by undo-spawn reversal, which must not re-emit a
// transaction for a purely local rewind. Its row and local id are not
// released yet: that happens at FlushDeletions, mirroring the §4.4 rule
// that a torn-down entity's data stays allocated (just invisible) until
// flush, so the same tick can't hand its row to a freshly spawned entity.
func (w *World) despawnInternal(e Entity) {
	node, ok := w.Graph.NodeOf(e)
	if !ok {
		return
	}
	for _, edge := range w.Relations.Subjects(e) {
		removeRelationID(w, edge.subject, edge.relation, e)
	}
	for _, id := range node.vec.IDs() {
		if !IsVirtual(id) {
			continue
		}
		if pair, ok := w.Relations.Resolve(id); ok {
			w.Relations.UnregisterIncomingRelation(w.Graph, e, pair.Relation, pair.Object)
		}
	}
	w.Store.MarkPendingDeletion(e)
	w.Graph.RemoveEntityFromGraph(e)
}

// applyItemsToExisting re-applies a spawn's items onto an entity already
// materialized as a transient prediction, instead of allocating a new one
// (§4.6 step 3 "if a transient entity for this causal key already exists,
// reuse it").
func (w *World) applyItemsToExisting(e Entity, items []SpawnItem) {
	for _, it := range items {
		switch {
		case it.isRelation:
			addRelationID(w, e, it.relationID, it.object)
		case it.isTag:
			addComponentID(w, e, it.id, true, nil, nil)
		default:
			addComponentID(w, e, it.id, false, it.value, nil)
		}
	}
}

// promoteTransient replaces a transient entity's id with an authoritative
// one supplied by the server, preserving its row, components, and
// relations (§4.10, scenario 6). It reuses the entity's existing row by
// rebinding the EntityIndex and archetype graph to the new id.
func (w *World) promoteTransient(old, authoritative Entity) {
	if old == authoritative {
		return
	}
	row, ok := w.Entities.RowOf(old)
	if !ok {
		return
	}
	node, inGraph := w.Graph.NodeOf(old)

	delete(w.Entities.entityToIndex, old)
	w.Entities.entityToIndex[authoritative] = row
	if row < len(w.Entities.indexToEntity) {
		w.Entities.indexToEntity[row] = authoritative
	}
	w.Allocator.Reserve(authoritative.Domain(), authoritative.Local())

	if inGraph {
		delete(w.Graph.byEntity, old)
		node.removeEntity(old)
		node.addEntity(authoritative, row)
		w.Graph.byEntity[authoritative] = node
	}

	for key, e := range w.transients {
		if e == old {
			w.transients[key] = authoritative
		}
	}
}

// Despawn tears down e: buffers a Despawn op when replicated, reverses its
// incoming and outgoing relations, marks it for deferred store cleanup,
// and removes it from the archetype graph (§4.6).
func (w *World) Despawn(e Entity) {
	node, ok := w.Graph.NodeOf(e)
	if !ok {
		return
	}
	replicatedID, hasReplicatedTag := w.replicatedTagID()
	if hasReplicatedTag && node.vec.Has(replicatedID) {
		w.pushOp(ReplicationOp{Kind: OpDespawn, Entity: e})
	}

	w.recordUndo(UndoEntry{kind: undoDespawn, entity: e, components: w.entityComponentValues(e)})
	w.despawnInternal(e)
}

func (w *World) pushSetOp(e Entity, id ComponentID, value any, rel *RelPair) {
	replicatedID, hasReplicatedTag := w.replicatedTagID()
	node, ok := w.Graph.NodeOf(e)
	if !hasReplicatedTag || !ok || !node.vec.Has(replicatedID) {
		return
	}
	w.pushOp(ReplicationOp{Kind: OpSet, Entity: e, Component: id, Value: value, Rel: rel, Version: w.tick})
}

func (w *World) pushRemoveOp(e Entity, id ComponentID, rel *RelPair) {
	replicatedID, hasReplicatedTag := w.replicatedTagID()
	node, ok := w.Graph.NodeOf(e)
	if !hasReplicatedTag || !ok || !node.vec.Has(replicatedID) {
		return
	}
	w.pushOp(ReplicationOp{Kind: OpRemove, Entity: e, Component: id, Rel: rel})
}

// addComponentID moves e into the node for vec+{id} (a no-op move if id is
// already present, in which case a value write still updates the column
// and a Set op is still buffered) (§4.6 "addComponent").
func addComponentID(w *World, e Entity, id ComponentID, isTag bool, value any, rel *RelPair) {
	node, ok := w.Graph.NodeOf(e)
	if !ok {
		panic("ecsim: addComponent on an entity that was never spawned")
	}
	row, _ := w.Entities.RowOf(e)

	if !node.vec.Has(id) {
		newVec := node.vec.Sum(MakeVec([]ComponentID{id}))
		newNode := w.Graph.FindOrCreateNode(newVec, PruneWhenEmpty)
		w.Graph.SetEntityNode(e, newNode, row, w.Relations)
		w.recordUndo(UndoEntry{kind: undoAdd, entity: e, componentID: id, isTag: isTag, rel: rel})
	}

	if !isTag {
		desc, _ := w.Components.Resolve(id)
		w.Store.SetComponentValue(row, id, desc, value, w.tick)
	}
	w.pushSetOp(e, id, value, rel)
}

// addRelationID installs both the virtual (relation,object) id and the
// bare relation tag on subject (§4.5 last paragraph).
func addRelationID(w *World, subject Entity, relation ComponentID, object Entity) {
	vid := w.Relations.GetOrCreateVirtualID(relation, object)
	w.Relations.RegisterIncomingRelation(w.Graph, subject, relation, object)
	addComponentID(w, subject, vid, true, nil, &RelPair{Relation: relation, Object: object})
	addComponentID(w, subject, relation, true, nil, nil)
}

// removeComponentID moves e into the node for vec-{id}. Non-tag values are
// deferred (marked pending, blanked only at flushDeletions): GetValue
// reports them absent at once, while RawComponentValue (Out monitors)
// still reads the pre-remove value until the flush (§4.4, §4.6).
func removeComponentID(w *World, e Entity, id ComponentID, rel *RelPair) {
	node, ok := w.Graph.NodeOf(e)
	if !ok || !node.vec.Has(id) {
		return
	}
	desc, _ := w.Components.Resolve(id)
	isTag := desc != nil && desc.IsTag
	row, _ := w.Entities.RowOf(e)

	var priorValue any
	if !isTag {
		priorValue, _ = w.Store.RawComponentValue(row, id)
		w.Store.MarkPendingRemoval(e, id)
	}
	w.recordUndo(UndoEntry{kind: undoRemove, entity: e, componentID: id, value: priorValue, isTag: isTag, rel: rel})

	newVec := node.vec.Difference(MakeVec([]ComponentID{id}))
	newNode := w.Graph.FindOrCreateNode(newVec, PruneWhenEmpty)
	w.Graph.SetEntityNode(e, newNode, row, w.Relations)

	w.pushRemoveOp(e, id, rel)
}

// removeRelationID removes the (relation,object) virtual id from subject,
// and the bare relation tag too if no other instance of the relation
// remains (§4.6 "Removing a relationship also removes the bare relation
// tag when no other instances of that relation remain").
func removeRelationID(w *World, subject Entity, relation ComponentID, object Entity) {
	vid, ok := w.Relations.LookupVirtualID(relation, object)
	if !ok {
		return
	}
	removeComponentID(w, subject, vid, &RelPair{Relation: relation, Object: object})
	w.Relations.UnregisterIncomingRelation(w.Graph, subject, relation, object)

	node, ok := w.Graph.NodeOf(subject)
	if !ok {
		return
	}
	stillHasRelation := false
	for _, idv := range node.vec.IDs() {
		if !IsVirtual(idv) {
			continue
		}
		if pair, ok := w.Relations.Resolve(idv); ok && pair.Relation == relation {
			stillHasRelation = true
			break
		}
	}
	if !stillHasRelation {
		removeComponentID(w, subject, relation, nil)
	}
}

// AddValue adds or overwrites a value component on e.
func AddValue[T any](w *World, e Entity, value T) {
	id := GetID[T](w.Components)
	RegisterColumn[T](w.Store, id)
	addComponentID(w, e, id, false, value, nil)
}

// AddTag adds a tag component to e.
func AddTag[T any](w *World, e Entity) {
	id := GetID[T](w.Components)
	addComponentID(w, e, id, true, nil, nil)
}

// AddRelation adds a relationship from e toward object.
func AddRelation[T any](w *World, e Entity, object Entity) {
	id := GetID[T](w.Components)
	addRelationID(w, e, id, object)
}

// RemoveValue removes a value component from e.
func RemoveValue[T any](w *World, e Entity) {
	id := GetID[T](w.Components)
	removeComponentID(w, e, id, nil)
}

// RemoveTag removes a tag component from e.
func RemoveTag[T any](w *World, e Entity) {
	id := GetID[T](w.Components)
	removeComponentID(w, e, id, nil)
}

// RemoveRelation removes e's relationship toward object.
func RemoveRelation[T any](w *World, e Entity, object Entity) {
	id := GetID[T](w.Components)
	removeRelationID(w, e, id, object)
}

// GetValue returns e's value for T, if present and visible.
func GetValue[T any](w *World, e Entity) (T, bool) {
	var zero T
	id := GetID[T](w.Components)
	row, ok := w.Entities.RowOf(e)
	if !ok {
		return zero, false
	}
	v, ok := w.Store.GetComponentValue(e, row, id)
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// Has reports whether e currently carries component T (tag, value, or bare
// relation id).
func Has[T any](w *World, e Entity) bool {
	id, ok := TryGetID[T](w.Components)
	if !ok {
		return false
	}
	node, ok := w.Graph.NodeOf(e)
	return ok && node.vec.Has(id)
}
