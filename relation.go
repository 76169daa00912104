package ecsim

// relKey identifies a (relation, object) pair.
type relKey struct {
	relation ComponentID
	object   Entity
}

// RelPair names the relation and object a virtual component id stands for.
type RelPair struct {
	Relation ComponentID
	Object   Entity
}

// incomingEdge names one subject holding a relationship toward some object.
type incomingEdge struct {
	subject  Entity
	relation ComponentID
}

// RelationRegistry maps (relation,object) pairs to virtual component ids and
// back, and indexes incoming edges by object for O(outgoing) traversal
// (§4.5, §3 "objectToSubjects").
type RelationRegistry struct {
	relToVirtual map[relKey]ComponentID
	virtualToRel map[ComponentID]RelPair
	nextVirtual  ComponentID

	objectToSubjects map[Entity]map[incomingEdge]struct{}
}

// NewRelationRegistry creates an empty relation registry. Virtual ids start
// at VirtualIDBase, disjoint from ordinary component ids.
func NewRelationRegistry() *RelationRegistry {
	return &RelationRegistry{
		relToVirtual:     make(map[relKey]ComponentID, 32),
		virtualToRel:     make(map[ComponentID]RelPair, 32),
		nextVirtual:      VirtualIDBase,
		objectToSubjects: make(map[Entity]map[incomingEdge]struct{}, 16),
	}
}

// GetOrCreateVirtualID returns the virtual component id standing for
// (relation, object), minting one on first use.
func (r *RelationRegistry) GetOrCreateVirtualID(relation ComponentID, object Entity) ComponentID {
	key := relKey{relation, object}
	if vid, ok := r.relToVirtual[key]; ok {
		return vid
	}
	vid := r.nextVirtual
	r.nextVirtual++
	r.relToVirtual[key] = vid
	r.virtualToRel[vid] = RelPair{Relation: relation, Object: object}
	return vid
}

// LookupVirtualID returns the virtual id for (relation,object) without
// minting one if absent.
func (r *RelationRegistry) LookupVirtualID(relation ComponentID, object Entity) (ComponentID, bool) {
	vid, ok := r.relToVirtual[relKey{relation, object}]
	return vid, ok
}

// Resolve returns the (relation,object) pair a virtual id stands for.
func (r *RelationRegistry) Resolve(vid ComponentID) (RelPair, bool) {
	p, ok := r.virtualToRel[vid]
	return p, ok
}

// IsVirtual reports whether id is in the reserved virtual range.
func IsVirtual(id ComponentID) bool { return id >= VirtualIDBase }

// RegisterIncomingRelation records that subject holds relation toward
// object, and notifies object's current archetype node (if any) via
// relationAdded so listeners stay consistent (§4.5).
func (r *RelationRegistry) RegisterIncomingRelation(graph *ArchetypeGraph, subject Entity, relation ComponentID, object Entity) {
	edges, ok := r.objectToSubjects[object]
	if !ok {
		edges = make(map[incomingEdge]struct{}, 4)
		r.objectToSubjects[object] = edges
	}
	edges[incomingEdge{subject: subject, relation: relation}] = struct{}{}
	if graph != nil {
		if node, ok := graph.NodeOf(object); ok {
			node.fireRelationAdded(subject, relation, object)
		}
	}
}

// UnregisterIncomingRelation reverses RegisterIncomingRelation.
func (r *RelationRegistry) UnregisterIncomingRelation(graph *ArchetypeGraph, subject Entity, relation ComponentID, object Entity) {
	edges, ok := r.objectToSubjects[object]
	if !ok {
		return
	}
	delete(edges, incomingEdge{subject: subject, relation: relation})
	if len(edges) == 0 {
		delete(r.objectToSubjects, object)
	}
	if graph != nil {
		if node, ok := graph.NodeOf(object); ok {
			node.fireRelationRemoved(subject, relation, object)
		}
	}
}

// Subjects returns every (subject, relation) pair pointing at object.
func (r *RelationRegistry) Subjects(object Entity) []incomingEdge {
	edges := r.objectToSubjects[object]
	if len(edges) == 0 {
		return nil
	}
	out := make([]incomingEdge, 0, len(edges))
	for e := range edges {
		out = append(out, e)
	}
	return out
}

// relationRegistrySnapshot is a point-in-time copy of a RelationRegistry's
// three maps, captured by History (§4.10).
type relationRegistrySnapshot struct {
	relToVirtual     map[relKey]ComponentID
	virtualToRel     map[ComponentID]RelPair
	nextVirtual      ComponentID
	objectToSubjects map[Entity]map[incomingEdge]struct{}
}

// Snapshot captures r's current state for a checkpoint.
func (r *RelationRegistry) Snapshot() relationRegistrySnapshot {
	objects := make(map[Entity]map[incomingEdge]struct{}, len(r.objectToSubjects))
	for obj, edges := range r.objectToSubjects {
		objects[obj] = cloneMap(edges)
	}
	return relationRegistrySnapshot{
		relToVirtual:     cloneMap(r.relToVirtual),
		virtualToRel:     cloneMap(r.virtualToRel),
		nextVirtual:      r.nextVirtual,
		objectToSubjects: objects,
	}
}

// Restore replaces r's state with a previously captured snapshot.
func (r *RelationRegistry) Restore(snap relationRegistrySnapshot) {
	r.relToVirtual = cloneMap(snap.relToVirtual)
	r.virtualToRel = cloneMap(snap.virtualToRel)
	r.nextVirtual = snap.nextVirtual
	r.objectToSubjects = make(map[Entity]map[incomingEdge]struct{}, len(snap.objectToSubjects))
	for obj, edges := range snap.objectToSubjects {
		r.objectToSubjects[obj] = cloneMap(edges)
	}
}

// SubjectsWithRelation returns the objects that `subject` points at via
// `relation`, derived by scanning subject's own outgoing virtual ids in its
// current archetype node's vec. The node supplies the vec; this helper
// resolves each virtual id that matches `relation` back to its object.
func (r *RelationRegistry) SubjectsWithRelation(node *ArchetypeNode, relation ComponentID) []Entity {
	if node == nil {
		return nil
	}
	var out []Entity
	for _, id := range node.vec.IDs() {
		if !IsVirtual(id) {
			continue
		}
		pair, ok := r.virtualToRel[id]
		if !ok || pair.Relation != relation {
			continue
		}
		out = append(out, pair.Object)
	}
	return out
}
