package ecsim

// PruneStrategy controls whether an empty archetype node is recycled.
type PruneStrategy int

const (
	// PruneWhenEmpty removes the node once its entity set is empty (§4.3).
	PruneWhenEmpty PruneStrategy = iota
	// PruneNever keeps the node alive even when empty (used for the root
	// and for nodes a query has anchored on, so a later spawn doesn't pay
	// relinking cost).
	PruneNever
)

// NodeListener is a set of optional callbacks a query/monitor registers on
// an anchor node. Any field may be nil. Anchors fan these out to every
// ancestor when a subtree event occurs (§4.3 "fan out ... to every
// ancestor").
type NodeListener struct {
	OnNodeCreated     func(node *ArchetypeNode)
	OnNodeDestroyed   func(node *ArchetypeNode)
	OnEntitiesIn      func(entities []Entity, node *ArchetypeNode)
	OnEntitiesOut     func(entities []Entity, node *ArchetypeNode)
	OnRelationAdded   func(subject Entity, relation ComponentID, object Entity)
	OnRelationRemoved func(subject Entity, relation ComponentID, object Entity)
}

// ArchetypeNode is one vertex of the archetype graph: every entity sharing
// exactly this component vec. next/prev hold immediate supersets/subsets
// only — an edge exists iff no more specific intermediate node exists
// (§3, §4.3).
type ArchetypeNode struct {
	id     int
	vec    *Vec
	graph  *ArchetypeGraph
	strat  PruneStrategy
	rowOf  *SparseMap[int]
	next   map[int]*ArchetypeNode
	prev   map[int]*ArchetypeNode
	listen []*NodeListener

	objectsForRelation map[ComponentID][]Entity
}

func newArchetypeNode(id int, vec *Vec, graph *ArchetypeGraph, strat PruneStrategy) *ArchetypeNode {
	return &ArchetypeNode{
		id:    id,
		vec:   vec,
		graph: graph,
		strat: strat,
		rowOf: NewSparseMap[int](),
		next:  make(map[int]*ArchetypeNode, 4),
		prev:  make(map[int]*ArchetypeNode, 4),
	}
}

// ID returns the node's stable integer id.
func (n *ArchetypeNode) ID() int { return n.id }

// Vec returns the node's component vec.
func (n *ArchetypeNode) Vec() *Vec { return n.vec }

// Len returns the number of entities currently in the node.
func (n *ArchetypeNode) Len() int { return n.rowOf.Len() }

// Entities returns the entities currently in the node. Callers must not
// retain the slice across a mutation of the node.
func (n *ArchetypeNode) Entities() []Entity {
	out := make([]Entity, n.rowOf.Len())
	for i, k := range n.rowOf.Keys() {
		out[i] = Entity(k)
	}
	return out
}

// RowOf returns the global entity-index row for e within this node.
func (n *ArchetypeNode) RowOf(e Entity) (int, bool) { return n.rowOf.Get(int(e)) }

func (n *ArchetypeNode) addEntity(e Entity, row int) { n.rowOf.Set(int(e), row) }

func (n *ArchetypeNode) removeEntity(e Entity) { n.rowOf.Delete(int(e)) }

func (n *ArchetypeNode) isEmpty() bool { return n.rowOf.Len() == 0 }

// AddListener attaches l to the node. If emitExisting is true, l receives
// a retroactive OnNodeCreated for this node and an OnEntitiesIn for every
// entity currently present (§4.3 "emitExisting*").
func (n *ArchetypeNode) AddListener(l *NodeListener, emitExisting bool) {
	n.listen = append(n.listen, l)
	if !emitExisting {
		return
	}
	if l.OnNodeCreated != nil {
		l.OnNodeCreated(n)
	}
	if l.OnEntitiesIn != nil && n.rowOf.Len() > 0 {
		l.OnEntitiesIn(n.Entities(), n)
	}
}

func (n *ArchetypeNode) fireNodeCreated(created *ArchetypeNode) {
	for _, l := range n.listen {
		if l.OnNodeCreated != nil {
			l.OnNodeCreated(created)
		}
	}
}

func (n *ArchetypeNode) fireNodeDestroyed(destroyed *ArchetypeNode) {
	for _, l := range n.listen {
		if l.OnNodeDestroyed != nil {
			l.OnNodeDestroyed(destroyed)
		}
	}
}

// fireEntitiesIn notifies n's own listeners. origin is the node the
// entities actually entered — always n when n is the event's origin, but
// remains n's ancestor-walk-independent true origin when n is only an
// ancestor being notified of a descendant's change, so a listener can
// always trust origin.vec to be the real post-move state (§4.3).
func (n *ArchetypeNode) fireEntitiesIn(entities []Entity, origin *ArchetypeNode) {
	for _, l := range n.listen {
		if l.OnEntitiesIn != nil {
			l.OnEntitiesIn(entities, origin)
		}
	}
}

// fireEntitiesOut mirrors fireEntitiesIn: origin is the node the entities
// departed (the true pre-move vec), not necessarily n itself.
func (n *ArchetypeNode) fireEntitiesOut(entities []Entity, origin *ArchetypeNode) {
	for _, l := range n.listen {
		if l.OnEntitiesOut != nil {
			l.OnEntitiesOut(entities, origin)
		}
	}
}

func (n *ArchetypeNode) fireRelationAdded(subject Entity, relation ComponentID, object Entity) {
	for _, l := range n.listen {
		if l.OnRelationAdded != nil {
			l.OnRelationAdded(subject, relation, object)
		}
	}
}

func (n *ArchetypeNode) fireRelationRemoved(subject Entity, relation ComponentID, object Entity) {
	for _, l := range n.listen {
		if l.OnRelationRemoved != nil {
			l.OnRelationRemoved(subject, relation, object)
		}
	}
}

// ObjectsForRelation returns the objects every entity in this node points
// at via `relation`, derived from the node's shared vec (every entity in a
// node carries the identical set of virtual relation ids) and cached for
// the node's lifetime (§4.8 "node's per-relation subject→objects map").
func (n *ArchetypeNode) ObjectsForRelation(relation ComponentID, reg *RelationRegistry) []Entity {
	if n.objectsForRelation == nil {
		n.objectsForRelation = make(map[ComponentID][]Entity, 2)
	}
	if cached, ok := n.objectsForRelation[relation]; ok {
		return cached
	}
	var out []Entity
	for _, id := range n.vec.IDs() {
		if !IsVirtual(id) {
			continue
		}
		pair, ok := reg.Resolve(id)
		if !ok || pair.Relation != relation {
			continue
		}
		out = append(out, pair.Object)
	}
	n.objectsForRelation[relation] = out
	return out
}
