package ecsim

// ArchetypeGraph is the poset of archetype nodes, linked by subset/superset
// edges, with a byHash index for O(1) lookup and a byEntity index for O(1)
// current-node lookup (§3, §4.3).
type ArchetypeGraph struct {
	nextID   int
	byHash   map[uint64]*ArchetypeNode
	byEntity map[Entity]*ArchetypeNode
	root     *ArchetypeNode
}

// NewArchetypeGraph creates a graph with a never-pruned root node of the
// empty vec.
func NewArchetypeGraph() *ArchetypeGraph {
	g := &ArchetypeGraph{
		byHash:   make(map[uint64]*ArchetypeNode, 64),
		byEntity: make(map[Entity]*ArchetypeNode, 256),
	}
	g.root = newArchetypeNode(0, EmptyVec(), g, PruneNever)
	g.byHash[EmptyVec().Hash()] = g.root
	g.nextID = 1
	return g
}

// Root returns the graph's root node (the empty vec).
func (g *ArchetypeGraph) Root() *ArchetypeNode { return g.root }

// NodeOf returns the node currently holding e, if any.
func (g *ArchetypeGraph) NodeOf(e Entity) (*ArchetypeNode, bool) {
	n, ok := g.byEntity[e]
	return n, ok
}

// FindOrCreateNode returns the existing node for vec, or allocates, links,
// and fans out nodeCreated to ancestors for a new one (§4.3). Asking for
// PruneNever on an existing node upgrades it to PruneNever.
func (g *ArchetypeGraph) FindOrCreateNode(vec *Vec, strat PruneStrategy) *ArchetypeNode {
	if n, ok := g.byHash[vec.Hash()]; ok {
		if strat == PruneNever {
			n.strat = PruneNever
		}
		return n
	}
	node := newArchetypeNode(g.nextID, vec, g, strat)
	g.nextID++
	g.byHash[vec.Hash()] = node
	g.link(node)
	g.notifyAncestorsCreated(node)
	return node
}

// link implements §4.3's linking algorithm: traverse right from the root;
// for each visited node, classify it as parent-to-link (visited ⊂ new,
// no existing child of visited is also ⊂ new) or child-to-link
// (visited ⊃ new, and unlink visited's parents that are ⊆ new). All
// link/unlink operations are collected and applied after the traversal so
// the walk never mutates the graph mid-flight.
func (g *ArchetypeGraph) link(node *ArchetypeNode) {
	type parentsUnlink struct {
		child  *ArchetypeNode
		parent *ArchetypeNode
	}
	var toParent []*ArchetypeNode
	var toChild []*ArchetypeNode
	var unlink []parentsUnlink

	g.traverse(g.root, make(map[int]bool, 16), func(visited *ArchetypeNode) bool {
		if visited == node {
			return false
		}
		switch {
		case visited.vec.IsProperSubsetOf(node.vec):
			moreSpecificExists := false
			for _, child := range visited.next {
				if child != node && child.vec.IsProperSubsetOf(node.vec) {
					moreSpecificExists = true
					break
				}
			}
			if !moreSpecificExists {
				toParent = append(toParent, visited)
			}
			return true
		case node.vec.IsProperSubsetOf(visited.vec):
			toChild = append(toChild, visited)
			for _, parent := range visited.prev {
				if node.vec.IsSupersetOf(parent.vec) {
					unlink = append(unlink, parentsUnlink{child: visited, parent: parent})
				}
			}
			return false
		default:
			return true
		}
	})

	for _, p := range toParent {
		p.next[node.id] = node
		node.prev[p.id] = p
	}
	for _, c := range toChild {
		c.prev[node.id] = node
		node.next[c.id] = c
	}
	for _, u := range unlink {
		delete(u.child.prev, u.parent.id)
		delete(u.parent.next, u.child.id)
	}
}

func (g *ArchetypeGraph) notifyAncestorsCreated(node *ArchetypeNode) {
	seen := make(map[int]bool, 16)
	var walk func(n *ArchetypeNode)
	walk = func(n *ArchetypeNode) {
		if seen[n.id] {
			return
		}
		seen[n.id] = true
		n.fireNodeCreated(node)
		for _, p := range n.prev {
			walk(p)
		}
	}
	for _, p := range node.prev {
		walk(p)
	}
}

func (g *ArchetypeGraph) notifyAncestorsDestroyed(node *ArchetypeNode) {
	seen := make(map[int]bool, 16)
	var walk func(n *ArchetypeNode)
	walk = func(n *ArchetypeNode) {
		if seen[n.id] {
			return
		}
		seen[n.id] = true
		n.fireNodeDestroyed(node)
		for _, p := range n.prev {
			walk(p)
		}
	}
	for _, p := range node.prev {
		walk(p)
	}
}

// notifyAncestorsEntitiesIn fires entitiesIn on node and every ancestor
// whose vec is a subset, always passing node itself as the listener's
// origin argument — so a listener registered on an ancestor still learns
// the real node the entities entered, not the ancestor it happens to be
// registered on (§4.3 "fan out ... to every ancestor").
func (g *ArchetypeGraph) notifyAncestorsEntitiesIn(node *ArchetypeNode, entities []Entity) {
	if len(entities) == 0 {
		return
	}
	node.fireEntitiesIn(entities, node)
	seen := map[int]bool{node.id: true}
	var walk func(n *ArchetypeNode)
	walk = func(n *ArchetypeNode) {
		if seen[n.id] {
			return
		}
		seen[n.id] = true
		n.fireEntitiesIn(entities, node)
		for _, p := range n.prev {
			walk(p)
		}
	}
	for _, p := range node.prev {
		walk(p)
	}
}

// notifyAncestorsEntitiesOut mirrors notifyAncestorsEntitiesIn for the
// departing side: every ancestor's listener receives node (the true node
// the entities just left) as its origin argument, regardless of which
// ancestor it is registered on — letting a listener read the pre-move
// structural state directly from origin.vec instead of re-deriving it via
// a graph lookup that could race with the entity's already-rebound index
// entry (§4.9's Out-monitor raw-read requirement).
func (g *ArchetypeGraph) notifyAncestorsEntitiesOut(node *ArchetypeNode, entities []Entity) {
	if len(entities) == 0 {
		return
	}
	node.fireEntitiesOut(entities, node)
	seen := map[int]bool{node.id: true}
	var walk func(n *ArchetypeNode)
	walk = func(n *ArchetypeNode) {
		if seen[n.id] {
			return
		}
		seen[n.id] = true
		n.fireEntitiesOut(entities, node)
		for _, p := range n.prev {
			walk(p)
		}
	}
	for _, p := range node.prev {
		walk(p)
	}
}

// SetEntityNode moves e from its previous node (if any) to node at the
// given stable row, firing entitiesOut on the previous node's ancestor
// chain and entitiesIn on the new node's ancestor chain, then replaying
// e's incoming relations on both nodes so ancestor listeners see a
// consistent edge picture (§4.3).
func (g *ArchetypeGraph) SetEntityNode(e Entity, node *ArchetypeNode, row int, relReg *RelationRegistry) {
	prev, had := g.byEntity[e]
	if had && prev == node {
		return
	}
	if had {
		prev.removeEntity(e)
	}
	node.addEntity(e, row)
	// byEntity is rebound to the destination node before any listener
	// fires: a listener reacting to this entity's departure (e.g. a
	// monitor propagating a relation change upstream) may recursively look
	// up a *different* entity whose query term traverses back through e —
	// that lookup must observe e's final, post-move node, not a stale
	// pre-move one. Listeners that need the pre-move vec get it directly
	// via the origin argument the fan-out passes, not by re-deriving it
	// from byEntity (§4.3, §4.9).
	g.byEntity[e] = node
	if had {
		g.notifyAncestorsEntitiesOut(prev, []Entity{e})
	}
	g.notifyAncestorsEntitiesIn(node, []Entity{e})

	if relReg == nil {
		return
	}
	for _, edge := range relReg.Subjects(e) {
		if had {
			prev.fireRelationRemoved(edge.subject, edge.relation, e)
		}
		node.fireRelationAdded(edge.subject, edge.relation, e)
	}
}

// RemoveEntityFromGraph detaches e entirely (on despawn), firing
// entitiesOut on its node's ancestor chain.
func (g *ArchetypeGraph) RemoveEntityFromGraph(e Entity) {
	node, ok := g.byEntity[e]
	if !ok {
		return
	}
	node.removeEntity(e)
	delete(g.byEntity, e)
	g.notifyAncestorsEntitiesOut(node, []Entity{e})
	if node.strat == PruneWhenEmpty && node.isEmpty() {
		g.Prune(node)
	}
}

// Prune removes an empty, WhenEmpty-strategy node (never the root),
// re-linking its orphaned children to its own parents where still a
// proper subset with no more specific intermediate (§4.3).
func (g *ArchetypeGraph) Prune(node *ArchetypeNode) {
	if node == g.root || !node.isEmpty() {
		return
	}
	g.notifyAncestorsDestroyed(node)

	children := make([]*ArchetypeNode, 0, len(node.next))
	for _, c := range node.next {
		children = append(children, c)
	}
	parents := make([]*ArchetypeNode, 0, len(node.prev))
	for _, p := range node.prev {
		parents = append(parents, p)
	}

	for _, p := range parents {
		delete(p.next, node.id)
	}
	for _, c := range children {
		delete(c.prev, node.id)
	}

	for _, c := range children {
		for _, p := range parents {
			if !c.vec.IsProperSubsetOf(p.vec) {
				continue
			}
			moreSpecific := false
			for _, other := range children {
				if other != c && other.vec.IsProperSubsetOf(p.vec) && c.vec.IsProperSubsetOf(other.vec) {
					moreSpecific = true
					break
				}
			}
			if !moreSpecific {
				p.next[c.id] = c
				c.prev[p.id] = p
			}
		}
	}

	delete(g.byHash, node.vec.Hash())
}

// SnapshotEntityVecs captures every live entity's current node vec, the
// minimal information §4.10 needs to rebuild archetype membership on
// restore ("entity→archetype-node-id mapping and the vecs needed to
// reconstruct pruned nodes").
func (g *ArchetypeGraph) SnapshotEntityVecs() map[Entity]*Vec {
	out := make(map[Entity]*Vec, len(g.byEntity))
	for e, n := range g.byEntity {
		out[e] = n.vec
	}
	return out
}

// RestoreMembership clears every node's current entity set, then re-adds
// each (entity, vec) pair at its restored row, re-creating any archetype
// node that was pruned since the checkpoint was taken (§4.10 "clears and
// rebuilds archetype entity membership ... re-creates missing archetype
// nodes from nodeVecs"). rowOf resolves an entity's restored row index.
func (g *ArchetypeGraph) RestoreMembership(entityVecs map[Entity]*Vec, rowOf func(Entity) (int, bool)) {
	for _, n := range g.byHash {
		n.rowOf = NewSparseMap[int]()
	}
	g.byEntity = make(map[Entity]*ArchetypeNode, len(entityVecs))

	for e, vec := range entityVecs {
		row, ok := rowOf(e)
		if !ok {
			continue
		}
		node := g.FindOrCreateNode(vec, PruneWhenEmpty)
		node.addEntity(e, row)
		g.byEntity[e] = node
	}
}

// traverse is a reentrant-safe DFS (its own visited-set, not shared
// module-level state) walking toward supersets (next-links) from start.
// f may return false to cut the subtree below the current node.
func (g *ArchetypeGraph) traverse(start *ArchetypeNode, visited map[int]bool, f func(*ArchetypeNode) bool) {
	if visited[start.id] {
		return
	}
	visited[start.id] = true
	if !f(start) {
		return
	}
	for _, c := range start.next {
		g.traverse(c, visited, f)
	}
}

// TraverseRight walks from start toward supersets (descendants).
func (g *ArchetypeGraph) TraverseRight(start *ArchetypeNode, f func(*ArchetypeNode) bool) {
	g.traverse(start, make(map[int]bool, 16), f)
}

// TraverseLeft walks from start toward subsets (ancestors).
func (g *ArchetypeGraph) TraverseLeft(start *ArchetypeNode, f func(*ArchetypeNode) bool) {
	visited := make(map[int]bool, 16)
	var walk func(n *ArchetypeNode)
	walk = func(n *ArchetypeNode) {
		if visited[n.id] {
			return
		}
		visited[n.id] = true
		if !f(n) {
			return
		}
		for _, p := range n.prev {
			walk(p)
		}
	}
	walk(start)
}
