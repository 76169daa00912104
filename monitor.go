package ecsim

// Direction documents a Monitor's intended read side (added vs removed);
// both sets are maintained regardless, so the boundary rule "added and
// removed within the same tick appears in neither" holds independent of
// which side a caller consumes (§4.9).
type Direction int

const (
	DirIn Direction = iota
	DirOut
)

// Monitor extends the All runtime with two entity sets, added and removed,
// diffed per tick (§4.9). Root-level transitions are observed directly on
// the query's own anchor; transitions through a RelTerm's object are
// observed on that sub-level's anchor and propagated upstream to every
// subject currently pointing at the changed object.
type Monitor struct {
	world  *World
	def    *QueryDef
	anchor *ArchetypeNode
	dir    Direction

	added   *SparseSet
	removed *SparseSet

	addedRows   map[Entity][]Row
	removedRows map[Entity][]Row
}

// CompileMonitor builds a Monitor for def in direction dir, subscribing to
// entitiesIn/entitiesOut on the root anchor and, for every RelTerm, on that
// level's own anchor plus relationAdded/relationRemoved re-evaluation
// (§4.9).
func CompileMonitor(w *World, def *QueryDef, dir Direction) *Monitor {
	anchor := w.Graph.FindOrCreateNode(anchorVec(def), PruneNever)
	m := &Monitor{
		world: w, def: def, anchor: anchor, dir: dir,
		added: NewSparseSet(), removed: NewSparseSet(),
		addedRows: make(map[Entity][]Row, 8), removedRows: make(map[Entity][]Row, 8),
	}

	anchor.AddListener(&NodeListener{
		OnEntitiesIn: func(entities []Entity, node *ArchetypeNode) {
			for _, e := range entities {
				m.transition(e, node, matches(w, def, e, node), nil)
			}
		},
		OnEntitiesOut: func(entities []Entity, origin *ArchetypeNode) {
			// origin is the node the entities actually departed (the fan-out
			// passes it explicitly, §4.3), so this reads the correct
			// pre-move vec regardless of byEntity's current state — no
			// dependency on call-order timing.
			for _, e := range entities {
				m.transition(e, origin, false, nil)
			}
		},
	}, false)

	for _, t := range def.terms {
		if t.kind != TermRel {
			continue
		}
		relation := t.relation
		subAnchor := w.Graph.FindOrCreateNode(anchorVec(t.relSub), PruneNever)
		subAnchor.AddListener(&NodeListener{
			OnEntitiesIn: func(entities []Entity, _ *ArchetypeNode) {
				m.propagateUpstream(relation, entities, nil)
			},
			OnEntitiesOut: func(entities []Entity, origin *ArchetypeNode) {
				// origin is the object's node at the instant it left the
				// subquery's matched set — pass it through as a stale
				// override so a subject re-evaluated below still joins
				// against the object's pre-transition state for its raw
				// removed row (§4.9, §8 scenario 4).
				m.propagateUpstream(relation, entities, origin)
			},
			OnRelationAdded: func(subject Entity, rel ComponentID, object Entity) {
				if rel == relation {
					m.reevaluate(subject, nil)
				}
			},
			OnRelationRemoved: func(subject Entity, rel ComponentID, object Entity) {
				if rel == relation {
					m.reevaluate(subject, nil)
				}
			},
		}, false)
	}
	return m
}

// propagateUpstream re-evaluates every subject currently pointing at any of
// objects via relation (§4.9 "propagates upstream"). staleObjectNode, when
// non-nil, is the node one of objects occupied at the instant of this
// event (before its own archetype move completed) — threaded through so a
// subject that transitions to non-matching still gets a raw row built
// against the object's pre-transition state rather than its already-moved
// one (§8 scenario 4).
func (m *Monitor) propagateUpstream(relation ComponentID, objects []Entity, staleObjectNode *ArchetypeNode) {
	for _, obj := range objects {
		var stale map[Entity]*ArchetypeNode
		if staleObjectNode != nil {
			stale = map[Entity]*ArchetypeNode{obj: staleObjectNode}
		}
		for _, edge := range m.world.Relations.Subjects(obj) {
			if edge.relation == relation {
				m.reevaluate(edge.subject, stale)
			}
		}
	}
}

func (m *Monitor) reevaluate(subject Entity, stale map[Entity]*ArchetypeNode) {
	node, ok := m.world.Graph.NodeOf(subject)
	if !ok {
		m.transition(subject, nil, false, stale)
		return
	}
	m.transition(subject, node, matches(m.world, m.def, subject, node), stale)
}

// transition records nowMatches, keeping added/removed mutually exclusive
// within the tick (§4.9: add removes from removed, and vice versa — so an
// entity touched twice in one tick settles into exactly one set or
// neither). It also captures the row tuple(s) e produces at node: the
// added side reads through the store's normal visibility filter, the
// removed side reads raw so an Out monitor still yields the value a
// component held the instant before removal (§4.9 "must still yield the
// old data"). node may be nil (a subject reevaluated via upstream
// propagation that is no longer in the graph), in which case no row is
// recorded. stale, when
// non-nil, is passed through to the raw row build so a RelTerm's object
// that has already moved archetypes joins against its pre-transition node
// instead (§8 scenario 4).
func (m *Monitor) transition(e Entity, node *ArchetypeNode, nowMatches bool, stale map[Entity]*ArchetypeNode) {
	if nowMatches {
		m.added.Add(int(e))
		m.removed.Delete(int(e))
		delete(m.removedRows, e)
		if node != nil {
			if rows := buildRows(m.world, m.def.terms, e, node, false, nil); len(rows) > 0 {
				m.addedRows[e] = rows
			}
		}
	} else {
		m.removed.Add(int(e))
		m.added.Delete(int(e))
		delete(m.addedRows, e)
		if node != nil {
			if rows := buildRows(m.world, m.def.terms, e, node, true, stale); len(rows) > 0 {
				m.removedRows[e] = rows
			}
		}
	}
}

// Added returns entities that newly matched since the last Clear.
func (m *Monitor) Added() []Entity { return sparseToEntities(m.added) }

// Removed returns entities that stopped matching since the last Clear. For
// an Out monitor, component values referenced by this tick's still-live
// reads reflect the pre-removal state, since store clearing is deferred to
// flushDeletions (§4.9 "must still yield the old data").
func (m *Monitor) Removed() []Entity { return sparseToEntities(m.removed) }

// AddedRows returns the full row tuple for every newly-matching entity, in
// descriptor order, using current (post-mutation) component values.
func (m *Monitor) AddedRows() []Row { return flattenRows(m.addedRows) }

// RemovedRows returns the full row tuple for every newly-unmatching entity.
// Read/Write term values reflect the component's state immediately before
// removal, not its current (possibly already-blanked) value.
func (m *Monitor) RemovedRows() []Row { return flattenRows(m.removedRows) }

func flattenRows(byEntity map[Entity][]Row) []Row {
	out := make([]Row, 0, len(byEntity))
	for _, rows := range byEntity {
		out = append(out, rows...)
	}
	return out
}

// Clear empties both sets, to be called after systems have observed this
// tick's transitions and before the next tick begins (§4.9).
func (m *Monitor) Clear() {
	m.added.Clear()
	m.removed.Clear()
	m.addedRows = make(map[Entity][]Row, 8)
	m.removedRows = make(map[Entity][]Row, 8)
}

func sparseToEntities(s *SparseSet) []Entity {
	out := make([]Entity, s.Len())
	for i := 0; i < s.Len(); i++ {
		out[i] = Entity(s.At(i))
	}
	return out
}
