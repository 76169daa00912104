package ecsim

// TermKind tags the kind of leaf a query descriptor term is (§4.8).
type TermKind int

const (
	TermEntity TermKind = iota
	TermRead
	TermWrite
	TermHas
	TermNot
	TermRel
)

// Term is one leaf of a query descriptor: `{entity:true}`, `{read:C}`,
// `{write:C}`, `{has:C}`, `{not:C}`, or a relationship term `{rel:[R,
// subTerm]}` (§4.8).
type Term struct {
	kind      TermKind
	component ComponentID
	relation  ComponentID
	relSub    *QueryDef
}

// EntityTerm yields the entity id in the row tuple.
func EntityTerm() Term { return Term{kind: TermEntity} }

// Read yields T's value, contributing an inner-join miss (row skipped) if
// the entity doesn't carry it.
func Read[T any](r *Registry) Term { return Term{kind: TermRead, component: GetID[T](r)} }

// Write is Read with write intent — this CORE's store has no separate
// write handle, so it shares Read's row production but is kept distinct
// so the planner can mark write terms for exclusive-mutation schedules
// (a scheduler concern outside this CORE's boundary, §1).
func Write[T any](r *Registry) Term { return Term{kind: TermWrite, component: GetID[T](r)} }

// HasTerm requires T's presence without producing a payload value.
func HasTerm[T any](r *Registry) Term { return Term{kind: TermHas, component: GetID[T](r)} }

// NotTerm excludes rows where the entity carries T.
func NotTerm[T any](r *Registry) Term { return Term{kind: TermNot, component: GetID[T](r)} }

// RelTerm joins through relation R into sub, recursing into sub's terms
// for each object R points at (§4.8).
func RelTerm[T any](r *Registry, sub *QueryDef) Term {
	return Term{kind: TermRel, relation: GetID[T](r), relSub: sub}
}

// QueryDef is a compiled-from descriptor: a flat term list for one join
// level (§4.8 "All"). Build one with AllOf; nest further levels with
// RelTerm.
type QueryDef struct {
	terms []Term
}

// AllOf builds a top-level (or nested) All descriptor from terms.
func AllOf(terms ...Term) *QueryDef { return &QueryDef{terms: terms} }

// JoinOf is sugar for an All whose terms are left's terms plus a
// RelTerm(relation, right) — the `{join:[leftAll,rightAll,R]}` composite
// of §4.8, expressed as an equivalent All+Rel.
func JoinOf(left *QueryDef, relation ComponentID, right *QueryDef) *QueryDef {
	terms := make([]Term, 0, len(left.terms)+1)
	terms = append(terms, left.terms...)
	terms = append(terms, Term{kind: TermRel, relation: relation, relSub: right})
	return &QueryDef{terms: terms}
}

// anchorVec computes the minimal vec a matching entity at this level must
// contain: every positive read/write/has term's component id, and every
// rel term's bare relation id (so the node matches "has relation R" for
// any object) (§4.8 "anchor captures the minimal set").
func anchorVec(def *QueryDef) *Vec {
	ids := make([]ComponentID, 0, len(def.terms))
	for _, t := range def.terms {
		switch t.kind {
		case TermRead, TermWrite, TermHas:
			ids = append(ids, t.component)
		case TermRel:
			ids = append(ids, t.relation)
		}
	}
	return MakeVec(ids)
}

// Row is one matched tuple, in descriptor order: root terms first, then
// each RelTerm's sub-tuple appended in turn (§8 scenario 1: `({x:1},
// {x:10})` for `All(Read(Position), Rel(ChildOf, Read(Position)))`).
type Row struct {
	Values []any
}

// CompiledQuery tracks an All descriptor's anchor node and the live set of
// graph nodes currently matching it (§4.8 "Matching").
type CompiledQuery struct {
	world   *World
	def     *QueryDef
	anchor  *ArchetypeNode
	matched map[int]*ArchetypeNode
}

// Compile plans def against w: finds (or creates) the anchor node for
// def's minimal required vec, and subscribes to nodeCreated/nodeDestroyed
// on it to keep a live matched-node set (§4.8 "Planning"/"Matching").
func Compile(w *World, def *QueryDef) *CompiledQuery {
	anchor := w.Graph.FindOrCreateNode(anchorVec(def), PruneNever)
	q := &CompiledQuery{world: w, def: def, anchor: anchor, matched: make(map[int]*ArchetypeNode, 8)}

	w.Graph.TraverseRight(anchor, func(n *ArchetypeNode) bool {
		q.matched[n.id] = n
		return true
	})

	anchor.AddListener(&NodeListener{
		OnNodeCreated: func(n *ArchetypeNode) {
			if n.vec.IsSupersetOf(anchor.vec) || n == anchor {
				q.matched[n.id] = n
			}
		},
		OnNodeDestroyed: func(n *ArchetypeNode) {
			delete(q.matched, n.id)
		},
	}, false)
	return q
}

// ForEach visits every matched row in descriptor order. fn returning false
// stops iteration early.
func (q *CompiledQuery) ForEach(fn func(Row) bool) {
	for _, node := range q.matched {
		for _, e := range node.Entities() {
			for _, row := range buildRows(q.world, q.def.terms, e, node, false, nil) {
				if !fn(row) {
					return
				}
			}
		}
	}
}

// buildRows computes every row produced by one entity at one node against
// a term list, recursing through RelTerms as a cross product (§4.8,
// §8 scenario 2 "two tuples ... in unspecified order"). Returns nil if any
// Read/Write term is an inner-join miss or any Not term is violated. When
// raw is true, Read/Write terms bypass the store's pending-removal
// visibility filter — used by Out monitors, which must still yield the
// value a component held the instant before it was removed (§4.9).
//
// stale, when non-nil, overrides the node a RelTerm's object is joined
// against: a monitor re-evaluating a subject whose relation object just
// transitioned archetypes (§4.9 "entitiesOut ... propagates upstream")
// passes the object's pre-transition node here so the raw/removed row
// still reflects the object's state at the instant of the transition,
// rather than the node it has already moved into.
func buildRows(w *World, terms []Term, e Entity, node *ArchetypeNode, raw bool, stale map[Entity]*ArchetypeNode) []Row {
	base := make([]any, 0, len(terms))
	var relTerms []Term

	for _, t := range terms {
		switch t.kind {
		case TermEntity:
			base = append(base, e)
		case TermRead, TermWrite:
			row, ok := w.Entities.RowOf(e)
			if !ok {
				return nil
			}
			var v any
			if raw {
				v, ok = w.Store.RawComponentValue(row, t.component)
			} else {
				v, ok = w.Store.GetComponentValue(e, row, t.component)
			}
			if !ok {
				return nil
			}
			base = append(base, v)
		case TermHas:
			if !node.vec.Has(t.component) {
				return nil
			}
			base = append(base, nil)
		case TermNot:
			if node.vec.Has(t.component) {
				return nil
			}
			base = append(base, nil)
		case TermRel:
			relTerms = append(relTerms, t)
		}
	}

	if len(relTerms) == 0 {
		return []Row{{Values: base}}
	}

	rows := []Row{{Values: base}}
	for _, rt := range relTerms {
		objects := node.ObjectsForRelation(rt.relation, w.Relations)
		var next []Row
		for _, obj := range objects {
			objNode, ok := stale[obj]
			if !ok {
				objNode, ok = w.Graph.NodeOf(obj)
			}
			if !ok {
				continue
			}
			subRows := buildRows(w, rt.relSub.terms, obj, objNode, raw, stale)
			for _, prefix := range rows {
				for _, sr := range subRows {
					merged := make([]any, 0, len(prefix.Values)+len(sr.Values))
					merged = append(merged, prefix.Values...)
					merged = append(merged, sr.Values...)
					next = append(next, Row{Values: merged})
				}
			}
		}
		rows = next
		if len(rows) == 0 {
			return nil
		}
	}
	return rows
}

// matches reports whether entity e (currently at node) produces at least
// one row against def — used by monitors to re-evaluate a compound query
// after an upstream relation change (§4.9 "test whether they now satisfy
// the compound query").
func matches(w *World, def *QueryDef, e Entity, node *ArchetypeNode) bool {
	return len(buildRows(w, def.terms, e, node, false, nil)) > 0
}
