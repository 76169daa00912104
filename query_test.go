package ecsim

import "testing"

func TestCompiledQueryMatchesExistingAndNewArchetypes(t *testing.T) {
	w := newTestWorld()
	def := AllOf(EntityTerm(), Read[testPosition](w.Components))
	before := w.Spawn(WithValue(w, testPosition{X: 1, Y: 1}))
	q := Compile(w, def)

	var seen []Entity
	q.ForEach(func(r Row) bool {
		seen = append(seen, r.Values[0].(Entity))
		return true
	})
	if len(seen) != 1 || seen[0] != before {
		t.Fatalf("expected the pre-existing entity to already match, got %v", seen)
	}

	after := w.Spawn(WithValue(w, testPosition{X: 2, Y: 2}), WithTag[testDead](w))
	seen = nil
	q.ForEach(func(r Row) bool {
		seen = append(seen, r.Values[0].(Entity))
		return true
	})
	if len(seen) != 2 {
		t.Fatalf("expected the query to pick up a newly-created matching archetype, got %v", seen)
	}
	_ = after
}

func TestCompiledQueryReadProducesValue(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithValue(w, testPosition{X: 3, Y: 4}))
	q := Compile(w, AllOf(EntityTerm(), Read[testPosition](w.Components)))

	var got testPosition
	q.ForEach(func(r Row) bool {
		if r.Values[0].(Entity) == e {
			got = r.Values[1].(testPosition)
		}
		return true
	})
	if got != (testPosition{X: 3, Y: 4}) {
		t.Errorf("expected to read back the spawned value, got %+v", got)
	}
}

func TestCompiledQueryNotTermExcludesMatches(t *testing.T) {
	w := newTestWorld()
	alive := w.Spawn(WithValue(w, testPosition{X: 1, Y: 1}))
	w.Spawn(WithValue(w, testPosition{X: 2, Y: 2}), WithTag[testDead](w))
	q := Compile(w, AllOf(EntityTerm(), Read[testPosition](w.Components), NotTerm[testDead](w.Components)))

	var seen []Entity
	q.ForEach(func(r Row) bool {
		seen = append(seen, r.Values[0].(Entity))
		return true
	})
	if len(seen) != 1 || seen[0] != alive {
		t.Errorf("expected Not to exclude the dead entity, got %v", seen)
	}
}

func TestCompiledQueryHasTermRequiresPresenceWithoutValue(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithValue(w, testPosition{X: 1, Y: 1}), WithTag[testDead](w))
	q := Compile(w, AllOf(EntityTerm(), HasTerm[testDead](w.Components)))

	var seen []Entity
	q.ForEach(func(r Row) bool {
		seen = append(seen, r.Values[0].(Entity))
		return true
	})
	if len(seen) != 1 || seen[0] != e {
		t.Errorf("expected Has to match the tagged entity, got %v", seen)
	}
}

func TestCompiledQueryRelJoinsChildThroughParent(t *testing.T) {
	w := newTestWorld()
	type ChildOf struct{}
	RegisterTag[ChildOf](w.Components, "ChildOf")
	parent := w.Spawn(WithValue(w, testPosition{X: 100, Y: 100}))
	w.Spawn(WithValue(w, testPosition{X: 1, Y: 1}), WithRelation[ChildOf](w, parent))

	def := AllOf(EntityTerm(), RelTerm[ChildOf](w.Components, AllOf(Read[testPosition](w.Components))))
	q := Compile(w, def)

	var rows []Row
	q.ForEach(func(r Row) bool {
		rows = append(rows, r)
		return true
	})
	if len(rows) != 1 {
		t.Fatalf("expected exactly one joined row, got %d", len(rows))
	}
	if rows[0].Values[1].(testPosition) != (testPosition{X: 100, Y: 100}) {
		t.Errorf("expected the joined row to carry the parent's position, got %+v", rows[0].Values[1])
	}
}

func TestBuildRowsMissingReadSkipsRow(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithTag[testDead](w))
	node, _ := w.Graph.NodeOf(e)
	rows := buildRows(w, []Term{Read[testPosition](w.Components)}, e, node, false, nil)
	if rows != nil {
		t.Errorf("expected a missing Read component to skip the row, got %+v", rows)
	}
}

func TestMatchesReportsFalseWhenRelHasNoObjects(t *testing.T) {
	w := newTestWorld()
	type ChildOf struct{}
	RegisterTag[ChildOf](w.Components, "ChildOf")
	e := w.Spawn()
	node, _ := w.Graph.NodeOf(e)
	def := AllOf(RelTerm[ChildOf](w.Components, AllOf(EntityTerm())))
	if matches(w, def, e, node) {
		t.Error("expected matches to report false when the relation has no objects")
	}
}
