package ecsim

import "testing"

func TestAdvanceTickIncrementsAndResetsSpawnCount(t *testing.T) {
	w := newTestWorld()
	RegisterTag[Replicated](w.Components, "Replicated")
	w.Spawn(WithTag[Replicated](w))
	if w.tickSpawnCount == 0 {
		t.Fatal("expected spawning within a tick to increment tickSpawnCount")
	}
	before := w.Tick()
	w.AdvanceTick(false)
	if w.Tick() != before+1 {
		t.Errorf("expected tick to increment by one, got %d -> %d", before, w.Tick())
	}
	if w.tickSpawnCount != 0 {
		t.Errorf("expected tickSpawnCount to reset after AdvanceTick, got %d", w.tickSpawnCount)
	}
}

func TestAdvanceTickCheckspointsOnInterval(t *testing.T) {
	w := newTestWorldWithOptions(WorldOptions{EnableHistory: true, CheckpointInterval: 2})
	startCount := len(w.History.checkpoints)
	w.AdvanceTick(false) // tick 1, not a multiple of 2
	if len(w.History.checkpoints) != startCount {
		t.Errorf("expected no new checkpoint at a non-interval tick, got %d", len(w.History.checkpoints))
	}
	w.AdvanceTick(false) // tick 2, a multiple of 2
	if len(w.History.checkpoints) != startCount+1 {
		t.Errorf("expected a new checkpoint at an interval tick, got %d", len(w.History.checkpoints))
	}
}

func TestAdvanceTickSkipSnapshotSuppressesCheckpoint(t *testing.T) {
	w := newTestWorldWithOptions(WorldOptions{EnableHistory: true, CheckpointInterval: 1})
	startCount := len(w.History.checkpoints)
	w.AdvanceTick(true)
	if len(w.History.checkpoints) != startCount {
		t.Error("expected skipSnapshot=true to suppress the checkpoint even on an interval tick")
	}
}

func TestFlushGraphChangesIsCallableNoOp(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithValue(w, testPosition{X: 1, Y: 1}))
	w.FlushGraphChanges()
	if v, ok := GetValue[testPosition](w, e); !ok || v != (testPosition{X: 1, Y: 1}) {
		t.Error("expected FlushGraphChanges to leave store state untouched")
	}
}

func TestFlushDeletionsReleasesRowForReuse(t *testing.T) {
	w := newTestWorld()
	e := w.Spawn(WithValue(w, testPosition{X: 1, Y: 1}))
	row, _ := w.Entities.RowOf(e)
	w.Despawn(e)
	w.FlushDeletions()

	e2 := w.Spawn(WithValue(w, testPosition{X: 2, Y: 2}))
	row2, _ := w.Entities.RowOf(e2)
	if row2 != row {
		t.Errorf("expected the freed row %d to be reused by the next spawn, got row %d", row, row2)
	}
}
