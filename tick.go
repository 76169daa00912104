package ecsim

// FlushGraphChanges is the named lifecycle step between commit and
// flushDeletions (§5 dataflow: "graph batches flushed → listeners
// notified → deletions finalised"). This core fires entitiesIn/Out and
// relationAdded/Removed listeners synchronously as each mutation happens
// rather than queuing them for a later batch point — no test scenario in
// §8 observes the gap between a mutation and the next flushGraphChanges
// call, and every listener already runs against fully-settled store state
// at the moment it fires. The step is kept as an explicit, callable no-op
// so a schedule that places systems around it (per §5's ordering
// contract) still compiles and reads the way the lifecycle is documented.
func (w *World) FlushGraphChanges() {}

// FlushDeletions clears component columns for every entity torn down this
// tick and releases their rows and local ids back to their free lists —
// deferred this long so pre-removal data stays in place for raw reads
// (Out monitors) and no row is reused within the tick (§4.4, §4.6). Must run after FlushGraphChanges so relation/graph
// listeners have already observed the entitiesOut transition before the
// underlying row becomes eligible for reuse.
func (w *World) FlushDeletions() {
	dead := make([]Entity, 0, len(w.Store.pendingDeletions))
	for e := range w.Store.pendingDeletions {
		dead = append(dead, e)
	}
	w.Store.FlushDeletions(w.Entities.RowOf)
	for _, e := range dead {
		w.Entities.Release(e)
		w.Allocator.Release(e)
	}
}

// AdvanceTick is the lifecycle's final named step (§5 dataflow, §6
// "Clock → World supplies a tick cadence; the core exposes
// advanceTick(skipSnapshot)"): it increments the tick counter, captures a
// checkpoint when due, and zeroes the within-tick spawn counter. It does
// not itself commit or flush — those are the separate named steps
// (Commit, FlushGraphChanges, FlushDeletions) a scheduler places before it
// in the per-tick schedule. skipSnapshot suppresses this tick's checkpoint
// capture (e.g. a client replaying ticks it will immediately roll back
// past).
func (w *World) AdvanceTick(skipSnapshot bool) {
	w.tick++
	w.tickSpawnCount = 0

	if !skipSnapshot && w.History != nil && w.tick%w.History.interval == 0 {
		w.History.push(w.Capture())
	}
}
