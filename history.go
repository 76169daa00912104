package ecsim

// Checkpoint is a copy (component values by plain assignment, see
// SnapshotColumns) of every piece of world state §3 lists as
// necessary to restore a tick: component columns and versions, the entity
// index, per-domain allocator state, the three relation maps, and the
// vec each live entity belonged to (used to rebuild archetype membership,
// recreating any node that has since been pruned).
type Checkpoint struct {
	tick           uint32
	tickSpawnCount uint32

	columns     map[ComponentID][]rowSnapshot
	entityIndex entityIndexSnapshot
	domains     domainRegistrySnapshot
	relations   relationRegistrySnapshot
	entityVecs  map[Entity]*Vec

	nextOpSeq  map[uint32]uint32
	transients map[uint64]Entity
}

// Tick returns the simulation tick this checkpoint was captured at.
func (c *Checkpoint) Tick() uint32 { return c.tick }

// undoKind tags an UndoEntry's variant (§3 "Undo log entry").
type undoKind int

const (
	undoSpawn undoKind = iota
	undoDespawn
	undoAdd
	undoRemove
)

// UndoEntry reverses one buffered mutation. The log plus a nearest earlier
// checkpoint is sufficient to reverse any tick range (§3).
type UndoEntry struct {
	kind   undoKind
	tick   uint32
	entity Entity

	// undoDespawn: the entity's full resolved component list at the moment
	// of teardown, enough to respawn it verbatim.
	components []ComponentValue

	// undoAdd / undoRemove: the single component touched, and (for
	// undoRemove) the value it held just before removal.
	componentID ComponentID
	value       any
	isTag       bool
	rel         *RelPair
}

// HistoryBuffer is the rollback resource described in §4.10: a bounded ring
// of checkpoints captured every checkpointInterval ticks, and a parallel
// undo log recording every buffered mutation since the oldest surviving
// checkpoint.
type HistoryBuffer struct {
	interval uint32
	maxSize  int

	checkpoints []*Checkpoint
	undo        []UndoEntry
}

// NewHistoryBuffer creates an empty history buffer. interval is clamped to
// at least 1 tick between captures; maxSize is clamped to at least 1
// retained checkpoint.
func NewHistoryBuffer(interval uint32, maxSize int) *HistoryBuffer {
	if interval == 0 {
		interval = 1
	}
	if maxSize <= 0 {
		maxSize = 1
	}
	return &HistoryBuffer{
		interval:    interval,
		maxSize:     maxSize,
		checkpoints: make([]*Checkpoint, 0, maxSize),
		undo:        make([]UndoEntry, 0, 256),
	}
}

func (h *HistoryBuffer) push(c *Checkpoint) {
	h.checkpoints = append(h.checkpoints, c)
	if len(h.checkpoints) > h.maxSize {
		h.checkpoints = h.checkpoints[len(h.checkpoints)-h.maxSize:]
	}
}

// findCheckpoint returns the newest checkpoint with tick <= requested, or
// nil if none exists (§7 "rollback target unreachable").
func (h *HistoryBuffer) findCheckpoint(tick uint32) *Checkpoint {
	for i := len(h.checkpoints) - 1; i >= 0; i-- {
		if h.checkpoints[i].tick <= tick {
			return h.checkpoints[i]
		}
	}
	return nil
}

// truncateAt drops every checkpoint after ckptTick and every undo entry at
// or after it (§4.10 "truncates the checkpoint ring and trims the undo log
// of entries at or after that checkpoint's tick").
func (h *HistoryBuffer) truncateAt(ckptTick uint32) {
	kept := h.checkpoints[:0:0]
	for _, c := range h.checkpoints {
		if c.tick <= ckptTick {
			kept = append(kept, c)
		}
	}
	h.checkpoints = kept

	keptUndo := h.undo[:0:0]
	for _, e := range h.undo {
		if e.tick < ckptTick {
			keptUndo = append(keptUndo, e)
		}
	}
	h.undo = keptUndo
}

// record appends an undo entry for the current tick, unless history
// recording is currently suppressed (during undo-log reversal itself).
func (w *World) recordUndo(e UndoEntry) {
	if w.History == nil || w.suppressHistory {
		return
	}
	e.tick = w.tick
	w.History.undo = append(w.History.undo, e)
}

// entityComponentValues resolves e's full component list (by walking its
// current node's vec) into ComponentValues suitable for re-spawning it
// verbatim. Only the undo-despawn path uses it; Capture snapshots whole
// columns instead.
func (w *World) entityComponentValues(e Entity) []ComponentValue {
	node, ok := w.Graph.NodeOf(e)
	if !ok {
		return nil
	}
	row, _ := w.Entities.RowOf(e)
	out := make([]ComponentValue, 0, node.vec.Len())
	for _, id := range node.vec.IDs() {
		if IsVirtual(id) {
			pair, ok := w.Relations.Resolve(id)
			if !ok {
				continue
			}
			out = append(out, ComponentValue{ID: id, Rel: &RelPair{Relation: pair.Relation, Object: pair.Object}})
			continue
		}
		desc, _ := w.Components.Resolve(id)
		if desc != nil && desc.IsTag {
			out = append(out, ComponentValue{ID: id})
			continue
		}
		v, ok := w.Store.RawComponentValue(row, id)
		if !ok {
			out = append(out, ComponentValue{ID: id})
			continue
		}
		out = append(out, ComponentValue{ID: id, Value: v})
	}
	return out
}

// Capture snapshots every piece of world state §3/§4.10 require into a new
// Checkpoint. Resource values (row 0) are included like any other row —
// the asymmetry is only on restore, where row 0 is left untouched.
func (w *World) Capture() *Checkpoint {
	return &Checkpoint{
		tick:           w.tick,
		tickSpawnCount: w.tickSpawnCount,
		columns:        w.Store.SnapshotColumns(),
		entityIndex:    w.Entities.Snapshot(),
		domains:        w.Allocator.Snapshot(),
		relations:      w.Relations.Snapshot(),
		entityVecs:     w.Graph.SnapshotEntityVecs(),
		nextOpSeq:      cloneMap(w.nextOpSeq),
		transients:     cloneMap(w.transients),
	}
}

// Restore replaces the world's state with a previously captured checkpoint
// (§4.10). Row 0 (RESOURCE_ENTITY) is left untouched in every column —
// live resources persist across rollback. Archetype membership is rebuilt
// from the checkpoint's entity→vec map, re-creating any node pruned since
// capture; every surviving (subject, relation, object) edge re-fires
// relationAdded on the object's node so listeners stay consistent.
func (w *World) Restore(c *Checkpoint) {
	w.tick = c.tick
	w.tickSpawnCount = c.tickSpawnCount
	w.nextOpSeq = cloneMap(c.nextOpSeq)
	w.transients = cloneMap(c.transients)

	w.Entities.Restore(c.entityIndex)
	w.Allocator.Restore(c.domains)
	w.Relations.Restore(c.relations)
	w.Store.RestoreColumns(c.columns)
	w.Graph.RestoreMembership(c.entityVecs, w.Entities.RowOf)

	for object, edges := range w.Relations.objectToSubjects {
		node, ok := w.Graph.NodeOf(object)
		if !ok {
			continue
		}
		for edge := range edges {
			node.fireRelationAdded(edge.subject, edge.relation, object)
		}
	}
}

// Rollback selects the newest checkpoint with tick <= the requested tick,
// restores it, and truncates history ahead of it. It does not fast-forward
// to the requested tick itself if no exact checkpoint exists there — the
// caller resimulates forward by calling AdvanceTick with its systems
// (§4.10 "Forward resimulation is performed by the caller"). Returns false
// if no checkpoint at or before tick exists (§7 "rollback target
// unreachable").
func (w *World) Rollback(tick uint32) bool {
	if w.History == nil {
		w.reportRollbackUnreachable(tick)
		return false
	}
	ckpt := w.History.findCheckpoint(tick)
	if ckpt == nil {
		w.reportRollbackUnreachable(tick)
		return false
	}
	w.Restore(ckpt)
	w.History.truncateAt(ckpt.tick)
	return true
}

// ApplyUndoLog walks the undo log from newest to oldest, stopping at the
// first entry with tick < targetTick, reversing each in turn (§4.10). This
// is a lighter-weight alternative to Rollback when the caller wants to
// step back a handful of ticks without restoring a whole checkpoint.
func (w *World) ApplyUndoLog(targetTick uint32) {
	if w.History == nil {
		return
	}
	log := w.History.undo
	cut := len(log)
	for cut > 0 && log[cut-1].tick >= targetTick {
		cut--
	}
	reverse := log[cut:]
	w.suppressHistory = true
	for i := len(reverse) - 1; i >= 0; i-- {
		w.reverseUndoEntry(reverse[i])
	}
	w.suppressHistory = false
	w.History.undo = log[:cut]
}

// reverseUndoEntry reverses a single logged mutation (§4.10
// "applyUndoLog ... reverses each op in reverse order").
func (w *World) reverseUndoEntry(e UndoEntry) {
	switch e.kind {
	case undoSpawn:
		w.despawnInternal(e.entity)
	case undoDespawn:
		w.respawnAt(e.entity, e.components)
	case undoAdd:
		if e.rel != nil {
			removeRelationID(w, e.entity, e.rel.Relation, e.rel.Object)
		} else {
			removeComponentID(w, e.entity, e.componentID, nil)
		}
	case undoRemove:
		if e.rel != nil {
			addRelationID(w, e.entity, e.rel.Relation, e.rel.Object)
		} else {
			addComponentID(w, e.entity, e.componentID, e.isTag, e.value, nil)
		}
	}
}
