package ecsim

// OpKind tags a ReplicationOp's variant (§3 "ReplicationOp").
type OpKind int

const (
	OpSpawn OpKind = iota
	OpDespawn
	OpSet
	OpRemove
)

// ComponentValue pairs a component id with its current value (and, for
// virtual relation ids, the relation pair it encodes) for wire/transaction
// payloads (§6).
type ComponentValue struct {
	ID    ComponentID
	Value any
	Rel   *RelPair
}

// ReplicationOp is one entry in a transaction's op list (§3, §6).
type ReplicationOp struct {
	Kind      OpKind
	Entity    Entity
	CausalKey uint32          // Spawn only
	Version   uint32          // Set only
	Component ComponentID     // Set/Remove only
	Value     any             // Set only
	Rel       *RelPair        // Set/Remove, iff Component is a virtual id
	Initial   []ComponentValue // Spawn only: full resolved component list
}

// Transaction is the unit pushed to the replication stream by commit
// (§4.7): origin domain, monotonic per-domain sequence, the tick it was
// produced in, and its reduced op list.
type Transaction struct {
	Domain   uint32
	Sequence uint32
	Tick     uint32
	Ops      []ReplicationOp
}

// Commit groups pendingOps by entity and applies the deterministic
// reduction rules of §4.7, then clears pendingOps and returns the
// resulting transaction. Returns ok=false (and a zero Transaction) if
// there is nothing to commit — callers should treat this as commit being
// idempotent on empty input, not an error.
func (w *World) Commit() (Transaction, bool) {
	if len(w.pendingOps) == 0 {
		return Transaction{}, false
	}

	order := make([]Entity, 0, len(w.pendingOps))
	byEntity := make(map[Entity][]ReplicationOp, len(w.pendingOps))
	for _, op := range w.pendingOps {
		if _, seen := byEntity[op.Entity]; !seen {
			order = append(order, op.Entity)
		}
		byEntity[op.Entity] = append(byEntity[op.Entity], op)
	}
	w.pendingOps = w.pendingOps[:0]

	var despawns, rest []ReplicationOp
	for _, e := range order {
		reduced, kind := reduceEntityOps(byEntity[e])
		switch kind {
		case OpDespawn:
			despawns = append(despawns, reduced...)
		case -1:
			// spawn+despawn cancellation: emit nothing.
		default:
			rest = append(rest, reduced...)
		}
	}

	ops := make([]ReplicationOp, 0, len(despawns)+len(rest))
	ops = append(ops, despawns...)
	ops = append(ops, rest...)

	txn := Transaction{
		Domain:   w.Domain,
		Sequence: w.nextSeq(w.Domain),
		Tick:     w.tick,
		Ops:      ops,
	}
	return txn, true
}

// reduceEntityOps reduces one entity's op sequence per §4.7. It returns
// the reduced ops and a sentinel kind: OpDespawn if the entity's net
// effect is a despawn, -1 if spawn+despawn cancelled to nothing, or
// OpSet/OpSpawn/OpRemove (kind is informational only in that case — the
// caller just appends `reduced` to the non-despawn bucket).
func reduceEntityOps(ops []ReplicationOp) (reduced []ReplicationOp, kind OpKind) {
	var hasSpawn, hasDespawn bool
	var spawnOp ReplicationOp
	sets := make(map[ComponentID]ReplicationOp)
	removed := make(map[ComponentID]bool)
	var setOrder []ComponentID

	for _, op := range ops {
		switch op.Kind {
		case OpSpawn:
			hasSpawn = true
			spawnOp = op
		case OpDespawn:
			hasDespawn = true
		case OpSet:
			if !removed[op.Component] {
				if _, existed := sets[op.Component]; !existed {
					setOrder = append(setOrder, op.Component)
				}
			} else {
				delete(removed, op.Component)
				setOrder = append(setOrder, op.Component)
			}
			sets[op.Component] = op
		case OpRemove:
			if _, existed := sets[op.Component]; existed {
				delete(sets, op.Component)
			}
			removed[op.Component] = true
		}
	}

	if hasSpawn && hasDespawn {
		return nil, -1
	}
	if hasDespawn {
		return []ReplicationOp{{Kind: OpDespawn, Entity: ops[0].Entity}}, OpDespawn
	}
	if hasSpawn {
		merged := append([]ComponentValue(nil), spawnOp.Initial...)
		byID := make(map[ComponentID]int, len(merged))
		for i, cv := range merged {
			byID[cv.ID] = i
		}
		for _, id := range setOrder {
			op := sets[id]
			cv := ComponentValue{ID: id, Value: op.Value, Rel: op.Rel}
			if i, ok := byID[id]; ok {
				merged[i] = cv
			} else {
				byID[id] = len(merged)
				merged = append(merged, cv)
			}
		}
		if len(removed) > 0 {
			filtered := merged[:0]
			for _, cv := range merged {
				if !removed[cv.ID] {
					filtered = append(filtered, cv)
				}
			}
			merged = filtered
		}
		spawnOp.Initial = merged
		return []ReplicationOp{spawnOp}, OpSpawn
	}

	out := make([]ReplicationOp, 0, len(setOrder)+len(removed))
	for _, id := range setOrder {
		if op, ok := sets[id]; ok {
			out = append(out, op)
		}
	}
	for id := range removed {
		out = append(out, ReplicationOp{Kind: OpRemove, Entity: ops[0].Entity, Component: id})
	}
	return out, OpSet
}
