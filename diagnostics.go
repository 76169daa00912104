package ecsim

import "go.uber.org/zap"

// reportUnknownComponent logs the §7 "unknown component on wire" condition:
// non-fatal, but worth surfacing since serde-dependent ops on the
// placeholder are silently dropped.
func (w *World) reportUnknownComponent(id ComponentID) {
	w.log.Warn("ecsim: unknown component id on wire, using placeholder",
		zap.Uint32("component_id", uint32(id)))
}

// reportStaleWrite logs a dropped last-writer-wins write at debug level —
// this is the convergence rule working as intended, not an error (§7).
func (w *World) reportStaleWrite(e Entity, id ComponentID, incoming, stored uint32) {
	w.log.Debug("ecsim: stale write dropped",
		zap.Uint32("entity", uint32(e)),
		zap.Uint32("component_id", uint32(id)),
		zap.Uint32("incoming_version", incoming),
		zap.Uint32("stored_version", stored))
}

// reportRollbackUnreachable logs a rollback request with no reachable
// checkpoint (§7 "rollback target unreachable").
func (w *World) reportRollbackUnreachable(requestedTick uint32) {
	w.log.Warn("ecsim: rollback target unreachable, no checkpoint at or before tick",
		zap.Uint32("requested_tick", requestedTick))
}
