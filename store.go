package ecsim

import "fmt"

// column is the type-erased handle the store keeps per non-tag component
// id; it knows its own row layout and can grow, read, and write without the
// caller naming T (§9: "the world holds a map from id to a type-erased
// column handle").
type column interface {
	ensure(row int)
	get(row int) (any, bool)
	set(row int, value any, version uint32, force bool) bool
	versionAt(row int) uint32
	clear(row int)
	snapshotRows() []rowSnapshot
	restoreRows(rows []rowSnapshot)
}

// rowSnapshot is one column row captured for a checkpoint (§4.10).
type rowSnapshot struct {
	Value   any
	Present bool
	Version uint32
}

type typedColumn[T any] struct {
	data     []T
	present  []bool
	versions []uint32
}

func newTypedColumn[T any]() *typedColumn[T] {
	return &typedColumn[T]{
		data:     make([]T, 0, 64),
		present:  make([]bool, 0, 64),
		versions: make([]uint32, 0, 64),
	}
}

func (c *typedColumn[T]) ensure(row int) {
	if row < len(c.data) {
		return
	}
	newLen := row + 1
	newCap := cap(c.data) * 2
	if newCap < newLen {
		newCap = newLen
	}

	grownData := make([]T, newLen, newCap)
	copy(grownData, c.data)
	c.data = grownData

	grownPresent := make([]bool, newLen, newCap)
	copy(grownPresent, c.present)
	c.present = grownPresent

	grownVersions := make([]uint32, newLen, newCap)
	copy(grownVersions, c.versions)
	c.versions = grownVersions
}

func (c *typedColumn[T]) get(row int) (any, bool) {
	if row < 0 || row >= len(c.data) || !c.present[row] {
		return nil, false
	}
	return c.data[row], true
}

func (c *typedColumn[T]) set(row int, value any, version uint32, force bool) bool {
	c.ensure(row)
	if !force && c.present[row] && c.versions[row] > version {
		return false
	}
	v, ok := value.(T)
	if !ok {
		panic(fmt.Sprintf("ecsim: column type mismatch: got %T, want %T", value, v))
	}
	c.data[row] = v
	c.present[row] = true
	c.versions[row] = version
	return true
}

func (c *typedColumn[T]) versionAt(row int) uint32 {
	if row < 0 || row >= len(c.versions) {
		return 0
	}
	return c.versions[row]
}

func (c *typedColumn[T]) clear(row int) {
	if row < 0 || row >= len(c.data) {
		return
	}
	var zero T
	c.data[row] = zero
	c.present[row] = false
	c.versions[row] = 0
}

func (c *typedColumn[T]) snapshotRows() []rowSnapshot {
	out := make([]rowSnapshot, len(c.data))
	for i := range c.data {
		if c.present[i] {
			out[i] = rowSnapshot{Value: c.data[i], Present: true, Version: c.versions[i]}
		}
	}
	return out
}

func (c *typedColumn[T]) restoreRows(rows []rowSnapshot) {
	c.data = make([]T, len(rows), len(rows)+16)
	c.present = make([]bool, len(rows), len(rows)+16)
	c.versions = make([]uint32, len(rows), len(rows)+16)
	for i, r := range rows {
		if !r.Present {
			continue
		}
		v, ok := r.Value.(T)
		if !ok {
			continue
		}
		c.data[i] = v
		c.present[i] = true
		c.versions[i] = r.Version
	}
}

// CompositeVersion folds a tick and domain id into the deterministic
// last-writer-wins tie-break value used across peers (§4.4, GLOSSARY).
func CompositeVersion(tick uint32, domainID uint32) uint32 {
	return tick*2048 + domainID
}

// ComponentStore holds one column per registered non-tag component, plus
// the resource tag set for RESOURCE_ENTITY, plus the read-visibility
// bookkeeping (pendingDeletions/pendingRemovals) that §4.4/§4.6 require:
// sets are visible immediately; removed/despawned data is hidden from
// GetComponentValue at once but stays in its column, readable through
// RawComponentValue, until flush.
type ComponentStore struct {
	columns map[ComponentID]column

	resourceTags map[ComponentID]struct{}

	pendingDeletions map[Entity]struct{}
	pendingRemovals  map[Entity]map[ComponentID]struct{}
}

// NewComponentStore creates an empty store.
func NewComponentStore() *ComponentStore {
	return &ComponentStore{
		columns:          make(map[ComponentID]column, 32),
		resourceTags:     make(map[ComponentID]struct{}, 8),
		pendingDeletions: make(map[Entity]struct{}, 16),
		pendingRemovals:  make(map[Entity]map[ComponentID]struct{}, 16),
	}
}

// RegisterColumn installs a typed column for id if one isn't already
// present. Called lazily the first time a component of this type is set.
func RegisterColumn[T any](s *ComponentStore, id ComponentID) {
	if _, ok := s.columns[id]; ok {
		return
	}
	s.columns[id] = newTypedColumn[T]()
}

// SetTagResource adds a tag to RESOURCE_ENTITY's resource set.
func (s *ComponentStore) SetTagResource(id ComponentID) {
	s.resourceTags[id] = struct{}{}
}

// HasTagResource reports whether a tag is present on RESOURCE_ENTITY.
func (s *ComponentStore) HasTagResource(id ComponentID) bool {
	_, ok := s.resourceTags[id]
	return ok
}

// ClearTagResource removes a tag from RESOURCE_ENTITY's resource set.
func (s *ComponentStore) ClearTagResource(id ComponentID) {
	delete(s.resourceTags, id)
}

// SetComponentValue writes value into id's column at row, applying the
// last-writer-wins version rule (§4.4): a strictly older version is
// dropped; equal or newer versions accept the write. Tag components
// destined for RESOURCE_ENTITY are routed to the resource tag set instead
// of a column. A non-tag id with no registered column (a wire placeholder
// for an unknown component, §7) silently drops the write rather than
// panicking — the caller never registered a Go type for it, so there is
// nowhere to put the value; structural membership is unaffected.
func (s *ComponentStore) SetComponentValue(row int, id ComponentID, desc *Descriptor, value any, version uint32) bool {
	if desc != nil && desc.IsTag {
		if row == 0 {
			s.resourceTags[id] = struct{}{}
		}
		return true
	}
	col, ok := s.columns[id]
	if !ok {
		return false
	}
	return col.set(row, value, version, false)
}

// ForceSetComponentValue bypasses the version check, used only when
// applying an authoritative snapshot that must always win (§4.4). As with
// SetComponentValue, an unregistered column silently drops the write.
func (s *ComponentStore) ForceSetComponentValue(row int, id ComponentID, value any, version uint32) bool {
	col, ok := s.columns[id]
	if !ok {
		return false
	}
	return col.set(row, value, version, true)
}

// HasColumn reports whether id has a registered column.
func (s *ComponentStore) HasColumn(id ComponentID) bool {
	_, ok := s.columns[id]
	return ok
}

// GetComponentValue returns id's value at row, honoring the read-visibility
// rule: a pending deletion or pending removal hides the value even though
// the column itself has not been cleared yet (§4.4).
func (s *ComponentStore) GetComponentValue(e Entity, row int, id ComponentID) (any, bool) {
	if _, dead := s.pendingDeletions[e]; dead {
		return nil, false
	}
	if removed, ok := s.pendingRemovals[e]; ok {
		if _, gone := removed[id]; gone {
			return nil, false
		}
	}
	col, ok := s.columns[id]
	if !ok {
		return nil, false
	}
	return col.get(row)
}

// VersionAt returns id's stored version at row, ignoring pending-removal
// visibility (used internally by version comparisons, not application code).
func (s *ComponentStore) VersionAt(row int, id ComponentID) uint32 {
	col, ok := s.columns[id]
	if !ok {
		return 0
	}
	return col.versionAt(row)
}

// RawComponentValue reads id's column value at row without the §4.4
// pending-removal/deletion visibility filter. Out monitors need this: a
// removed value must still read as the pre-removal data until flush
// (§4.9 "Out monitors must still yield the old data"), even though the
// same row is hidden from the ordinary Read/Write term path.
func (s *ComponentStore) RawComponentValue(row int, id ComponentID) (any, bool) {
	col, ok := s.columns[id]
	if !ok {
		return nil, false
	}
	return col.get(row)
}

// SnapshotColumns captures every registered column's rows for a checkpoint.
// Each value is copied by plain assignment, not by a serde round-trip, so a
// value holding pointers, slices or maps shares their contents with the
// live column.
func (s *ComponentStore) SnapshotColumns() map[ComponentID][]rowSnapshot {
	out := make(map[ComponentID][]rowSnapshot, len(s.columns))
	for id, col := range s.columns {
		out[id] = col.snapshotRows()
	}
	return out
}

// RestoreColumns replaces every column's rows from snap, except row 0
// (RESOURCE_ENTITY's row), which is preserved from the live world
// regardless of what snap says (§3 "Resource slots ... are NOT
// overwritten on restore").
func (s *ComponentStore) RestoreColumns(snap map[ComponentID][]rowSnapshot) {
	for id, col := range s.columns {
		row0Value, row0Present := col.get(0)
		row0Version := col.versionAt(0)

		col.restoreRows(snap[id])

		if row0Present {
			col.set(0, row0Value, row0Version, true)
		} else {
			col.clear(0)
		}
	}
	s.pendingDeletions = make(map[Entity]struct{}, 16)
	s.pendingRemovals = make(map[Entity]map[ComponentID]struct{}, 16)
}

// MarkPendingDeletion records e as torn down; reads of its components
// observe absence immediately, but columns are cleared only on flush.
func (s *ComponentStore) MarkPendingDeletion(e Entity) {
	s.pendingDeletions[e] = struct{}{}
}

// MarkPendingRemoval records that id is being removed from e; reads
// observe absence immediately, the column clears on flush.
func (s *ComponentStore) MarkPendingRemoval(e Entity, id ComponentID) {
	set, ok := s.pendingRemovals[e]
	if !ok {
		set = make(map[ComponentID]struct{}, 4)
		s.pendingRemovals[e] = set
	}
	set[id] = struct{}{}
}

// FlushDeletions clears columns for every pending removal and deletion at
// the given rows, then empties the pending sets. Called from
// World.FlushDeletions, which then releases the deleted entities' rows.
func (s *ComponentStore) FlushDeletions(rowOf func(Entity) (int, bool)) {
	for e := range s.pendingDeletions {
		if row, ok := rowOf(e); ok {
			for _, col := range s.columns {
				col.clear(row)
			}
		}
		delete(s.pendingDeletions, e)
	}
	for e, ids := range s.pendingRemovals {
		row, ok := rowOf(e)
		for id := range ids {
			if ok {
				if col, exists := s.columns[id]; exists {
					col.clear(row)
				}
			}
			delete(ids, id)
		}
		delete(s.pendingRemovals, e)
	}
}

// IsPendingDeletion reports whether e is scheduled for teardown.
func (s *ComponentStore) IsPendingDeletion(e Entity) bool {
	_, ok := s.pendingDeletions[e]
	return ok
}
