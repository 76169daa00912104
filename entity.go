package ecsim

import "fmt"

// Entity is an opaque handle to a single simulated thing: a 31-bit integer
// packing a domainId (the owning authority) into its upper 11 bits and a
// localId (unique within that domain) into its lower 20 bits.
type Entity uint32

const (
	domainBits = 11
	localBits  = 20

	maxDomains   = 1 << domainBits
	maxLocalIDs  = 1 << localBits
	localIDMask  = maxLocalIDs - 1
	domainIDMask = maxDomains - 1
)

// RESOURCE_ENTITY is the reserved sentinel (all ones) that holds process-wide
// resources at the reserved row index of the entity index.
const RESOURCE_ENTITY Entity = Entity(1<<(domainBits+localBits)) - 1

// TRANSIENT_DOMAIN is the reserved domain id client-side prediction spawns
// into. Every replicated spawn lands here whenever history is enabled: the
// World has no authoritative/predicting flag, so a world with history on
// buffers no Spawn ops for its own replicated spawns. Entities
// spawned there may be promoted into the authoritative domain once the
// matching causal key arrives from the server (see causalKey in mutation.go).
const TRANSIENT_DOMAIN uint32 = domainIDMask

// MakeEntity packs a domain id and a local id into an Entity. It panics if
// either exceeds its reserved bit width — an invariant violation, not a
// recoverable condition.
func MakeEntity(domainID, localID uint32) Entity {
	if domainID > domainIDMask {
		panic(fmt.Sprintf("ecsim: domain id %d exceeds %d bits", domainID, domainBits))
	}
	if localID > localIDMask {
		panic(fmt.Sprintf("ecsim: local id %d exceeds %d bits", localID, localBits))
	}
	return Entity(domainID<<localBits | localID)
}

// Domain returns the owning authority partition of the entity.
func (e Entity) Domain() uint32 { return uint32(e) >> localBits }

// Local returns the entity's id within its domain.
func (e Entity) Local() uint32 { return uint32(e) & localIDMask }

func (e Entity) String() string {
	if e == RESOURCE_ENTITY {
		return "Entity(resource)"
	}
	return fmt.Sprintf("Entity(%d:%d)", e.Domain(), e.Local())
}

// EntityIndex maps entities to stable, compact row indices shared by every
// component column, and back. Index 0 is reserved for RESOURCE_ENTITY.
// Row indices are stable for an entity's lifetime: they are not reassigned
// when the entity moves between archetype nodes, only when it is removed.
type EntityIndex struct {
	entityToIndex map[Entity]int
	indexToEntity []Entity
	free          []int
	next          int
}

// NewEntityIndex creates an index with row 0 pre-bound to RESOURCE_ENTITY.
func NewEntityIndex() *EntityIndex {
	ei := &EntityIndex{
		entityToIndex: make(map[Entity]int, 256),
		indexToEntity: make([]Entity, 1, 256),
		free:          make([]int, 0, 64),
		next:          1,
	}
	ei.indexToEntity[0] = RESOURCE_ENTITY
	ei.entityToIndex[RESOURCE_ENTITY] = 0
	return ei
}

// RowOf returns the row index bound to e, if any.
func (ei *EntityIndex) RowOf(e Entity) (int, bool) {
	idx, ok := ei.entityToIndex[e]
	return idx, ok
}

// EntityAt returns the entity bound to a row, or false if the row is free.
func (ei *EntityIndex) EntityAt(row int) (Entity, bool) {
	if row < 0 || row >= len(ei.indexToEntity) {
		return 0, false
	}
	e := ei.indexToEntity[row]
	bound, ok := ei.entityToIndex[e]
	return e, ok && bound == row
}

// GetOrCreate returns the stable row for e, allocating one (reusing a freed
// row LIFO, matching the teacher's freeEntityIDs stack discipline) if this
// is the entity's first appearance.
func (ei *EntityIndex) GetOrCreate(e Entity) int {
	if row, ok := ei.entityToIndex[e]; ok {
		return row
	}
	var row int
	if n := len(ei.free); n > 0 {
		row = ei.free[n-1]
		ei.free = ei.free[:n-1]
		ei.indexToEntity[row] = e
	} else {
		row = ei.next
		ei.next++
		ei.indexToEntity = append(ei.indexToEntity, e)
	}
	ei.entityToIndex[e] = row
	return row
}

// Release frees e's row for reuse. RESOURCE_ENTITY's row is never released.
func (ei *EntityIndex) Release(e Entity) {
	if e == RESOURCE_ENTITY {
		return
	}
	row, ok := ei.entityToIndex[e]
	if !ok {
		return
	}
	delete(ei.entityToIndex, e)
	ei.free = append(ei.free, row)
}

// entityIndexSnapshot is a point-in-time copy of an EntityIndex's bookkeeping,
// captured by History (§4.10).
type entityIndexSnapshot struct {
	entityToIndex map[Entity]int
	indexToEntity []Entity
	free          []int
	next          int
}

// Snapshot captures ei's current state for a checkpoint.
func (ei *EntityIndex) Snapshot() entityIndexSnapshot {
	return entityIndexSnapshot{
		entityToIndex: cloneMap(ei.entityToIndex),
		indexToEntity: append([]Entity(nil), ei.indexToEntity...),
		free:          append([]int(nil), ei.free...),
		next:          ei.next,
	}
}

// Restore replaces ei's state with a previously captured snapshot.
func (ei *EntityIndex) Restore(snap entityIndexSnapshot) {
	ei.entityToIndex = cloneMap(snap.entityToIndex)
	ei.indexToEntity = append([]Entity(nil), snap.indexToEntity...)
	ei.free = append([]int(nil), snap.free...)
	ei.next = snap.next
}

// domainAllocator is a per-domain free-list local-id allocator (§3: "per-domain
// free-list allocator"). One lives per domain id inside the World's registry.
type domainAllocator struct {
	next uint32
	free []uint32
}

func (a *domainAllocator) alloc() uint32 {
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id
	}
	if a.next > localIDMask {
		panic("ecsim: local id space exhausted for domain")
	}
	id := a.next
	a.next++
	return id
}

func (a *domainAllocator) release(id uint32) {
	a.free = append(a.free, id)
}

// DomainRegistry allocates and recycles local ids within domains.
type DomainRegistry struct {
	domains map[uint32]*domainAllocator
}

// NewDomainRegistry creates an empty per-domain allocator registry.
func NewDomainRegistry() *DomainRegistry {
	return &DomainRegistry{domains: make(map[uint32]*domainAllocator, 4)}
}

func (d *DomainRegistry) allocatorFor(domainID uint32) *domainAllocator {
	a, ok := d.domains[domainID]
	if !ok {
		a = &domainAllocator{next: 0}
		d.domains[domainID] = a
	}
	return a
}

// Spawn allocates a fresh entity in the given domain.
func (d *DomainRegistry) Spawn(domainID uint32) Entity {
	local := d.allocatorFor(domainID).alloc()
	return MakeEntity(domainID, local)
}

// Release returns e's local id to its domain's free list.
func (d *DomainRegistry) Release(e Entity) {
	d.allocatorFor(e.Domain()).release(e.Local())
}

// Reserve marks localID as taken in domainID without handing out a new one,
// used when a client promotes a transient entity to an authoritative id
// supplied verbatim by the server (see mutation.go promoteTransient).
func (d *DomainRegistry) Reserve(domainID, localID uint32) {
	a := d.allocatorFor(domainID)
	if localID >= a.next {
		a.next = localID + 1
	}
}

// domainAllocatorSnapshot is one domain's captured allocator state.
type domainAllocatorSnapshot struct {
	next uint32
	free []uint32
}

// domainRegistrySnapshot is a point-in-time copy of every domain's allocator
// state, captured by History (§4.10).
type domainRegistrySnapshot struct {
	domains map[uint32]domainAllocatorSnapshot
}

// Snapshot captures d's current state for a checkpoint.
func (d *DomainRegistry) Snapshot() domainRegistrySnapshot {
	out := make(map[uint32]domainAllocatorSnapshot, len(d.domains))
	for domainID, a := range d.domains {
		out[domainID] = domainAllocatorSnapshot{next: a.next, free: append([]uint32(nil), a.free...)}
	}
	return domainRegistrySnapshot{domains: out}
}

// Restore replaces d's state with a previously captured snapshot.
func (d *DomainRegistry) Restore(snap domainRegistrySnapshot) {
	d.domains = make(map[uint32]*domainAllocator, len(snap.domains))
	for domainID, a := range snap.domains {
		d.domains[domainID] = &domainAllocator{next: a.next, free: append([]uint32(nil), a.free...)}
	}
}
