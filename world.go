package ecsim

import "go.uber.org/zap"

const defaultInitialCapacity = 256

// WorldOptions configures a World at construction time — the teacher's own
// plain-struct options pattern (no functional options, no external config
// library), extended with the domain/replication/history knobs this core
// adds (§4.6, §4.10).
type WorldOptions struct {
	// InitialCapacity pre-sizes the buffer of pending replication ops; the
	// entity index and component columns use their own fixed starting sizes.
	InitialCapacity int
	// Domain is this world's authority partition (GLOSSARY "Domain").
	Domain uint32
	// Logger receives diagnostics-sink events (§7). Nil defaults to a no-op
	// logger, matching the teacher's "everything nil-safe" ethos.
	Logger *zap.Logger
	// EnableHistory turns on checkpoint/undo tracking (§4.10).
	EnableHistory bool
	// CheckpointInterval is the tick stride between captures, when history
	// is enabled. Zero defaults to 1 (checkpoint every tick).
	CheckpointInterval uint32
	// HistoryMaxSize bounds the checkpoint ring. Zero defaults to 64.
	HistoryMaxSize int
}

// World is the root handle composing every CORE subsystem: the entity
// index, component registry, relation registry, archetype graph, component
// store, and (optionally) the history buffer.
type World struct {
	Domain uint32

	tick           uint32
	tickSpawnCount uint32

	Entities   *EntityIndex
	Allocator  *DomainRegistry
	Components *Registry
	Relations  *RelationRegistry
	Graph      *ArchetypeGraph
	Store      *ComponentStore
	History    *HistoryBuffer

	log *zap.Logger

	pendingOps []ReplicationOp
	nextOpSeq  map[uint32]uint32

	transients map[uint64]Entity

	scratch         []byte // serde scratch buffer; Capture does not use it
	suppressHistory bool   // true while ApplyUndoLog is reversing entries
}

// NewWorld creates a World with default options (domain 0, no history).
func NewWorld() *World {
	return NewWorldWithOptions(WorldOptions{})
}

// NewWorldWithOptions creates a World per opts.
func NewWorldWithOptions(opts WorldOptions) *World {
	capHint := opts.InitialCapacity
	if capHint <= 0 {
		capHint = defaultInitialCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &World{
		Domain:     opts.Domain,
		Entities:   NewEntityIndex(),
		Allocator:  NewDomainRegistry(),
		Components: NewRegistry(),
		Relations:  NewRelationRegistry(),
		Store:      NewComponentStore(),
		log:        logger,
		pendingOps: make([]ReplicationOp, 0, capHint),
		nextOpSeq:  make(map[uint32]uint32, 4),
		transients: make(map[uint64]Entity, 16),
		scratch:    make([]byte, 0, 1024),
	}
	w.Graph = NewArchetypeGraph()

	if opts.EnableHistory {
		interval := opts.CheckpointInterval
		if interval == 0 {
			interval = 1
		}
		maxSize := opts.HistoryMaxSize
		if maxSize <= 0 {
			maxSize = 64
		}
		w.History = NewHistoryBuffer(interval, maxSize)
		w.History.push(w.Capture())
	}
	return w
}

// Tick returns the current simulation tick.
func (w *World) Tick() uint32 { return w.tick }

// Logger returns the world's diagnostics sink (never nil).
func (w *World) Logger() *zap.Logger { return w.log }

// NodeOf returns the archetype node currently holding e.
func (w *World) NodeOf(e Entity) (*ArchetypeNode, bool) { return w.Graph.NodeOf(e) }

// RowOf returns e's stable global row index, if e is known.
func (w *World) RowOf(e Entity) (int, bool) { return w.Entities.RowOf(e) }

func (w *World) nextSeq(domain uint32) uint32 {
	seq := w.nextOpSeq[domain]
	w.nextOpSeq[domain] = seq + 1
	return seq
}

func (w *World) pushOp(op ReplicationOp) {
	if w.suppressHistory {
		return
	}
	w.pendingOps = append(w.pendingOps, op)
}
