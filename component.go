package ecsim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
)

// ComponentID identifies a component descriptor. Ids below VirtualIDBase are
// ordinary, registered components; ids at or above it are virtual component
// ids minted by the relation registry for (relation, object) pairs.
type ComponentID uint32

// VirtualIDBase is the first id in the reserved high range the relation
// registry draws virtual component ids from (§3, §4.5).
const VirtualIDBase ComponentID = 1_000_000

// Serde encodes and decodes component values for wire transfer and history
// checkpoints. BytesPerElement returns 0 for variable-width types, in which
// case the codec-owned framing (a length prefix) is used instead.
type Serde interface {
	BytesPerElement() int
	Encode(buf *bytes.Buffer, value any) error
	Decode(r *bytes.Reader) (any, error)
}

// Descriptor is a process-global handle for one component type: a stable id,
// an optional serde, and whether the component is a tag (carries no payload).
type Descriptor struct {
	ID          ComponentID
	Name        string
	IsTag       bool
	Serde       Serde
	goType      reflect.Type
	placeholder bool // manufactured on receipt of an unknown wire id
}

// Registry resolves component ids to descriptors and back. Each World owns
// one; tests and independent simulations get independent id spaces by
// creating their own, unlike the teacher's single package-level registry.
type Registry struct {
	byID     map[ComponentID]*Descriptor
	byName   map[string]ComponentID
	typeToID map[reflect.Type]ComponentID
	nextID   ComponentID
}

// NewRegistry creates an empty component registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[ComponentID]*Descriptor, 64),
		byName:   make(map[string]ComponentID, 64),
		typeToID: make(map[reflect.Type]ComponentID, 64),
	}
}

func (r *Registry) allocID() ComponentID {
	if r.nextID >= VirtualIDBase {
		panic(fmt.Sprintf("ecsim: component id space exhausted (reached virtual id base %d)", VirtualIDBase))
	}
	id := r.nextID
	r.nextID++
	return id
}

// register is the shared path for RegisterComponent/RegisterTag: idempotent
// by Go type, assigns serde/isTag only on first registration.
func (r *Registry) register(t reflect.Type, name string, isTag bool, serde Serde) *Descriptor {
	if id, ok := r.typeToID[t]; ok {
		return r.byID[id]
	}
	id := r.allocID()
	d := &Descriptor{ID: id, Name: name, IsTag: isTag, Serde: serde, goType: t}
	r.byID[id] = d
	r.byName[name] = id
	r.typeToID[t] = id
	return d
}

// RegisterComponent registers a fixed-width value component with a serde
// built on encoding/binary (little-endian, matching the wire protocol in
// §6), idempotent by type.
func RegisterComponent[T any](r *Registry, name string) *Descriptor {
	var zero T
	return r.register(reflect.TypeOf(zero), name, false, binarySerde[T]{})
}

// RegisterComponentWithSerde registers a value component with a caller-
// supplied serde, for variable-width payloads (e.g. strings) that
// encoding/binary cannot frame directly.
func RegisterComponentWithSerde[T any](r *Registry, name string, serde Serde) *Descriptor {
	var zero T
	return r.register(reflect.TypeOf(zero), name, false, serde)
}

// RegisterTag registers a tag component: present-or-absent, no payload, no
// serde, never shows up in a column.
func RegisterTag[T any](r *Registry, name string) *Descriptor {
	var zero T
	return r.register(reflect.TypeOf(zero), name, true, nil)
}

// GetID returns T's ComponentID, panicking if it was never registered — an
// invariant violation in this codebase's taxonomy (§7), not a recoverable one.
func GetID[T any](r *Registry) ComponentID {
	id, ok := TryGetID[T](r)
	if !ok {
		var zero T
		panic(fmt.Sprintf("ecsim: component type %T not registered", zero))
	}
	return id
}

// TryGetID returns T's ComponentID without panicking.
func TryGetID[T any](r *Registry) (ComponentID, bool) {
	var zero T
	id, ok := r.typeToID[reflect.TypeOf(zero)]
	return id, ok
}

// Resolve returns the descriptor for id, if registered (including
// placeholders manufactured by Placeholder).
func (r *Registry) Resolve(id ComponentID) (*Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Placeholder manufactures an opaque descriptor for an id seen on the wire
// before any local registration exists for it (§7 "unknown component on
// wire"). Structural ops (spawn/despawn membership, Remove) work against a
// placeholder; serde-dependent ops are dropped by the caller since
// Serde is nil.
func (r *Registry) Placeholder(id ComponentID) *Descriptor {
	if d, ok := r.byID[id]; ok {
		return d
	}
	d := &Descriptor{ID: id, Name: fmt.Sprintf("unknown#%d", id), placeholder: true}
	r.byID[id] = d
	return d
}

// binarySerde encodes fixed-width T via encoding/binary, little-endian.
// It works for any T composed only of fixed-size numeric fields and arrays
// thereof (no pointers, slices, or strings) — exactly the fixed-width
// component types the wire protocol's bytesPerElement framing targets.
type binarySerde[T any] struct{}

func (binarySerde[T]) BytesPerElement() int {
	var zero T
	return binary.Size(zero)
}

func (binarySerde[T]) Encode(buf *bytes.Buffer, value any) error {
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("ecsim: encode: value is %T, want %T", value, v)
	}
	return binary.Write(buf, binary.LittleEndian, v)
}

func (binarySerde[T]) Decode(r *bytes.Reader) (any, error) {
	var v T
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return nil, err
	}
	return v, nil
}
