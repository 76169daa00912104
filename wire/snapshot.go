package wire

import (
	"bytes"
	"fmt"

	"github.com/archtick/ecsim"
)

// SnapshotBlock is one component's resync data: every entity currently
// carrying it, paired with its current value, to be force-written on the
// receiving world (§6 "Snapshot payload").
type SnapshotBlock struct {
	Component ecsim.ComponentID
	Entities  []ecsim.Entity
	Values    []any
}

// EncodeSnapshot frames a Snapshot payload per §6: blockCount (varint)
// followed by blocks, each `componentId (varint), count (varint),
// entities[count] (u32 each), data[count]`. Every data entry uses the same
// length-prefixed framing EncodeTransaction uses for payloads (varint
// length, then the serde bytes), whatever the component's bytesPerElement,
// so the format stays decodable even when a receiver doesn't know the
// component; no fixed-width, unprefixed layout is written.
func EncodeSnapshot(blocks []SnapshotBlock, registry *ecsim.Registry) ([]byte, error) {
	buf := new(bytes.Buffer)
	putUvarint(buf, uint64(len(blocks)))
	for _, b := range blocks {
		if len(b.Entities) != len(b.Values) {
			return nil, fmt.Errorf("wire: snapshot block %d: %d entities but %d values", b.Component, len(b.Entities), len(b.Values))
		}
		putUvarint(buf, uint64(b.Component))
		putUvarint(buf, uint64(len(b.Entities)))
		for _, e := range b.Entities {
			putU32(buf, uint32(e))
		}
		desc, _ := registry.Resolve(b.Component)
		for _, v := range b.Values {
			if err := encodeComponentPayload(buf, desc, v); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot parses a Snapshot payload previously produced by
// EncodeSnapshot, manufacturing a placeholder descriptor (§7) for any
// component id registry has never seen.
func DecodeSnapshot(data []byte, registry *ecsim.Registry) ([]SnapshotBlock, error) {
	r := bytes.NewReader(data)
	blockCount, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("wire: read block count: %w", err)
	}
	blocks := make([]SnapshotBlock, 0, blockCount)
	for i := uint64(0); i < blockCount; i++ {
		idRaw, err := readUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("wire: read block component id: %w", err)
		}
		id := ecsim.ComponentID(idRaw)
		count, err := readUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("wire: read block count: %w", err)
		}
		entities := make([]ecsim.Entity, count)
		for j := range entities {
			v, err := readU32(r)
			if err != nil {
				return nil, fmt.Errorf("wire: read block entity: %w", err)
			}
			entities[j] = ecsim.Entity(v)
		}
		desc, ok := registry.Resolve(id)
		if !ok {
			desc = registry.Placeholder(id)
		}
		values := make([]any, count)
		for j := range values {
			v, err := decodeComponentPayload(r, desc)
			if err != nil {
				return nil, err
			}
			values[j] = v
		}
		blocks = append(blocks, SnapshotBlock{Component: id, Entities: entities, Values: values})
	}
	return blocks, nil
}

// ApplySnapshotBlocks force-writes every block onto w at the given version,
// the glue between the wire decode step and ecsim.World.ApplySnapshot.
func ApplySnapshotBlocks(w *ecsim.World, blocks []SnapshotBlock, version uint32) {
	for _, b := range blocks {
		w.ApplySnapshot(b.Component, b.Entities, b.Values, version)
	}
}
