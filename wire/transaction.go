package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/archtick/ecsim"
)

// EncodeTransaction frames a Transaction payload per §6: domainId (varint),
// seq (varint), opCount (varint), followed by opCount ops. registry
// resolves each op's component id to a Descriptor so its payload can be
// encoded with the component's own serde; an id with no resolvable serde
// (a tag, a virtual relation id, or one never registered in this registry)
// writes a zero-length payload.
func EncodeTransaction(txn ecsim.Transaction, registry *ecsim.Registry) ([]byte, error) {
	buf := new(bytes.Buffer)
	putUvarint(buf, uint64(txn.Domain))
	putUvarint(buf, uint64(txn.Sequence))
	putUvarint(buf, uint64(len(txn.Ops)))
	for _, op := range txn.Ops {
		if err := encodeOp(buf, op, registry); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeOp(buf *bytes.Buffer, op ecsim.ReplicationOp, registry *ecsim.Registry) error {
	switch op.Kind {
	case ecsim.OpSpawn:
		buf.WriteByte(byte(opSpawn))
		putU32(buf, uint32(op.Entity))
		putU32(buf, op.CausalKey)
		putUvarint(buf, uint64(len(op.Initial)))
		for _, cv := range op.Initial {
			if err := encodeComponentValue(buf, cv, registry); err != nil {
				return err
			}
		}
	case ecsim.OpDespawn:
		buf.WriteByte(byte(opDespawn))
		putU32(buf, uint32(op.Entity))
	case ecsim.OpSet:
		buf.WriteByte(byte(opSet))
		putU32(buf, uint32(op.Entity))
		putUvarint(buf, uint64(op.Component))
		putUvarint(buf, uint64(op.Version))
		if err := encodeRelAndPayload(buf, op.Component, op.Rel, op.Value, registry); err != nil {
			return err
		}
	case ecsim.OpRemove:
		buf.WriteByte(byte(opRemove))
		putU32(buf, uint32(op.Entity))
		putUvarint(buf, uint64(op.Component))
		putRelPresentFromPair(buf, op.Rel)
	default:
		return fmt.Errorf("wire: unknown op kind %d", op.Kind)
	}
	return nil
}

func encodeComponentValue(buf *bytes.Buffer, cv ecsim.ComponentValue, registry *ecsim.Registry) error {
	putUvarint(buf, uint64(cv.ID))
	return encodeRelAndPayload(buf, cv.ID, cv.Rel, cv.Value, registry)
}

// encodeRelAndPayload writes optionalRelPair then, if the component isn't a
// virtual relation id, optionalPayload (§6: rel pair present iff the
// component id is virtual; tags and virtual ids carry no payload).
func encodeRelAndPayload(buf *bytes.Buffer, id ecsim.ComponentID, rel *ecsim.RelPair, value any, registry *ecsim.Registry) error {
	putRelPresentFromPair(buf, rel)
	if rel != nil {
		return nil
	}
	desc, _ := registry.Resolve(id)
	return encodeComponentPayload(buf, desc, value)
}

func putRelPresentFromPair(buf *bytes.Buffer, rel *ecsim.RelPair) {
	if rel == nil {
		putRelPresent(buf, nil, nil)
		return
	}
	relation := uint32(rel.Relation)
	object := uint32(rel.Object)
	putRelPresent(buf, &relation, &object)
}

// encodeComponentPayload writes a component's value as a varint length
// prefix followed by the serde-encoded bytes (a uniform "codec-owned
// framing" rather than §6's fixed-bytesPerElement-with-no-prefix shortcut):
// this keeps every payload self-delimiting so a receiver that cannot
// resolve the component (§7 "unknown component on wire") can still skip
// past it and keep decoding the rest of the transaction. Tags and
// descriptors with no serde (placeholders) write a zero-length payload.
func encodeComponentPayload(buf *bytes.Buffer, desc *ecsim.Descriptor, value any) error {
	if desc == nil || desc.IsTag || desc.Serde == nil || value == nil {
		putUvarint(buf, 0)
		return nil
	}
	inner := new(bytes.Buffer)
	if err := desc.Serde.Encode(inner, value); err != nil {
		return fmt.Errorf("wire: encode component %d: %w", desc.ID, err)
	}
	putUvarint(buf, uint64(inner.Len()))
	buf.Write(inner.Bytes())
	return nil
}

func decodeComponentPayload(r *bytes.Reader, desc *ecsim.Descriptor) (any, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("wire: read payload length: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("wire: read payload: %w", err)
	}
	if desc == nil || desc.Serde == nil {
		return nil, nil
	}
	v, err := desc.Serde.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("wire: decode component %d: %w", desc.ID, err)
	}
	return v, nil
}

func decodeRelAndPayload(r *bytes.Reader, id ecsim.ComponentID, registry *ecsim.Registry) (*ecsim.RelPair, any, error) {
	relation, object, present, err := readRelPresent(r)
	if err != nil {
		return nil, nil, err
	}
	if present {
		return &ecsim.RelPair{Relation: ecsim.ComponentID(relation), Object: ecsim.Entity(object)}, nil, nil
	}
	desc, _ := registry.Resolve(id)
	value, err := decodeComponentPayload(r, desc)
	if err != nil {
		return nil, nil, err
	}
	return nil, value, nil
}

// DecodeTransaction parses a Transaction payload previously produced by
// EncodeTransaction. Unknown component ids in Spawn and Set ops manufacture
// a placeholder in registry (§7); Remove ops decode their id without one.
// Structural fields (entity, component id, rel pair)
// still decode even when the payload itself cannot be interpreted.
func DecodeTransaction(data []byte, tick uint32, registry *ecsim.Registry) (ecsim.Transaction, error) {
	r := bytes.NewReader(data)
	domain, err := readUvarint(r)
	if err != nil {
		return ecsim.Transaction{}, fmt.Errorf("wire: read domain: %w", err)
	}
	seq, err := readUvarint(r)
	if err != nil {
		return ecsim.Transaction{}, fmt.Errorf("wire: read seq: %w", err)
	}
	opCount, err := readUvarint(r)
	if err != nil {
		return ecsim.Transaction{}, fmt.Errorf("wire: read op count: %w", err)
	}
	ops := make([]ecsim.ReplicationOp, 0, opCount)
	for i := uint64(0); i < opCount; i++ {
		op, err := decodeOp(r, registry)
		if err != nil {
			return ecsim.Transaction{}, err
		}
		ops = append(ops, op)
	}
	return ecsim.Transaction{
		Domain:   uint32(domain),
		Sequence: uint32(seq),
		Tick:     tick,
		Ops:      ops,
	}, nil
}

func decodeOp(r *bytes.Reader, registry *ecsim.Registry) (ecsim.ReplicationOp, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return ecsim.ReplicationOp{}, fmt.Errorf("wire: read op tag: %w", err)
	}
	switch opTag(tagByte) {
	case opSpawn:
		entity, err := readU32(r)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		causalKey, err := readU32(r)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		count, err := readUvarint(r)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		values := make([]ecsim.ComponentValue, 0, count)
		for i := uint64(0); i < count; i++ {
			idRaw, err := readUvarint(r)
			if err != nil {
				return ecsim.ReplicationOp{}, err
			}
			id := ecsim.ComponentID(idRaw)
			if _, ok := registry.Resolve(id); !ok {
				registry.Placeholder(id)
			}
			rel, value, err := decodeRelAndPayload(r, id, registry)
			if err != nil {
				return ecsim.ReplicationOp{}, err
			}
			values = append(values, ecsim.ComponentValue{ID: id, Value: value, Rel: rel})
		}
		return ecsim.ReplicationOp{Kind: ecsim.OpSpawn, Entity: ecsim.Entity(entity), CausalKey: causalKey, Initial: values}, nil

	case opDespawn:
		entity, err := readU32(r)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		return ecsim.ReplicationOp{Kind: ecsim.OpDespawn, Entity: ecsim.Entity(entity)}, nil

	case opSet:
		entity, err := readU32(r)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		idRaw, err := readUvarint(r)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		id := ecsim.ComponentID(idRaw)
		version, err := readUvarint(r)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		if _, ok := registry.Resolve(id); !ok {
			registry.Placeholder(id)
		}
		rel, value, err := decodeRelAndPayload(r, id, registry)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		return ecsim.ReplicationOp{Kind: ecsim.OpSet, Entity: ecsim.Entity(entity), Component: id, Version: uint32(version), Value: value, Rel: rel}, nil

	case opRemove:
		entity, err := readU32(r)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		idRaw, err := readUvarint(r)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		id := ecsim.ComponentID(idRaw)
		relation, object, present, err := readRelPresent(r)
		if err != nil {
			return ecsim.ReplicationOp{}, err
		}
		var rel *ecsim.RelPair
		if present {
			rel = &ecsim.RelPair{Relation: ecsim.ComponentID(relation), Object: ecsim.Entity(object)}
		}
		return ecsim.ReplicationOp{Kind: ecsim.OpRemove, Entity: ecsim.Entity(entity), Component: id, Rel: rel}, nil

	default:
		return ecsim.ReplicationOp{}, fmt.Errorf("wire: unknown op tag %d", tagByte)
	}
}
