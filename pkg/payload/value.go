package payload

import (
	"encoding/json"
	"fmt"
)

// Value tags. Scalars get native encodings; everything else falls
// back to canonical JSON, which encoding/json emits with sorted map
// keys, so the fallback stays deterministic.
const (
	valNil    byte = 0x00
	valBool   byte = 0x01
	valInt    byte = 0x02 // zigzag varint
	valUint   byte = 0x03 // varint
	valFloat  byte = 0x04 // IEEE 754 big-endian
	valString byte = 0x05 // length-prefixed UTF-8
	valBytes  byte = 0x06 // length-prefixed raw bytes
	valJSON   byte = 0x07 // length-prefixed canonical JSON
)

// SerializationError reports a node whose payload value has no wire
// encoding.
type SerializationError struct {
	ID  string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("payload: node %s not encodable: %v", e.ID, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// encodeValue appends a tagged value. nodeID is only used to build a
// SerializationError when the value cannot be encoded.
func encodeValue(e *encoder, nodeID string, v any) error {
	switch x := v.(type) {
	case nil:
		e.writeByte(valNil)
	case bool:
		e.writeByte(valBool)
		e.writeBool(x)
	case int:
		e.writeByte(valInt)
		e.writeSvarint(int64(x))
	case int32:
		e.writeByte(valInt)
		e.writeSvarint(int64(x))
	case int64:
		e.writeByte(valInt)
		e.writeSvarint(x)
	case uint:
		e.writeByte(valUint)
		e.writeUvarint(uint64(x))
	case uint32:
		e.writeByte(valUint)
		e.writeUvarint(uint64(x))
	case uint64:
		e.writeByte(valUint)
		e.writeUvarint(x)
	case float32:
		e.writeByte(valFloat)
		e.writeFloat64(float64(x))
	case float64:
		e.writeByte(valFloat)
		e.writeFloat64(x)
	case string:
		e.writeByte(valString)
		e.writeString(x)
	case []byte:
		e.writeByte(valBytes)
		e.writeLenBytes(x)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return &SerializationError{ID: nodeID, Err: err}
		}
		e.writeByte(valJSON)
		e.writeLenBytes(data)
	}
	return nil
}

func decodeValue(d *decoder) (any, error) {
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case valNil:
		return nil, nil
	case valBool:
		return d.readBool()
	case valInt:
		return d.readSvarint()
	case valUint:
		return d.readUvarint()
	case valFloat:
		return d.readFloat64()
	case valString:
		return d.readString()
	case valBytes:
		return d.readLenBytes()
	case valJSON:
		data, err := d.readLenBytes()
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("payload: bad JSON value: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("payload: unknown value tag 0x%02x", tag)
	}
}
