package payload

import (
	"errors"
	"io"
	"math"
)

// Allocation limits guard the decoder against hostile length prefixes.
const (
	// MaxAllocation caps any single length-prefixed field (4MB).
	MaxAllocation = 4 * 1024 * 1024

	// MaxNodeCount caps the number of nodes in one snapshot or diff
	// section.
	MaxNodeCount = 100_000

	// MaxTreeDepth caps nesting when rebuilding a tree from its flat
	// form.
	MaxTreeDepth = 256
)

var (
	ErrVarintOverflow     = errors.New("payload: varint overflow")
	ErrAllocationTooLarge = errors.New("payload: allocation size exceeds limit")
	ErrCountTooLarge      = errors.New("payload: collection count exceeds limit")
	ErrDepthExceeded      = errors.New("payload: tree depth exceeds limit")
)

// encoder appends wire primitives to a growable buffer.
type encoder struct {
	buf []byte
}

func newEncoder() *encoder {
	return &encoder{buf: make([]byte, 0, 512)}
}

func (e *encoder) bytes() []byte { return e.buf }

func (e *encoder) writeByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *encoder) writeUvarint(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

// writeSvarint uses ZigZag encoding so small negative values stay
// small on the wire.
func (e *encoder) writeSvarint(v int64) {
	e.writeUvarint(uint64((v << 1) ^ (v >> 63)))
}

func (e *encoder) writeUint64(v uint64) {
	e.buf = append(e.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *encoder) writeFloat64(v float64) {
	e.writeUint64(math.Float64bits(v))
}

func (e *encoder) writeBool(b bool) {
	if b {
		e.buf = append(e.buf, 0x01)
	} else {
		e.buf = append(e.buf, 0x00)
	}
}

// writeString appends a varint length prefix followed by the bytes.
func (e *encoder) writeString(s string) {
	e.writeUvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) writeLenBytes(b []byte) {
	e.writeUvarint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// decoder reads wire primitives from a byte buffer, validating every
// length against the allocation limits.
type decoder struct {
	buf []byte
	pos int
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

func (d *decoder) remaining() int { return len(d.buf) - d.pos }

func (d *decoder) eof() bool { return d.pos >= len(d.buf) }

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readUvarint() (uint64, error) {
	var v uint64
	var shift uint
	for {
		if d.pos >= len(d.buf) {
			return 0, io.ErrUnexpectedEOF
		}
		b := d.buf[d.pos]
		d.pos++
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, ErrVarintOverflow
		}
	}
}

func (d *decoder) readSvarint() (int64, error) {
	uv, err := d.readUvarint()
	if err != nil {
		return 0, err
	}
	v := int64(uv >> 1)
	if uv&1 != 0 {
		v = ^v
	}
	return v, nil
}

func (d *decoder) readUint64() (uint64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos:]
	v := uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
	d.pos += 8
	return v, nil
}

func (d *decoder) readFloat64() (float64, error) {
	v, err := d.readUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (d *decoder) readBool() (bool, error) {
	b, err := d.readByte()
	if err != nil {
		return false, err
	}
	return b != 0x00, nil
}

func (d *decoder) readString() (string, error) {
	length, err := d.readUvarint()
	if err != nil {
		return "", err
	}
	if length > uint64(d.remaining()) {
		return "", io.ErrUnexpectedEOF
	}
	if length > MaxAllocation {
		return "", ErrAllocationTooLarge
	}
	n := int(length)
	s := string(d.buf[d.pos : d.pos+n])
	d.pos += n
	return s, nil
}

// readLenBytes returns a copy, safe to retain past the buffer.
func (d *decoder) readLenBytes() ([]byte, error) {
	length, err := d.readUvarint()
	if err != nil {
		return nil, err
	}
	if length > uint64(d.remaining()) {
		return nil, io.ErrUnexpectedEOF
	}
	if length > MaxAllocation {
		return nil, ErrAllocationTooLarge
	}
	n := int(length)
	b := make([]byte, n)
	copy(b, d.buf[d.pos:d.pos+n])
	d.pos += n
	return b, nil
}

// readCount reads a varint collection count and checks it against
// MaxNodeCount and the bytes actually remaining.
func (d *decoder) readCount() (int, error) {
	count, err := d.readUvarint()
	if err != nil {
		return 0, err
	}
	if count > MaxNodeCount {
		return 0, ErrCountTooLarge
	}
	if count > uint64(d.remaining()) {
		return 0, io.ErrUnexpectedEOF
	}
	return int(count), nil
}
