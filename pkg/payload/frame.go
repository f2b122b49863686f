package payload

import (
	"errors"
	"fmt"
	"io"

	"github.com/strata-dev/strata/pkg/tree"
)

// FrameType identifies what a frame carries.
type FrameType uint8

const (
	FrameSnapshot FrameType = 0x01 // Full tree plus manifest
	FrameDiff     FrameType = 0x02 // Navigation diff plus manifest
	FrameError    FrameType = 0x03 // Render failure notice
	FrameControl  FrameType = 0x04 // Ping and session control
)

func (ft FrameType) String() string {
	switch ft {
	case FrameSnapshot:
		return "Snapshot"
	case FrameDiff:
		return "Diff"
	case FrameError:
		return "Error"
	case FrameControl:
		return "Control"
	default:
		return "Unknown"
	}
}

// frameHeaderSize is type (1) + flags (1) + length (4, big-endian).
const frameHeaderSize = 6

// MaxFramePayload caps a single frame's body.
const MaxFramePayload = MaxAllocation

var ErrFrameTooLarge = errors.New("payload: frame body too large")

// Frame is the transport envelope. Snapshot and diff bodies carry two
// length-prefixed sections: the structural payload, then its
// manifest.
type Frame struct {
	Type  FrameType
	Flags uint8
	Body  []byte
}

// Encode returns the frame's full wire form, header included.
func (f *Frame) Encode() []byte {
	n := len(f.Body)
	buf := make([]byte, frameHeaderSize+n)
	buf[0] = byte(f.Type)
	buf[1] = f.Flags
	buf[2] = byte(n >> 24)
	buf[3] = byte(n >> 16)
	buf[4] = byte(n >> 8)
	buf[5] = byte(n)
	copy(buf[frameHeaderSize:], f.Body)
	return buf
}

// ReadFrame reads one complete frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	n := int(header[2])<<24 | int(header[3])<<16 | int(header[4])<<8 | int(header[5])
	if n > MaxFramePayload {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
	}
	return &Frame{Type: FrameType(header[0]), Flags: header[1], Body: body}, nil
}

// WriteFrame writes one complete frame to w.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Body) > MaxFramePayload {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}

// SnapshotFrame serializes a tree and wraps it, manifest included,
// into a single frame.
func SnapshotFrame(t *tree.Tree) (*Frame, error) {
	snap, m, err := Serialize(t)
	if err != nil {
		return nil, err
	}
	body, err := packSections(snap, m)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: FrameSnapshot, Body: body}, nil
}

// DecodeSnapshotFrame rebuilds the tree from a snapshot frame.
func DecodeSnapshotFrame(f *Frame) (*tree.Tree, error) {
	if f.Type != FrameSnapshot {
		return nil, fmt.Errorf("payload: expected snapshot frame, got %s", f.Type)
	}
	data, m, err := unpackSections(f.Body)
	if err != nil {
		return nil, err
	}
	return DecodeTree(data, m)
}

// DiffFrame encodes a navigation diff, manifest included, into a
// single frame.
func DiffFrame(diff *tree.NavigationDiff) (*Frame, error) {
	wire, m, err := EncodeDiff(diff)
	if err != nil {
		return nil, err
	}
	body, err := packSections(wire, m)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: FrameDiff, Body: body}, nil
}

// DecodeDiffFrame rebuilds the navigation diff from a diff frame.
func DecodeDiffFrame(f *Frame) (*tree.NavigationDiff, error) {
	if f.Type != FrameDiff {
		return nil, fmt.Errorf("payload: expected diff frame, got %s", f.Type)
	}
	data, m, err := unpackSections(f.Body)
	if err != nil {
		return nil, err
	}
	return DecodeDiff(data, m)
}

// ErrorFrame wraps a render failure message for the client.
func ErrorFrame(code, message string) *Frame {
	e := newEncoder()
	e.writeString(code)
	e.writeString(message)
	return &Frame{Type: FrameError, Body: e.bytes()}
}

// DecodeErrorFrame returns the code and message of an error frame.
func DecodeErrorFrame(f *Frame) (code, message string, err error) {
	if f.Type != FrameError {
		return "", "", fmt.Errorf("payload: expected error frame, got %s", f.Type)
	}
	d := newDecoder(f.Body)
	if code, err = d.readString(); err != nil {
		return "", "", err
	}
	if message, err = d.readString(); err != nil {
		return "", "", err
	}
	return code, message, nil
}

func packSections(data []byte, m *Manifest) ([]byte, error) {
	mwire, err := EncodeManifest(m)
	if err != nil {
		return nil, err
	}
	e := newEncoder()
	e.writeLenBytes(data)
	e.writeLenBytes(mwire)
	return e.bytes(), nil
}

func unpackSections(body []byte) ([]byte, *Manifest, error) {
	d := newDecoder(body)
	data, err := d.readLenBytes()
	if err != nil {
		return nil, nil, err
	}
	mwire, err := d.readLenBytes()
	if err != nil {
		return nil, nil, err
	}
	m, err := DecodeManifest(mwire)
	if err != nil {
		return nil, nil, err
	}
	return data, m, nil
}
