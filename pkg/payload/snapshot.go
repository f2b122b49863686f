package payload

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/strata-dev/strata/pkg/tree"
)

// wireVersion is the snapshot format version byte. Bump on any
// incompatible wire change.
const wireVersion byte = 0x01

// ManifestEntry describes how one placeholder comes alive on the
// client: which bundle to load and the constructor arguments captured
// at render time.
type ManifestEntry struct {
	Bundle string
	Args   map[string]any
}

// Manifest maps placeholder references in a snapshot or diff to their
// activation instructions.
type Manifest struct {
	Entries map[uint64]ManifestEntry
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{Entries: make(map[uint64]ManifestEntry)}
}

func (m *Manifest) add(a *tree.Activation) uint64 {
	ref := uint64(len(m.Entries))
	m.Entries[ref] = ManifestEntry{Bundle: a.Bundle, Args: a.Args}
	return ref
}

// Lookup returns the entry for ref.
func (m *Manifest) Lookup(ref uint64) (ManifestEntry, bool) {
	e, ok := m.Entries[ref]
	return e, ok
}

// FlatNode is one entry of the pre-order node list.
type FlatNode struct {
	ID   string
	Kind tree.Kind

	// Payload holds the node's value for inert and error nodes.
	Payload any

	// ManifestRef points into the manifest for placeholder nodes.
	ManifestRef uint64

	ChildCount int
}

// Serialize encodes a tree as a snapshot payload plus its activation
// manifest. Output is deterministic: the same tree always yields the
// same bytes.
func Serialize(t *tree.Tree) ([]byte, *Manifest, error) {
	e := newEncoder()
	m := NewManifest()

	e.writeByte(wireVersion)
	e.writeUvarint(t.Version)
	e.writeUvarint(uint64(tree.Count(t.Root)))

	if err := encodeSubtree(e, m, t.Root); err != nil {
		return nil, nil, err
	}
	return e.bytes(), m, nil
}

// encodeSubtree emits n and its descendants in pre-order.
func encodeSubtree(e *encoder, m *Manifest, n *tree.Node) error {
	e.writeString(n.ID)
	e.writeByte(byte(n.Kind))
	if n.Kind == tree.KindPlaceholder {
		if n.Activation == nil {
			return &SerializationError{ID: n.ID, Err: fmt.Errorf("placeholder has no activation")}
		}
		e.writeUvarint(m.add(n.Activation))
	} else {
		if err := encodeValue(e, n.ID, n.Payload); err != nil {
			return err
		}
	}
	e.writeUvarint(uint64(len(n.Children)))
	for _, c := range n.Children {
		if err := encodeSubtree(e, m, c); err != nil {
			return err
		}
	}
	return nil
}

// Reader decodes a snapshot one node at a time, in pre-order. A
// consumer can begin rebuilding the tree before the stream is
// complete: each node only requires its ancestors.
type Reader struct {
	d         *decoder
	version   uint64
	remaining int
}

// NewReader validates the snapshot header and positions the reader at
// the first node.
func NewReader(data []byte) (*Reader, error) {
	d := newDecoder(data)
	v, err := d.readByte()
	if err != nil {
		return nil, err
	}
	if v != wireVersion {
		return nil, fmt.Errorf("payload: unsupported snapshot version 0x%02x", v)
	}
	treeVersion, err := d.readUvarint()
	if err != nil {
		return nil, err
	}
	count, err := d.readCount()
	if err != nil {
		return nil, err
	}
	return &Reader{d: d, version: treeVersion, remaining: count}, nil
}

// Version returns the tree version stamped into the snapshot.
func (r *Reader) Version() uint64 { return r.version }

// Next returns the next node in pre-order, or io.EOF after the last.
func (r *Reader) Next() (FlatNode, error) {
	if r.remaining == 0 {
		return FlatNode{}, io.EOF
	}
	n, err := decodeFlatNode(r.d)
	if err != nil {
		return FlatNode{}, err
	}
	r.remaining--
	return n, nil
}

func decodeFlatNode(d *decoder) (FlatNode, error) {
	var n FlatNode
	id, err := d.readString()
	if err != nil {
		return n, err
	}
	kind, err := d.readByte()
	if err != nil {
		return n, err
	}
	n.ID = id
	n.Kind = tree.Kind(kind)
	switch n.Kind {
	case tree.KindPlaceholder:
		ref, err := d.readUvarint()
		if err != nil {
			return n, err
		}
		n.ManifestRef = ref
	case tree.KindInert, tree.KindError:
		v, err := decodeValue(d)
		if err != nil {
			return n, err
		}
		n.Payload = v
	default:
		return n, fmt.Errorf("payload: unknown node kind 0x%02x", kind)
	}
	count, err := d.readCount()
	if err != nil {
		return n, err
	}
	n.ChildCount = count
	return n, nil
}

// DecodeTree rebuilds a full tree from a snapshot, resolving
// placeholder references through the manifest.
func DecodeTree(data []byte, m *Manifest) (*tree.Tree, error) {
	r, err := NewReader(data)
	if err != nil {
		return nil, err
	}
	if r.remaining == 0 {
		return nil, fmt.Errorf("payload: empty snapshot")
	}
	root, err := readSubtree(r.d, m, r.remaining)
	if err != nil {
		return nil, err
	}
	return &tree.Tree{Root: root, Version: r.Version()}, nil
}

func inflate(fn FlatNode, m *Manifest) (*tree.Node, error) {
	node := &tree.Node{ID: fn.ID, Kind: fn.Kind, Payload: fn.Payload}
	if fn.Kind == tree.KindPlaceholder {
		entry, ok := m.Lookup(fn.ManifestRef)
		if !ok {
			return nil, fmt.Errorf("payload: node %s references missing manifest entry %d", fn.ID, fn.ManifestRef)
		}
		node.Activation = &tree.Activation{Bundle: entry.Bundle, Args: entry.Args}
	}
	return node, nil
}

// EncodeManifest encodes the manifest. Entries are written in
// ascending ref order; constructor arguments go out as canonical
// JSON, so the encoding is deterministic.
func EncodeManifest(m *Manifest) ([]byte, error) {
	e := newEncoder()
	e.writeByte(wireVersion)
	e.writeUvarint(uint64(len(m.Entries)))
	for ref := uint64(0); ref < uint64(len(m.Entries)); ref++ {
		entry, ok := m.Entries[ref]
		if !ok {
			return nil, fmt.Errorf("payload: manifest refs not contiguous at %d", ref)
		}
		e.writeUvarint(ref)
		e.writeString(entry.Bundle)
		args, err := json.Marshal(entry.Args)
		if err != nil {
			return nil, &SerializationError{ID: fmt.Sprintf("manifest[%d]", ref), Err: err}
		}
		e.writeLenBytes(args)
	}
	return e.bytes(), nil
}

// DecodeManifest decodes a wire manifest.
func DecodeManifest(data []byte) (*Manifest, error) {
	d := newDecoder(data)
	v, err := d.readByte()
	if err != nil {
		return nil, err
	}
	if v != wireVersion {
		return nil, fmt.Errorf("payload: unsupported manifest version 0x%02x", v)
	}
	count, err := d.readCount()
	if err != nil {
		return nil, err
	}
	m := NewManifest()
	for i := 0; i < count; i++ {
		ref, err := d.readUvarint()
		if err != nil {
			return nil, err
		}
		bundle, err := d.readString()
		if err != nil {
			return nil, err
		}
		raw, err := d.readLenBytes()
		if err != nil {
			return nil, err
		}
		var args map[string]any
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("payload: bad manifest args for ref %d: %w", ref, err)
			}
		}
		m.Entries[ref] = ManifestEntry{Bundle: bundle, Args: args}
	}
	return m, nil
}
