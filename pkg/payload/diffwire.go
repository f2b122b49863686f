package payload

import (
	"fmt"
	"io"

	"github.com/strata-dev/strata/pkg/tree"
)

const updFlagActivation byte = 0x01

// EncodeDiff encodes a navigation diff and the manifest covering any
// placeholders in its added subtrees or updated entries. Section
// order on the wire matches application order: removed, added,
// updated.
func EncodeDiff(diff *tree.NavigationDiff) ([]byte, *Manifest, error) {
	e := newEncoder()
	m := NewManifest()

	e.writeByte(wireVersion)

	e.writeUvarint(uint64(len(diff.Removed)))
	for _, id := range diff.Removed {
		e.writeString(id)
	}

	e.writeUvarint(uint64(len(diff.Added)))
	for _, a := range diff.Added {
		e.writeString(a.ParentID)
		e.writeUvarint(uint64(tree.Count(a.Node)))
		if err := encodeSubtree(e, m, a.Node); err != nil {
			return nil, nil, err
		}
	}

	e.writeUvarint(uint64(len(diff.Updated)))
	for _, u := range diff.Updated {
		e.writeString(u.ID)
		var flags byte
		if u.Activation != nil {
			flags |= updFlagActivation
		}
		e.writeByte(flags)
		if err := encodeValue(e, u.ID, u.Payload); err != nil {
			return nil, nil, err
		}
		if u.Activation != nil {
			e.writeUvarint(m.add(u.Activation))
		}
	}

	return e.bytes(), m, nil
}

// DecodeDiff decodes a wire diff, resolving placeholder references
// through the manifest.
func DecodeDiff(data []byte, m *Manifest) (*tree.NavigationDiff, error) {
	d := newDecoder(data)
	v, err := d.readByte()
	if err != nil {
		return nil, err
	}
	if v != wireVersion {
		return nil, fmt.Errorf("payload: unsupported diff version 0x%02x", v)
	}

	diff := &tree.NavigationDiff{}

	count, err := d.readCount()
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		id, err := d.readString()
		if err != nil {
			return nil, err
		}
		diff.Removed = append(diff.Removed, id)
	}

	count, err = d.readCount()
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		parentID, err := d.readString()
		if err != nil {
			return nil, err
		}
		nodes, err := d.readCount()
		if err != nil {
			return nil, err
		}
		root, err := readSubtree(d, m, nodes)
		if err != nil {
			return nil, err
		}
		diff.Added = append(diff.Added, tree.AddedNode{ParentID: parentID, Node: root})
	}

	count, err = d.readCount()
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		id, err := d.readString()
		if err != nil {
			return nil, err
		}
		flags, err := d.readByte()
		if err != nil {
			return nil, err
		}
		payload, err := decodeValue(d)
		if err != nil {
			return nil, err
		}
		u := tree.UpdatedNode{ID: id, Payload: payload}
		if flags&updFlagActivation != 0 {
			ref, err := d.readUvarint()
			if err != nil {
				return nil, err
			}
			entry, ok := m.Lookup(ref)
			if !ok {
				return nil, fmt.Errorf("payload: update %s references missing manifest entry %d", id, ref)
			}
			u.Activation = &tree.Activation{Bundle: entry.Bundle, Args: entry.Args}
		}
		diff.Updated = append(diff.Updated, u)
	}

	return diff, nil
}

// readSubtree rebuilds one pre-order subtree of exactly count nodes.
func readSubtree(d *decoder, m *Manifest, count int) (*tree.Node, error) {
	type pending struct {
		node *tree.Node
		left int
	}
	var root *tree.Node
	var stack []pending

	for i := 0; i < count; i++ {
		fn, err := decodeFlatNode(d)
		if err != nil {
			return nil, err
		}
		node, err := inflate(fn, m)
		if err != nil {
			return nil, err
		}
		if root == nil {
			root = node
		} else {
			if len(stack) == 0 {
				return nil, fmt.Errorf("payload: node %s has no pending parent", fn.ID)
			}
			top := &stack[len(stack)-1]
			top.node.Children = append(top.node.Children, node)
			top.left--
			for len(stack) > 0 && stack[len(stack)-1].left == 0 {
				stack = stack[:len(stack)-1]
			}
		}
		if fn.ChildCount > 0 {
			if len(stack) >= MaxTreeDepth {
				return nil, ErrDepthExceeded
			}
			stack = append(stack, pending{node: node, left: fn.ChildCount})
		}
	}

	if root == nil {
		return nil, fmt.Errorf("payload: empty subtree")
	}
	if len(stack) != 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return root, nil
}
