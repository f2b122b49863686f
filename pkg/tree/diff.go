package tree

import "reflect"

// AddedNode is one added subtree with the parent it reattaches under.
// An empty ParentID means the tree root itself was replaced.
type AddedNode struct {
	ParentID string
	Node     *Node
}

// UpdatedNode is one in-place payload update. For Placeholder nodes the
// new activation accompanies the payload; the consumer must re-activate.
type UpdatedNode struct {
	ID         string
	Payload    any
	Activation *Activation
}

// NavigationDiff is a minimal patch between two render trees. Consumers
// apply it atomically or not at all, removed before added before
// updated.
type NavigationDiff struct {
	Removed []string
	Added   []AddedNode
	Updated []UpdatedNode
}

// Empty returns true if the diff contains no entries.
func (d *NavigationDiff) Empty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0 && len(d.Updated) == 0
}

// Diff compares two render trees by stable node identity and returns
// the minimal patch transforming prev into next. Nodes present in both
// trees with unchanged payload and unchanged child identity are omitted.
// A node whose kind changed is expressed as remove+add, never as an
// in-place update. Child reorders without identity change become
// added+removed pairs at the same parent; there is no move operation.
func Diff(prev, next *Tree) *NavigationDiff {
	d := &NavigationDiff{}
	switch {
	case prev == nil || prev.Root == nil:
		if next != nil && next.Root != nil {
			d.Added = append(d.Added, AddedNode{ParentID: "", Node: next.Root})
		}
	case next == nil || next.Root == nil:
		d.Removed = append(d.Removed, prev.Root.ID)
	default:
		diffNode(prev.Root, next.Root, "", d)
	}
	return d
}

// diffNode compares two nodes known to share a stable ID.
func diffNode(prev, next *Node, parentID string, d *NavigationDiff) {
	// Kind changes swap activation semantics; always remove+add.
	if prev.Kind != next.Kind {
		d.Removed = append(d.Removed, prev.ID)
		d.Added = append(d.Added, AddedNode{ParentID: parentID, Node: next})
		return
	}

	if !payloadEqual(prev, next) {
		d.Updated = append(d.Updated, UpdatedNode{
			ID:         next.ID,
			Payload:    next.Payload,
			Activation: next.Activation,
		})
	}

	diffChildren(prev, next, d)
}

// diffChildren matches the two child lists by stable ID.
func diffChildren(prev, next *Node, d *NavigationDiff) {
	prevByID := make(map[string]*Node, len(prev.Children))
	for _, c := range prev.Children {
		prevByID[c.ID] = c
	}
	nextByID := make(map[string]*Node, len(next.Children))
	for _, c := range next.Children {
		nextByID[c.ID] = c
	}

	// Identify reordered common children: any common ID outside the
	// longest common subsequence of the two orderings is expressed as a
	// remove+add pair at this parent.
	prevCommon := commonIDs(prev.Children, nextByID)
	nextCommon := commonIDs(next.Children, prevByID)
	stable := lcs(prevCommon, nextCommon)

	for _, c := range prev.Children {
		if _, ok := nextByID[c.ID]; !ok {
			d.Removed = append(d.Removed, c.ID)
		}
	}

	for _, c := range next.Children {
		pc, ok := prevByID[c.ID]
		if !ok {
			d.Added = append(d.Added, AddedNode{ParentID: next.ID, Node: c})
			continue
		}
		if _, inPlace := stable[c.ID]; !inPlace {
			d.Removed = append(d.Removed, c.ID)
			d.Added = append(d.Added, AddedNode{ParentID: next.ID, Node: c})
			continue
		}
		diffNode(pc, c, next.ID, d)
	}
}

// commonIDs returns the IDs of children that also occur in other,
// preserving their order.
func commonIDs(children []*Node, other map[string]*Node) []string {
	ids := make([]string, 0, len(children))
	for _, c := range children {
		if _, ok := other[c.ID]; ok {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// lcs returns the members of the longest common subsequence of a and b
// as a set. Children in the LCS kept their relative order and need no
// reattachment.
func lcs(a, b []string) map[string]struct{} {
	n, m := len(a), len(b)
	out := make(map[string]struct{}, n)
	if n == 0 || m == 0 {
		return out
	}
	table := make([][]int, n+1)
	for i := range table {
		table[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				table[i][j] = table[i+1][j+1] + 1
			} else if table[i+1][j] >= table[i][j+1] {
				table[i][j] = table[i+1][j]
			} else {
				table[i][j] = table[i][j+1]
			}
		}
	}
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case a[i] == b[j]:
			out[a[i]] = struct{}{}
			i++
			j++
		case table[i+1][j] >= table[i][j+1]:
			i++
		default:
			j++
		}
	}
	return out
}

// payloadEqual compares the content of two nodes of the same kind.
func payloadEqual(prev, next *Node) bool {
	if prev.Kind == KindPlaceholder {
		return activationEqual(prev.Activation, next.Activation)
	}
	return valueEqual(prev.Payload, next.Payload)
}

func activationEqual(a, b *Activation) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Bundle != b.Bundle {
		return false
	}
	return valueEqual(a.Args, b.Args)
}

// valueEqual compares two payload values with fast paths for common
// scalar types before falling back to reflection.
func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}
