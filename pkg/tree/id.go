package tree

import (
	"fmt"
	"strconv"
	"strings"
)

// RootID is the stable ID assigned to every tree's root node.
const RootID = "0"

// idSep separates path segments in a derived stable ID.
const idSep = "."

// keyEscaper rewrites characters in an explicit key that would
// otherwise collide with the ID syntax: a separator inside a key must
// not read as a segment boundary.
var keyEscaper = strings.NewReplacer("~", "~0", idSep, "~1")

// IDConflictError reports two nodes claiming the same stable ID within
// one tree snapshot. It is a descriptor-authoring bug and must surface
// before serialization.
type IDConflictError struct {
	ID string
}

// Error implements the error interface.
func (e *IDConflictError) Error() string {
	return fmt.Sprintf("tree: duplicate stable id %q in one snapshot", e.ID)
}

// ChildID derives the stable ID for a child at the given insertion index
// under parentID. An explicit key replaces the positional index so the
// derived ID survives sibling insertion.
func ChildID(parentID string, index int, key string) string {
	var b strings.Builder
	b.Grow(len(parentID) + 1 + len(key) + 2)
	b.WriteString(parentID)
	b.WriteString(idSep)
	if key != "" {
		// "k" prefix keeps keyed segments disjoint from positional ones.
		b.WriteString("k")
		b.WriteString(keyEscaper.Replace(key))
	} else {
		b.WriteString(strconv.Itoa(index))
	}
	return b.String()
}

// AssignIDs walks the subtree rooted at root and assigns stable IDs
// derived from tree position and explicit keys. The root receives
// RootID.
func AssignIDs(root *Node) {
	if root == nil {
		return
	}
	root.ID = RootID
	assignChildIDs(root)
}

func assignChildIDs(n *Node) {
	for i, c := range n.Children {
		if c == nil {
			continue
		}
		c.ID = ChildID(n.ID, i, c.Key)
		assignChildIDs(c)
	}
}

// Verify checks that every node in the tree has a non-empty stable ID
// and that no ID occurs twice. Returns an *IDConflictError on the first
// duplicate found.
func Verify(t *Tree) error {
	if t == nil || t.Root == nil {
		return nil
	}
	seen := make(map[string]struct{}, Count(t.Root))
	var conflict *IDConflictError
	Walk(t.Root, func(n, _ *Node) bool {
		if n.ID == "" {
			conflict = &IDConflictError{ID: ""}
			return false
		}
		if _, dup := seen[n.ID]; dup {
			conflict = &IDConflictError{ID: n.ID}
			return false
		}
		seen[n.ID] = struct{}{}
		return true
	})
	if conflict != nil {
		return conflict
	}
	return nil
}
