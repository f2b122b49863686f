package tree

// Kind is the node type discriminator.
type Kind uint8

const (
	KindInert       Kind = iota // Fully computed, no client behavior
	KindPlaceholder             // Needs client-side activation
	KindError                   // Stands in for a failed producer
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindInert:
		return "Inert"
	case KindPlaceholder:
		return "Placeholder"
	case KindError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Tier is the caching lifetime class of a computed node.
type Tier uint8

const (
	TierBuildStatic   Tier = iota // Precomputed, never expires in-process
	TierRuntimeStatic             // Cached with a revalidation window
	TierDynamic                   // Never cached, always recomputed
)

// String returns the string representation of the Tier.
func (t Tier) String() string {
	switch t {
	case TierBuildStatic:
		return "BuildStatic"
	case TierRuntimeStatic:
		return "RuntimeStatic"
	case TierDynamic:
		return "Dynamic"
	default:
		return "Unknown"
	}
}

// Activation captures what a Placeholder node needs on the consuming
// side: a bundle locator and the constructor arguments captured verbatim
// at render time (never executed by the server-side executor).
type Activation struct {
	Bundle string
	Args   map[string]any
}

// Node is a single node in a render tree.
//
// ID is assigned by AssignIDs and is unique within a tree snapshot.
// Key is the optional caller-supplied identity key; when set it replaces
// the positional index in the derived ID so identity survives sibling
// insertion and reordering.
type Node struct {
	ID         string
	Kind       Kind
	Tier       Tier
	Key        string
	Payload    any
	Activation *Activation // Placeholder nodes only
	Children   []*Node
}

// Tree is one immutable snapshot of a rendered view.
// It is owned exclusively by the executor that produced it until
// published; afterwards it must not be mutated.
type Tree struct {
	Root    *Node
	Version uint64
}

// Find returns the node with the given ID, or nil.
func (t *Tree) Find(id string) *Node {
	if t == nil {
		return nil
	}
	return findByID(t.Root, id)
}

func findByID(n *Node, id string) *Node {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return n
	}
	for _, c := range n.Children {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// Count returns the number of nodes in the subtree rooted at n.
func Count(n *Node) int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += Count(c)
	}
	return total
}

// Walk visits every node in pre-order. The visitor receives the node and
// its parent (nil for the root). Returning false stops the walk.
func Walk(root *Node, visit func(n, parent *Node) bool) {
	walk(root, nil, visit)
}

func walk(n, parent *Node, visit func(n, parent *Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n, parent) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, n, visit) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the subtree rooted at n. Payload values
// and activation args are shared, not copied; both are treated as
// immutable once a tree is published.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Activation != nil {
		act := *n.Activation
		cp.Activation = &act
	}
	if len(n.Children) > 0 {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = Clone(c)
		}
	}
	return &cp
}
