package hydrate

import (
	"errors"
	"fmt"

	"github.com/strata-dev/strata/pkg/tree"
)

// Coordinator owns one session's tree and the live instances attached
// to its placeholder nodes.
type Coordinator struct {
	reg       *ActivatorRegistry
	tree      *tree.Tree
	instances map[string]Instance
}

// NewCoordinator creates a coordinator resolving bundles through reg.
func NewCoordinator(reg *ActivatorRegistry) *Coordinator {
	return &Coordinator{
		reg:       reg,
		instances: make(map[string]Instance),
	}
}

// Tree returns the current tree, or nil before the first snapshot.
func (c *Coordinator) Tree() *tree.Tree { return c.tree }

// Instance returns the live instance attached to a node.
func (c *Coordinator) Instance(id string) (Instance, bool) {
	inst, ok := c.instances[id]
	return inst, ok
}

// ApplySnapshot replaces the session tree and activates every
// placeholder in it. Instances from a previous tree are disposed.
// On error, the previous tree and its instances are untouched.
func (c *Coordinator) ApplySnapshot(t *tree.Tree) error {
	var placeholders []*tree.Node
	tree.Walk(t.Root, func(n, _ *tree.Node) bool {
		if n.Kind == tree.KindPlaceholder {
			placeholders = append(placeholders, n)
		}
		return true
	})

	created, err := c.activate(placeholders)
	if err != nil {
		return err
	}

	for _, inst := range c.instances {
		inst.Dispose()
	}
	c.instances = created
	c.tree = t
	return nil
}

// ApplyDiff applies a navigation diff: removals first, then
// additions, then updates. Only placeholders arriving as added or
// updated get (re-)activated; instances in untouched subtrees are
// left exactly as they are. Application is atomic: on error, the
// current tree and instances are unchanged.
func (c *Coordinator) ApplyDiff(diff *tree.NavigationDiff) error {
	if c.tree == nil {
		return errors.New("hydrate: diff received before any snapshot")
	}

	work := &tree.Tree{Root: tree.Clone(c.tree.Root), Version: c.tree.Version}
	var disposeIDs []string
	var pending []*tree.Node

	for _, id := range diff.Removed {
		// A root kind change arrives as remove-root plus add with an
		// empty parent; the whole old tree is torn down.
		if work.Root != nil && work.Root.ID == id {
			tree.Walk(work.Root, func(n, _ *tree.Node) bool {
				disposeIDs = append(disposeIDs, n.ID)
				return true
			})
			work.Root = nil
			continue
		}
		sub, err := detach(work, id)
		if err != nil {
			return err
		}
		tree.Walk(sub, func(n, _ *tree.Node) bool {
			disposeIDs = append(disposeIDs, n.ID)
			return true
		})
	}

	for _, a := range diff.Added {
		node := tree.Clone(a.Node)
		if a.ParentID == "" {
			if work.Root != nil {
				return fmt.Errorf("hydrate: added root %s but root %s still present", node.ID, work.Root.ID)
			}
			work.Root = node
			tree.Walk(node, func(n, _ *tree.Node) bool {
				if n.Kind == tree.KindPlaceholder {
					pending = append(pending, n)
				}
				return true
			})
			continue
		}
		parent := work.Find(a.ParentID)
		if parent == nil {
			return fmt.Errorf("hydrate: added node %s has unknown parent %s", a.Node.ID, a.ParentID)
		}
		parent.Children = append(parent.Children, node)
		tree.Walk(node, func(n, _ *tree.Node) bool {
			if n.Kind == tree.KindPlaceholder {
				pending = append(pending, n)
			}
			return true
		})
	}

	for _, u := range diff.Updated {
		node := work.Find(u.ID)
		if node == nil {
			return fmt.Errorf("hydrate: updated node %s not in tree", u.ID)
		}
		node.Payload = u.Payload
		if u.Activation != nil {
			node.Activation = u.Activation
		}
		if node.Kind == tree.KindPlaceholder {
			// An updated placeholder gets fresh behavior built from
			// its new arguments.
			disposeIDs = append(disposeIDs, node.ID)
			pending = append(pending, node)
		}
	}

	created, err := c.activate(pending)
	if err != nil {
		return err
	}

	next := make(map[string]Instance, len(c.instances)+len(created))
	for id, inst := range c.instances {
		next[id] = inst
	}
	for _, id := range disposeIDs {
		if inst, ok := next[id]; ok {
			inst.Dispose()
			delete(next, id)
		}
	}
	for id, inst := range created {
		next[id] = inst
	}
	c.instances = next
	c.tree = work
	return nil
}

// activate builds instances for the given placeholder nodes. If any
// activation fails, instances created so far are disposed and nothing
// is committed.
func (c *Coordinator) activate(nodes []*tree.Node) (map[string]Instance, error) {
	created := make(map[string]Instance, len(nodes))
	fail := func(err error) (map[string]Instance, error) {
		for _, inst := range created {
			inst.Dispose()
		}
		return nil, err
	}

	for _, n := range nodes {
		if n.Activation == nil {
			return fail(fmt.Errorf("hydrate: placeholder %s has no activation", n.ID))
		}
		fn, ok := c.reg.Lookup(n.Activation.Bundle)
		if !ok {
			return fail(fmt.Errorf("hydrate: no activator for bundle %q (node %s)", n.Activation.Bundle, n.ID))
		}
		inst, err := fn(n, n.Activation.Args)
		if err != nil {
			return fail(fmt.Errorf("hydrate: activating node %s: %w", n.ID, err))
		}
		created[n.ID] = inst
	}
	return created, nil
}

// detach removes the node with the given id from the tree and returns
// the removed subtree.
func detach(t *tree.Tree, id string) (*tree.Node, error) {
	if t.Root != nil && t.Root.ID == id {
		return nil, fmt.Errorf("hydrate: cannot remove root node %s", id)
	}
	var removed *tree.Node
	tree.Walk(t.Root, func(n, parent *tree.Node) bool {
		if n.ID != id || parent == nil {
			return true
		}
		for i, c := range parent.Children {
			if c == n {
				parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
				break
			}
		}
		removed = n
		return false
	})
	if removed == nil {
		return nil, fmt.Errorf("hydrate: removed node %s not in tree", id)
	}
	return removed, nil
}
