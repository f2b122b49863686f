package hydrate

import (
	"errors"
	"testing"

	"github.com/strata-dev/strata/pkg/tree"
)

type testInstance struct {
	bundle   string
	args     map[string]any
	disposed bool
}

func (i *testInstance) Dispose() { i.disposed = true }

func testRegistry(t *testing.T, bundles ...string) (*ActivatorRegistry, *int) {
	t.Helper()
	reg := NewActivatorRegistry()
	activations := 0
	for _, b := range bundles {
		bundle := b
		err := reg.Register(bundle, func(node *tree.Node, args map[string]any) (Instance, error) {
			activations++
			return &testInstance{bundle: bundle, args: args}, nil
		})
		if err != nil {
			t.Fatalf("Register(%s): %v", bundle, err)
		}
	}
	return reg, &activations
}

func sessionTree() *tree.Tree {
	root := &tree.Node{
		Kind:    tree.KindInert,
		Payload: "page",
		Children: []*tree.Node{
			{Kind: tree.KindInert, Key: "title", Payload: "Hello"},
			{Kind: tree.KindPlaceholder, Key: "chat", Activation: &tree.Activation{
				Bundle: "widgets/chat.js",
				Args:   map[string]any{"room": "general"},
			}},
		},
	}
	tree.AssignIDs(root)
	return &tree.Tree{Root: root, Version: 1}
}

func TestApplySnapshotActivatesPlaceholdersOnly(t *testing.T) {
	reg, activations := testRegistry(t, "widgets/chat.js")
	c := NewCoordinator(reg)

	if err := c.ApplySnapshot(sessionTree()); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	if *activations != 1 {
		t.Errorf("activations = %d, want 1", *activations)
	}
	if _, ok := c.Instance("0.kchat"); !ok {
		t.Error("placeholder has no instance")
	}
	if _, ok := c.Instance("0.ktitle"); ok {
		t.Error("inert node was given an instance")
	}
}

func TestApplyDiffPreservesActivatedPlaceholder(t *testing.T) {
	reg, activations := testRegistry(t, "widgets/chat.js")
	c := NewCoordinator(reg)
	if err := c.ApplySnapshot(sessionTree()); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	before, _ := c.Instance("0.kchat")

	// Update only the inert sibling.
	diff := &tree.NavigationDiff{
		Updated: []tree.UpdatedNode{{ID: "0.ktitle", Payload: "Hello again"}},
	}
	if err := c.ApplyDiff(diff); err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}

	after, ok := c.Instance("0.kchat")
	if !ok {
		t.Fatal("placeholder instance gone after unrelated update")
	}
	if after != before {
		t.Error("placeholder was re-activated by an unrelated update")
	}
	if before.(*testInstance).disposed {
		t.Error("live instance was disposed")
	}
	if *activations != 1 {
		t.Errorf("activations = %d, want 1", *activations)
	}
	if got := c.Tree().Find("0.ktitle").Payload; got != "Hello again" {
		t.Errorf("title payload = %v", got)
	}
}

func TestApplyDiffAddedPlaceholderActivates(t *testing.T) {
	reg, activations := testRegistry(t, "widgets/chat.js", "widgets/poll.js")
	c := NewCoordinator(reg)
	if err := c.ApplySnapshot(sessionTree()); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	added := &tree.Node{
		ID:   "0.kpoll",
		Kind: tree.KindPlaceholder,
		Activation: &tree.Activation{
			Bundle: "widgets/poll.js",
			Args:   map[string]any{"id": "q1"},
		},
	}
	diff := &tree.NavigationDiff{Added: []tree.AddedNode{{ParentID: "0", Node: added}}}
	if err := c.ApplyDiff(diff); err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}

	inst, ok := c.Instance("0.kpoll")
	if !ok {
		t.Fatal("added placeholder not activated")
	}
	if inst.(*testInstance).bundle != "widgets/poll.js" {
		t.Errorf("bundle = %s", inst.(*testInstance).bundle)
	}
	if *activations != 2 {
		t.Errorf("activations = %d, want 2", *activations)
	}
}

func TestApplyDiffRemovalDisposesSubtree(t *testing.T) {
	reg, _ := testRegistry(t, "widgets/chat.js")
	c := NewCoordinator(reg)
	if err := c.ApplySnapshot(sessionTree()); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	inst, _ := c.Instance("0.kchat")

	diff := &tree.NavigationDiff{Removed: []string{"0.kchat"}}
	if err := c.ApplyDiff(diff); err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}

	if !inst.(*testInstance).disposed {
		t.Error("removed placeholder's instance not disposed")
	}
	if _, ok := c.Instance("0.kchat"); ok {
		t.Error("instance still tracked after removal")
	}
	if c.Tree().Find("0.kchat") != nil {
		t.Error("removed node still in tree")
	}
}

func TestApplyDiffUpdatedPlaceholderReactivates(t *testing.T) {
	reg, activations := testRegistry(t, "widgets/chat.js")
	c := NewCoordinator(reg)
	if err := c.ApplySnapshot(sessionTree()); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	old, _ := c.Instance("0.kchat")

	diff := &tree.NavigationDiff{
		Updated: []tree.UpdatedNode{{
			ID: "0.kchat",
			Activation: &tree.Activation{
				Bundle: "widgets/chat.js",
				Args:   map[string]any{"room": "support"},
			},
		}},
	}
	if err := c.ApplyDiff(diff); err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}

	if !old.(*testInstance).disposed {
		t.Error("replaced instance not disposed")
	}
	fresh, ok := c.Instance("0.kchat")
	if !ok {
		t.Fatal("updated placeholder lost its instance")
	}
	if fresh == old {
		t.Error("updated placeholder kept stale instance")
	}
	if fresh.(*testInstance).args["room"] != "support" {
		t.Errorf("new instance args = %+v", fresh.(*testInstance).args)
	}
	if *activations != 2 {
		t.Errorf("activations = %d, want 2", *activations)
	}
}

func TestApplyDiffReplacesRootOnKindChange(t *testing.T) {
	reg, activations := testRegistry(t, "widgets/chat.js", "widgets/shell.js")
	c := NewCoordinator(reg)
	prev := sessionTree()
	if err := c.ApplySnapshot(prev); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	old, _ := c.Instance("0.kchat")

	// The whole page becomes one placeholder-driven shell: the root
	// changes kind, which diffs as remove-root plus re-add.
	nextRoot := &tree.Node{
		Kind: tree.KindPlaceholder,
		Activation: &tree.Activation{
			Bundle: "widgets/shell.js",
			Args:   map[string]any{"layout": "full"},
		},
	}
	tree.AssignIDs(nextRoot)
	next := &tree.Tree{Root: nextRoot, Version: 2}

	diff := tree.Diff(prev, next)
	if len(diff.Removed) != 1 || diff.Removed[0] != tree.RootID {
		t.Fatalf("diff did not remove the root: %+v", diff.Removed)
	}
	if err := c.ApplyDiff(diff); err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}

	if !old.(*testInstance).disposed {
		t.Error("old subtree instance not disposed on root replacement")
	}
	inst, ok := c.Instance(tree.RootID)
	if !ok {
		t.Fatal("replacement root not activated")
	}
	if inst.(*testInstance).bundle != "widgets/shell.js" {
		t.Errorf("bundle = %s", inst.(*testInstance).bundle)
	}
	if c.Tree().Root.Kind != tree.KindPlaceholder {
		t.Errorf("root kind = %v, want placeholder", c.Tree().Root.Kind)
	}
	if *activations != 2 {
		t.Errorf("activations = %d, want 2", *activations)
	}
}

func TestApplyDiffUnknownBundleLeavesStateUntouched(t *testing.T) {
	reg, _ := testRegistry(t, "widgets/chat.js")
	c := NewCoordinator(reg)
	if err := c.ApplySnapshot(sessionTree()); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	inst, _ := c.Instance("0.kchat")

	diff := &tree.NavigationDiff{
		Removed: []string{"0.ktitle"},
		Added: []tree.AddedNode{{ParentID: "0", Node: &tree.Node{
			ID:         "0.kmystery",
			Kind:       tree.KindPlaceholder,
			Activation: &tree.Activation{Bundle: "widgets/unknown.js"},
		}}},
	}
	if err := c.ApplyDiff(diff); err == nil {
		t.Fatal("expected error for unknown bundle")
	}

	if c.Tree().Find("0.ktitle") == nil {
		t.Error("failed diff removed a node anyway")
	}
	if c.Tree().Find("0.kmystery") != nil {
		t.Error("failed diff added a node anyway")
	}
	if inst.(*testInstance).disposed {
		t.Error("failed diff disposed a live instance")
	}
}

func TestApplyDiffBeforeSnapshotFails(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCoordinator(reg)
	err := c.ApplyDiff(&tree.NavigationDiff{Removed: []string{"0.1"}})
	if err == nil {
		t.Fatal("expected error applying diff with no tree")
	}
}

func TestActivationFailureRollsBack(t *testing.T) {
	reg := NewActivatorRegistry()
	var created []*testInstance
	reg.Register("ok.js", func(n *tree.Node, args map[string]any) (Instance, error) {
		inst := &testInstance{bundle: "ok.js"}
		created = append(created, inst)
		return inst, nil
	})
	reg.Register("bad.js", func(n *tree.Node, args map[string]any) (Instance, error) {
		return nil, errors.New("bundle failed to load")
	})

	root := &tree.Node{Kind: tree.KindInert, Children: []*tree.Node{
		{Kind: tree.KindPlaceholder, Key: "a", Activation: &tree.Activation{Bundle: "ok.js"}},
		{Kind: tree.KindPlaceholder, Key: "b", Activation: &tree.Activation{Bundle: "bad.js"}},
	}}
	tree.AssignIDs(root)

	c := NewCoordinator(reg)
	if err := c.ApplySnapshot(&tree.Tree{Root: root, Version: 1}); err == nil {
		t.Fatal("expected snapshot activation to fail")
	}
	if c.Tree() != nil {
		t.Error("failed snapshot was committed")
	}
	for _, inst := range created {
		if !inst.disposed {
			t.Error("partially created instance not disposed on rollback")
		}
	}
}
