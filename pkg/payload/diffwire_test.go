package payload

import (
	"testing"

	"github.com/strata-dev/strata/pkg/tree"
)

func TestDiffRoundTrip(t *testing.T) {
	added := &tree.Node{
		Kind:    tree.KindInert,
		Payload: "section",
		Children: []*tree.Node{
			{Kind: tree.KindPlaceholder, Activation: &tree.Activation{
				Bundle: "widgets/chart.js",
				Args:   map[string]any{"series": "revenue"},
			}},
		},
	}
	added.ID = "0.kc"
	added.Children[0].ID = "0.kc.0"

	diff := &tree.NavigationDiff{
		Removed: []string{"0.kold", "0.kgone"},
		Added:   []tree.AddedNode{{ParentID: "0", Node: added}},
		Updated: []tree.UpdatedNode{
			{ID: "0.ktitle", Payload: "New Title"},
			{ID: "0.kmap", Payload: nil, Activation: &tree.Activation{
				Bundle: "widgets/map.js",
				Args:   map[string]any{"zoom": float64(4)},
			}},
		},
	}

	wire, m, err := EncodeDiff(diff)
	if err != nil {
		t.Fatalf("EncodeDiff: %v", err)
	}
	got, err := DecodeDiff(wire, m)
	if err != nil {
		t.Fatalf("DecodeDiff: %v", err)
	}

	if len(got.Removed) != 2 || got.Removed[0] != "0.kold" || got.Removed[1] != "0.kgone" {
		t.Errorf("removed = %v", got.Removed)
	}

	if len(got.Added) != 1 {
		t.Fatalf("added = %d entries", len(got.Added))
	}
	a := got.Added[0]
	if a.ParentID != "0" || a.Node.ID != "0.kc" || a.Node.Payload != "section" {
		t.Errorf("added entry = %+v node %+v", a, a.Node)
	}
	if len(a.Node.Children) != 1 {
		t.Fatalf("added subtree lost children")
	}
	ph := a.Node.Children[0]
	if ph.Kind != tree.KindPlaceholder || ph.Activation == nil || ph.Activation.Bundle != "widgets/chart.js" {
		t.Errorf("added placeholder = %+v", ph)
	}

	if len(got.Updated) != 2 {
		t.Fatalf("updated = %d entries", len(got.Updated))
	}
	if got.Updated[0].ID != "0.ktitle" || got.Updated[0].Payload != "New Title" {
		t.Errorf("updated[0] = %+v", got.Updated[0])
	}
	u := got.Updated[1]
	if u.Activation == nil || u.Activation.Bundle != "widgets/map.js" {
		t.Errorf("updated[1] activation = %+v", u.Activation)
	}
	if u.Activation.Args["zoom"] != float64(4) {
		t.Errorf("updated[1] args = %+v", u.Activation.Args)
	}
}

func TestDiffSectionOrderMatchesApplicationOrder(t *testing.T) {
	// Removed must decode before added, added before updated; the
	// decoder reads the sections strictly in that order.
	diff := &tree.NavigationDiff{
		Removed: []string{"0.1"},
		Added: []tree.AddedNode{{ParentID: "0", Node: &tree.Node{
			ID: "0.2", Kind: tree.KindInert, Payload: "x",
		}}},
		Updated: []tree.UpdatedNode{{ID: "0.3", Payload: "y"}},
	}
	wire, m, err := EncodeDiff(diff)
	if err != nil {
		t.Fatalf("EncodeDiff: %v", err)
	}
	got, err := DecodeDiff(wire, m)
	if err != nil {
		t.Fatalf("DecodeDiff: %v", err)
	}
	if len(got.Removed) != 1 || len(got.Added) != 1 || len(got.Updated) != 1 {
		t.Errorf("sections = %d/%d/%d", len(got.Removed), len(got.Added), len(got.Updated))
	}
}

func TestDecodeDiffTruncated(t *testing.T) {
	diff := &tree.NavigationDiff{
		Added: []tree.AddedNode{{ParentID: "0", Node: &tree.Node{
			ID: "0.a", Kind: tree.KindInert, Payload: "long enough payload to cut",
		}}},
	}
	wire, m, err := EncodeDiff(diff)
	if err != nil {
		t.Fatalf("EncodeDiff: %v", err)
	}
	if _, err := DecodeDiff(wire[:len(wire)/2], m); err == nil {
		t.Error("truncated diff decoded without error")
	}
}
