package payload

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/strata-dev/strata/pkg/tree"
)

func docsTree() *tree.Tree {
	root := &tree.Node{
		Kind:    tree.KindInert,
		Payload: map[string]any{"title": "Docs", "lang": "en"},
		Children: []*tree.Node{
			{Kind: tree.KindInert, Key: "nav", Payload: "navigation"},
			{Kind: tree.KindInert, Key: "body", Payload: "welcome", Children: []*tree.Node{
				{Kind: tree.KindPlaceholder, Key: "search", Activation: &tree.Activation{
					Bundle: "widgets/search.js",
					Args:   map[string]any{"index": "docs", "limit": float64(10)},
				}},
			}},
		},
	}
	tree.AssignIDs(root)
	return &tree.Tree{Root: root, Version: 7}
}

func TestSerializeDeterministic(t *testing.T) {
	tr := docsTree()
	a, _, err := Serialize(tr)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	b, _, err := Serialize(tr)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("serializing the same tree twice produced different bytes")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	tr := docsTree()
	data, m, err := Serialize(tr)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := DecodeTree(data, m)
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	if got.Version != 7 {
		t.Errorf("version = %d, want 7", got.Version)
	}
	if tree.Count(got.Root) != tree.Count(tr.Root) {
		t.Fatalf("node count = %d, want %d", tree.Count(got.Root), tree.Count(tr.Root))
	}

	ph := got.Find("0.kbody.ksearch")
	if ph == nil {
		t.Fatal("placeholder node missing after round trip")
	}
	if ph.Kind != tree.KindPlaceholder {
		t.Errorf("kind = %v", ph.Kind)
	}
	if ph.Activation == nil || ph.Activation.Bundle != "widgets/search.js" {
		t.Fatalf("activation = %+v", ph.Activation)
	}
	if ph.Activation.Args["index"] != "docs" {
		t.Errorf("ctor args lost: %+v", ph.Activation.Args)
	}

	nav := got.Find("0.knav")
	if nav == nil || nav.Payload != "navigation" {
		t.Errorf("inert payload lost: %+v", nav)
	}
}

func TestReaderStreamsPreOrder(t *testing.T) {
	tr := docsTree()
	data, _, err := Serialize(tr)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	r, err := NewReader(data)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	wantIDs := []string{"0", "0.knav", "0.kbody", "0.kbody.ksearch"}
	for i, want := range wantIDs {
		fn, err := r.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if fn.ID != want {
			t.Errorf("node %d id = %s, want %s", i, fn.ID, want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after last node, got %v", err)
	}
}

func TestSerializeRejectsUnencodableValue(t *testing.T) {
	root := &tree.Node{Kind: tree.KindInert, Payload: make(chan int)}
	tree.AssignIDs(root)
	_, _, err := Serialize(&tree.Tree{Root: root, Version: 1})
	var serr *SerializationError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SerializationError, got %v", err)
	}
	if serr.ID != tree.RootID {
		t.Errorf("error names node %q, want root", serr.ID)
	}
}

func TestDecodeTreeTruncated(t *testing.T) {
	tr := docsTree()
	data, m, err := Serialize(tr)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	for _, cut := range []int{len(data) / 4, len(data) / 2, len(data) - 1} {
		if _, err := DecodeTree(data[:cut], m); err == nil {
			t.Errorf("truncation at %d bytes decoded without error", cut)
		}
	}
}

func TestManifestRoundTrip(t *testing.T) {
	tr := docsTree()
	_, m, err := Serialize(tr)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	wire, err := EncodeManifest(m)
	if err != nil {
		t.Fatalf("EncodeManifest: %v", err)
	}
	got, err := DecodeManifest(wire)
	if err != nil {
		t.Fatalf("DecodeManifest: %v", err)
	}
	if len(got.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(got.Entries))
	}
	entry, ok := got.Lookup(0)
	if !ok || entry.Bundle != "widgets/search.js" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Args["limit"] != float64(10) {
		t.Errorf("args = %+v", entry.Args)
	}
}
