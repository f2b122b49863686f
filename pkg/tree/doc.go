// Package tree provides the render tree model for strata.
//
// A render tree is an immutable snapshot of one view: a root Node, its
// ordered children, and a monotonically increasing version. Every node
// carries a stable identity derived from its position in the declared
// tree plus any caller-supplied key, so "the same" logical node keeps
// its identity across re-renders even as unrelated siblings change.
//
// # Core Types
//
// Node is the fundamental building block. Inert nodes carry fully
// computed payload values; Placeholder nodes carry captured activation
// arguments and are expanded on the consuming side; Error nodes stand in
// for a subtree whose producer failed.
//
// # Diffing
//
// The Diff function compares two trees by stable identity and returns a
// NavigationDiff holding added, removed, and updated entries. Unchanged
// nodes never appear in a diff. A node whose kind flips between Inert
// and Placeholder is always a remove+add pair, never an in-place update.
//
// # Identity
//
// AssignIDs walks a tree and derives stable IDs. Verify checks that no
// two nodes claim the same ID within one snapshot; a conflict is a
// descriptor-authoring bug and fails the render before serialization.
package tree
