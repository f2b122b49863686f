// Package executor renders declarative view descriptors into trees.
//
// A view is described by a Spec graph. Each Spec names a registered
// Producer; the executor walks the graph depth-first, invoking
// producers and assembling a tree.Tree. Cacheable producers run
// through the memoization store keyed by producer name and
// canonicalized arguments, so repeated renders of static views reuse
// prior work. Placeholder producers are never invoked on the server:
// their constructor arguments are captured verbatim and shipped to
// the client for activation.
//
// Producer failures are contained by default. The failing node is
// replaced by an error node and its siblings render normally; a
// producer marked Fatal aborts the whole render instead.
package executor
