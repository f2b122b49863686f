// Package hydrate is the consuming side of the render pipeline.
//
// A Coordinator holds one logical tree per session. On a full
// snapshot it attaches live behavior to every placeholder node by
// resolving the node's bundle through an ActivatorRegistry. On a
// navigation diff it applies removals, then additions, then updates,
// activating only placeholders that arrived in the diff. Behavior
// attached to untouched subtrees is never re-initialized, so live
// state survives navigation.
//
// A Coordinator serves a single session and is not safe for
// concurrent use; the transport layer delivers frames to it in order.
package hydrate
