// Package payload converts trees to and from their wire form.
//
// A snapshot is a flat, pre-order list of nodes. Each entry carries
// the node's stable ID, its kind, its payload value (or a reference
// into the Activation Manifest for placeholders), and its child
// count, so a consumer can rebuild the tree shape incrementally: a
// node is decodable as soon as its ancestors have arrived.
//
// Serialization is deterministic. Encoding the same tree twice
// yields byte-identical output, which makes payloads safely
// content-addressable and diffable at the byte level.
//
// Navigation diffs ship in their own frame as three ordered
// sections: removed IDs, added subtrees, updated payloads.
package payload
