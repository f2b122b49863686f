// Package memo provides the tiered memoization store for strata.
//
// The Store caches the results of expensive producer computations keyed
// by producer identity plus canonicalized arguments. Entries live in one
// of three tiers: BuildStatic entries never expire within a process
// lifetime, RuntimeStatic entries carry a revalidation window, and
// Dynamic computations are never cached at all.
//
// # Single-Flight
//
// Concurrent callers computing the same key collapse into one producer
// execution; late arrivals attach to the pending computation and receive
// the identical result (or identical error). A computation keeps running
// while at least one waiter remains; it is cancelled only once every
// caller has abandoned it.
//
// # Stale Entries
//
// A RuntimeStatic entry past its revalidation window is handled per the
// entry's StalePolicy: ServeStaleThenSwap returns the previous value
// once more while a background recomputation proceeds; BlockUntilFresh
// makes the reader wait for the new value.
//
// # Dependencies
//
// When a producer calls GetOrCompute on another key during its own
// execution, a dependency edge is recorded; invalidating a key
// transitively invalidates everything computed on top of it. Cycles in
// the declared producer graph are rejected at registration time via
// Graph, never discovered as a deadlock at runtime.
package memo
