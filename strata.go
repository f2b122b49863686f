// Package strata provides the public API for the Strata rendering
// pipeline.
//
// This is the recommended import for most applications:
//
//	import "github.com/strata-dev/strata"
//
// Usage:
//
//	reg := strata.NewRegistry()
//	reg.Register(strata.Producer{Name: "page", Mode: strata.Cacheable, Fn: renderPage})
//	store := strata.NewStore()
//	srv := strata.NewServer(strata.NewExecutor(reg, store), store)
package strata

import (
	"github.com/strata-dev/strata/pkg/bundle"
	"github.com/strata-dev/strata/pkg/executor"
	"github.com/strata-dev/strata/pkg/memo"
	"github.com/strata-dev/strata/pkg/route"
	"github.com/strata-dev/strata/pkg/server"
	"github.com/strata-dev/strata/pkg/tree"
)

// =============================================================================
// Tiers and tree types (re-export from pkg/tree)
// =============================================================================

// Tier classifies how long a cached value stays valid.
type Tier = tree.Tier

const (
	// TierBuildStatic never expires once computed.
	TierBuildStatic = tree.TierBuildStatic
	// TierRuntimeStatic revalidates after a configured window.
	TierRuntimeStatic = tree.TierRuntimeStatic
	// TierDynamic is recomputed on every request.
	TierDynamic = tree.TierDynamic
)

// Node is one rendered node in a view tree.
type Node = tree.Node

// Tree is a fully rendered view.
type Tree = tree.Tree

// NavigationDiff describes the change set between two rendered trees.
type NavigationDiff = tree.NavigationDiff

// Diff computes the change set between two trees.
var Diff = tree.Diff

// =============================================================================
// Producers and execution (re-export from pkg/executor)
// =============================================================================

// Producer declares a named unit of renderable work.
type Producer = executor.Producer

// Spec positions a producer inside a view tree.
type Spec = executor.Spec

// Request carries the explicit and ambient inputs of one render.
type Request = executor.Request

// Registry holds registered producers and their dependency graph.
type Registry = executor.Registry

// Executor renders specs into trees through the memoization store.
type Executor = executor.Executor

const (
	// Cacheable producers are memoized by tier.
	Cacheable = executor.Cacheable
	// AlwaysFresh producers run on every render, never touching the cache.
	AlwaysFresh = executor.AlwaysFresh
	// Placeholder producers defer to a client-side bundle.
	Placeholder = executor.Placeholder
)

// NewRegistry creates an empty producer registry.
var NewRegistry = executor.NewRegistry

// NewExecutor creates an executor over a registry and store.
var NewExecutor = executor.New

// NewRequest builds a request from a view name and parameters.
var NewRequest = executor.NewRequest

// =============================================================================
// Memoization (re-export from pkg/memo)
// =============================================================================

// Store is the tiered memoization cache.
type Store = memo.Store

// Policy controls caching for one computation.
type Policy = memo.Policy

const (
	// ServeStaleThenSwap serves an expired value while refreshing it
	// in the background.
	ServeStaleThenSwap = memo.ServeStaleThenSwap
	// BlockUntilFresh makes expired reads wait for the recompute.
	BlockUntilFresh = memo.BlockUntilFresh
)

// NewStore creates an empty memoization store.
var NewStore = memo.New

// =============================================================================
// Routing and serving (re-export from pkg/route, pkg/server)
// =============================================================================

// Descriptor captures the cacheability signals of a route.
type Descriptor = route.Descriptor

// Classify maps a route descriptor to its rendering tier.
var Classify = route.Classify

// View binds a route descriptor to the spec that renders it.
type View = server.View

// Server serves registered views over HTTP and WebSocket.
type Server = server.Server

// NewServer creates a server over the given executor and store.
var NewServer = server.New

// =============================================================================
// Bundles (re-export from pkg/bundle)
// =============================================================================

// BundleStore stores client-side activation bundles.
type BundleStore = bundle.Store

// NewMemoryBundleStore creates an in-process bundle store.
var NewMemoryBundleStore = bundle.NewMemoryStore
