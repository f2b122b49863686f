package executor

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/strata-dev/strata/pkg/memo"
	"github.com/strata-dev/strata/pkg/tree"
)

// Spec is one node of a view descriptor. It names the producer that
// computes the node, the arguments to hand it, and any statically
// declared children. Children listed here render before children the
// producer returns.
type Spec struct {
	Producer string

	// Key is the node's explicit identity among its siblings. Nodes
	// in lists should carry one so their identity survives reorder.
	Key string

	Args map[string]any

	Children []Spec
}

// result is what gets memoized for a cacheable producer: the payload,
// the child specs it produced, and whether it read ambient data.
type result struct {
	Payload  any
	Children []Spec
	Ambient  bool
}

// Executor renders view descriptors into trees, consulting the
// memoization store for cacheable producers.
type Executor struct {
	reg    *Registry
	store  *memo.Store
	tracer trace.Tracer

	mu       sync.Mutex
	versions map[string]uint64
}

// New creates an executor over the given registry and store.
func New(reg *Registry, store *memo.Store) *Executor {
	return &Executor{
		reg:      reg,
		store:    store,
		tracer:   otel.Tracer("strata/executor"),
		versions: make(map[string]uint64),
	}
}

// Render walks the descriptor depth-first and returns the resulting
// tree with stable IDs assigned and verified. The tier comes from the
// route classifier; individual producers can only push a node toward
// Dynamic, never toward more caching.
func (e *Executor) Render(ctx context.Context, spec Spec, tier tree.Tier, req *Request) (*tree.Tree, error) {
	ctx, span := e.tracer.Start(ctx, "executor.render", trace.WithAttributes(
		attribute.String("view", req.View()),
		attribute.String("tier", tier.String()),
	))
	defer span.End()

	root, err := e.renderNode(ctx, spec, tier, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	tree.AssignIDs(root)
	t := &tree.Tree{Root: root, Version: e.nextVersion(req.View())}
	if err := tree.Verify(t); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return t, nil
}

func (e *Executor) renderNode(ctx context.Context, spec Spec, tier tree.Tier, req *Request) (*tree.Node, error) {
	p, ok := e.reg.Lookup(spec.Producer)
	if !ok {
		return nil, &ProducerError{Producer: spec.Producer, Err: fmt.Errorf("not registered")}
	}
	nodeTier := maxTier(tier, p.Tier)

	if p.Mode == Placeholder {
		// Arguments are captured verbatim; the subtree expands on
		// the consuming side after activation.
		return &tree.Node{
			Kind:       tree.KindPlaceholder,
			Tier:       nodeTier,
			Key:        spec.Key,
			Activation: &tree.Activation{Bundle: p.Bundle, Args: spec.Args},
		}, nil
	}

	res, err := e.produce(ctx, p, spec, nodeTier, req)
	if err != nil {
		if p.Fatal {
			return nil, &ProducerError{Producer: p.Name, Err: err}
		}
		return &tree.Node{
			Kind:    tree.KindError,
			Tier:    nodeTier,
			Key:     spec.Key,
			Payload: err.Error(),
		}, nil
	}

	node := &tree.Node{
		Kind:    tree.KindInert,
		Tier:    nodeTier,
		Key:     spec.Key,
		Payload: res.Payload,
	}
	children := make([]Spec, 0, len(spec.Children)+len(res.Children))
	children = append(children, spec.Children...)
	children = append(children, res.Children...)
	for _, cs := range children {
		child, err := e.renderNode(ctx, cs, tier, req)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// produce runs the producer, through the store for cacheable work on
// static tiers and directly otherwise.
func (e *Executor) produce(ctx context.Context, p *Producer, spec Spec, tier tree.Tier, req *Request) (result, error) {
	if p.Mode == AlwaysFresh || tier == tree.TierDynamic {
		payload, children, err := p.Fn(ctx, req, spec.Args)
		return result{Payload: payload, Children: children}, err
	}

	// Route parameters feed producers alongside spec args, so both
	// belong in the key.
	key, err := memo.Key(p.Name, map[string]any{"args": spec.Args, "params": req.params})
	if err != nil {
		return result{}, err
	}
	pol := memo.Policy{
		Tier:            tier,
		RevalidateAfter: p.Revalidate,
		Stale:           p.Stale,
		Tags:            p.Tags,
	}
	var computedHere bool
	v, err := e.store.GetOrCompute(ctx, key, pol, func(cctx context.Context) (any, error) {
		computedHere = true
		freq := req.fork()
		payload, children, err := p.Fn(cctx, freq, spec.Args)
		if err != nil {
			return nil, err
		}
		return result{Payload: payload, Children: children, Ambient: freq.AmbientTouched()}, nil
	})
	if err != nil {
		return result{}, err
	}
	res := v.(result)
	if res.Ambient {
		// A producer that read caller-specific data was classified
		// cacheable. Its output is valid for the caller whose request
		// computed it and nobody else: drop the entry, and if this
		// caller was served someone else's value (a coalesced waiter,
		// or a hit before the computing caller's invalidation landed),
		// recompute directly on this caller's own request.
		e.store.Invalidate(key)
		if !computedHere {
			freq := req.fork()
			payload, children, err := p.Fn(ctx, freq, spec.Args)
			if err != nil {
				return result{}, err
			}
			return result{Payload: payload, Children: children, Ambient: true}, nil
		}
	}
	return res, nil
}

// Fetch computes a registered producer's payload outside a tree walk.
// Producers call this from their own functions to read another
// producer's cached output; doing so inside a memoized computation
// records the dependency edge, so invalidating the fetched key also
// invalidates the caller's entry.
func (e *Executor) Fetch(ctx context.Context, name string, args map[string]any) (any, error) {
	p, ok := e.reg.Lookup(name)
	if !ok {
		return nil, &ProducerError{Producer: name, Err: fmt.Errorf("not registered")}
	}
	if p.Mode == Placeholder {
		return nil, &ProducerError{Producer: name, Err: fmt.Errorf("placeholder producers cannot be fetched")}
	}

	tier := p.Tier
	if p.Mode == AlwaysFresh {
		tier = tree.TierDynamic
	}
	key, err := memo.Key(p.Name, args)
	if err != nil {
		return nil, err
	}
	pol := memo.Policy{
		Tier:            tier,
		RevalidateAfter: p.Revalidate,
		Stale:           p.Stale,
		Tags:            p.Tags,
	}
	v, err := e.store.GetOrCompute(ctx, key, pol, func(cctx context.Context) (any, error) {
		payload, _, err := p.Fn(cctx, NewRequest("", nil), args)
		if err != nil {
			return nil, err
		}
		return result{Payload: payload}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(result).Payload, nil
}

func (e *Executor) nextVersion(view string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.versions[view]++
	return e.versions[view]
}

// maxTier returns the more dynamic of the two tiers.
func maxTier(a, b tree.Tier) tree.Tier {
	if b > a {
		return b
	}
	return a
}
