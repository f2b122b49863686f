package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/strata-dev/strata/pkg/memo"
	"github.com/strata-dev/strata/pkg/tree"
)

// Mode declares how the executor invokes a producer.
type Mode int

const (
	// Cacheable producers run through the memoization store when the
	// view's tier allows it.
	Cacheable Mode = iota

	// AlwaysFresh producers run on every render and are never stored.
	AlwaysFresh

	// Placeholder producers are not invoked on the server. Their
	// arguments are captured for client-side activation.
	Placeholder
)

func (m Mode) String() string {
	switch m {
	case Cacheable:
		return "cacheable"
	case AlwaysFresh:
		return "always-fresh"
	case Placeholder:
		return "placeholder"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ProduceFunc computes one node. It returns the node's payload and,
// optionally, child specs to render beneath it.
type ProduceFunc func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error)

// Producer is a registered node computation.
type Producer struct {
	// Name identifies the producer and prefixes its cache keys.
	Name string

	Mode Mode

	// Tier hints the node's minimum caching lifetime. The effective
	// tier of a rendered node is the more dynamic of this hint and
	// the view's tier.
	Tier tree.Tier

	// Fatal aborts the whole render when this producer fails,
	// instead of substituting an error node.
	Fatal bool

	// DependsOn lists producers whose cached output this producer
	// reads. Declared up front so dependency cycles are caught at
	// registration, not at first invocation.
	DependsOn []string

	// Tags group this producer's cache entries for bulk
	// invalidation.
	Tags []string

	// Revalidate and Stale configure RuntimeStatic cache entries.
	Revalidate time.Duration
	Stale      memo.StalePolicy

	// Bundle locates the activation code for Placeholder producers.
	Bundle string

	Fn ProduceFunc
}

// ProducerError wraps a failure from a single producer invocation.
type ProducerError struct {
	Producer string
	Err      error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("executor: producer %q failed: %v", e.Producer, e.Err)
}

func (e *ProducerError) Unwrap() error { return e.Err }

// Registry holds the producers a view graph may reference. Dependency
// edges between producers are validated against a DAG as they are
// registered.
type Registry struct {
	producers map[string]*Producer
	graph     *memo.Graph
}

// NewRegistry creates an empty producer registry.
func NewRegistry() *Registry {
	return &Registry{
		producers: make(map[string]*Producer),
		graph:     memo.NewGraph(),
	}
}

// Register adds a producer. It fails on duplicate names, on
// Placeholder producers without a bundle, on non-Placeholder
// producers without a function, and on dependency edges that would
// close a cycle.
func (r *Registry) Register(p Producer) error {
	if p.Name == "" {
		return fmt.Errorf("executor: producer has no name")
	}
	if _, exists := r.producers[p.Name]; exists {
		return fmt.Errorf("executor: producer %q already registered", p.Name)
	}
	switch p.Mode {
	case Placeholder:
		if p.Bundle == "" {
			return fmt.Errorf("executor: placeholder producer %q has no bundle", p.Name)
		}
	default:
		if p.Fn == nil {
			return fmt.Errorf("executor: producer %q has no function", p.Name)
		}
	}

	r.graph.AddNode(p.Name)
	for _, dep := range p.DependsOn {
		if err := r.graph.AddEdge(p.Name, dep); err != nil {
			return err
		}
	}
	r.producers[p.Name] = &p
	return nil
}

// Lookup returns the named producer.
func (r *Registry) Lookup(name string) (*Producer, bool) {
	p, ok := r.producers[name]
	return p, ok
}
