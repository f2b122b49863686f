package memo

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/strata-dev/strata/pkg/tree"
)

// ErrStoreClosed is returned by GetOrCompute after Shutdown.
var ErrStoreClosed = errors.New("memo: store is closed")

// StalePolicy controls what happens when a RuntimeStatic entry is read
// after its revalidation window has passed.
type StalePolicy int

const (
	// ServeStaleThenSwap returns the expired value immediately and
	// refreshes it in the background. At most one refresh runs per key.
	ServeStaleThenSwap StalePolicy = iota

	// BlockUntilFresh discards the expired value and makes the caller
	// wait for a fresh computation.
	BlockUntilFresh
)

// Policy describes how one cache entry is retained.
type Policy struct {
	Tier tree.Tier

	// RevalidateAfter is the freshness window for RuntimeStatic
	// entries. Ignored for BuildStatic (never expires in-process)
	// and Dynamic (never stored).
	RevalidateAfter time.Duration

	Stale StalePolicy

	// Tags name invalidation groups this entry belongs to.
	Tags []string
}

// ComputeFunc produces the value for a cache entry. The context it
// receives is detached from any single caller: it is cancelled only
// when every waiter on the computation has gone away.
type ComputeFunc func(ctx context.Context) (any, error)

type entry struct {
	value      any
	computedAt time.Time
	policy     Policy
	refreshing bool
}

type flightState struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
	gen     uint64
}

// Store is the tiered memoization cache. BuildStatic entries live for
// the process lifetime, RuntimeStatic entries expire after their
// revalidation window, Dynamic computations pass straight through.
// Concurrent computations of the same key are coalesced.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	byTag   map[string]map[string]struct{}
	pending map[string]*flightState
	closed  bool

	// dependents[k] holds keys whose computation read k. Edges
	// outlive the entries so invalidation propagates even across
	// recomputation.
	dependents map[string]map[string]struct{}

	// gen[k] counts invalidations of k. A computation that started
	// before an invalidation must not store its result afterwards;
	// comparing generations at store time catches that.
	gen map[string]uint64

	flight  singleflight.Group
	refresh sync.WaitGroup

	now     func() time.Time
	metrics *Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source. Used by tests to step through
// revalidation windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics attaches Prometheus instruments to the store.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:    make(map[string]*entry),
		byTag:      make(map[string]map[string]struct{}),
		pending:    make(map[string]*flightState),
		dependents: make(map[string]map[string]struct{}),
		gen:        make(map[string]uint64),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ctxKey struct{}

// withComputeKey marks a context as belonging to the computation of
// key, so nested GetOrCompute calls can record a dependency edge.
func withComputeKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

// ComputingKey reports which cache key the given context is computing,
// if any.
func ComputingKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(ctxKey{}).(string)
	return key, ok
}

// GetOrCompute returns the cached value for key, computing it with fn
// when the cache cannot serve it. Behavior depends on pol.Tier:
//
//   - Dynamic: fn runs on every call, nothing is stored.
//   - BuildStatic: the first computed value is returned forever.
//   - RuntimeStatic: the value is fresh for pol.RevalidateAfter; after
//     that, pol.Stale decides between serving stale and blocking.
//
// When the calling context itself belongs to a computation (a producer
// reading another producer's output), a dependency edge is recorded so
// invalidating key also invalidates the caller's entry.
func (s *Store) GetOrCompute(ctx context.Context, key string, pol Policy, fn ComputeFunc) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	if parent, ok := ComputingKey(ctx); ok && parent != key {
		s.recordDependencyLocked(key, parent)
	}

	if pol.Tier == tree.TierDynamic {
		s.mu.Unlock()
		s.metrics.recordBypass()
		return fn(withComputeKey(ctx, key))
	}

	if e, ok := s.entries[key]; ok {
		if s.freshLocked(e) {
			v := e.value
			s.mu.Unlock()
			s.metrics.recordHit()
			return v, nil
		}
		if e.policy.Stale == ServeStaleThenSwap {
			v := e.value
			if !e.refreshing {
				e.refreshing = true
				s.startRefreshLocked(key, pol, fn)
			}
			s.mu.Unlock()
			s.metrics.recordStaleServed()
			return v, nil
		}
		// BlockUntilFresh: fall through to a coalesced compute.
	}
	s.metrics.recordMiss()
	return s.computeLocked(ctx, key, pol, fn)
}

func (s *Store) freshLocked(e *entry) bool {
	if e.policy.Tier == tree.TierBuildStatic {
		return true
	}
	return s.now().Before(e.computedAt.Add(e.policy.RevalidateAfter))
}

// computeLocked runs fn through the single-flight group. It is entered
// with s.mu held and returns with it released.
func (s *Store) computeLocked(ctx context.Context, key string, pol Policy, fn ComputeFunc) (any, error) {
	fs, ok := s.pending[key]
	if ok {
		fs.waiters++
		s.metrics.recordCoalesced()
	} else {
		cctx, cancel := context.WithCancel(context.Background())
		fs = &flightState{ctx: withComputeKey(cctx, key), cancel: cancel, waiters: 1, gen: s.gen[key]}
		s.pending[key] = fs
	}
	s.mu.Unlock()

	ch := s.flight.DoChan(key, func() (any, error) {
		v, err := fn(fs.ctx)
		s.mu.Lock()
		delete(s.pending, key)
		if err == nil && !s.closed && s.gen[key] == fs.gen {
			s.storeLocked(key, pol, v)
		}
		s.mu.Unlock()
		if err != nil {
			s.metrics.recordFailure()
		}
		return v, err
	})

	select {
	case res := <-ch:
		fs.cancel()
		return res.Val, res.Err
	case <-ctx.Done():
		s.mu.Lock()
		fs.waiters--
		last := fs.waiters == 0
		s.mu.Unlock()
		if last {
			fs.cancel()
			s.flight.Forget(key)
		}
		return nil, ctx.Err()
	}
}

// startRefreshLocked launches the background revalidation for a stale
// entry. Caller holds s.mu and has already set the refreshing flag.
func (s *Store) startRefreshLocked(key string, pol Policy, fn ComputeFunc) {
	s.metrics.recordRefresh()
	s.refresh.Add(1)
	gen := s.gen[key]
	cctx, cancel := context.WithCancel(context.Background())
	cctx = withComputeKey(cctx, key)
	go func() {
		defer s.refresh.Done()
		defer cancel()
		v, err := fn(cctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.entries[key]; ok {
			e.refreshing = false
		}
		if err != nil {
			// The stale value stays serveable; the next stale
			// read triggers another refresh.
			return
		}
		// An invalidation that landed mid-refresh wins: the result
		// is dropped rather than resurrecting the evicted key.
		if !s.closed && s.gen[key] == gen {
			s.storeLocked(key, pol, v)
		}
	}()
}

func (s *Store) storeLocked(key string, pol Policy, v any) {
	s.entries[key] = &entry{value: v, computedAt: s.now(), policy: pol}
	for _, tag := range pol.Tags {
		set, ok := s.byTag[tag]
		if !ok {
			set = make(map[string]struct{})
			s.byTag[tag] = set
		}
		set[key] = struct{}{}
	}
	s.metrics.setEntries(len(s.entries))
}

func (s *Store) recordDependencyLocked(key, dependent string) {
	set, ok := s.dependents[key]
	if !ok {
		set = make(map[string]struct{})
		s.dependents[key] = set
	}
	set[dependent] = struct{}{}
}

// Invalidate removes key and, transitively, every entry that depends
// on it. It returns the number of entries removed.
func (s *Store) Invalidate(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.invalidateLocked(key, make(map[string]struct{}))
	s.metrics.recordInvalidation("key", n)
	s.metrics.setEntries(len(s.entries))
	return n
}

// InvalidateTag removes every entry carrying tag, plus dependents.
func (s *Store) InvalidateTag(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	visited := make(map[string]struct{})
	n := 0
	for key := range s.byTag[tag] {
		n += s.invalidateLocked(key, visited)
	}
	delete(s.byTag, tag)
	s.metrics.recordInvalidation("tag", n)
	s.metrics.setEntries(len(s.entries))
	return n
}

func (s *Store) invalidateLocked(key string, visited map[string]struct{}) int {
	if _, ok := visited[key]; ok {
		return 0
	}
	visited[key] = struct{}{}
	s.gen[key]++
	n := 0
	if _, ok := s.entries[key]; ok {
		delete(s.entries, key)
		for _, set := range s.byTag {
			delete(set, key)
		}
		n = 1
	}
	for dep := range s.dependents[key] {
		n += s.invalidateLocked(dep, visited)
	}
	return n
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Shutdown stops the store. In-flight coalesced computations are
// cancelled; background refreshes are waited for until ctx expires.
// Subsequent GetOrCompute calls return ErrStoreClosed.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for key, fs := range s.pending {
		fs.cancel()
		s.flight.Forget(key)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.refresh.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
