package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strata-dev/strata/pkg/memo"
	"github.com/strata-dev/strata/pkg/tree"
)

func newTestExecutor(t *testing.T, producers ...Producer) *Executor {
	t.Helper()
	reg := NewRegistry()
	for _, p := range producers {
		if err := reg.Register(p); err != nil {
			t.Fatalf("Register(%s): %v", p.Name, err)
		}
	}
	return New(reg, memo.New())
}

func staticProducer(name string, payload any, calls *atomic.Int64) Producer {
	return Producer{
		Name: name,
		Mode: Cacheable,
		Fn: func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error) {
			if calls != nil {
				calls.Add(1)
			}
			return payload, nil, nil
		},
	}
}

func TestRenderCachesStaticProducers(t *testing.T) {
	var calls atomic.Int64
	e := newTestExecutor(t, staticProducer("page", "hello", &calls))
	spec := Spec{Producer: "page"}

	for i := 0; i < 3; i++ {
		tr, err := e.Render(context.Background(), spec, tree.TierBuildStatic, NewRequest("docs", nil))
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if tr.Root.Payload != "hello" {
			t.Fatalf("payload = %v", tr.Root.Payload)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("producer ran %d times across cached renders, want 1", calls.Load())
	}
}

func TestRenderDynamicBypassesCache(t *testing.T) {
	var calls atomic.Int64
	e := newTestExecutor(t, staticProducer("page", "hello", &calls))
	spec := Spec{Producer: "page"}

	for i := 0; i < 3; i++ {
		if _, err := e.Render(context.Background(), spec, tree.TierDynamic, NewRequest("cart", nil)); err != nil {
			t.Fatalf("Render: %v", err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("dynamic render ran producer %d times, want 3", calls.Load())
	}
}

func TestRenderVersionIncrementsPerView(t *testing.T) {
	e := newTestExecutor(t, staticProducer("page", "x", nil))
	spec := Spec{Producer: "page"}

	t1, _ := e.Render(context.Background(), spec, tree.TierBuildStatic, NewRequest("docs", nil))
	t2, _ := e.Render(context.Background(), spec, tree.TierBuildStatic, NewRequest("docs", nil))
	other, _ := e.Render(context.Background(), spec, tree.TierBuildStatic, NewRequest("home", nil))

	if t1.Version != 1 || t2.Version != 2 {
		t.Errorf("docs versions = %d, %d; want 1, 2", t1.Version, t2.Version)
	}
	if other.Version != 1 {
		t.Errorf("home version = %d, want 1", other.Version)
	}
}

func TestRenderSubstitutesErrorNode(t *testing.T) {
	boom := errors.New("db down")
	e := newTestExecutor(t,
		staticProducer("layout", "layout", nil),
		staticProducer("sidebar", "sidebar", nil),
		Producer{
			Name: "feed",
			Mode: AlwaysFresh,
			Fn: func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error) {
				return nil, nil, boom
			},
		},
	)
	spec := Spec{Producer: "layout", Children: []Spec{
		{Producer: "feed", Key: "feed"},
		{Producer: "sidebar", Key: "side"},
	}}

	tr, err := e.Render(context.Background(), spec, tree.TierRuntimeStatic, NewRequest("home", nil))
	if err != nil {
		t.Fatalf("Render should contain the failure, got %v", err)
	}
	if len(tr.Root.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(tr.Root.Children))
	}
	failed := tr.Root.Children[0]
	if failed.Kind != tree.KindError {
		t.Errorf("failed child kind = %v, want error", failed.Kind)
	}
	if sibling := tr.Root.Children[1]; sibling.Kind != tree.KindInert || sibling.Payload != "sidebar" {
		t.Errorf("sibling was disturbed: kind=%v payload=%v", sibling.Kind, sibling.Payload)
	}
}

func TestRenderFatalProducerAbortsRender(t *testing.T) {
	boom := errors.New("no auth backend")
	e := newTestExecutor(t,
		staticProducer("layout", "layout", nil),
		Producer{
			Name:  "auth",
			Mode:  AlwaysFresh,
			Fatal: true,
			Fn: func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error) {
				return nil, nil, boom
			},
		},
	)
	spec := Spec{Producer: "layout", Children: []Spec{{Producer: "auth"}}}

	_, err := e.Render(context.Background(), spec, tree.TierDynamic, NewRequest("account", nil))
	var perr *ProducerError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProducerError, got %v", err)
	}
	if perr.Producer != "auth" || !errors.Is(err, boom) {
		t.Errorf("error = %v", err)
	}
}

func TestRenderCapturesPlaceholderWithoutExecuting(t *testing.T) {
	e := newTestExecutor(t,
		staticProducer("page", "page", nil),
		Producer{
			Name:   "chart",
			Mode:   Placeholder,
			Bundle: "widgets/chart.js",
			Fn: func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error) {
				panic("placeholder producer must not run on the server")
			},
		},
	)
	spec := Spec{Producer: "page", Children: []Spec{
		{Producer: "chart", Key: "ch", Args: map[string]any{"series": "revenue"}},
	}}

	tr, err := e.Render(context.Background(), spec, tree.TierBuildStatic, NewRequest("dash", nil))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	ph := tr.Root.Children[0]
	if ph.Kind != tree.KindPlaceholder {
		t.Fatalf("kind = %v, want placeholder", ph.Kind)
	}
	if ph.Activation == nil || ph.Activation.Bundle != "widgets/chart.js" {
		t.Fatalf("activation = %+v", ph.Activation)
	}
	if ph.Activation.Args["series"] != "revenue" {
		t.Errorf("ctor args not captured verbatim: %+v", ph.Activation.Args)
	}
	if len(ph.Children) != 0 {
		t.Errorf("placeholder subtree was expanded server-side")
	}
}

func TestRenderAmbientReadDisablesSharing(t *testing.T) {
	var calls atomic.Int64
	e := newTestExecutor(t, Producer{
		Name: "greeting",
		Mode: Cacheable,
		Fn: func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error) {
			calls.Add(1)
			user, _ := req.Ambient("user")
			return user, nil, nil
		},
	})
	spec := Spec{Producer: "greeting"}

	reqA := NewRequest("home", nil)
	reqA.SetAmbient("user", "ada")
	trA, err := e.Render(context.Background(), spec, tree.TierBuildStatic, reqA)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if trA.Root.Payload != "ada" {
		t.Fatalf("payload = %v", trA.Root.Payload)
	}

	// The entry was dropped, so a second caller recomputes and gets
	// its own data rather than the first caller's.
	reqB := NewRequest("home", nil)
	reqB.SetAmbient("user", "grace")
	trB, err := e.Render(context.Background(), spec, tree.TierBuildStatic, reqB)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if trB.Root.Payload != "grace" {
		t.Errorf("second caller served first caller's data: %v", trB.Root.Payload)
	}
	if calls.Load() != 2 {
		t.Errorf("producer ran %d times, want 2", calls.Load())
	}
}

func TestProducerTierHintPushesTowardDynamic(t *testing.T) {
	var calls atomic.Int64
	e := newTestExecutor(t, Producer{
		Name: "cart",
		Mode: Cacheable,
		Tier: tree.TierDynamic,
		Fn: func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error) {
			calls.Add(1)
			return "items", nil, nil
		},
	})
	spec := Spec{Producer: "cart"}

	for i := 0; i < 3; i++ {
		tr, err := e.Render(context.Background(), spec, tree.TierBuildStatic, NewRequest("shop", nil))
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if tr.Root.Tier != tree.TierDynamic {
			t.Fatalf("node tier = %v", tr.Root.Tier)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("dynamic-hinted producer ran %d times, want 3", calls.Load())
	}
}

func TestRenderAmbientNotSharedAcrossConcurrentCallers(t *testing.T) {
	firstIn := make(chan struct{})
	release := make(chan struct{})
	var entered atomic.Int64
	e := newTestExecutor(t, Producer{
		Name: "greeting",
		Mode: Cacheable,
		Fn: func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error) {
			if entered.Add(1) == 1 {
				close(firstIn)
				<-release
			}
			user, _ := req.Ambient("user")
			return user, nil, nil
		},
	})
	spec := Spec{Producer: "greeting"}

	render := func(user string) (any, error) {
		req := NewRequest("home", nil)
		req.SetAmbient("user", user)
		tr, err := e.Render(context.Background(), spec, tree.TierBuildStatic, req)
		if err != nil {
			return nil, err
		}
		return tr.Root.Payload, nil
	}

	type outcome struct {
		payload any
		err     error
	}
	adaCh := make(chan outcome, 1)
	graceCh := make(chan outcome, 1)
	go func() {
		p, err := render("ada")
		adaCh <- outcome{p, err}
	}()
	<-firstIn
	go func() {
		p, err := render("grace")
		graceCh <- outcome{p, err}
	}()
	// Let the second caller reach the in-flight computation before
	// it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)

	ada := <-adaCh
	grace := <-graceCh
	if ada.err != nil || grace.err != nil {
		t.Fatalf("render errors: %v, %v", ada.err, grace.err)
	}
	if ada.payload != "ada" {
		t.Errorf("first caller payload = %v", ada.payload)
	}
	if grace.payload != "grace" {
		t.Errorf("second caller served another caller's ambient-derived value: %v", grace.payload)
	}
}

func TestRenderRejectsDuplicateSiblingKeys(t *testing.T) {
	e := newTestExecutor(t, staticProducer("page", "x", nil), staticProducer("item", "y", nil))
	spec := Spec{Producer: "page", Children: []Spec{
		{Producer: "item", Key: "dup"},
		{Producer: "item", Key: "dup"},
	}}

	_, err := e.Render(context.Background(), spec, tree.TierBuildStatic, NewRequest("docs", nil))
	var cerr *tree.IDConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *tree.IDConflictError, got %v", err)
	}
}

func TestRegisterRejectsDependencyCycle(t *testing.T) {
	reg := NewRegistry()
	fn := func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error) {
		return nil, nil, nil
	}
	if err := reg.Register(Producer{Name: "a", Fn: fn, DependsOn: []string{"b"}}); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	err := reg.Register(Producer{Name: "b", Fn: fn, DependsOn: []string{"a"}})
	var cerr *memo.CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *memo.CycleError, got %v", err)
	}
}

func TestFetchRecordsDependencyForInvalidation(t *testing.T) {
	var pageCalls atomic.Int64
	reg := NewRegistry()
	store := memo.New()
	e := New(reg, store)

	if err := reg.Register(Producer{
		Name: "nav",
		Mode: Cacheable,
		Tags: []string{"nav"},
		Fn: func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error) {
			return []string{"home", "docs"}, nil, nil
		},
	}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(Producer{
		Name:      "page",
		Mode:      Cacheable,
		DependsOn: []string{"nav"},
		Fn: func(ctx context.Context, req *Request, args map[string]any) (any, []Spec, error) {
			pageCalls.Add(1)
			nav, err := e.Fetch(ctx, "nav", nil)
			if err != nil {
				return nil, nil, err
			}
			return nav, nil, nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	spec := Spec{Producer: "page"}
	if _, err := e.Render(context.Background(), spec, tree.TierBuildStatic, NewRequest("docs", nil)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := e.Render(context.Background(), spec, tree.TierBuildStatic, NewRequest("docs", nil)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if pageCalls.Load() != 1 {
		t.Fatalf("page producer ran %d times before invalidation", pageCalls.Load())
	}

	// Invalidating nav must take the dependent page entry with it.
	store.InvalidateTag("nav")
	if _, err := e.Render(context.Background(), spec, tree.TierBuildStatic, NewRequest("docs", nil)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if pageCalls.Load() != 2 {
		t.Errorf("page producer ran %d times, want 2 after dependency invalidation", pageCalls.Load())
	}
}
