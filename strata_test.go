package strata_test

import (
	"context"
	"testing"

	"github.com/strata-dev/strata"
)

func TestFacadeRenderPipeline(t *testing.T) {
	reg := strata.NewRegistry()
	err := reg.Register(strata.Producer{
		Name: "page",
		Mode: strata.Cacheable,
		Fn: func(ctx context.Context, req *strata.Request, args map[string]any) (any, []strata.Spec, error) {
			return "welcome", nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	store := strata.NewStore()
	defer store.Shutdown(context.Background())
	exec := strata.NewExecutor(reg, store)

	desc := strata.Descriptor{Name: "home", EnumerableParams: true}
	if tier := strata.Classify(desc); tier != strata.TierBuildStatic {
		t.Fatalf("tier = %v", tier)
	}

	first, err := exec.Render(context.Background(), strata.Spec{Producer: "page"},
		strata.TierBuildStatic, strata.NewRequest("home", nil))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if first.Root.Payload != "welcome" {
		t.Errorf("payload = %v", first.Root.Payload)
	}

	second, err := exec.Render(context.Background(), strata.Spec{Producer: "page"},
		strata.TierBuildStatic, strata.NewRequest("home", nil))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if d := strata.Diff(first, second); !d.Empty() {
		t.Errorf("identical renders diff = %+v", d)
	}
}
