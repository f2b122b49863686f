package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/strata-dev/strata/pkg/executor"
	"github.com/strata-dev/strata/pkg/route"
	"github.com/strata-dev/strata/pkg/tree"
)

// prerenderConcurrency bounds parallel warm-up renders.
const prerenderConcurrency = 4

// Prerender warms the cache for every build-static view by rendering
// each of its enumerated parameter sets once. Views that are not
// build-static are skipped; a view with no PrerenderParams renders
// once with no parameters.
func (s *Server) Prerender(ctx context.Context) error {
	s.mu.RLock()
	views := make(map[string]View, len(s.views))
	for name, v := range s.views {
		views[name] = v
	}
	s.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prerenderConcurrency)

	for name, v := range views {
		if route.Classify(v.Descriptor) != tree.TierBuildStatic {
			continue
		}
		paramSets := v.PrerenderParams
		if len(paramSets) == 0 {
			paramSets = []map[string]string{nil}
		}
		for _, params := range paramSets {
			name, v, params := name, v, params
			g.Go(func() error {
				req := executor.NewRequest(name, params)
				_, err := s.exec.Render(ctx, v.Spec, tree.TierBuildStatic, req)
				if err != nil {
					s.logger.Error("prerender failed", "view", name, "error", err)
					return err
				}
				return nil
			})
		}
	}
	return g.Wait()
}
