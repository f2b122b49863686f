package route

import (
	"github.com/strata-dev/strata/pkg/tree"
)

// Descriptor declares how a view consumes its input. The flags are
// set by whoever registers the view; nothing here is inferred.
type Descriptor struct {
	// Name identifies the view, e.g. "docs.page".
	Name string

	// EnumerableParams is true when every parameter combination the
	// view accepts can be listed ahead of time (or the view takes no
	// parameters at all).
	EnumerableParams bool

	// ReadsRequestData is true when the view reads caller-specific
	// ambient data such as cookies, headers, or session state. Such
	// views must never share cached output between callers.
	ReadsRequestData bool

	// ForceDynamic opts the view out of caching regardless of the
	// other flags.
	ForceDynamic bool
}

// Classify maps a descriptor onto a cache tier.
//
//   - ForceDynamic or ReadsRequestData: Dynamic.
//   - EnumerableParams and no ambient reads: BuildStatic.
//   - Otherwise: RuntimeStatic.
func Classify(d Descriptor) tree.Tier {
	if d.ForceDynamic || d.ReadsRequestData {
		return tree.TierDynamic
	}
	if d.EnumerableParams {
		return tree.TierBuildStatic
	}
	return tree.TierRuntimeStatic
}
