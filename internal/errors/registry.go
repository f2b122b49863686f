package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Cache Errors (E001-E099)
	// ============================================

	"E001": {
		Category: CategoryCache,
		Message:  "Cyclic producer dependency",
		Detail:   "The key-dependency graph among cached producers must form a DAG. A cycle would deadlock nested memoization, so registration fails instead.",
		DocURL:   "https://strata.dev/docs/errors/E001",
	},
	"E002": {
		Category: CategoryCache,
		Message:  "Store is shut down",
		Detail:   "GetOrCompute was called after Shutdown. Cache handles must not outlive their lifecycle owner.",
		DocURL:   "https://strata.dev/docs/errors/E002",
	},
	"E003": {
		Category: CategoryCache,
		Message:  "Cache key not canonicalizable",
		Detail:   "Producer arguments could not be canonicalized into a cache key. Arguments must be JSON-encodable.",
		DocURL:   "https://strata.dev/docs/errors/E003",
	},

	// ============================================
	// Render Errors (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryRender,
		Message:  "Producer failed",
		Detail:   "A node producer returned an error. Non-fatal producers are replaced by an error node; fatal ones abort the render.",
		DocURL:   "https://strata.dev/docs/errors/E100",
	},
	"E101": {
		Category: CategoryRender,
		Message:  "Duplicate stable ID",
		Detail:   "Two nodes in one tree claim the same stable ID, usually from duplicate explicit keys among siblings. The render is rejected before serialization.",
		DocURL:   "https://strata.dev/docs/errors/E101",
	},
	"E102": {
		Category: CategoryRender,
		Message:  "Producer not registered",
		Detail:   "A view descriptor references a producer name that was never registered.",
		DocURL:   "https://strata.dev/docs/errors/E102",
	},

	// ============================================
	// Payload Errors (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryPayload,
		Message:  "Payload value not encodable",
		Detail:   "A node payload has no wire encoding and is not JSON-marshalable. The subtree cannot be serialized.",
		DocURL:   "https://strata.dev/docs/errors/E200",
	},
	"E201": {
		Category: CategoryPayload,
		Message:  "Malformed wire payload",
		Detail:   "A snapshot, diff, or manifest failed to decode. The frame is discarded.",
		DocURL:   "https://strata.dev/docs/errors/E201",
	},

	// ============================================
	// Hydration Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryHydration,
		Message:  "No activator for bundle",
		Detail:   "A placeholder references a bundle locator with no registered activator on the consuming side.",
		DocURL:   "https://strata.dev/docs/errors/E300",
	},
	"E301": {
		Category: CategoryHydration,
		Message:  "Diff before snapshot",
		Detail:   "A navigation diff arrived before any full snapshot. The session has no tree to patch.",
		DocURL:   "https://strata.dev/docs/errors/E301",
	},

	// ============================================
	// Config Errors (E400-E499)
	// ============================================

	"E400": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "strata.json could not be parsed or failed validation.",
		DocURL:   "https://strata.dev/docs/errors/E400",
	},

	// ============================================
	// Server Errors (E500-E599)
	// ============================================

	"E500": {
		Category: CategoryServer,
		Message:  "View not found",
		Detail:   "The requested view name is not registered with the server.",
		DocURL:   "https://strata.dev/docs/errors/E500",
	},
}

// Lookup returns the registered template for a code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
