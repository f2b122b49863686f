package executor

import "sync"

// Request carries per-request data explicitly through producer calls.
// There is no ambient fallback: a producer that wants caller-specific
// state must read it here, and every read is recorded so the executor
// can tell when a supposedly cacheable producer depended on it.
type Request struct {
	view   string
	params map[string]string

	ambient *ambientData

	mu      sync.Mutex
	touched bool
}

type ambientData struct {
	mu     sync.Mutex
	values map[string]any
}

// NewRequest creates a request for the named view with its route
// parameters.
func NewRequest(view string, params map[string]string) *Request {
	return &Request{
		view:    view,
		params:  params,
		ambient: &ambientData{values: make(map[string]any)},
	}
}

// View returns the view name this request renders.
func (r *Request) View() string { return r.view }

// Param returns a route parameter. Parameters are part of the cache
// key, so reading them does not mark the request ambient-dependent.
func (r *Request) Param(key string) string { return r.params[key] }

// SetAmbient attaches caller-specific data (session, locale, auth)
// to the request.
func (r *Request) SetAmbient(key string, v any) {
	r.ambient.mu.Lock()
	r.ambient.values[key] = v
	r.ambient.mu.Unlock()
}

// Ambient reads caller-specific data and records that the read
// happened. Output computed after an ambient read must not be shared
// across callers.
func (r *Request) Ambient(key string) (any, bool) {
	r.mu.Lock()
	r.touched = true
	r.mu.Unlock()

	r.ambient.mu.Lock()
	defer r.ambient.mu.Unlock()
	v, ok := r.ambient.values[key]
	return v, ok
}

// AmbientTouched reports whether Ambient has been called on this
// request handle.
func (r *Request) AmbientTouched() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touched
}

// fork returns a handle sharing the same view, params, and ambient
// data but with an independent read marker. The executor gives each
// cacheable producer its own fork so ambient reads are attributed to
// the producer that made them.
func (r *Request) fork() *Request {
	return &Request{view: r.view, params: r.params, ambient: r.ambient}
}
