package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	strataerrors "github.com/strata-dev/strata/internal/errors"
	"github.com/strata-dev/strata/pkg/bundle"
	"github.com/strata-dev/strata/pkg/executor"
	"github.com/strata-dev/strata/pkg/memo"
	"github.com/strata-dev/strata/pkg/payload"
	"github.com/strata-dev/strata/pkg/route"
	"github.com/strata-dev/strata/pkg/session"
	"github.com/strata-dev/strata/pkg/tree"
)

// View binds a route descriptor to the spec that renders it.
type View struct {
	Descriptor route.Descriptor
	Spec       executor.Spec

	// PrerenderParams enumerates the parameter sets to warm at
	// startup for build-static views.
	PrerenderParams []map[string]string
}

// Server serves registered views over HTTP and WebSocket.
type Server struct {
	mu    sync.RWMutex
	views map[string]View

	exec     *executor.Executor
	store    *memo.Store
	bundles  bundle.Store
	manifest *bundle.Manifest
	sessions *session.Manager

	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBundleStore sets the backend for /bundles/.
func WithBundleStore(bs bundle.Store) Option {
	return func(s *Server) { s.bundles = bs }
}

// WithBundleManifest rewrites activation bundle locators to their
// fingerprinted names before trees leave the server.
func WithBundleManifest(m *bundle.Manifest) Option {
	return func(s *Server) { s.manifest = m }
}

// WithSessions enables cookie-based sessions. Session values become
// ambient request data.
func WithSessions(mgr *session.Manager) Option {
	return func(s *Server) { s.sessions = mgr }
}

// New creates a server over the given executor and store.
func New(exec *executor.Executor, store *memo.Store, opts ...Option) *Server {
	s := &Server{
		views:   make(map[string]View),
		exec:    exec,
		store:   store,
		bundles: bundle.NewMemoryStore("/bundles/"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterView adds a view under the given name.
func (s *Server) RegisterView(name string, v View) error {
	if name == "" {
		return strataerrors.Newf(strataerrors.CategoryServer, "view has no name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.views[name]; exists {
		return strataerrors.Newf(strataerrors.CategoryServer, "view %q already registered", name)
	}
	s.views[name] = v
	return nil
}

func (s *Server) view(name string) (View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[name]
	return v, ok
}

// Handler returns the HTTP router for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(Tracing("strata/server"))
	r.Use(RequestMetrics())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/view/{name}", s.handleView)
	r.Get("/ws/{name}", s.handleSocket)
	r.Post("/invalidate", s.handleInvalidate)
	r.Get("/bundles/*", s.handleBundle)
	return r
}

// newRequest builds the explicit request context for one render:
// query parameters plus the ambient, caller-specific inputs. w may be
// nil when response headers are already committed and no session
// cookie can be issued.
func (s *Server) newRequest(name string, w http.ResponseWriter, r *http.Request) *executor.Request {
	params := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	req := executor.NewRequest(name, params)

	if s.sessions != nil {
		sess, err := s.sessions.Attach(w, r)
		if err != nil {
			s.logger.Error("session attach failed", "error", err)
		} else {
			req.SetAmbient("session", sess.ID)
			for k, v := range sess.Values() {
				req.SetAmbient(k, v)
			}
		}
	} else if c, err := r.Cookie("session"); err == nil {
		req.SetAmbient("session", c.Value)
	}
	if lang := r.Header.Get("Accept-Language"); lang != "" {
		req.SetAmbient("locale", lang)
	}
	return req
}

func (s *Server) render(r *http.Request, v View, req *executor.Request) (*tree.Tree, error) {
	tier := route.Classify(v.Descriptor)
	t, err := s.exec.Render(r.Context(), v.Spec, tier, req)
	if err != nil {
		return nil, err
	}
	s.resolveBundles(t)
	return t, nil
}

// resolveBundles swaps activation locators for their fingerprinted
// names. Nodes are fresh per render but activations may be shared with
// cached specs, so the rewrite copies before mutating.
func (s *Server) resolveBundles(t *tree.Tree) {
	if s.manifest == nil {
		return
	}
	tree.Walk(t.Root, func(n, parent *tree.Node) bool {
		if n.Activation != nil {
			if resolved := s.manifest.Resolve(n.Activation.Bundle); resolved != n.Activation.Bundle {
				act := *n.Activation
				act.Bundle = resolved
				n.Activation = &act
			}
		}
		return true
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := s.view(name)
	if !ok {
		s.writeErrorFrame(w, http.StatusNotFound, "E500", "view "+name+" not registered")
		return
	}

	tr, err := s.render(r, v, s.newRequest(name, w, r))
	if err != nil {
		s.writeRenderError(w, name, err)
		return
	}
	frame, err := payload.SnapshotFrame(tr)
	if err != nil {
		s.logger.Error("snapshot failed", "view", name, "error", err)
		s.writeErrorFrame(w, http.StatusInternalServerError, "E200", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(frame.Encode())
}

func (s *Server) writeRenderError(w http.ResponseWriter, name string, err error) {
	s.logger.Error("render failed", "view", name, "error", err)

	code := "E100"
	var idErr *tree.IDConflictError
	var perr *executor.ProducerError
	switch {
	case errors.As(err, &idErr):
		code = "E101"
	case errors.As(err, &perr):
		code = "E100"
	case errors.Is(err, memo.ErrStoreClosed):
		code = "E002"
	}
	s.writeErrorFrame(w, http.StatusInternalServerError, code, err.Error())
}

func (s *Server) writeErrorFrame(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(status)
	w.Write(payload.ErrorFrame(code, message).Encode())
}

type invalidateRequest struct {
	Key string `json:"key,omitempty"`
	Tag string `json:"tag,omitempty"`
}

// handleInvalidate is the external invalidation signal: a data
// mutation somewhere else evicts entries by key or tag.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if req.Key == "" && req.Tag == "" {
		http.Error(w, "key or tag required", http.StatusBadRequest)
		return
	}

	removed := 0
	if req.Key != "" {
		removed += s.store.Invalidate(req.Key)
	}
	if req.Tag != "" {
		removed += s.store.InvalidateTag(req.Tag)
	}
	s.logger.Info("invalidated", "key", req.Key, "tag", req.Tag, "removed", removed)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"removed": removed})
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	locator := chi.URLParam(r, "*")
	b, err := s.bundles.Open(r.Context(), locator)
	if err != nil {
		if errors.Is(err, bundle.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("bundle open failed", "locator", locator, "error", err)
		http.Error(w, "bundle unavailable", http.StatusInternalServerError)
		return
	}
	defer b.Content.Close()

	if b.ContentType != "" {
		w.Header().Set("Content-Type", b.ContentType)
	}
	io.Copy(w, b.Content)
}
