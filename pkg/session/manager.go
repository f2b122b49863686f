package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultTTL is the session lifetime when no option overrides it.
const DefaultTTL = 24 * time.Hour

// DefaultCookieName is the cookie carrying the session ID.
const DefaultCookieName = "session"

// Session is one caller's state. It is safe for concurrent use.
type Session struct {
	ID string

	mu     sync.RWMutex
	values map[string]string
	dirty  bool
}

// Get returns the value for key, or "".
func (s *Session) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set stores a value and marks the session for persistence.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.dirty = true
	s.mu.Unlock()
}

// Values returns a copy of all session values.
func (s *Session) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make(map[string]string, len(s.values))
	for k, v := range s.values {
		copied[k] = v
	}
	return copied
}

// Manager resolves incoming requests to sessions and persists changes.
type Manager struct {
	store      Store
	ttl        time.Duration
	cookieName string
	secure     bool
	logger     *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithCookieName sets the session cookie name.
func WithCookieName(name string) ManagerOption {
	return func(m *Manager) { m.cookieName = name }
}

// WithSecureCookies marks issued cookies Secure.
func WithSecureCookies() ManagerOption {
	return func(m *Manager) { m.secure = true }
}

// WithManagerLogger replaces the default logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		ttl:        DefaultTTL,
		cookieName: DefaultCookieName,
		logger:     slog.Default().With("component", "session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach resolves the request's session, creating one when the cookie
// is missing or stale. New sessions set the cookie on w; pass a nil w
// when the response headers are already committed (an upgraded
// WebSocket connection) and no cookie can be issued.
func (m *Manager) Attach(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		values, err := m.store.Load(r.Context(), c.Value)
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
		if values != nil {
			return &Session{ID: c.Value, values: values}, nil
		}
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	sess := &Session{ID: id, values: make(map[string]string)}
	if err := m.store.Save(r.Context(), id, nil, time.Now().Add(m.ttl)); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	if w != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(m.ttl / time.Second),
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess, nil
}

// Persist saves the session if it changed since Attach.
func (m *Manager) Persist(ctx context.Context, sess *Session) error {
	sess.mu.RLock()
	dirty := sess.dirty
	sess.mu.RUnlock()
	if !dirty {
		return nil
	}
	if err := m.store.Save(ctx, sess.ID, sess.Values(), time.Now().Add(m.ttl)); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	sess.mu.Lock()
	sess.dirty = false
	sess.mu.Unlock()
	return nil
}

// Destroy deletes the session from the store.
func (m *Manager) Destroy(ctx context.Context, sess *Session) error {
	return m.store.Delete(ctx, sess.ID)
}

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
