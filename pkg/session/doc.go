// Package session tracks per-caller state across requests.
//
// A session holds small string values (identity, locale, experiment
// flags) that renders consume as ambient data. Stores persist sessions
// by ID; the Manager ties store, cookie, and expiry together:
//
//	mgr := session.NewManager(session.NewMemoryStore())
//	sess, _ := mgr.Attach(w, r)
//	sess.Set("locale", "de")
//
// Reading session values during a render marks the result as
// caller-specific, so cached entries never leak between sessions.
package session
