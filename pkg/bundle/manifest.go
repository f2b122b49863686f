package bundle

import (
	"encoding/json"
	"os"
	"sync"
)

// Manifest maps logical bundle locators to their fingerprinted names.
//
// A bundle build step emits a manifest.json so that servers can keep
// referring to stable locators while clients fetch immutable,
// content-hashed objects:
//
//	{
//	  "widgets/chat.js": "widgets/chat.a1b2c3d4.js",
//	  "widgets/search.js": "widgets/search.e5f6a7b8.js"
//	}
//
// It is safe for concurrent use.
type Manifest struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewManifest creates an empty manifest. Use LoadManifest to read one
// from a build output.
func NewManifest() *Manifest {
	return &Manifest{entries: make(map[string]string)}
}

// LoadManifest reads a manifest.json file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return &Manifest{entries: entries}, nil
}

// Resolve returns the fingerprinted locator for a logical one. Unknown
// locators pass through unchanged, so a missing manifest entry degrades
// to serving the unfingerprinted bundle.
func (m *Manifest) Resolve(locator string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if resolved, ok := m.entries[locator]; ok {
		return resolved
	}
	return locator
}

// Has reports whether the manifest names the locator.
func (m *Manifest) Has(locator string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[locator]
	return ok
}

// Set adds or replaces an entry.
func (m *Manifest) Set(locator, resolved string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[locator] = resolved
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
