package bundle

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStore keeps bundles in process memory. URLs point back at the
// server's bundle endpoint, which serves them via Open.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

type memoryObject struct {
	contentType string
	data        []byte
}

// NewMemoryStore creates an empty in-memory store. baseURL prefixes
// the locator in URLs, e.g. "/bundles/".
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		baseURL: baseURL,
	}
}

func (s *MemoryStore) Put(ctx context.Context, locator, contentType string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[locator] = memoryObject{contentType: contentType, data: data}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Open(ctx context.Context, locator string) (*Bundle, error) {
	s.mu.RLock()
	obj, ok := s.objects[locator]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &Bundle{
		Locator:     locator,
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
		Content:     io.NopCloser(bytes.NewReader(obj.data)),
	}, nil
}

func (s *MemoryStore) URL(ctx context.Context, locator string) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[locator]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return s.baseURL + locator, nil
}
