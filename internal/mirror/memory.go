package mirror

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Memory is an in-process mirror for tests and offline development. It
// counts writes so tests can assert that a second sync pass is a no-op.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	down        bool

	Upserts int
	Deletes int
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]Document)}
}

// SetDown makes every call fail with ErrUnavailable, simulating a lost
// connection.
func (m *Memory) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.down {
		return ErrUnavailable
	}
	return nil
}

func (m *Memory) Upsert(_ context.Context, collection string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return ErrUnavailable
	}

	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		m.collections[collection] = coll
	}
	coll[doc.RemoteID] = doc
	m.Upserts++
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return ErrUnavailable
	}

	if coll, ok := m.collections[collection]; ok {
		delete(coll, remoteID)
	}
	m.Deletes++
	return nil
}

func (m *Memory) ChangedSince(_ context.Context, collection string, since time.Time) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.down {
		return nil, ErrUnavailable
	}

	docs := make([]Document, 0, 16)
	for _, doc := range m.collections[collection] {
		if doc.UpdatedAt.After(since) {
			docs = append(docs, doc)
		}
	}
	slices.SortFunc(docs, func(a, b Document) int {
		if a.UpdatedAt.Equal(b.UpdatedAt) {
			return 0
		}
		if a.UpdatedAt.Before(b.UpdatedAt) {
			return -1
		}
		return 1
	})
	return docs, nil
}

// Get returns one stored document, for test assertions.
func (m *Memory) Get(collection, remoteID string) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][remoteID]
	return doc, ok
}

// Len reports the number of documents in a collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}
