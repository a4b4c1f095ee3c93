package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/normalize"
)

// Memory is an in-process store for tests and dry runs. Nothing survives
// the process.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string][]*normalize.Document // documentID -> versions, ascending
	fetches map[string]time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string][]*normalize.Document),
		fetches: make(map[string]time.Time),
	}
}

func (m *Memory) LastFingerprint(_ context.Context, documentID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.docs[documentID]
	if len(versions) == 0 {
		return "", nil
	}
	return versions[len(versions)-1].Fingerprint, nil
}

func (m *Memory) LastVersion(_ context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.docs[documentID]
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1].Version, nil
}

func (m *Memory) WriteDocument(_ context.Context, doc *normalize.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.docs[doc.DocumentID]
	last := 0
	if len(versions) > 0 {
		last = versions[len(versions)-1].Version
	}
	if doc.Version != last+1 {
		return fmt.Errorf("document %s: version %d does not follow %d", doc.DocumentID, doc.Version, last)
	}
	cp := *doc
	m.docs[doc.DocumentID] = append(versions, &cp)
	return nil
}

func (m *Memory) LastFetchTime(_ context.Context, sourceID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.fetches[sourceID]
	return t, ok, nil
}

func (m *Memory) RecordFetch(_ context.Context, sourceID string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.fetches[sourceID]; !ok || t.After(prev) {
		m.fetches[sourceID] = t
	}
	return nil
}

// Documents returns every stored version of a document, oldest first.
func (m *Memory) Documents(documentID string) []*normalize.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*normalize.Document, len(m.docs[documentID]))
	copy(out, m.docs[documentID])
	return out
}

// Len returns the total number of stored document versions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, v := range m.docs {
		n += len(v)
	}
	return n
}

func (m *Memory) Close() error { return nil }
