package normalize

import "sync"

// docLocks hands out one mutex per document ID so the fingerprint compare
// and the version write happen atomically per document. Entries are never
// evicted; the set of documents touched in one process is bounded by the
// registry's endpoints.
type docLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (d *docLocks) lock(docID string) (unlock func()) {
	d.mu.Lock()
	if d.m == nil {
		d.m = make(map[string]*sync.Mutex)
	}
	l, ok := d.m[docID]
	if !ok {
		l = &sync.Mutex{}
		d.m[docID] = l
	}
	d.mu.Unlock()
	l.Lock()
	return l.Unlock
}
