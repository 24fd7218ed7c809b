// Package dedupe remembers idempotency keys of submitted matching runs so a
// retried request returns the run it already created.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Deduper maps idempotency keys to run ids.
type Deduper interface {
	// Claim atomically binds key to runID unless key is already bound.
	// Returns the bound run id and true if key was seen before.
	Claim(ctx context.Context, key, runID string) (string, bool)

	// Release forgets key so it can be claimed again. Used when the run
	// bound to it could not be enqueued.
	Release(ctx context.Context, key string)

	// Lookup returns the run id bound to key without claiming it.
	Lookup(ctx context.Context, key string) (string, bool)

	Size() int64
}

// inMemoryDeduper keeps keys in a bounded LRU, or a plain map when
// maxSize <= 0.
type inMemoryDeduper struct {
	mu      sync.Mutex
	maxSize int
	bounded *lru.Cache[string, string]
	seen    map[string]string
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10_000,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.maxSize > 0 {
		// lru.New only fails for a non-positive size.
		d.bounded, _ = lru.New[string, string](d.maxSize)
	} else {
		d.seen = make(map[string]string)
	}
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key, runID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bounded != nil {
		if prev, ok := d.bounded.Get(key); ok {
			return prev, true
		}
		d.bounded.Add(key, runID)
		return runID, false
	}

	if prev, ok := d.seen[key]; ok {
		return prev, true
	}
	d.seen[key] = runID
	return runID, false
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bounded != nil {
		d.bounded.Remove(key)
		return
	}
	delete(d.seen, key)
}

func (d *inMemoryDeduper) Lookup(_ context.Context, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bounded != nil {
		return d.bounded.Peek(key)
	}
	id, ok := d.seen[key]
	return id, ok
}

// Size returns the current number of remembered keys.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bounded != nil {
		return int64(d.bounded.Len())
	}
	return int64(len(d.seen))
}
