// Package dedupe tracks request IDs so operator mutations are applied at
// most once. Attendance edits come from a web form; a double-clicked
// submit must not mark a member present twice.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 10000

// Deduper records seen request IDs.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if
	// not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID, allowing the request to be retried after
	// a failed apply.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of tracked IDs.
	Size() int64
}

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of IDs kept; the oldest are evicted first.
// Zero or negative means unbounded.
func WithMaxSize(n int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = n
	}
}

// inMemoryDeduper keeps seen IDs in a map plus an insertion-ordered ring
// for FIFO eviction in bounded mode.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	head    int
	maxSize int
}

// NewInMemoryDeduper creates a deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen:    make(map[string]struct{}),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize > 0 {
		d.order = make([]string, 0, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		// Evict the oldest live entry; skip slots already unrecorded.
		for len(d.seen) >= d.maxSize && d.head < len(d.order) {
			old := d.order[d.head]
			d.head++
			delete(d.seen, old)
		}
		if d.head > d.maxSize {
			d.order = append(d.order[:0], d.order[d.head:]...)
			d.head = 0
		}
	}
	d.seen[id] = struct{}{}
	if d.maxSize > 0 {
		d.order = append(d.order, id)
	}
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
