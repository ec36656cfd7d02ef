// Package dedupe tracks which idempotency keys have already been processed,
// so retried assign/complete calls have at most one effect (I6).
package dedupe

import (
	"sync"
	"sync/atomic"
)

// Deduper records seen operation keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(key string) bool

	// Unrecord removes a key from the seen set, so a later SeenAndRecord
	// for it returns false again.
	Unrecord(key string)

	Size() int64
}

// node is one entry in the eviction list (newest at the head).
type node struct {
	key  string
	next *node
}

func (n *node) reset() {
	n.key = ""
	n.next = nil
}

// inMemoryDeduper is a linked-list-backed set that evicts its oldest entry
// once maxSize is reached, and a sync.Pool to avoid re-allocating nodes under
// steady churn. maxSize <= 0 means unbounded (plain map, no eviction).
type inMemoryDeduper struct {
	mu       sync.RWMutex
	seen     map[string]*node
	head     *node
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// New creates an in-memory Deduper. Default max size is 50000 entries;
// override with WithMaxSize.
func New(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: 50000}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	if d.maxSize > 0 {
		d.nodePool = sync.Pool{New: func() interface{} { return &node{} }}
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}

	if d.maxSize > 0 {
		if len(d.seen) >= d.maxSize {
			d.evictLIFO()
		}
		n := d.nodePool.Get().(*node)
		n.key = key
		n.next = d.head
		d.head = n
		d.seen[key] = n
	} else {
		d.seen[key] = nil
	}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, exists := d.seen[key]
	if !exists {
		return
	}
	delete(d.seen, key)

	if d.maxSize > 0 {
		if d.head == n {
			d.head = n.next
		} else {
			cur := d.head
			for cur != nil && cur.next != n {
				cur = cur.next
			}
			if cur != nil {
				cur.next = n.next
			}
		}
		n.reset()
		d.nodePool.Put(n)
	}
	d.size.Add(-1)
}

// evictLIFO drops the tail of the list (the oldest surviving entry). Must be
// called with d.mu held.
func (d *inMemoryDeduper) evictLIFO() {
	if d.head == nil {
		return
	}
	if d.head.next == nil {
		delete(d.seen, d.head.key)
		d.head.reset()
		d.nodePool.Put(d.head)
		d.head = nil
		d.size.Add(-1)
		return
	}
	var prev *node
	cur := d.head
	for cur.next != nil {
		prev = cur
		cur = cur.next
	}
	prev.next = nil
	delete(d.seen, cur.key)
	cur.reset()
	d.nodePool.Put(cur)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
