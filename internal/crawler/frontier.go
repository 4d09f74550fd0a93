package crawler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nao1215/hyperscrape/internal/model"
)

// Order is the order in which the frontier hands out pending keys.
type Order int

const (
	// OrderLIFO drains the most recently added key first (depth-first).
	OrderLIFO Order = iota
	// OrderFIFO drains the oldest pending key first (breadth-first).
	OrderFIFO
)

// String returns the lowercase name of the order.
func (o Order) String() string {
	switch o {
	case OrderLIFO:
		return "lifo"
	case OrderFIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// ParseOrder converts "lifo"/"dfs" or "fifo"/"bfs" into an Order.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lifo", "dfs", "depth":
		return OrderLIFO, nil
	case "fifo", "bfs", "breadth":
		return OrderFIFO, nil
	default:
		return OrderLIFO, fmt.Errorf("unknown frontier order %q: use lifo or fifo", s)
	}
}

// Frontier is the deduplicating work set of one crawl.
// A key moves unseen -> pending -> visited exactly once; pending and visited
// never overlap and a key in either is never queued again. All methods are
// safe for concurrent use.
//
// Design decision: The default order is LIFO, so the crawl explores depth-first.
// Order only changes when a drive is visited relative to its siblings, never
// whether it is visited, so FIFO is offered for breadth-first progress output.
type Frontier struct {
	mu      sync.Mutex
	order   Order
	pending []model.Key
	queued  map[model.Key]struct{}
	visited map[model.Key]struct{}
	trail   []model.Key
	depth   map[model.Key]int
}

// NewFrontier creates an empty frontier with the given drain order.
func NewFrontier(order Order) *Frontier {
	return &Frontier{
		order:   order,
		pending: make([]model.Key, 0),
		queued:  make(map[model.Key]struct{}),
		visited: make(map[model.Key]struct{}),
		trail:   make([]model.Key, 0),
		depth:   make(map[model.Key]int),
	}
}

// Add queues keys at depth 0 and returns how many were newly queued.
// Zero keys, keys already pending or visited, and repeats within the same
// call are skipped.
func (f *Frontier) Add(keys ...model.Key) int {
	return f.AddAt(0, keys...)
}

// AddAt is Add for keys discovered depth hops away from a seed.
func (f *Frontier) AddAt(depth int, keys ...model.Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	added := 0
	for _, k := range keys {
		if k.IsZero() {
			continue
		}
		if _, ok := f.queued[k]; ok {
			continue
		}
		if _, ok := f.visited[k]; ok {
			continue
		}
		f.queued[k] = struct{}{}
		f.pending = append(f.pending, k)
		f.depth[k] = depth
		added++
	}
	return added
}

// AddRefs normalizes raw address references and queues the valid ones.
// Invalid references are dropped silently.
func (f *Frontier) AddRefs(refs ...string) int {
	keys := make([]model.Key, 0, len(refs))
	for _, ref := range refs {
		if k, ok := model.NormalizeKey(ref); ok {
			keys = append(keys, k)
		}
	}
	return f.Add(keys...)
}

// Drain removes one pending key and records it as visited.
// The second return value is false when the frontier is empty.
func (f *Frontier) Drain() (model.Key, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.pending)
	if n == 0 {
		return model.Key{}, false
	}

	var k model.Key
	switch f.order {
	case OrderFIFO:
		k = f.pending[0]
		f.pending[0] = model.Key{}
		f.pending = f.pending[1:]
	default:
		k = f.pending[n-1]
		f.pending = f.pending[:n-1]
	}

	delete(f.queued, k)
	f.visited[k] = struct{}{}
	f.trail = append(f.trail, k)
	return k, true
}

// Len returns the number of pending keys.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Crawled returns the number of visited keys.
func (f *Frontier) Crawled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// IsVisited reports whether k has been drained.
func (f *Frontier) IsVisited(k model.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[k]
	return ok
}

// IsPending reports whether k is waiting to be drained.
func (f *Frontier) IsPending(k model.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.queued[k]
	return ok
}

// Depth returns the depth k was queued at.
func (f *Frontier) Depth(k model.Key) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.depth[k]
	return d, ok
}

// Visited returns the visited keys in drain order.
func (f *Frontier) Visited() []model.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Key, len(f.trail))
	copy(out, f.trail)
	return out
}

// Pending returns a copy of the pending keys in insertion order.
func (f *Frontier) Pending() []model.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Key, len(f.pending))
	copy(out, f.pending)
	return out
}

// Order returns the drain order.
func (f *Frontier) Order() Order {
	return f.order
}
