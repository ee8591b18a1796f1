package bufferpool

import (
	"sync"

	"github.com/tidwall/btree"

	"github.com/tuannm99/novastore/internal/storage"
)

// lrukKey orders evictable frames. Frames with fewer than k accesses have
// infinite backward k-distance and sort first, oldest first-seen access
// first. The rest sort by their k-th most recent access, oldest first.
type lrukKey struct {
	hot     bool
	stamp   uint64
	frameID storage.FrameID
}

func lrukLess(a, b lrukKey) bool {
	if a.hot != b.hot {
		return !a.hot
	}
	if a.stamp != b.stamp {
		return a.stamp < b.stamp
	}
	return a.frameID < b.frameID
}

type lrukNode struct {
	history   []uint64 // at most k stamps, oldest first
	evictable bool
	// victim: handed out by Victim; history is dropped on the next Pin
	// and kept by Restore.
	victim bool
}

func (n *lrukNode) key(id storage.FrameID, k int) lrukKey {
	var stamp uint64
	if len(n.history) > 0 {
		stamp = n.history[0]
	}
	return lrukKey{hot: len(n.history) >= k, stamp: stamp, frameID: id}
}

// LRUKReplacer evicts the frame whose k-th most recent access is furthest
// in the past. A logical clock advances on every Pin.
type LRUKReplacer struct {
	mu    sync.Mutex
	k     int
	clock uint64
	nodes map[storage.FrameID]*lrukNode

	// evictable frames; a node's key only changes on Pin, which takes the
	// node out of this set first.
	set *btree.BTreeG[lrukKey]
}

var _ Replacer = (*LRUKReplacer)(nil)

func NewLRUKReplacer(k int) *LRUKReplacer {
	if k <= 0 {
		k = DefaultLRUK
	}
	return &LRUKReplacer{
		k:     k,
		nodes: make(map[storage.FrameID]*lrukNode),
		set:   btree.NewBTreeG(lrukLess),
	}
}

func (r *LRUKReplacer) K() int { return r.k }

func (r *LRUKReplacer) Pin(id storage.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok {
		n = &lrukNode{history: make([]uint64, 0, r.k)}
		r.nodes[id] = n
	}
	if n.evictable {
		r.set.Delete(n.key(id, r.k))
		n.evictable = false
	}
	if n.victim {
		n.history = n.history[:0]
		n.victim = false
	}

	r.clock++
	if len(n.history) == r.k {
		copy(n.history, n.history[1:])
		n.history = n.history[:r.k-1]
	}
	n.history = append(n.history, r.clock)
}

func (r *LRUKReplacer) Unpin(id storage.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok || n.victim {
		return ErrUnknownFrame
	}
	if !n.evictable {
		n.evictable = true
		r.set.Set(n.key(id, r.k))
	}
	return nil
}

// Victim hands out the chosen frame. It stays tracked but not evictable;
// its history counts as cleared until Restore brings it back.
func (r *LRUKReplacer) Victim() (storage.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.set.Min()
	if !ok {
		return storage.InvalidFrameID, false
	}
	r.set.Delete(key)

	n := r.nodes[key.frameID]
	n.evictable = false
	n.victim = true
	return key.frameID, true
}

// Restore undoes Victim: the frame rejoins the evictable set under its old
// ordering key.
func (r *LRUKReplacer) Restore(id storage.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok || !n.victim {
		return ErrUnknownFrame
	}
	n.victim = false
	n.evictable = true
	r.set.Set(n.key(id, r.k))
	return nil
}

func (r *LRUKReplacer) Remove(id storage.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok {
		return
	}
	if n.evictable {
		r.set.Delete(n.key(id, r.k))
	}
	delete(r.nodes, id)
}

func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Len()
}

// BackwardDistance reports now minus the k-th most recent access. inf is
// true when the frame has fewer than k recorded accesses.
func (r *LRUKReplacer) BackwardDistance(id storage.FrameID) (dist uint64, inf bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok || n.victim || len(n.history) < r.k {
		return 0, true
	}
	return r.clock - n.history[0], false
}
