package bufferpool

import (
	"sync"

	"github.com/tuannm99/novastore/internal/storage"
)

const nilLink = -1

// LRUReplacer keeps tracked frames in a doubly-linked list threaded through
// index arrays. head is most recent, tail is the eviction end. Pin and Unpin
// both move a frame to the head, so among evictable frames the one unpinned
// longest ago is the victim: fetch A, fetch B, unpin B, unpin A evicts B.
type LRUReplacer struct {
	mu        sync.Mutex
	prev      []int
	next      []int
	present   []bool
	evictable []bool
	head      int
	tail      int
	size      int
}

var _ Replacer = (*LRUReplacer)(nil)

func NewLRUReplacer(capacity int) *LRUReplacer {
	if capacity <= 0 {
		capacity = 1
	}
	r := &LRUReplacer{
		prev:      make([]int, capacity),
		next:      make([]int, capacity),
		present:   make([]bool, capacity),
		evictable: make([]bool, capacity),
		head:      nilLink,
		tail:      nilLink,
	}
	for i := range r.prev {
		r.prev[i], r.next[i] = nilLink, nilLink
	}
	return r
}

func (r *LRUReplacer) Capacity() int { return len(r.prev) }

func (r *LRUReplacer) inRange(id storage.FrameID) bool {
	return id >= 0 && int(id) < len(r.prev)
}

func (r *LRUReplacer) unlink(i int) {
	if r.prev[i] != nilLink {
		r.next[r.prev[i]] = r.next[i]
	} else {
		r.head = r.next[i]
	}
	if r.next[i] != nilLink {
		r.prev[r.next[i]] = r.prev[i]
	} else {
		r.tail = r.prev[i]
	}
	r.prev[i], r.next[i] = nilLink, nilLink
}

func (r *LRUReplacer) pushFront(i int) {
	r.prev[i] = nilLink
	r.next[i] = r.head
	if r.head != nilLink {
		r.prev[r.head] = i
	}
	r.head = i
	if r.tail == nilLink {
		r.tail = i
	}
}

func (r *LRUReplacer) pushBack(i int) {
	r.next[i] = nilLink
	r.prev[i] = r.tail
	if r.tail != nilLink {
		r.next[r.tail] = i
	}
	r.tail = i
	if r.head == nilLink {
		r.head = i
	}
}

func (r *LRUReplacer) touch(i int) {
	if r.present[i] {
		r.unlink(i)
	}
	r.present[i] = true
	r.pushFront(i)
}

func (r *LRUReplacer) Pin(id storage.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(id) {
		return
	}
	i := int(id)
	r.touch(i)
	if r.evictable[i] {
		r.evictable[i] = false
		r.size--
	}
}

func (r *LRUReplacer) Unpin(id storage.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(id) || !r.present[id] {
		return ErrUnknownFrame
	}
	i := int(id)
	if r.evictable[i] {
		return nil
	}
	r.touch(i)
	r.evictable[i] = true
	r.size++
	return nil
}

func (r *LRUReplacer) Victim() (storage.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return storage.InvalidFrameID, false
	}
	for i := r.tail; i != nilLink; i = r.prev[i] {
		if !r.evictable[i] {
			continue
		}
		r.unlink(i)
		r.present[i] = false
		r.evictable[i] = false
		r.size--
		return storage.FrameID(i), true
	}
	return storage.InvalidFrameID, false
}

// Restore puts a frame back at the eviction end without touching it.
func (r *LRUReplacer) Restore(id storage.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(id) {
		return ErrUnknownFrame
	}
	i := int(id)
	if !r.present[i] {
		r.present[i] = true
		r.pushBack(i)
	}
	if !r.evictable[i] {
		r.evictable[i] = true
		r.size++
	}
	return nil
}

func (r *LRUReplacer) Remove(id storage.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(id) || !r.present[id] {
		return
	}
	i := int(id)
	r.unlink(i)
	if r.evictable[i] {
		r.size--
	}
	r.present[i] = false
	r.evictable[i] = false
}

func (r *LRUReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
