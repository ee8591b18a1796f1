package bufferpool

import (
	"sync"

	"github.com/tuannm99/novastore/internal/storage"
)

// ClockReplacer is second-chance replacement over frame slots [0, capacity).
type ClockReplacer struct {
	mu        sync.Mutex
	ref       []bool
	evictable []bool
	present   []bool
	hand      int
	size      int // evictable slots
}

var _ Replacer = (*ClockReplacer)(nil)

func NewClockReplacer(capacity int) *ClockReplacer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ClockReplacer{
		ref:       make([]bool, capacity),
		evictable: make([]bool, capacity),
		present:   make([]bool, capacity),
	}
}

func (c *ClockReplacer) Capacity() int { return len(c.ref) }

func (c *ClockReplacer) inRange(id storage.FrameID) bool {
	return id >= 0 && int(id) < len(c.ref)
}

// Pin marks the slot referenced and takes it out of eviction.
func (c *ClockReplacer) Pin(id storage.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inRange(id) {
		return
	}
	c.present[id] = true
	c.ref[id] = true
	if c.evictable[id] {
		c.evictable[id] = false
		c.size--
	}
}

func (c *ClockReplacer) Unpin(id storage.FrameID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inRange(id) || !c.present[id] {
		return ErrUnknownFrame
	}
	if !c.evictable[id] {
		c.evictable[id] = true
		c.size++
	}
	return nil
}

// Victim sweeps at most twice around the clock. A referenced slot gets its
// bit cleared and a second chance.
func (c *ClockReplacer) Victim() (storage.FrameID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.ref)
	if c.size == 0 {
		return storage.InvalidFrameID, false
	}

	for range 2 * n {
		idx := c.hand
		c.hand = (c.hand + 1) % n

		if !c.present[idx] || !c.evictable[idx] {
			continue
		}
		if c.ref[idx] {
			c.ref[idx] = false
			continue
		}
		c.present[idx] = false
		c.evictable[idx] = false
		c.size--
		return storage.FrameID(idx), true
	}
	return storage.InvalidFrameID, false
}

// Restore returns a victim slot to the clock with its reference bit clear
// and moves the hand back onto it.
func (c *ClockReplacer) Restore(id storage.FrameID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inRange(id) {
		return ErrUnknownFrame
	}
	c.present[id] = true
	c.ref[id] = false
	c.hand = int(id)
	if !c.evictable[id] {
		c.evictable[id] = true
		c.size++
	}
	return nil
}

func (c *ClockReplacer) Remove(id storage.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inRange(id) || !c.present[id] {
		return
	}
	if c.evictable[id] {
		c.size--
	}
	c.present[id] = false
	c.evictable[id] = false
	c.ref[id] = false
}

func (c *ClockReplacer) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
