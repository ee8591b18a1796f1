package bufferpool

import (
	"errors"
	"fmt"

	"github.com/tuannm99/novastore/internal/storage"
)

var (
	DefaultCapacity = 128
	DefaultLRUK     = 2

	ErrNoFreeFrame      = errors.New("bufferpool: no free frame available (all pinned)")
	ErrUnknownFrame     = errors.New("bufferpool: frame is not tracked by the replacer")
	ErrUnknownReplacer  = errors.New("bufferpool: unknown replacer")
	ErrReplacerTooSmall = errors.New("bufferpool: replacer does not cover every frame")
)

// Replacer decides which unpinned frame to evict. Implementations guard
// their own state; the pool calls them while holding its latch, never the
// other way around.
type Replacer interface {
	// Victim picks an evictable frame, makes it ineligible and returns it.
	// ok is false when nothing is evictable.
	Victim() (frameID storage.FrameID, ok bool)
	// Pin records an access and removes the frame from eviction.
	Pin(frameID storage.FrameID)
	// Unpin makes a tracked frame evictable.
	Unpin(frameID storage.FrameID) error
	// Restore hands back a frame returned by Victim that could not be
	// reused. It becomes evictable again with its access history intact.
	Restore(frameID storage.FrameID) error
	// Remove forgets the frame entirely.
	Remove(frameID storage.FrameID)
	// Size is the number of evictable frames.
	Size() int
}

// sized is implemented by replacers that track a fixed range of frame ids.
type sized interface {
	Capacity() int
}

// Disk is the page I/O the pool needs.
type Disk interface {
	ReadPage(fid storage.FileID, pid storage.PageID, dst []byte) error
	WritePage(fid storage.FileID, pid storage.PageID, src []byte) error
}

// Manager is a file-scoped view of the pool used by tables.
type Manager interface {
	FileID() storage.FileID
	FetchPage(pageID storage.PageID) (*storage.Page, error)
	UnpinPage(pageID storage.PageID, dirty bool) bool
	FlushAll() error
}

type ReplacerKind string

const (
	ReplacerLRU   ReplacerKind = "lru"
	ReplacerLRUK  ReplacerKind = "lru_k"
	ReplacerClock ReplacerKind = "clock"
)

func ParseReplacerKind(s string) (ReplacerKind, error) {
	switch k := ReplacerKind(s); k {
	case ReplacerLRU, ReplacerLRUK, ReplacerClock:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownReplacer, s)
	}
}

// NewReplacer builds the policy chosen at pool construction time.
// k is only used by LRU-K.
func NewReplacer(kind ReplacerKind, capacity, k int) (Replacer, error) {
	switch kind {
	case ReplacerLRU:
		return NewLRUReplacer(capacity), nil
	case ReplacerLRUK:
		return NewLRUKReplacer(k), nil
	case ReplacerClock:
		return NewClockReplacer(capacity), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownReplacer, kind)
	}
}
