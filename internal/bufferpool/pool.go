package bufferpool

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/tuannm99/novastore/internal/storage"
)

// PageKey identifies a page across every file sharing the pool.
type PageKey struct {
	FileID storage.FileID
	PageID storage.PageID
}

func (k PageKey) String() string { return fmt.Sprintf("%d:%d", k.FileID, k.PageID) }

// Stats is a point-in-time snapshot of pool occupancy and counters.
type Stats struct {
	Capacity  int
	Resident  int
	Free      int
	Pinned    int
	Dirty     int
	Evictable int

	Hits      uint64
	Misses    uint64
	Evictions uint64
	Flushes   uint64
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Pool caches pages of many files in a fixed set of frames. A single latch
// guards the page table, free list and frame metadata. The replacer is
// only called with the latch held.
type Pool struct {
	disk Disk

	mu        sync.Mutex
	frames    []*storage.Frame
	freeList  []storage.FrameID
	pageTable map[PageKey]storage.FrameID
	replacer  Replacer

	hits      uint64
	misses    uint64
	evictions uint64
	flushes   uint64
}

// NewPool builds a pool of capacity frames. A nil replacer defaults to LRU.
// A fixed-size replacer must cover every frame id.
func NewPool(disk Disk, capacity int, replacer Replacer) (*Pool, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if replacer == nil {
		replacer = NewLRUReplacer(capacity)
	}
	if r, ok := replacer.(sized); ok && r.Capacity() < capacity {
		return nil, fmt.Errorf("%w: %d frames, replacer holds %d", ErrReplacerTooSmall, capacity, r.Capacity())
	}

	p := &Pool{
		disk:      disk,
		frames:    make([]*storage.Frame, capacity),
		freeList:  make([]storage.FrameID, 0, capacity),
		pageTable: make(map[PageKey]storage.FrameID, capacity),
		replacer:  replacer,
	}
	for i := range p.frames {
		p.frames[i] = storage.NewFrame()
		p.freeList = append(p.freeList, storage.FrameID(i))
	}
	return p, nil
}

// NewPoolWithPolicy picks the replacer by kind.
func NewPoolWithPolicy(disk Disk, capacity int, kind ReplacerKind, k int) (*Pool, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r, err := NewReplacer(kind, capacity, k)
	if err != nil {
		return nil, err
	}
	slog.Debug("bufferpool: new pool", "capacity", capacity, "replacer", kind, "k", k)
	return NewPool(disk, capacity, r)
}

func (p *Pool) Capacity() int { return len(p.frames) }

// FetchPage returns the page pinned. Every successful call must be matched
// by one UnpinPage.
func (p *Pool) FetchPage(fid storage.FileID, pid storage.PageID) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := PageKey{FileID: fid, PageID: pid}

	if id, ok := p.pageTable[key]; ok {
		f := p.frames[id]
		f.Pin()
		p.replacer.Pin(id)
		p.hits++
		return f.Page(), nil
	}
	p.misses++

	id, err := p.takeFrame()
	if err != nil {
		return nil, err
	}

	f := p.frames[id]
	if err := p.disk.ReadPage(fid, pid, f.Page().Buf); err != nil {
		f.Reset()
		p.replacer.Remove(id)
		p.freeList = append(p.freeList, id)
		return nil, fmt.Errorf("bufferpool: read page %s: %w", key, err)
	}

	f.Bind(fid, pid)
	f.Pin()
	p.replacer.Pin(id)
	p.pageTable[key] = id
	return f.Page(), nil
}

// takeFrame returns an empty frame, evicting a victim if the free list is
// exhausted. A dirty victim is written back first; if that fails it is
// restored to the replacer with its history unchanged.
func (p *Pool) takeFrame() (storage.FrameID, error) {
	if n := len(p.freeList); n > 0 {
		id := p.freeList[0]
		p.freeList = p.freeList[1:]
		return id, nil
	}

	id, ok := p.replacer.Victim()
	if !ok {
		return storage.InvalidFrameID, ErrNoFreeFrame
	}

	f := p.frames[id]
	old := PageKey{FileID: f.Page().FileID(), PageID: f.Page().PageID()}
	if f.InUse() {
		slog.Error("bufferpool: replacer chose a pinned frame", "frame", id, "page", old, "pins", f.PinCount())
		p.replacer.Pin(id)
		return storage.InvalidFrameID, ErrNoFreeFrame
	}

	if f.IsDirty() {
		if err := p.disk.WritePage(old.FileID, old.PageID, f.Page().Buf); err != nil {
			err = fmt.Errorf("bufferpool: write back %s: %w", old, err)
			if rerr := p.replacer.Restore(id); rerr != nil {
				slog.Error("bufferpool: restore victim", "frame", id, "page", old, "err", rerr)
				err = multierr.Append(err, rerr)
			}
			return storage.InvalidFrameID, err
		}
		p.flushes++
	}

	delete(p.pageTable, old)
	f.Reset()
	p.evictions++
	slog.Debug("bufferpool: evicted", "frame", id, "page", old)
	return id, nil
}

// UnpinPage drops one pin. dirty is sticky: false never clears an earlier
// true. It returns false if the page is not resident or not pinned.
func (p *Pool) UnpinPage(fid storage.FileID, pid storage.PageID, dirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := PageKey{FileID: fid, PageID: pid}
	id, ok := p.pageTable[key]
	if !ok {
		return false
	}
	f := p.frames[id]
	if !f.InUse() {
		return false
	}

	// the replacer goes first so a refusal leaves the frame pinned
	if f.PinCount() == 1 {
		if err := p.replacer.Unpin(id); err != nil {
			slog.Error("bufferpool: replacer unpin", "frame", id, "page", key, "err", err)
			return false
		}
	}
	f.Unpin()
	if dirty {
		f.SetDirty(true)
	}
	return true
}

// FlushPage writes the page if it is dirty. It returns false when the page
// is not resident.
func (p *Pool) FlushPage(fid storage.FileID, pid storage.PageID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.pageTable[PageKey{FileID: fid, PageID: pid}]
	if !ok {
		return false, nil
	}
	if err := p.flushFrame(id); err != nil {
		return false, err
	}
	return true, nil
}

// FlushAllPages flushes every resident dirty page of one file.
func (p *Pool) FlushAllPages(fid storage.FileID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for _, key := range p.residentKeys(fid, true) {
		err = multierr.Append(err, p.flushFrame(p.pageTable[key]))
	}
	return err
}

// FlushAll flushes every resident dirty page of every file.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for _, key := range p.residentKeys(0, false) {
		err = multierr.Append(err, p.flushFrame(p.pageTable[key]))
	}
	return err
}

func (p *Pool) flushFrame(id storage.FrameID) error {
	f := p.frames[id]
	if !f.IsDirty() {
		return nil
	}
	pg := f.Page()
	if err := p.disk.WritePage(pg.FileID(), pg.PageID(), pg.Buf); err != nil {
		return fmt.Errorf("bufferpool: flush %d:%d: %w", pg.FileID(), pg.PageID(), err)
	}
	f.SetDirty(false)
	p.flushes++
	return nil
}

// DeletePage drops the page from the pool, writing it back first if dirty.
// A page that is not resident counts as deleted. A pinned page is not
// deleted and false is returned.
func (p *Pool) DeletePage(fid storage.FileID, pid storage.PageID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.deleteLocked(PageKey{FileID: fid, PageID: pid})
}

// DeleteAllPages drops every resident page of the file. Pinned pages are
// skipped and reported by a false result.
func (p *Pool) DeleteAllPages(fid storage.FileID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := true
	var errs error
	for _, key := range p.residentKeys(fid, true) {
		ok, err := p.deleteLocked(key)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		all = all && ok
	}
	return all, errs
}

func (p *Pool) deleteLocked(key PageKey) (bool, error) {
	id, ok := p.pageTable[key]
	if !ok {
		return true, nil
	}
	f := p.frames[id]
	if f.InUse() {
		return false, nil
	}
	if err := p.flushFrame(id); err != nil {
		return false, err
	}

	p.replacer.Remove(id)
	delete(p.pageTable, key)
	f.Reset()
	p.freeList = append(p.freeList, id)
	return true, nil
}

// residentKeys lists resident pages in (file, page) order, optionally
// restricted to one file.
func (p *Pool) residentKeys(fid storage.FileID, onlyFile bool) []PageKey {
	keys := make([]PageKey, 0, len(p.pageTable))
	for k := range p.pageTable {
		if onlyFile && k.FileID != fid {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].FileID != keys[j].FileID {
			return keys[i].FileID < keys[j].FileID
		}
		return keys[i].PageID < keys[j].PageID
	})
	return keys
}

// PinCount reports the pin count of a resident page.
func (p *Pool) PinCount(fid storage.FileID, pid storage.PageID) (int32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.pageTable[PageKey{FileID: fid, PageID: pid}]
	if !ok {
		return 0, false
	}
	return p.frames[id].PinCount(), true
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Capacity:  len(p.frames),
		Resident:  len(p.pageTable),
		Free:      len(p.freeList),
		Evictable: p.replacer.Size(),
		Hits:      p.hits,
		Misses:    p.misses,
		Evictions: p.evictions,
		Flushes:   p.flushes,
	}
	for _, id := range p.pageTable {
		f := p.frames[id]
		if f.InUse() {
			s.Pinned++
		}
		if f.IsDirty() {
			s.Dirty++
		}
	}
	return s
}
