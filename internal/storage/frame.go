package storage

// Frame is one slot of the buffer pool: a page buffer plus pin/dirty
// bookkeeping. Frames are owned by the pool; callers borrow Page() while
// they hold a pin. Pin counts are only touched under the pool latch.
type Frame struct {
	page     *Page
	pinCount int32
	dirty    bool
}

func NewFrame() *Frame {
	f := &Frame{page: &Page{Buf: make([]byte, PageSize)}}
	f.page.reset()
	return f
}

func (f *Frame) Page() *Page { return f.page }

func (f *Frame) Pin() { f.pinCount++ }

// Unpin never drops below zero.
func (f *Frame) Unpin() {
	if f.pinCount > 0 {
		f.pinCount--
	}
}

func (f *Frame) InUse() bool     { return f.pinCount > 0 }
func (f *Frame) PinCount() int32 { return f.pinCount }

func (f *Frame) IsDirty() bool       { return f.dirty }
func (f *Frame) SetDirty(dirty bool) { f.dirty = dirty }

// Bind assigns the page identity after its bytes have been loaded.
func (f *Frame) Bind(fid FileID, pid PageID) {
	f.page.setIdentity(fid, pid)
}

// Reset empties the frame before reuse.
func (f *Frame) Reset() {
	f.page.reset()
	f.pinCount = 0
	f.dirty = false
}
