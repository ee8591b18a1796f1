package heap

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tuannm99/novastore/internal/bitmap"
	"github.com/tuannm99/novastore/internal/bufferpool"
	"github.com/tuannm99/novastore/internal/record"
	"github.com/tuannm99/novastore/internal/storage"
)

var (
	ErrRecordMissing = errors.New("heap: record missing")
	ErrRecordExists  = errors.New("heap: record already exists")
	ErrNoFreeSlot    = errors.New("heap: no free slot in page")
	ErrPageMissing   = errors.New("heap: page does not belong to table")
)

// Table is a heap file of fixed-size records. Pages that still have a free
// slot are chained from TableHeader.FirstFreePage through each page's next
// pointer. New pages are appended and pushed on the head of that chain.
type Table struct {
	name   string
	bp     bufferpool.Manager
	schema *record.Schema

	mu      sync.Mutex
	hdr     TableHeader
	offsets []int // PAX column offsets, nil for row-major
}

// CreateTable initializes page 0 of an empty file with a fresh header.
func CreateTable(
	bp bufferpool.Manager,
	name string,
	schema *record.Schema,
	model StorageModel,
	recordsPerPage int,
) (*Table, error) {
	hdr, err := NewTableHeader(schema, model, recordsPerPage)
	if err != nil {
		return nil, err
	}
	t := newTable(bp, name, schema, hdr)
	if err := t.writeHeader(); err != nil {
		return nil, err
	}
	slog.Debug("heap: table created", "table", name, "model", model, "records_per_page", hdr.RecordsPerPage)
	return t, nil
}

// OpenTable loads the header from page 0 and checks it against schema.
func OpenTable(bp bufferpool.Manager, name string, schema *record.Schema) (*Table, error) {
	p, err := bp.FetchPage(storage.FileHeaderPageID)
	if err != nil {
		return nil, err
	}
	hdr, err := decodeTableHeader(p.Body())
	bp.UnpinPage(storage.FileHeaderPageID, false)
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", name, err)
	}
	if err := hdr.matches(schema); err != nil {
		return nil, fmt.Errorf("open table %s: %w", name, err)
	}
	return newTable(bp, name, schema, hdr), nil
}

func newTable(bp bufferpool.Manager, name string, schema *record.Schema, hdr TableHeader) *Table {
	t := &Table{name: name, bp: bp, schema: schema, hdr: hdr}
	if hdr.Model == PAXModel {
		t.offsets = paxOffsets(&t.hdr, schema)
	}
	return t
}

func (t *Table) Name() string           { return t.name }
func (t *Table) Schema() *record.Schema { return t.schema }

func (t *Table) Header() TableHeader {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hdr
}

func (t *Table) writeHeader() error {
	p, err := t.bp.FetchPage(storage.FileHeaderPageID)
	if err != nil {
		return err
	}
	t.hdr.encode(p.Body())
	t.unpin(storage.FileHeaderPageID, true)
	return nil
}

func (t *Table) unpin(pid storage.PageID, dirty bool) {
	if !t.bp.UnpinPage(pid, dirty) {
		slog.Warn("heap: unpin of unpinned page", "table", t.name, "page", pid)
	}
}

func (t *Table) fetchHandle(pid storage.PageID) (PageHandle, error) {
	if pid == storage.FileHeaderPageID || int(pid) >= t.hdr.PageNum {
		return nil, fmt.Errorf("%w: %d", ErrPageMissing, pid)
	}
	p, err := t.bp.FetchPage(pid)
	if err != nil {
		return nil, err
	}
	return newPageHandle(&t.hdr, t.schema, t.offsets, p), nil
}

// allocHandle returns the head of the free chain, or a new page pushed onto it.
func (t *Table) allocHandle() (PageHandle, error) {
	if t.hdr.FirstFreePage != storage.InvalidPageID {
		return t.fetchHandle(t.hdr.FirstFreePage)
	}

	pid := storage.PageID(t.hdr.PageNum)
	p, err := t.bp.FetchPage(pid)
	if err != nil {
		return nil, err
	}
	t.hdr.PageNum++
	clear(p.Body())
	p.SetRecordNum(0)

	h := newPageHandle(&t.hdr, t.schema, t.offsets, p)
	h.SetNextPageID(t.hdr.FirstFreePage)
	t.hdr.FirstFreePage = pid
	slog.Debug("heap: page allocated", "table", t.name, "page", pid)
	return h, nil
}

func (t *Table) checkRecord(rec *record.Record) error {
	if len(rec.NullMap()) != t.hdr.NullMapSize || len(rec.Data()) != t.hdr.RecordSize {
		return fmt.Errorf("%w: record of %d bytes, table expects %d",
			record.ErrSchemaMismatch, len(rec.Data()), t.hdr.RecordSize)
	}
	return nil
}

// GetRecord reads the record at rid. The page is always unpinned clean.
func (t *Table) GetRecord(rid record.RID) (*record.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.fetchHandle(rid.PageID)
	if err != nil {
		return nil, err
	}
	defer t.unpin(rid.PageID, false)

	if err := t.checkPresent(h, rid); err != nil {
		return nil, err
	}
	nullMap := make([]byte, t.hdr.NullMapSize)
	data := make([]byte, t.hdr.RecordSize)
	if err := h.ReadSlot(int(rid.SlotID), nullMap, data); err != nil {
		return nil, err
	}
	return record.FromBytes(t.schema, nullMap, data, rid), nil
}

func (t *Table) checkPresent(h PageHandle, rid record.RID) error {
	slot := int(rid.SlotID)
	if slot < 0 || slot >= t.hdr.RecordsPerPage {
		return fmt.Errorf("%w: slot %d out of range [0,%d)", ErrInvariantViolation, slot, t.hdr.RecordsPerPage)
	}
	if !bitmap.GetBit(h.Bitmap(), slot) {
		return fmt.Errorf("%w: %s", ErrRecordMissing, rid)
	}
	return nil
}

// GetChunk reads the fields of chunkSchema for every record of one page.
func (t *Table) GetChunk(pid storage.PageID, chunkSchema *record.Schema) (*record.Chunk, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.fetchHandle(pid)
	if err != nil {
		return nil, err
	}
	defer t.unpin(pid, false)
	return h.ReadChunk(chunkSchema)
}

// InsertRecord stores rec in the first free slot of the first page on the
// free chain, allocating a page when the chain is empty.
func (t *Table) InsertRecord(rec *record.Record) (record.RID, error) {
	if err := t.checkRecord(rec); err != nil {
		return record.InvalidRID, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.allocHandle()
	if err != nil {
		return record.InvalidRID, err
	}
	pid := h.Page().PageID()

	slot := bitmap.FindFirst(h.Bitmap(), t.hdr.RecordsPerPage, 0, false)
	if slot == t.hdr.RecordsPerPage {
		t.unpin(pid, true)
		return record.InvalidRID, fmt.Errorf("%w: page %d", ErrNoFreeSlot, pid)
	}

	if err := t.fillSlot(h, slot, rec, nil); err != nil {
		t.unpin(pid, true)
		return record.InvalidRID, err
	}
	t.unpin(pid, true)
	return record.RID{PageID: pid, SlotID: int32(slot)}, nil
}

// InsertRecordAt stores rec at an exact, currently empty rid.
func (t *Table) InsertRecordAt(rid record.RID, rec *record.Record) error {
	if rid.PageID == storage.InvalidPageID {
		return fmt.Errorf("%w: %s", ErrPageMissing, rid)
	}
	if err := t.checkRecord(rec); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.fetchHandle(rid.PageID)
	if err != nil {
		return err
	}

	err = t.checkPresent(h, rid)
	switch {
	case err == nil:
		t.unpin(rid.PageID, false)
		return fmt.Errorf("%w: %s", ErrRecordExists, rid)
	case !errors.Is(err, ErrRecordMissing):
		t.unpin(rid.PageID, false)
		return err
	}

	// A page this insert fills leaves the free chain. Its predecessor is
	// pinned before anything is written so a failed fetch changes nothing.
	var prev PageHandle
	if h.RecordNum()+1 == t.hdr.RecordsPerPage && t.hdr.FirstFreePage != rid.PageID {
		if prev, err = t.freePredecessor(rid.PageID); err != nil {
			t.unpin(rid.PageID, false)
			return err
		}
	}

	err = t.fillSlot(h, int(rid.SlotID), rec, prev)
	if prev != nil {
		t.unpin(prev.Page().PageID(), err == nil)
	}
	t.unpin(rid.PageID, err == nil)
	return err
}

// fillSlot writes an empty slot, sets its bit and counts it. A page that
// becomes full leaves the free chain: through prev when given, otherwise
// it must be the chain head.
func (t *Table) fillSlot(h PageHandle, slot int, rec *record.Record, prev PageHandle) error {
	if err := h.WriteSlot(slot, rec.NullMap(), rec.Data(), false); err != nil {
		return err
	}
	bitmap.SetBit(h.Bitmap(), slot, true)
	h.SetRecordNum(h.RecordNum() + 1)

	if h.RecordNum() < t.hdr.RecordsPerPage {
		return nil
	}
	next := h.NextPageID()
	h.SetNextPageID(storage.InvalidPageID)
	switch pid := h.Page().PageID(); {
	case prev != nil:
		prev.SetNextPageID(next)
	case t.hdr.FirstFreePage == pid:
		t.hdr.FirstFreePage = next
	}
	return nil
}

// freePredecessor returns the pinned page whose next pointer is pid, or nil
// when pid is not on the free chain.
func (t *Table) freePredecessor(pid storage.PageID) (PageHandle, error) {
	for cur := t.hdr.FirstFreePage; cur != storage.InvalidPageID; {
		h, err := t.fetchHandle(cur)
		if err != nil {
			return nil, err
		}
		next := h.NextPageID()
		if next == pid {
			return h, nil
		}
		t.unpin(cur, false)
		cur = next
	}
	slog.Warn("heap: page is not on the free chain", "table", t.name, "page", pid)
	return nil, nil
}

// DeleteRecord clears the slot. A page that was full rejoins the head of
// the free chain.
func (t *Table) DeleteRecord(rid record.RID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.fetchHandle(rid.PageID)
	if err != nil {
		return err
	}
	if err := t.checkPresent(h, rid); err != nil {
		t.unpin(rid.PageID, false)
		return err
	}

	wasFull := h.RecordNum() == t.hdr.RecordsPerPage
	bitmap.SetBit(h.Bitmap(), int(rid.SlotID), false)
	h.SetRecordNum(h.RecordNum() - 1)
	if wasFull {
		h.SetNextPageID(t.hdr.FirstFreePage)
		t.hdr.FirstFreePage = rid.PageID
	}
	t.unpin(rid.PageID, true)
	return nil
}

// UpdateRecord overwrites an existing record in place.
func (t *Table) UpdateRecord(rid record.RID, rec *record.Record) error {
	if err := t.checkRecord(rec); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.fetchHandle(rid.PageID)
	if err != nil {
		return err
	}
	if err := t.checkPresent(h, rid); err != nil {
		t.unpin(rid.PageID, false)
		return err
	}
	err = h.WriteSlot(int(rid.SlotID), rec.NullMap(), rec.Data(), true)
	t.unpin(rid.PageID, err == nil)
	return err
}

// GetFirstRID returns the first present record, or InvalidRID for an empty
// table.
func (t *Table) GetFirstRID() (record.RID, error) {
	return t.GetNextRID(record.RID{PageID: storage.FileHeaderPageID + 1, SlotID: -1})
}

// GetNextRID returns the next present record after rid in (page, slot)
// order, or InvalidRID at the end of the table.
func (t *Table) GetNextRID(rid record.RID) (record.RID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.hdr.RecordsPerPage
	pid, slot := rid.PageID, int(rid.SlotID)
	if pid == storage.FileHeaderPageID {
		pid, slot = storage.FileHeaderPageID+1, -1
	}
	for ; int(pid) < t.hdr.PageNum; pid, slot = pid+1, -1 {
		h, err := t.fetchHandle(pid)
		if err != nil {
			return record.InvalidRID, err
		}
		next := bitmap.FindFirst(h.Bitmap(), n, slot+1, true)
		t.unpin(pid, false)
		if next < n {
			return record.RID{PageID: pid, SlotID: int32(next)}, nil
		}
	}
	return record.InvalidRID, nil
}

// Scan calls fn for every record in RID order. The table lock is not held
// while fn runs, so fn may modify the table.
func (t *Table) Scan(fn func(rec *record.Record) error) error {
	rid, err := t.GetFirstRID()
	for err == nil && rid.IsValid() {
		var rec *record.Record
		rec, err = t.GetRecord(rid)
		switch {
		case errors.Is(err, ErrRecordMissing):
			err = nil // deleted by fn
		case err != nil:
			return err
		default:
			if err = fn(rec); err != nil {
				return err
			}
		}
		rid, err = t.GetNextRID(rid)
	}
	return err
}

// NumRecords counts present records page by page.
func (t *Table) NumRecords() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for pid := storage.FileHeaderPageID + 1; int(pid) < t.hdr.PageNum; pid++ {
		h, err := t.fetchHandle(pid)
		if err != nil {
			return 0, err
		}
		total += h.RecordNum()
		t.unpin(pid, false)
	}
	return total, nil
}

// Flush writes the header to page 0 and flushes every dirty page of the file.
func (t *Table) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.writeHeader(); err != nil {
		return err
	}
	return t.bp.FlushAll()
}

func (t *Table) Close() error {
	return t.Flush()
}
