package heap

import (
	"errors"
	"fmt"

	"github.com/tuannm99/novastore/internal/bitmap"
	"github.com/tuannm99/novastore/internal/record"
	"github.com/tuannm99/novastore/internal/storage"
)

// ErrInvariantViolation marks a broken caller contract: slot out of range,
// presence bit not what the operation expects, or buffers of the wrong size.
var ErrInvariantViolation = errors.New("heap: invariant violation")

// PageHandle interprets a pinned data page as
// [page header][presence bitmap][slot region].
type PageHandle interface {
	Page() *storage.Page
	Bitmap() []byte
	NextPageID() storage.PageID
	SetNextPageID(pid storage.PageID)
	RecordNum() int
	SetRecordNum(n int)
	// WriteSlot requires the presence bit of slot to equal update.
	WriteSlot(slot int, nullMap, data []byte, update bool) error
	// ReadSlot requires the presence bit of slot to be set.
	ReadSlot(slot int, nullMap, data []byte) error
	// ReadChunk materializes the fields of chunkSchema for every present slot.
	ReadChunk(chunkSchema *record.Schema) (*record.Chunk, error)
}

type pageBase struct {
	hdr    *TableHeader
	schema *record.Schema
	page   *storage.Page
	bitmap []byte
	slots  []byte
}

func newPageBase(hdr *TableHeader, s *record.Schema, page *storage.Page) pageBase {
	body := page.Body()
	return pageBase{
		hdr:    hdr,
		schema: s,
		page:   page,
		bitmap: body[:hdr.BitmapSize],
		slots:  body[hdr.BitmapSize:],
	}
}

func (b *pageBase) Page() *storage.Page { return b.page }
func (b *pageBase) Bitmap() []byte      { return b.bitmap }

func (b *pageBase) NextPageID() storage.PageID       { return b.page.NextFreePageID() }
func (b *pageBase) SetNextPageID(pid storage.PageID) { b.page.SetNextFreePageID(pid) }

func (b *pageBase) RecordNum() int     { return b.page.RecordNum() }
func (b *pageBase) SetRecordNum(n int) { b.page.SetRecordNum(n) }

func (b *pageBase) checkSlot(slot int, want bool) error {
	if slot < 0 || slot >= b.hdr.RecordsPerPage {
		return fmt.Errorf("%w: slot %d out of range [0,%d)", ErrInvariantViolation, slot, b.hdr.RecordsPerPage)
	}
	if got := bitmap.GetBit(b.bitmap, slot); got != want {
		return fmt.Errorf("%w: page %d slot %d present=%v, want %v",
			ErrInvariantViolation, b.page.PageID(), slot, got, want)
	}
	return nil
}

func (b *pageBase) checkBuffers(nullMap, data []byte) error {
	if len(nullMap) != b.hdr.NullMapSize || len(data) != b.hdr.RecordSize {
		return fmt.Errorf("%w: buffers %d+%d bytes, want %d+%d",
			ErrInvariantViolation, len(nullMap), len(data), b.hdr.NullMapSize, b.hdr.RecordSize)
	}
	return nil
}

// columns maps each chunk field to the table field it reads.
func (b *pageBase) columns(chunkSchema *record.Schema) ([]int, error) {
	idx := make([]int, chunkSchema.NumFields())
	for i := range idx {
		f := chunkSchema.FieldAt(i)
		j, ok := b.schema.FieldIndex(f.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", record.ErrUnknownField, f.Name)
		}
		if b.schema.FieldAt(j).Type != f.Type || b.schema.FieldAt(j).FieldSize() != f.FieldSize() {
			return nil, fmt.Errorf("%w: field %q", record.ErrSchemaMismatch, f.Name)
		}
		idx[i] = j
	}
	return idx, nil
}

// readChunk walks present slots in ascending order and appends the decoded
// value (nil when NULL) of every requested column. cell returns the bytes of
// table field j in slot.
func (b *pageBase) readChunk(
	chunkSchema *record.Schema,
	nullMapOf func(slot int) []byte,
	cell func(slot, j int) []byte,
) (*record.Chunk, error) {
	idx, err := b.columns(chunkSchema)
	if err != nil {
		return nil, err
	}
	cols := make([]*record.ArrayValue, len(idx))
	for i := range cols {
		cols[i] = record.NewArrayValue(chunkSchema.FieldAt(i))
	}

	n := b.hdr.RecordsPerPage
	for slot := bitmap.FindFirst(b.bitmap, n, 0, true); slot < n; slot = bitmap.FindFirst(b.bitmap, n, slot+1, true) {
		nm := nullMapOf(slot)
		for i, j := range idx {
			if bitmap.GetBit(nm, j) {
				cols[i].Append(nil)
				continue
			}
			cols[i].Append(record.DecodeValue(b.schema.FieldAt(j), cell(slot, j)))
		}
	}
	return record.NewChunk(chunkSchema, cols), nil
}

func newPageHandle(hdr *TableHeader, s *record.Schema, offsets []int, page *storage.Page) PageHandle {
	if hdr.Model == PAXModel {
		return &PAXPageHandle{pageBase: newPageBase(hdr, s, page), offsets: offsets}
	}
	return &NAryPageHandle{pageBase: newPageBase(hdr, s, page)}
}
