package heap

import (
	"errors"
	"fmt"

	"github.com/tuannm99/novastore/internal/alias/bx"
	"github.com/tuannm99/novastore/internal/bitmap"
	"github.com/tuannm99/novastore/internal/record"
	"github.com/tuannm99/novastore/internal/storage"
)

var (
	ErrBadHeader      = errors.New("heap: bad table header")
	ErrRecordTooLarge = errors.New("heap: record does not fit in a page")
	ErrUnknownModel   = errors.New("heap: unknown storage model")
)

// StorageModel selects the slot layout of every data page of a table:
// NAryModel is row-major, PAXModel is column-major within each page.
type StorageModel uint8

const (
	NAryModel StorageModel = iota + 1
	PAXModel
)

func (m StorageModel) String() string {
	switch m {
	case NAryModel:
		return "nary"
	case PAXModel:
		return "pax"
	default:
		return fmt.Sprintf("StorageModel(%d)", m)
	}
}

func ParseStorageModel(s string) (StorageModel, error) {
	switch s {
	case "nary", "row":
		return NAryModel, nil
	case "pax", "column":
		return PAXModel, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
}

const headerMagic uint32 = 0x5453564e // "NVST"

// header field offsets inside the body of page 0
const (
	hdrMagicOff     = 0
	hdrModelOff     = 4
	hdrRecPerPage   = 8
	hdrBitmapSize   = 12
	hdrRecordSize   = 16
	hdrNullMapSize  = 20
	hdrPageNum      = 24
	hdrFirstFree    = 28
	hdrNumFields    = 32
	tableHeaderSize = 36
)

// TableHeader is the per-file metadata kept in page 0. PageNum counts the
// header page, so the first data page is 1.
type TableHeader struct {
	Model          StorageModel
	RecordsPerPage int
	BitmapSize     int
	RecordSize     int
	NullMapSize    int
	NumFields      int
	PageNum        int
	FirstFreePage  storage.PageID
}

// MaxRecordsPerPage is the largest n with ceil(n/8) + n*stride bytes fitting
// after the page header.
func MaxRecordsPerPage(s *record.Schema) int {
	avail := storage.PageSize - storage.PageHeaderSize
	stride := s.NullMapSize() + s.RecordSize()
	return (avail * 8) / (stride*8 + 1)
}

// NewTableHeader sizes a fresh table. recordsPerPage <= 0 picks the maximum.
func NewTableHeader(s *record.Schema, model StorageModel, recordsPerPage int) (TableHeader, error) {
	if model != NAryModel && model != PAXModel {
		return TableHeader{}, fmt.Errorf("%w: %d", ErrUnknownModel, model)
	}
	maxN := MaxRecordsPerPage(s)
	if maxN == 0 {
		return TableHeader{}, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, s.NullMapSize()+s.RecordSize())
	}
	if recordsPerPage <= 0 {
		recordsPerPage = maxN
	}
	if recordsPerPage > maxN {
		return TableHeader{}, fmt.Errorf("%w: %d records per page, at most %d", ErrRecordTooLarge, recordsPerPage, maxN)
	}
	return TableHeader{
		Model:          model,
		RecordsPerPage: recordsPerPage,
		BitmapSize:     bitmap.Size(recordsPerPage),
		RecordSize:     s.RecordSize(),
		NullMapSize:    s.NullMapSize(),
		NumFields:      s.NumFields(),
		PageNum:        int(storage.FileHeaderPageID) + 1,
		FirstFreePage:  storage.InvalidPageID,
	}, nil
}

func (h *TableHeader) encode(dst []byte) {
	bx.PutU32(dst[hdrMagicOff:], headerMagic)
	dst[hdrModelOff] = byte(h.Model)
	bx.PutU32(dst[hdrRecPerPage:], uint32(h.RecordsPerPage))
	bx.PutU32(dst[hdrBitmapSize:], uint32(h.BitmapSize))
	bx.PutU32(dst[hdrRecordSize:], uint32(h.RecordSize))
	bx.PutU32(dst[hdrNullMapSize:], uint32(h.NullMapSize))
	bx.PutU32(dst[hdrPageNum:], uint32(h.PageNum))
	bx.PutU32(dst[hdrFirstFree:], uint32(h.FirstFreePage))
	bx.PutU32(dst[hdrNumFields:], uint32(h.NumFields))
}

func decodeTableHeader(src []byte) (TableHeader, error) {
	if len(src) < tableHeaderSize {
		return TableHeader{}, fmt.Errorf("%w: short page", ErrBadHeader)
	}
	if bx.U32(src[hdrMagicOff:]) != headerMagic {
		return TableHeader{}, fmt.Errorf("%w: bad magic", ErrBadHeader)
	}
	h := TableHeader{
		Model:          StorageModel(src[hdrModelOff]),
		RecordsPerPage: int(bx.U32(src[hdrRecPerPage:])),
		BitmapSize:     int(bx.U32(src[hdrBitmapSize:])),
		RecordSize:     int(bx.U32(src[hdrRecordSize:])),
		NullMapSize:    int(bx.U32(src[hdrNullMapSize:])),
		PageNum:        int(bx.U32(src[hdrPageNum:])),
		FirstFreePage:  storage.PageID(bx.U32(src[hdrFirstFree:])),
		NumFields:      int(bx.U32(src[hdrNumFields:])),
	}
	if h.BitmapSize != bitmap.Size(h.RecordsPerPage) || h.PageNum < 1 {
		return TableHeader{}, fmt.Errorf("%w: inconsistent sizes", ErrBadHeader)
	}
	return h, nil
}

// matches reports whether s has the record layout the header was built for
// and whether the page geometry is one NewTableHeader could have produced.
func (h *TableHeader) matches(s *record.Schema) error {
	if h.RecordSize != s.RecordSize() || h.NullMapSize != s.NullMapSize() || h.NumFields != s.NumFields() {
		return fmt.Errorf("%w: table has %d fields of %d bytes, schema has %d fields of %d bytes",
			record.ErrSchemaMismatch, h.NumFields, h.RecordSize, s.NumFields(), s.RecordSize())
	}
	if h.Model != NAryModel && h.Model != PAXModel {
		return fmt.Errorf("%w: %w: %d", ErrBadHeader, ErrUnknownModel, h.Model)
	}
	if maxN := MaxRecordsPerPage(s); h.RecordsPerPage < 1 || h.RecordsPerPage > maxN {
		return fmt.Errorf("%w: %d records per page, want 1..%d", ErrBadHeader, h.RecordsPerPage, maxN)
	}
	return nil
}

// paxOffsets places all null maps first, then one column per field.
func paxOffsets(h *TableHeader, s *record.Schema) []int {
	offsets := make([]int, s.NumFields())
	cur := h.RecordsPerPage * h.NullMapSize
	for i := range offsets {
		offsets[i] = cur
		cur += s.FieldAt(i).FieldSize() * h.RecordsPerPage
	}
	return offsets
}
