package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novastore/internal/bitmap"
	"github.com/tuannm99/novastore/internal/record"
	"github.com/tuannm99/novastore/internal/storage"
)

func pageSchema() *record.Schema {
	return record.MustSchema(
		record.Field{Name: "id", Type: record.TypeInt64},
		record.Field{Name: "name", Type: record.TypeChar, Size: 8, Nullable: true},
		record.Field{Name: "active", Type: record.TypeBool},
	)
}

// newTestHandle builds a handle over a detached page buffer.
func newTestHandle(t *testing.T, model StorageModel, recordsPerPage int) (PageHandle, *TableHeader, *record.Schema) {
	t.Helper()

	s := pageSchema()
	hdr, err := NewTableHeader(s, model, recordsPerPage)
	require.NoError(t, err)

	p, err := storage.NewPage(make([]byte, storage.PageSize), 1, 1)
	require.NoError(t, err)

	var offsets []int
	if model == PAXModel {
		offsets = paxOffsets(&hdr, s)
	}
	return newPageHandle(&hdr, s, offsets, p), &hdr, s
}

func mustRecord(t *testing.T, s *record.Schema, values ...any) *record.Record {
	t.Helper()
	r, err := record.NewRecord(s, values)
	require.NoError(t, err)
	return r
}

func TestPageHandle_WriteReadSlot(t *testing.T) {
	for _, model := range []StorageModel{NAryModel, PAXModel} {
		t.Run(model.String(), func(t *testing.T) {
			h, hdr, s := newTestHandle(t, model, 8)

			rec := mustRecord(t, s, int64(42), "alice", true)
			require.NoError(t, h.WriteSlot(3, rec.NullMap(), rec.Data(), false))
			bitmap.SetBit(h.Bitmap(), 3, true)

			nullMap := make([]byte, hdr.NullMapSize)
			data := make([]byte, hdr.RecordSize)
			require.NoError(t, h.ReadSlot(3, nullMap, data))

			got := record.FromBytes(s, nullMap, data, record.InvalidRID)
			require.Equal(t, []any{int64(42), "alice", true}, got.Values())

			upd := mustRecord(t, s, int64(42), nil, false)
			require.NoError(t, h.WriteSlot(3, upd.NullMap(), upd.Data(), true))
			require.NoError(t, h.ReadSlot(3, nullMap, data))
			got = record.FromBytes(s, nullMap, data, record.InvalidRID)
			require.Equal(t, []any{int64(42), nil, false}, got.Values())
		})
	}
}

func TestPageHandle_InvariantViolations(t *testing.T) {
	for _, model := range []StorageModel{NAryModel, PAXModel} {
		t.Run(model.String(), func(t *testing.T) {
			h, hdr, s := newTestHandle(t, model, 4)
			rec := mustRecord(t, s, int64(1), "a", true)
			nullMap := make([]byte, hdr.NullMapSize)
			data := make([]byte, hdr.RecordSize)

			// out of range
			require.ErrorIs(t, h.WriteSlot(4, rec.NullMap(), rec.Data(), false), ErrInvariantViolation)
			require.ErrorIs(t, h.WriteSlot(-1, rec.NullMap(), rec.Data(), false), ErrInvariantViolation)
			require.ErrorIs(t, h.ReadSlot(4, nullMap, data), ErrInvariantViolation)

			// update of an empty slot, read of an empty slot
			require.ErrorIs(t, h.WriteSlot(0, rec.NullMap(), rec.Data(), true), ErrInvariantViolation)
			require.ErrorIs(t, h.ReadSlot(0, nullMap, data), ErrInvariantViolation)

			// insert over a present slot
			bitmap.SetBit(h.Bitmap(), 0, true)
			require.ErrorIs(t, h.WriteSlot(0, rec.NullMap(), rec.Data(), false), ErrInvariantViolation)

			// wrong buffer sizes
			require.ErrorIs(t, h.ReadSlot(0, nullMap, data[:1]), ErrInvariantViolation)
		})
	}
}

func TestPageHandle_ReadChunk(t *testing.T) {
	for _, model := range []StorageModel{NAryModel, PAXModel} {
		t.Run(model.String(), func(t *testing.T) {
			h, _, s := newTestHandle(t, model, 16)

			// fill slots 5, 1, 9 out of order; chunk comes back in slot order
			rows := map[int][]any{
				5: {int64(50), "five", true},
				1: {int64(10), nil, false},
				9: {int64(90), "nine", true},
			}
			for slot, vals := range rows {
				rec := mustRecord(t, s, vals...)
				require.NoError(t, h.WriteSlot(slot, rec.NullMap(), rec.Data(), false))
				bitmap.SetBit(h.Bitmap(), slot, true)
			}

			proj, err := s.Project("name", "id")
			require.NoError(t, err)

			chunk, err := h.ReadChunk(proj)
			require.NoError(t, err)
			require.Equal(t, 3, chunk.NumRows())
			require.Len(t, chunk.Columns, 2)
			require.Equal(t, []any{nil, "five", "nine"}, chunk.Columns[0].Values())
			require.Equal(t, []any{int64(10), int64(50), int64(90)}, chunk.Columns[1].Values())
			require.Equal(t, []any{"five", int64(50)}, chunk.Row(1))

			// snapshot, not a view of the page
			clear(h.Page().Body())
			require.Equal(t, int64(90), chunk.Columns[1].At(2))
		})
	}
}

func TestPageHandle_ReadChunk_UnknownField(t *testing.T) {
	h, _, _ := newTestHandle(t, PAXModel, 4)
	other := record.MustSchema(record.Field{Name: "nope", Type: record.TypeInt32})

	_, err := h.ReadChunk(other)
	require.ErrorIs(t, err, record.ErrUnknownField)
}

func TestPAXOffsets_ColumnsDoNotOverlap(t *testing.T) {
	s := pageSchema()
	hdr, err := NewTableHeader(s, PAXModel, 0)
	require.NoError(t, err)

	off := paxOffsets(&hdr, s)
	require.Equal(t, hdr.RecordsPerPage*hdr.NullMapSize, off[0])
	require.Equal(t, off[0]+8*hdr.RecordsPerPage, off[1])
	require.Equal(t, off[1]+8*hdr.RecordsPerPage, off[2])

	end := off[2] + 1*hdr.RecordsPerPage
	require.LessOrEqual(t, hdr.BitmapSize+end, storage.PageSize-storage.PageHeaderSize)
}

func TestNewTableHeader(t *testing.T) {
	s := pageSchema()

	hdr, err := NewTableHeader(s, NAryModel, 0)
	require.NoError(t, err)
	require.Equal(t, MaxRecordsPerPage(s), hdr.RecordsPerPage)
	require.Equal(t, bitmap.Size(hdr.RecordsPerPage), hdr.BitmapSize)
	require.Equal(t, 1, hdr.PageNum)
	require.Equal(t, storage.InvalidPageID, hdr.FirstFreePage)

	_, err = NewTableHeader(s, NAryModel, MaxRecordsPerPage(s)+1)
	require.ErrorIs(t, err, ErrRecordTooLarge)

	_, err = NewTableHeader(s, StorageModel(9), 4)
	require.ErrorIs(t, err, ErrUnknownModel)

	huge := record.MustSchema(record.Field{Name: "blob", Type: record.TypeChar, Size: storage.PageSize})
	_, err = NewTableHeader(huge, NAryModel, 0)
	require.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestTableHeader_EncodeDecode(t *testing.T) {
	hdr, err := NewTableHeader(pageSchema(), PAXModel, 32)
	require.NoError(t, err)
	hdr.PageNum = 7
	hdr.FirstFreePage = 3

	buf := make([]byte, tableHeaderSize)
	hdr.encode(buf)
	got, err := decodeTableHeader(buf)
	require.NoError(t, err)
	require.Equal(t, hdr, got)

	_, err = decodeTableHeader(make([]byte, tableHeaderSize))
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestParseStorageModel(t *testing.T) {
	m, err := ParseStorageModel("pax")
	require.NoError(t, err)
	require.Equal(t, PAXModel, m)

	_, err = ParseStorageModel("columnar")
	require.ErrorIs(t, err, ErrUnknownModel)
}
