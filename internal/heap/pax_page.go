package heap

import "github.com/tuannm99/novastore/internal/record"

// PAXPageHandle lays the slot region out column by column:
//
//	| nullmap_0 ... nullmap_n-1 |
//	| field_0 of slot 0 ... field_0 of slot n-1 |
//	| field_1 of slot 0 ... |
//
// offsets[i] is where the column of field i starts.
type PAXPageHandle struct {
	pageBase
	offsets []int
}

var _ PageHandle = (*PAXPageHandle)(nil)

func (h *PAXPageHandle) nullMap(slot int) []byte {
	n := h.hdr.NullMapSize
	return h.slots[slot*n : (slot+1)*n]
}

func (h *PAXPageHandle) cell(slot, field int) []byte {
	size := h.schema.FieldAt(field).FieldSize()
	off := h.offsets[field] + slot*size
	return h.slots[off : off+size]
}

func (h *PAXPageHandle) WriteSlot(slot int, nullMap, data []byte, update bool) error {
	if err := h.checkSlot(slot, update); err != nil {
		return err
	}
	if err := h.checkBuffers(nullMap, data); err != nil {
		return err
	}
	copy(h.nullMap(slot), nullMap)
	for i := range h.offsets {
		off := h.schema.FieldOffset(i)
		copy(h.cell(slot, i), data[off:off+h.schema.FieldAt(i).FieldSize()])
	}
	return nil
}

func (h *PAXPageHandle) ReadSlot(slot int, nullMap, data []byte) error {
	if err := h.checkSlot(slot, true); err != nil {
		return err
	}
	if err := h.checkBuffers(nullMap, data); err != nil {
		return err
	}
	copy(nullMap, h.nullMap(slot))
	for i := range h.offsets {
		off := h.schema.FieldOffset(i)
		copy(data[off:off+h.schema.FieldAt(i).FieldSize()], h.cell(slot, i))
	}
	return nil
}

func (h *PAXPageHandle) ReadChunk(chunkSchema *record.Schema) (*record.Chunk, error) {
	return h.readChunk(chunkSchema, h.nullMap, h.cell)
}
