package heap

import "github.com/tuannm99/novastore/internal/record"

// NAryPageHandle stores slot i as null map followed by the record bytes at
// i*(nullMapSize+recordSize).
type NAryPageHandle struct {
	pageBase
}

var _ PageHandle = (*NAryPageHandle)(nil)

func (h *NAryPageHandle) slot(i int) []byte {
	stride := h.hdr.NullMapSize + h.hdr.RecordSize
	return h.slots[i*stride : (i+1)*stride]
}

func (h *NAryPageHandle) WriteSlot(slot int, nullMap, data []byte, update bool) error {
	if err := h.checkSlot(slot, update); err != nil {
		return err
	}
	if err := h.checkBuffers(nullMap, data); err != nil {
		return err
	}
	s := h.slot(slot)
	copy(s, nullMap)
	copy(s[h.hdr.NullMapSize:], data)
	return nil
}

func (h *NAryPageHandle) ReadSlot(slot int, nullMap, data []byte) error {
	if err := h.checkSlot(slot, true); err != nil {
		return err
	}
	if err := h.checkBuffers(nullMap, data); err != nil {
		return err
	}
	s := h.slot(slot)
	copy(nullMap, s[:h.hdr.NullMapSize])
	copy(data, s[h.hdr.NullMapSize:])
	return nil
}

func (h *NAryPageHandle) ReadChunk(chunkSchema *record.Schema) (*record.Chunk, error) {
	return h.readChunk(chunkSchema,
		func(slot int) []byte { return h.slot(slot)[:h.hdr.NullMapSize] },
		func(slot, j int) []byte {
			off := h.hdr.NullMapSize + h.schema.FieldOffset(j)
			return h.slot(slot)[off : off+h.schema.FieldAt(j).FieldSize()]
		},
	)
}
