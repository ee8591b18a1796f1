package record

import (
	"fmt"

	"github.com/tuannm99/novastore/internal/bitmap"
)

// Record is one fixed-size row: a null map (bit=1 => NULL) plus the packed
// field bytes described by its schema.
type Record struct {
	schema  *Schema
	nullMap []byte
	data    []byte
	rid     RID
}

// NewRecord encodes values into a record. A nil value marks the field NULL.
func NewRecord(s *Schema, values []any) (*Record, error) {
	if len(values) != s.NumFields() {
		return nil, fmt.Errorf("%w: %d values for %d fields", ErrSchemaMismatch, len(values), s.NumFields())
	}
	r := &Record{
		schema:  s,
		nullMap: make([]byte, s.NullMapSize()),
		data:    make([]byte, s.RecordSize()),
		rid:     InvalidRID,
	}
	for i, v := range values {
		f := s.FieldAt(i)
		if v == nil {
			if !f.Nullable {
				return nil, fmt.Errorf("%w: field %q is not nullable", ErrSchemaMismatch, f.Name)
			}
			bitmap.SetBit(r.nullMap, i, true)
			continue
		}
		off := s.FieldOffset(i)
		if err := EncodeValue(f, v, r.data[off:off+f.FieldSize()]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FromBytes copies raw null map and data read out of a page.
func FromBytes(s *Schema, nullMap, data []byte, rid RID) *Record {
	return &Record{
		schema:  s,
		nullMap: append([]byte(nil), nullMap...),
		data:    append([]byte(nil), data...),
		rid:     rid,
	}
}

func (r *Record) Schema() *Schema { return r.schema }
func (r *Record) NullMap() []byte { return r.nullMap }
func (r *Record) Data() []byte    { return r.data }
func (r *Record) RID() RID        { return r.rid }

func (r *Record) IsNull(i int) bool {
	return bitmap.GetBit(r.nullMap, i)
}

// Value decodes field i, nil when NULL.
func (r *Record) Value(i int) any {
	if r.IsNull(i) {
		return nil
	}
	f := r.schema.FieldAt(i)
	off := r.schema.FieldOffset(i)
	return DecodeValue(f, r.data[off:off+f.FieldSize()])
}

func (r *Record) Values() []any {
	out := make([]any, r.schema.NumFields())
	for i := range out {
		out[i] = r.Value(i)
	}
	return out
}
