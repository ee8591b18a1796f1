package record

import (
	"errors"
	"fmt"

	"github.com/tuannm99/novastore/internal/bitmap"
)

type FieldType uint8

const (
	TypeInt32 FieldType = iota
	TypeInt64
	TypeBool
	TypeFloat64
	TypeChar    // fixed width, zero padded
	TypeDecimal // int64 unscaled value at Field.Scale
)

func (t FieldType) String() string {
	switch t {
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeBool:
		return "bool"
	case TypeFloat64:
		return "float64"
	case TypeChar:
		return "char"
	case TypeDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

var (
	ErrSchemaMismatch  = errors.New("record: schema/values mismatch")
	ErrUnsupportedType = errors.New("record: unsupported type")
	ErrValueTooLong    = errors.New("record: value exceeds field size")
	ErrBadSchema       = errors.New("record: invalid schema")
	ErrUnknownField    = errors.New("record: unknown field")
)

// Field is a fixed-size column. Size is only read for TypeChar and
// Scale only for TypeDecimal.
type Field struct {
	Name     string
	Type     FieldType
	Size     int
	Scale    int32
	Nullable bool
}

// FieldSize is the number of bytes the field occupies in a record.
func (f Field) FieldSize() int {
	switch f.Type {
	case TypeInt32:
		return 4
	case TypeInt64, TypeFloat64, TypeDecimal:
		return 8
	case TypeBool:
		return 1
	case TypeChar:
		return f.Size
	default:
		return 0
	}
}

// Schema describes the fixed-size layout of a record: a null map of
// ceil(n/8) bytes followed by the fields packed in declaration order.
type Schema struct {
	fields     []Field
	offsets    []int
	recordSize int
}

func NewSchema(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrBadSchema)
	}
	s := &Schema{
		fields:  make([]Field, len(fields)),
		offsets: make([]int, len(fields)),
	}
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrBadSchema, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Type > TypeDecimal {
			return nil, fmt.Errorf("%w: field %q", ErrUnsupportedType, f.Name)
		}
		if f.FieldSize() <= 0 {
			return nil, fmt.Errorf("%w: field %q has no size", ErrBadSchema, f.Name)
		}
		s.fields[i] = f
		s.offsets[i] = s.recordSize
		s.recordSize += f.FieldSize()
	}
	return s, nil
}

// MustSchema is NewSchema for static schemas in tests and tools.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) NumFields() int        { return len(s.fields) }
func (s *Schema) FieldAt(i int) Field   { return s.fields[i] }
func (s *Schema) FieldOffset(i int) int { return s.offsets[i] }
func (s *Schema) RecordSize() int       { return s.recordSize }
func (s *Schema) NullMapSize() int      { return bitmap.Size(len(s.fields)) }
func (s *Schema) Fields() []Field       { return append([]Field(nil), s.fields...) }

func (s *Schema) FieldIndex(name string) (int, bool) {
	for i, f := range s.fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Project builds a schema with the named fields, in the given order.
func (s *Schema) Project(names ...string) (*Schema, error) {
	out := make([]Field, 0, len(names))
	for _, n := range names {
		i, ok := s.FieldIndex(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, n)
		}
		out = append(out, s.fields[i])
	}
	return NewSchema(out...)
}
