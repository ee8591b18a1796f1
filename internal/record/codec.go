package record

import (
	"bytes"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/tuannm99/novastore/internal/alias/bx"
)

// EncodeValue writes v into dst, which must be exactly f.FieldSize() bytes.
func EncodeValue(f Field, v any, dst []byte) error {
	switch f.Type {
	case TypeInt32:
		x, ok := asInt32(v)
		if !ok {
			return fmt.Errorf("%w: field %q wants int32, got %T", ErrSchemaMismatch, f.Name, v)
		}
		bx.PutU32(dst, uint32(x))

	case TypeInt64:
		x, ok := asInt64(v)
		if !ok {
			return fmt.Errorf("%w: field %q wants int64, got %T", ErrSchemaMismatch, f.Name, v)
		}
		bx.PutU64(dst, uint64(x))

	case TypeBool:
		x, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%w: field %q wants bool, got %T", ErrSchemaMismatch, f.Name, v)
		}
		dst[0] = 0
		if x {
			dst[0] = 1
		}

	case TypeFloat64:
		x, ok := asFloat64(v)
		if !ok {
			return fmt.Errorf("%w: field %q wants float64, got %T", ErrSchemaMismatch, f.Name, v)
		}
		bx.PutU64(dst, math.Float64bits(x))

	case TypeChar:
		var bs []byte
		switch x := v.(type) {
		case string:
			bs = []byte(x)
		case []byte:
			bs = x
		default:
			return fmt.Errorf("%w: field %q wants string, got %T", ErrSchemaMismatch, f.Name, v)
		}
		if len(bs) > f.Size {
			return fmt.Errorf("%w: field %q (%d > %d)", ErrValueTooLong, f.Name, len(bs), f.Size)
		}
		n := copy(dst, bs)
		clear(dst[n:])

	case TypeDecimal:
		d, ok := asDecimal(v)
		if !ok {
			return fmt.Errorf("%w: field %q wants decimal, got %T", ErrSchemaMismatch, f.Name, v)
		}
		unscaled := d.Round(f.Scale).Shift(f.Scale)
		if !unscaled.Equal(decimal.NewFromInt(unscaled.IntPart())) {
			return fmt.Errorf("%w: field %q decimal out of range", ErrValueTooLong, f.Name)
		}
		bx.PutU64(dst, uint64(unscaled.IntPart()))

	default:
		return ErrUnsupportedType
	}
	return nil
}

// DecodeValue builds a Go value from the raw bytes of one field.
func DecodeValue(f Field, src []byte) any {
	switch f.Type {
	case TypeInt32:
		return int32(bx.U32(src))
	case TypeInt64:
		return int64(bx.U64(src))
	case TypeBool:
		return src[0] != 0
	case TypeFloat64:
		return math.Float64frombits(bx.U64(src))
	case TypeChar:
		return string(bytes.TrimRight(src[:f.Size], "\x00"))
	case TypeDecimal:
		return decimal.New(int64(bx.U64(src)), -f.Scale)
	default:
		return nil
	}
}

// ---- small helpers to accept multiple numeric types on encode ----
func asInt32(v any) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	case int64:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	}
	return decimal.Decimal{}, false
}
