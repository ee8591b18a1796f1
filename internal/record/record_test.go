package record

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// makeTestSchema builds a simple schema used across tests.
func makeTestSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(
		Field{Name: "id32", Type: TypeInt32},
		Field{Name: "id64", Type: TypeInt64},
		Field{Name: "active", Type: TypeBool},
		Field{Name: "score", Type: TypeFloat64},
		Field{Name: "name", Type: TypeChar, Size: 16, Nullable: true},
		Field{Name: "price", Type: TypeDecimal, Scale: 2, Nullable: true},
	)
	require.NoError(t, err)
	return s
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestSchema_Layout(t *testing.T) {
	s := makeTestSchema(t)

	require.Equal(t, 6, s.NumFields())
	require.Equal(t, 1, s.NullMapSize())
	require.Equal(t, 4+8+1+8+16+8, s.RecordSize())

	require.Equal(t, 0, s.FieldOffset(0))
	require.Equal(t, 4, s.FieldOffset(1))
	require.Equal(t, 12, s.FieldOffset(2))
	require.Equal(t, 13, s.FieldOffset(3))
	require.Equal(t, 21, s.FieldOffset(4))
	require.Equal(t, 37, s.FieldOffset(5))

	i, ok := s.FieldIndex("score")
	require.True(t, ok)
	require.Equal(t, 3, i)
	_, ok = s.FieldIndex("missing")
	require.False(t, ok)
}

func TestNewSchema_Invalid(t *testing.T) {
	_, err := NewSchema()
	require.ErrorIs(t, err, ErrBadSchema)

	_, err = NewSchema(Field{Name: "a", Type: TypeInt32}, Field{Name: "a", Type: TypeInt64})
	require.ErrorIs(t, err, ErrBadSchema)

	_, err = NewSchema(Field{Name: "c", Type: TypeChar})
	require.ErrorIs(t, err, ErrBadSchema)

	_, err = NewSchema(Field{Name: "x", Type: FieldType(99)})
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSchema_Project(t *testing.T) {
	s := makeTestSchema(t)

	p, err := s.Project("score", "id32")
	require.NoError(t, err)
	require.Equal(t, 2, p.NumFields())
	require.Equal(t, "score", p.FieldAt(0).Name)
	require.Equal(t, 12, p.RecordSize())

	_, err = s.Project("nope")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestRecord_RoundTrip(t *testing.T) {
	s := makeTestSchema(t)

	values := []any{
		int32(42),
		int64(123456789),
		true,
		3.14159,
		"hello",
		mustDecimal(t, "19.99"),
	}

	rec, err := NewRecord(s, values)
	require.NoError(t, err)
	require.Len(t, rec.Data(), s.RecordSize())
	require.Equal(t, InvalidRID, rec.RID())

	got := rec.Values()
	require.Equal(t, int32(42), got[0])
	require.Equal(t, int64(123456789), got[1])
	require.Equal(t, true, got[2])
	require.InDelta(t, 3.14159, got[3].(float64), 1e-9)
	require.Equal(t, "hello", got[4])
	require.True(t, mustDecimal(t, "19.99").Equal(got[5].(decimal.Decimal)))
}

func TestRecord_Nulls(t *testing.T) {
	s := makeTestSchema(t)

	rec, err := NewRecord(s, []any{1, 2, false, 0.5, nil, nil})
	require.NoError(t, err)
	require.True(t, rec.IsNull(4))
	require.True(t, rec.IsNull(5))
	require.False(t, rec.IsNull(0))
	require.Nil(t, rec.Value(4))

	// id32 is not nullable
	_, err = NewRecord(s, []any{nil, 2, false, 0.5, nil, nil})
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestRecord_InvalidValues(t *testing.T) {
	s := makeTestSchema(t)

	// Wrong number of values
	_, err := NewRecord(s, []any{1, 2})
	require.ErrorIs(t, err, ErrSchemaMismatch)

	// Wrong type (id64 should be an integer)
	_, err = NewRecord(s, []any{1, "x", false, 0.5, nil, nil})
	require.ErrorIs(t, err, ErrSchemaMismatch)

	// Char too long
	_, err = NewRecord(s, []any{1, 2, false, 0.5, "this string is far too long", nil})
	require.ErrorIs(t, err, ErrValueTooLong)
}

func TestFromBytes_Copies(t *testing.T) {
	s := makeTestSchema(t)
	src, err := NewRecord(s, []any{7, 8, true, 1.0, "n", "1.50"})
	require.NoError(t, err)

	nm := append([]byte(nil), src.NullMap()...)
	data := append([]byte(nil), src.Data()...)
	rid := RID{PageID: 3, SlotID: 4}

	rec := FromBytes(s, nm, data, rid)
	data[0] = 0xff

	require.Equal(t, rid, rec.RID())
	require.Equal(t, int32(7), rec.Value(0))
	require.Equal(t, "rid(3,4)", rid.String())
	require.False(t, InvalidRID.IsValid())
}

func TestChunk_Rows(t *testing.T) {
	a := NewArrayValue(Field{Name: "a", Type: TypeInt32})
	b := NewArrayValue(Field{Name: "b", Type: TypeBool})
	a.Append(int32(1))
	a.Append(int32(2))
	b.Append(true)
	b.Append(false)

	c := NewChunk(MustSchema(a.Field, b.Field), []*ArrayValue{a, b})
	require.Equal(t, 2, c.NumRows())
	require.Equal(t, []any{int32(2), false}, c.Row(1))
	require.Equal(t, 0, NewChunk(nil, nil).NumRows())
}
