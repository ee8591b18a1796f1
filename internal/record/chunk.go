package record

// ArrayValue is one materialized column.
type ArrayValue struct {
	Field  Field
	values []any
}

func NewArrayValue(f Field) *ArrayValue {
	return &ArrayValue{Field: f}
}

func (a *ArrayValue) Append(v any)  { a.values = append(a.values, v) }
func (a *ArrayValue) Len() int      { return len(a.values) }
func (a *ArrayValue) At(i int) any  { return a.values[i] }
func (a *ArrayValue) Values() []any { return a.values }

// Chunk is a columnar batch: one ArrayValue per schema field, all of the
// same length. It never aliases page memory.
type Chunk struct {
	Schema  *Schema
	Columns []*ArrayValue
}

func NewChunk(s *Schema, cols []*ArrayValue) *Chunk {
	return &Chunk{Schema: s, Columns: cols}
}

func (c *Chunk) NumRows() int {
	if len(c.Columns) == 0 {
		return 0
	}
	return c.Columns[0].Len()
}

func (c *Chunk) Row(i int) []any {
	row := make([]any, len(c.Columns))
	for j, col := range c.Columns {
		row[j] = col.At(i)
	}
	return row
}
