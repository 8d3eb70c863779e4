package models

import (
	"fmt"
	"math"
	"time"
)

// Frame is a column-oriented table indexed by strictly increasing timestamps.
// Missing values are NaN; every column has exactly len(Index) entries.
// It is the working representation shared by the aligner, the feature engine
// and the model adapter, so both the batch and live paths run over the same
// structure with the same missing-value semantics.
type Frame struct {
	index    []time.Time
	columns  map[string][]float64
	order    []string
	degraded map[string]bool
}

// NewFrame creates an empty frame over the given timestamp index.
func NewFrame(index []time.Time) *Frame {
	return &Frame{
		index:    index,
		columns:  make(map[string][]float64),
		degraded: make(map[string]bool),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// Index returns the timestamp index. Callers must not mutate it.
func (f *Frame) Index() []time.Time { return f.index }

// Set stores a column, replacing any existing column of the same name.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.index) {
		return fmt.Errorf("frame: column %q has %d values, index has %d", name, len(values), len(f.index))
	}
	if _, exists := f.columns[name]; !exists {
		f.order = append(f.order, name)
	}
	f.columns[name] = values
	return nil
}

// MustSet stores a column and panics on length mismatch. Feature engine code
// only ever derives columns from the frame's own index, so a mismatch there
// is a programming error, not a data condition.
func (f *Frame) MustSet(name string, values []float64) {
	if err := f.Set(name, values); err != nil {
		panic(err)
	}
}

// Column returns the named column, or false if absent.
func (f *Frame) Column(name string) ([]float64, bool) {
	c, ok := f.columns[name]
	return c, ok
}

// Has reports whether the named column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// MarkDegraded flags a column as a neutral placeholder rather than a real
// computation, so downstream consumers can surface the substitution.
func (f *Frame) MarkDegraded(name string) { f.degraded[name] = true }

// IsDegraded reports whether the column was produced as a placeholder.
func (f *Frame) IsDegraded(name string) bool { return f.degraded[name] }

// DegradedColumns returns the placeholder columns in insertion order.
func (f *Frame) DegradedColumns() []string {
	var out []string
	for _, name := range f.order {
		if f.degraded[name] {
			out = append(out, name)
		}
	}
	return out
}

// At returns the value of column name at row i, or NaN if the column is absent.
func (f *Frame) At(name string, i int) float64 {
	c, ok := f.columns[name]
	if !ok || i < 0 || i >= len(c) {
		return math.NaN()
	}
	return c[i]
}

// Last returns the value of column name at the final row.
func (f *Frame) Last(name string) float64 {
	return f.At(name, len(f.index)-1)
}

// LastTimestamp returns the final index entry, or the zero time if empty.
func (f *Frame) LastTimestamp() time.Time {
	if len(f.index) == 0 {
		return time.Time{}
	}
	return f.index[len(f.index)-1]
}

// RowAt looks up row i of the named columns, in order. Absent columns yield NaN.
func (f *Frame) RowAt(i int, names []string) []float64 {
	out := make([]float64, len(names))
	for j, name := range names {
		out[j] = f.At(name, i)
	}
	return out
}
