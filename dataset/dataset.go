package dataset

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

// Synthetic is the Origin of a row manufactured by the resampler.
const Synthetic = -1

// Dataset is an immutable table of rows. Missing values are NaN.
//
// Origin(i) is the index of row i in the dataset it was loaded from, or
// Synthetic. Subset and Concat carry origins through, so a fold's
// resampled training set can be traced back to source rows.
type Dataset struct {
	schema Schema
	x      [][]float64
	y      []float64
	origin []int
}

// New copies x and y into a Dataset whose origins are 0..n-1.
func New(schema Schema, x [][]float64, y []float64) (*Dataset, error) {
	origin := make([]int, len(y))
	for i := range origin {
		origin[i] = i
	}
	return NewWithOrigin(schema, x, y, origin)
}

// NewWithOrigin is New with explicit origins.
func NewWithOrigin(schema Schema, x [][]float64, y []float64, origin []int) (*Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, errors.NewDimensionError("dataset.New", len(x), len(y), 0)
	}
	if len(origin) != len(y) {
		return nil, errors.NewDimensionError("dataset.New", len(y), len(origin), 0)
	}
	p := schema.NumFeatures()
	ds := &Dataset{
		schema: schema,
		x:      make([][]float64, len(x)),
		y:      append([]float64(nil), y...),
		origin: append([]int(nil), origin...),
	}
	for i, row := range x {
		if len(row) != p {
			return nil, errors.NewDimensionError("dataset.New", p, len(row), 1)
		}
		if err := checkCodes(schema, row); err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		ds.x[i] = append([]float64(nil), row...)
	}
	return ds, nil
}

func checkCodes(schema Schema, row []float64) error {
	for j, c := range schema.Columns {
		if c.Kind != Categorical || math.IsNaN(row[j]) {
			continue
		}
		v := row[j]
		if v != math.Trunc(v) || v < 0 || int(v) >= len(c.Levels) {
			return errors.NewValueError("dataset.New", "invalid categorical code for column "+c.Name)
		}
	}
	return nil
}

// Schema returns the column description.
func (d *Dataset) Schema() Schema { return d.schema }

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return len(d.y) }

// NumFeatures returns the number of feature columns.
func (d *Dataset) NumFeatures() int { return d.schema.NumFeatures() }

// Row returns a copy of row i's features.
func (d *Dataset) Row(i int) []float64 { return append([]float64(nil), d.x[i]...) }

// RowView returns row i's features without copying. Callers must not
// modify the slice.
func (d *Dataset) RowView(i int) []float64 { return d.x[i] }

// Target returns row i's target.
func (d *Dataset) Target(i int) float64 { return d.y[i] }

// Targets returns a copy of the target column.
func (d *Dataset) Targets() []float64 { return append([]float64(nil), d.y...) }

// Origin returns row i's source index or Synthetic.
func (d *Dataset) Origin(i int) int { return d.origin[i] }

// Origins returns a copy of all origins.
func (d *Dataset) Origins() []int { return append([]int(nil), d.origin...) }

// NumSynthetic counts rows with Origin == Synthetic.
func (d *Dataset) NumSynthetic() int {
	n := 0
	for _, o := range d.origin {
		if o == Synthetic {
			n++
		}
	}
	return n
}

// Subset returns a deep copy of the given rows, in the given order.
func (d *Dataset) Subset(indices []int) *Dataset {
	out := &Dataset{
		schema: d.schema,
		x:      make([][]float64, len(indices)),
		y:      make([]float64, len(indices)),
		origin: make([]int, len(indices)),
	}
	for k, i := range indices {
		out.x[k] = append([]float64(nil), d.x[i]...)
		out.y[k] = d.y[i]
		out.origin[k] = d.origin[i]
	}
	return out
}

// Features returns the feature matrix (n × p).
func (d *Dataset) Features() *mat.Dense {
	n, p := d.NumRows(), d.NumFeatures()
	if n == 0 || p == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(n, p, nil)
	for i, row := range d.x {
		m.SetRow(i, row)
	}
	return m
}

// TargetVector returns the target as an n × 1 matrix.
func (d *Dataset) TargetVector() *mat.Dense {
	if len(d.y) == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(len(d.y), 1, d.Targets())
}

// HasMissing reports whether any feature or target is NaN or infinite.
func (d *Dataset) HasMissing() bool {
	for i := range d.y {
		if !d.rowFinite(i) {
			return true
		}
	}
	return false
}

func (d *Dataset) rowFinite(i int) bool {
	if !finite(d.y[i]) {
		return false
	}
	for _, v := range d.x[i] {
		if !finite(v) {
			return false
		}
	}
	return true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// DropMissing returns the rows whose features and target are all finite,
// and the number of rows removed.
func (d *Dataset) DropMissing() (*Dataset, int) {
	keep := make([]int, 0, len(d.y))
	for i := range d.y {
		if d.rowFinite(i) {
			keep = append(keep, i)
		}
	}
	return d.Subset(keep), len(d.y) - len(keep)
}

// Concat appends the rows of others to d. All schemas must have the same
// feature count.
func Concat(d *Dataset, others ...*Dataset) (*Dataset, error) {
	b := NewBuilder(d.schema, d.NumRows())
	for _, src := range append([]*Dataset{d}, others...) {
		if src.NumFeatures() != d.NumFeatures() {
			return nil, errors.NewDimensionError("dataset.Concat", d.NumFeatures(), src.NumFeatures(), 1)
		}
		for i := range src.y {
			b.Add(src.x[i], src.y[i], src.origin[i])
		}
	}
	return b.Build(), nil
}

// Builder accumulates rows for a Dataset. Rows are copied on Add.
type Builder struct {
	ds *Dataset
}

// NewBuilder starts an empty dataset with the given schema.
func NewBuilder(schema Schema, capacity int) *Builder {
	return &Builder{ds: &Dataset{
		schema: schema,
		x:      make([][]float64, 0, capacity),
		y:      make([]float64, 0, capacity),
		origin: make([]int, 0, capacity),
	}}
}

// Add appends one row.
func (b *Builder) Add(row []float64, target float64, origin int) {
	b.ds.x = append(b.ds.x, append([]float64(nil), row...))
	b.ds.y = append(b.ds.y, target)
	b.ds.origin = append(b.ds.origin, origin)
}

// Len returns the number of rows added so far.
func (b *Builder) Len() int { return len(b.ds.y) }

// Build returns the dataset. The builder must not be used afterwards.
func (b *Builder) Build() *Dataset {
	ds := b.ds
	b.ds = nil
	return ds
}
