package smogn

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/smogncv/core/parallel"
	"github.com/YuminosukeSato/smogncv/dataset"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/preprocessing"
)

// Neighbor is one entry of a neighbour set: a stratum-local row index and
// its distance to the query row.
type Neighbor struct {
	Index    int
	Distance float64
}

// NeighborSet is ordered by (Distance, Index) ascending.
type NeighborSet []Neighbor

// DistanceOptions configures the mixed-type distance.
type DistanceOptions struct {
	// Normalize min-max scales continuous columns on the stratum.
	Normalize         bool
	ContinuousWeight  float64
	CategoricalWeight float64
}

// DefaultDistanceOptions normalises and weighs both column kinds equally.
func DefaultDistanceOptions() DistanceOptions {
	return DistanceOptions{Normalize: true, ContinuousWeight: 1, CategoricalWeight: 1}
}

// NeighborFinder answers k-nearest-neighbour queries inside one stratum.
//
//	dist(a, b) = sqrt(wc·Σ_cont (a−b)² + wk·Σ_cat [a≠b])
type NeighborFinder struct {
	opts   DistanceOptions
	cont   []int
	cat    []int
	raw    [][]float64 // stratum rows as given
	space  [][]float64 // continuous values after optional scaling
	scaler *preprocessing.MinMaxScaler
}

// NewNeighborFinder builds a finder over rows, which all belong to the
// same stratum. Rows are not copied and must not be modified afterwards.
func NewNeighborFinder(rows [][]float64, schema dataset.Schema, opts DistanceOptions) (*NeighborFinder, error) {
	f := &NeighborFinder{
		opts: opts,
		cont: schema.ContinuousIndices(),
		cat:  schema.CategoricalIndices(),
		raw:  rows,
	}

	f.space = make([][]float64, len(rows))
	for i, row := range rows {
		f.space[i] = pick(row, f.cont)
	}
	if !opts.Normalize || len(rows) == 0 || len(f.cont) == 0 {
		return f, nil
	}

	m := mat.NewDense(len(rows), len(f.cont), nil)
	for i, v := range f.space {
		m.SetRow(i, v)
	}
	f.scaler = preprocessing.NewMinMaxScalerDefault()
	scaled, err := f.scaler.FitTransform(m)
	if err != nil {
		return nil, errors.Wrap(err, "normalise stratum")
	}
	for i := range f.space {
		f.space[i] = mat.Row(nil, i, scaled)
	}
	return f, nil
}

func pick(row []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, j := range idx {
		out[k] = row[j]
	}
	return out
}

// Len returns the stratum size.
func (f *NeighborFinder) Len() int { return len(f.raw) }

// Row returns stratum row i as given to the finder.
func (f *NeighborFinder) Row(i int) []float64 { return f.raw[i] }

func (f *NeighborFinder) distance(aSpace, aRaw []float64, j int) float64 {
	var sc float64
	for k, v := range aSpace {
		d := v - f.space[j][k]
		sc += d * d
	}
	var sk float64
	for _, c := range f.cat {
		if aRaw[c] != f.raw[j][c] {
			sk++
		}
	}
	return math.Sqrt(f.opts.ContinuousWeight*sc + f.opts.CategoricalWeight*sk)
}

// Distance between stratum rows i and j.
func (f *NeighborFinder) Distance(i, j int) float64 {
	return f.distance(f.space[i], f.raw[i], j)
}

// DistanceTo measures an arbitrary row (in raw feature space) against
// stratum row j.
func (f *NeighborFinder) DistanceTo(row []float64, j int) (float64, error) {
	space, err := f.project(row)
	if err != nil {
		return 0, err
	}
	return f.distance(space, row, j), nil
}

func (f *NeighborFinder) project(row []float64) ([]float64, error) {
	space := pick(row, f.cont)
	if f.scaler == nil {
		return space, nil
	}
	return f.scaler.TransformRow(space)
}

// Neighbors returns the k nearest stratum rows to stratum row i, excluding
// i itself. k is reduced to Len()-1 when the stratum is too small, and a
// stratum with fewer than two rows yields an empty set.
func (f *NeighborFinder) Neighbors(i, k int) NeighborSet {
	return f.nearest(f.space[i], f.raw[i], k, i)
}

// NearestTo returns the k nearest stratum rows to row, skipping stratum
// index exclude (pass -1 to keep all).
func (f *NeighborFinder) NearestTo(row []float64, k, exclude int) (NeighborSet, error) {
	space, err := f.project(row)
	if err != nil {
		return nil, err
	}
	return f.nearest(space, row, k, exclude), nil
}

func (f *NeighborFinder) nearest(space, raw []float64, k, exclude int) NeighborSet {
	candidates := f.Len()
	if exclude >= 0 && exclude < f.Len() {
		candidates--
	}
	if k > candidates {
		k = candidates
	}
	if k <= 0 || f.Len() < 2 {
		return NeighborSet{}
	}

	all := make(NeighborSet, 0, candidates)
	for j := range f.raw {
		if j == exclude {
			continue
		}
		all = append(all, Neighbor{Index: j, Distance: f.distance(space, raw, j)})
	}
	slices.SortFunc(all, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return all[:k:k]
}

// AllNeighbors computes Neighbors(i, k) for every stratum row using up to
// workers goroutines. Slot i holds row i's set, so the result does not
// depend on scheduling.
func (f *NeighborFinder) AllNeighbors(k, workers int) []NeighborSet {
	out := make([]NeighborSet, f.Len())
	parallel.ParallelizeWithThreshold(f.Len(), 64, workers, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = f.Neighbors(i, k)
		}
	})
	return out
}
