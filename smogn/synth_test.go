package smogn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeStaysOnSegment(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 11))
	rows := make([][]float64, 30)
	targets := make([]float64, 30)
	for i := range rows {
		rows[i] = []float64{rng.Float64() * 100, rng.NormFloat64(), float64(rng.IntN(3))}
		targets[i] = 10 + rng.Float64()*90
	}
	schema := contSchema(2)
	schema.Columns = append(schema.Columns, mixedSchema().Columns[1])

	f, err := NewNeighborFinder(rows, schema, DefaultDistanceOptions())
	require.NoError(t, err)
	s := NewSampler(f, targets, schema, 0.9)

	for parent := range rows {
		set := f.Neighbors(parent, 5)
		for _, nb := range set {
			row, y := s.Synthesize(rng, parent, set, nb)
			p, n := rows[parent], rows[nb.Index]
			for _, j := range []int{0, 1} {
				lo, hi := math.Min(p[j], n[j]), math.Max(p[j], n[j])
				assert.GreaterOrEqual(t, row[j], lo-1e-9)
				assert.LessOrEqual(t, row[j], hi+1e-9)
			}
			lo, hi := math.Min(targets[parent], targets[nb.Index]), math.Max(targets[parent], targets[nb.Index])
			assert.GreaterOrEqual(t, y, lo-1e-9)
			assert.LessOrEqual(t, y, hi+1e-9)
		}
	}
}

func TestSynthesizeTarget(t *testing.T) {
	rows := [][]float64{{0}, {10}}
	f, err := NewNeighborFinder(rows, contSchema(1), raw())
	require.NoError(t, err)

	t.Run("inverse distance weighting", func(t *testing.T) {
		s := NewSampler(f, []float64{0, 100}, contSchema(1), 0.9)
		rng := rand.New(rand.NewPCG(3, 3))
		set := f.Neighbors(0, 1)
		row, y := s.Synthesize(rng, 0, set, set[0])
		// on a 1-D segment the weighted target is linear in position
		assert.InDelta(t, row[0]*10, y, 1e-9)
	})

	t.Run("identical rows average targets", func(t *testing.T) {
		same, err := NewNeighborFinder([][]float64{{4}, {4}}, contSchema(1), raw())
		require.NoError(t, err)
		s := NewSampler(same, []float64{2, 6}, contSchema(1), 0.5)
		set := same.Neighbors(0, 1)
		_, y := s.Synthesize(rand.New(rand.NewPCG(1, 2)), 0, set, set[0])
		assert.Equal(t, 4.0, y)
	})
}

func TestSynthesizeCategoricalMajority(t *testing.T) {
	schema := mixedSchema()
	tests := []struct {
		name string
		rows [][]float64
		want float64
	}{
		{
			name: "majority of neighbours wins",
			rows: [][]float64{{0, 0}, {1, 1}, {2, 1}, {3, 2}},
			want: 1,
		},
		{
			name: "tie keeps parent",
			rows: [][]float64{{0, 0}, {1, 1}, {2, 0}, {3, 1}},
			want: 0,
		},
		{
			name: "tie without parent goes to nearest neighbour",
			rows: [][]float64{{0, 0}, {1, 2}, {2, 1}, {3, 1}, {4, 2}},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewNeighborFinder(tt.rows, schema, DistanceOptions{ContinuousWeight: 1})
			require.NoError(t, err)
			s := NewSampler(f, make([]float64, len(tt.rows)), schema, 0.5)
			set := f.Neighbors(0, len(tt.rows)-1)
			row, _ := s.Synthesize(rand.New(rand.NewPCG(5, 5)), 0, set, set[0])
			assert.Equal(t, tt.want, row[1])
		})
	}
}

func TestSynthesizeN(t *testing.T) {
	rows := [][]float64{{0}, {10}, {20}}
	f, err := NewNeighborFinder(rows, contSchema(1), raw())
	require.NoError(t, err)
	s := NewSampler(f, []float64{0, 10, 20}, contSchema(1), 0.9)
	set := f.Neighbors(0, 2)

	got, ys := s.SynthesizeN(rand.New(rand.NewPCG(9, 9)), 0, set, 5)
	require.Len(t, got, 5)
	require.Len(t, ys, 5)
	for _, r := range got {
		assert.GreaterOrEqual(t, r[0], 0.0)
		assert.LessOrEqual(t, r[0], 20.0)
	}

	again, _ := s.SynthesizeN(rand.New(rand.NewPCG(9, 9)), 0, set, 5)
	assert.Equal(t, got, again)

	none, _ := s.SynthesizeN(rand.New(rand.NewPCG(9, 9)), 0, NeighborSet{}, 5)
	assert.Nil(t, none)
}
