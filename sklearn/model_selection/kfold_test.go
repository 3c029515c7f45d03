package model_selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

func TestKFoldPartition(t *testing.T) {
	tests := []struct {
		n, k    int
		shuffle bool
	}{
		{10, 2, false},
		{10, 3, false},
		{10, 10, false},
		{100, 5, false},
		{101, 5, true},
		{7, 7, true},
		{53, 4, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d k=%d shuffle=%v", tt.n, tt.k, tt.shuffle), func(t *testing.T) {
			folds, err := NewKFold(tt.k, tt.shuffle, 42).Split(tt.n)
			require.NoError(t, err)
			require.Len(t, folds, tt.k)

			seen := make([]int, tt.n)
			for i, f := range folds {
				assert.Equal(t, i, f.Index)
				assert.Equal(t, tt.n, len(f.TrainIndices)+len(f.TestIndices))
				assert.InDelta(t, tt.n/tt.k, len(f.TestIndices), 1)

				inTest := map[int]bool{}
				for _, idx := range f.TestIndices {
					seen[idx]++
					inTest[idx] = true
				}
				for j, idx := range f.TrainIndices {
					assert.False(t, inTest[idx], "row %d in both partitions of fold %d", idx, i)
					if j > 0 {
						assert.Less(t, f.TrainIndices[j-1], idx)
					}
				}
			}
			for idx, c := range seen {
				assert.Equal(t, 1, c, "row %d appears in %d test partitions", idx, c)
			}
		})
	}
}

func TestKFoldRemainderGoesFirst(t *testing.T) {
	folds, err := NewKFold(3, false, 0).Split(11)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6, 7}, folds[1].TestIndices)
	assert.Equal(t, []int{8, 9, 10}, folds[2].TestIndices)
	assert.Equal(t, 3, NewKFold(3, false, 0).GetNSplits())
}

func TestKFoldShuffleSeeded(t *testing.T) {
	a, err := NewKFold(5, true, 7).Split(50)
	require.NoError(t, err)
	b, err := NewKFold(5, true, 7).Split(50)
	require.NoError(t, err)
	c, err := NewKFold(5, true, 8).Split(50)
	require.NoError(t, err)
	plain, err := NewKFold(5, false, 7).Split(50)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0].TestIndices, c[0].TestIndices)
	assert.NotEqual(t, a[0].TestIndices, plain[0].TestIndices)
}

func TestKFoldErrors(t *testing.T) {
	tests := []struct {
		name string
		k, n int
	}{
		{"one fold", 1, 10},
		{"zero folds", 0, 10},
		{"more folds than rows", 11, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKFold(tt.k, false, 0).Split(tt.n)
			var ce *errors.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "folds", ce.ParamName)
		})
	}
}
