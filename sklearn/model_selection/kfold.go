// Package model_selection provides k-fold splitting and the cross-validation
// harness that resamples each fold's training partition in isolation.
package model_selection

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

// Fold is one train/test partition. Indices refer to rows of the dataset
// that was split.
type Fold struct {
	Index        int
	TrainIndices []int
	TestIndices  []int
}

// KFold splits n rows into NSplits disjoint test partitions.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a k-fold splitter. Parameters are checked by Split.
func NewKFold(nSplits int, shuffle bool, seed uint64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split returns the folds for n rows. The first n % NSplits folds get one
// extra test row. With Shuffle the row order is permuted once, with a PCG
// seeded by Seed, before partitioning. Train indices are ascending.
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewConfigurationError("folds", "must be at least 2", kf.NSplits)
	}
	if kf.NSplits > n {
		return nil, errors.NewConfigurationError("folds", "cannot exceed the number of rows", kf.NSplits)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.Seed, kf.Seed))
		r.Shuffle(n, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits
	inTest := make([]bool, n)

	current := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := make([]int, testSize)
		copy(test, order[current:current+testSize])
		for _, idx := range test {
			inTest[idx] = true
		}

		train := make([]int, 0, n-testSize)
		for idx := 0; idx < n; idx++ {
			if !inTest[idx] {
				train = append(train, idx)
			}
		}
		for _, idx := range test {
			inTest[idx] = false
		}

		folds[i] = Fold{Index: i, TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds, nil
}
