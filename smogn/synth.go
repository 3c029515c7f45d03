package smogn

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/smogncv/dataset"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

// Sampler manufactures synthetic rows for one stratum.
type Sampler struct {
	finder       *NeighborFinder
	targets      []float64
	cont         []int
	cat          []int
	perturbation float64
}

// NewSampler binds a stratum's finder and targets. perturbation is the
// upper bound of the interpolation factor and must lie in (0, 1).
func NewSampler(finder *NeighborFinder, targets []float64, schema dataset.Schema, perturbation float64) *Sampler {
	return &Sampler{
		finder:       finder,
		targets:      targets,
		cont:         schema.ContinuousIndices(),
		cat:          schema.CategoricalIndices(),
		perturbation: perturbation,
	}
}

// Synthesize builds one row from parent and nbr, where set is parent's
// full neighbour set and nbr one of its members.
//
// Continuous features move from the parent towards the neighbour by a
// factor drawn from U(0, perturbation), so they stay on the closed segment
// between the two. Categorical features take the majority value over the
// parent and its neighbour set. The target is the inverse-distance weighted
// mean of the parent and neighbour targets.
func (s *Sampler) Synthesize(rng *rand.Rand, parent int, set NeighborSet, nbr Neighbor) ([]float64, float64) {
	p := s.finder.Row(parent)
	n := s.finder.Row(nbr.Index)

	row := make([]float64, len(p))
	for _, j := range s.cont {
		u := rng.Float64() * s.perturbation
		row[j] = p[j] + u*(n[j]-p[j])
	}
	for _, j := range s.cat {
		row[j] = s.majority(parent, set, j)
	}

	dp, errP := s.finder.DistanceTo(row, parent)
	dn, errN := s.finder.DistanceTo(row, nbr.Index)
	yp, yn := s.targets[parent], s.targets[nbr.Index]
	mean := (yp + yn) / 2
	if errP != nil || errN != nil {
		return row, mean
	}
	return row, errors.SafeDivide(dn*yp+dp*yn, dp+dn, mean)
}

// majority returns the most frequent value of column j among the parent
// and its neighbours. Ties keep the parent's value when it is among the
// leaders, otherwise the nearest neighbour's leading value wins.
func (s *Sampler) majority(parent int, set NeighborSet, j int) float64 {
	pv := s.finder.Row(parent)[j]
	counts := map[float64]int{pv: 1}
	for _, nb := range set {
		counts[s.finder.Row(nb.Index)[j]]++
	}
	best := 0
	for _, c := range counts {
		if c > best {
			best = c
		}
	}
	if counts[pv] == best {
		return pv
	}
	for _, nb := range set {
		if v := s.finder.Row(nb.Index)[j]; counts[v] == best {
			return v
		}
	}
	return pv
}

// SynthesizeN draws n rows for parent, cycling through a random
// permutation of set and wrapping around once it is exhausted.
func (s *Sampler) SynthesizeN(rng *rand.Rand, parent int, set NeighborSet, n int) ([][]float64, []float64) {
	if n <= 0 || len(set) == 0 {
		return nil, nil
	}
	order := rng.Perm(len(set))
	rows := make([][]float64, 0, n)
	ys := make([]float64, 0, n)
	for m := 0; m < n; m++ {
		row, y := s.Synthesize(rng, parent, set, set[order[m%len(order)]])
		rows = append(rows, row)
		ys = append(ys, y)
	}
	return rows, ys
}
