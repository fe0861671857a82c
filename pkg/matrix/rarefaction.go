package matrix

import (
	"fmt"
	"math/rand"
)

// Point is one rarefaction curve sample: pan and core genome sizes after
// accumulating k genomes, averaged over all permutation trials.
type Point struct {
	K        int
	PanMean  float64
	PanVar   float64
	CoreMean float64
	CoreVar  float64
}

// Estimator computes permutation-averaged pan/core rarefaction curves. The
// order genomes were supplied in is an arbitrary artifact of user input, so
// every trial draws its own uniformly random genome ordering. Each trial
// seeds its own rand.Rand from Seed, never ambient random state, so runs are
// reproducible.
type Estimator struct {
	Trials int
	Seed   int64
}

// Curve estimates pan-genome and core-genome growth over the matrix's
// analyzable genomes. Within every trial the pan size is checked to be
// non-decreasing and the core size non-increasing in k.
func (e Estimator) Curve(m *Matrix) ([]Point, error) {

	trials := e.Trials
	if trials < 1 {
		trials = 1
	}

	var cols []int
	for i := range m.genomes {
		if !m.notAnalyzed[i] {
			cols = append(cols, i)
		}
	}
	n := len(cols)
	if n == 0 {
		return nil, ErrEmptyAnalyzableSet
	}

	presence := make([][]bool, n)
	for i, col := range cols {
		presence[i] = m.presenceColumn(col)
	}
	genes := len(m.genes)

	panSum := make([]float64, n)
	panSq := make([]float64, n)
	coreSum := make([]float64, n)
	coreSq := make([]float64, n)

	for trial := 0; trial < trials; trial++ {
		rng := rand.New(rand.NewSource(e.Seed + int64(trial)))
		perm := rng.Perm(n)

		union := make([]bool, genes)
		core := make([]bool, genes)
		panSize, coreSize := 0, 0

		prevPan, prevCore := 0, genes
		for k, pi := range perm {
			row := presence[pi]

			if k == 0 {
				for g := 0; g < genes; g++ {
					union[g] = row[g]
					core[g] = row[g]
					if row[g] {
						panSize++
						coreSize++
					}
				}
			} else {
				for g := 0; g < genes; g++ {
					if row[g] && !union[g] {
						union[g] = true
						panSize++
					}
					if core[g] && !row[g] {
						core[g] = false
						coreSize--
					}
				}
			}

			if k > 0 && panSize < prevPan {
				return nil, fmt.Errorf("pan-genome size decreased at k=%d (trial %d)", k+1, trial)
			}
			if k > 0 && coreSize > prevCore {
				return nil, fmt.Errorf("core-genome size increased at k=%d (trial %d)", k+1, trial)
			}
			prevPan, prevCore = panSize, coreSize

			panSum[k] += float64(panSize)
			panSq[k] += float64(panSize) * float64(panSize)
			coreSum[k] += float64(coreSize)
			coreSq[k] += float64(coreSize) * float64(coreSize)
		}
	}

	points := make([]Point, n)
	ft := float64(trials)
	for k := 0; k < n; k++ {
		panMean := panSum[k] / ft
		coreMean := coreSum[k] / ft
		points[k] = Point{
			K:        k + 1,
			PanMean:  panMean,
			PanVar:   clampVar(panSq[k]/ft - panMean*panMean),
			CoreMean: coreMean,
			CoreVar:  clampVar(coreSq[k]/ft - coreMean*coreMean),
		}
	}
	return points, nil
}

// Floating point cancellation can leave a tiny negative variance.
func clampVar(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
