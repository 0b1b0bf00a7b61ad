package core

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// The engine draws all randomness from one process-wide source. Callers
// control reproducibility by swapping the source; there is no per-call
// seeding.
var (
	randMu  sync.Mutex
	randSrc rand.Source = rand.NewPCG(rand.Uint64(), rand.Uint64())
	rng                 = rand.New(randSrc)
)

// SetRandSource replaces the process-wide generator. Pass a seeded PCG to
// make pipeline selection deterministic.
func SetRandSource(src rand.Source) {
	randMu.Lock()
	defer randMu.Unlock()
	randSrc = src
	rng = rand.New(src)
}

// RandFloat draws a uniform float in [0, 1) from the shared generator.
func RandFloat() float64 {
	randMu.Lock()
	defer randMu.Unlock()
	return rng.Float64()
}

// RandIntN draws a uniform int in [0, n) from the shared generator.
func RandIntN(n int) int {
	randMu.Lock()
	defer randMu.Unlock()
	return rng.IntN(n)
}

// sampleOne draws a single index from the discrete distribution given by
// weights.
func sampleOne(weights []float64) int {
	randMu.Lock()
	defer randMu.Unlock()
	w := sampleuv.NewWeighted(append([]float64(nil), weights...), randSrc)
	idx, _ := w.Take()
	return idx
}

// sampleIndices draws n indices by weight, with or without replacement.
// Without replacement the draw order is the sampled order; Take removes
// the chosen weight so no index repeats.
func sampleIndices(weights []float64, n int, replace bool) []int {
	randMu.Lock()
	defer randMu.Unlock()
	out := make([]int, 0, n)
	if replace {
		for i := 0; i < n; i++ {
			w := sampleuv.NewWeighted(append([]float64(nil), weights...), randSrc)
			idx, ok := w.Take()
			if !ok {
				break
			}
			out = append(out, idx)
		}
		return out
	}
	w := sampleuv.NewWeighted(append([]float64(nil), weights...), randSrc)
	for i := 0; i < n; i++ {
		idx, ok := w.Take()
		if !ok {
			break
		}
		out = append(out, idx)
	}
	return out
}

// normalizeWeights turns per-child probabilities into a distribution.
// Returns nil when there is no mass to draw from.
func normalizeWeights(transforms []Transform) []float64 {
	if len(transforms) == 0 {
		return nil
	}
	sum := 0.0
	ws := make([]float64, len(transforms))
	for i, t := range transforms {
		ws[i] = t.Probability()
		sum += ws[i]
	}
	if sum <= 0 {
		return nil
	}
	for i := range ws {
		ws[i] /= sum
	}
	return ws
}
