package logits

import (
	"math"
	"math/rand"
)

// SamplerConfig configures a Sampler. A Temperature of zero or below
// selects greedy decoding, the default for grammar correction.
type SamplerConfig struct {
	Seed        int64
	Temperature float64
	TopK        int
}

type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool
}

// NewSampler returns a sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature <= 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 40
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
	}
}

// Greedy reports whether the sampler always picks the argmax token.
func (s *Sampler) Greedy() bool {
	return s.greedy
}

// Sample draws a single token index from the logits vector. Greedy
// samplers return the argmax; otherwise logits are scaled by the
// inverse temperature, the top k are shortlisted, and one index is
// drawn from the softmax over the shortlist.
func (s *Sampler) Sample(logits []float32) int {
	if s.greedy {
		return argmax(logits)
	}

	invTemp := 1.0 / s.cfg.Temperature
	k := min(s.cfg.TopK, len(logits))
	topIdx, topVal := topK(logits, k, float32(invTemp))
	if len(topVal) == 0 {
		return 0
	}

	maxv := topVal[0]
	prob := make([]float64, len(topVal))
	var sum float64
	for i, v := range topVal {
		e := math.Exp(float64(v - maxv))
		prob[i] = e
		sum += e
	}
	if sum == 0 {
		return topIdx[0]
	}

	r := s.rng.Float64() * sum
	var c float64
	for i, p := range prob {
		c += p
		if r <= c {
			return topIdx[i]
		}
	}
	return topIdx[len(topIdx)-1]
}

// argmax returns the index of the maximum value. Empty input panics.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// topK returns indices and scaled values of the k largest logits,
// ordered from largest to smallest. O(V*K), fine for small k.
func topK(logits []float32, k int, invTemp float32) ([]int, []float32) {
	if k <= 0 {
		return nil, nil
	}
	topIdx := make([]int, 0, k+1)
	topVal := make([]float32, 0, k+1)
	for i, l := range logits {
		v := l * invTemp

		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)
		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	return topIdx, topVal
}
