package stats

import (
	"math"
	"math/rand/v2"
)

// Uniform is a source of uniform draws in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type Uniform interface {
	Float64() float64
}

// Sampler draws normal, Gamma and Beta variates from a uniform source.
// A Sampler is not safe for concurrent use.
type Sampler struct {
	src Uniform
}

// NewSampler wraps src. A nil src gets a randomly seeded PCG stream.
func NewSampler(src Uniform) *Sampler {
	if src == nil {
		src = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{src: src}
}

// NewSeededSampler returns a Sampler whose stream is fully determined by seed.
func NewSeededSampler(seed uint64) *Sampler {
	return &Sampler{src: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// uniform returns a draw in (0, 1); exact zeros are redrawn so callers can
// take logs and reciprocal powers safely.
func (s *Sampler) uniform() float64 {
	for {
		if u := s.src.Float64(); u > 0 {
			return u
		}
	}
}

// StandardNormal returns a N(0,1) sample using the Box-Muller transform.
func (s *Sampler) StandardNormal() float64 {
	u1 := s.uniform()
	u2 := s.uniform()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Gamma returns a Gamma(shape, scale) sample using Marsaglia and Tsang's
// method. Shapes below 1 are boosted: Gamma(k) = Gamma(k+1) * U^(1/k).
// Non-positive parameters yield NaN.
func (s *Sampler) Gamma(shape, scale float64) float64 {
	if !(shape > 0) || !(scale > 0) {
		return math.NaN()
	}
	if shape < 1 {
		return s.Gamma(shape+1, scale) * math.Pow(s.uniform(), 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)

	for {
		var x, v float64
		for {
			x = s.StandardNormal()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v

		u := s.uniform()
		x2 := x * x
		if u < 1-0.0331*x2*x2 {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// Beta returns a Beta(alpha, beta) sample as X/(X+Y) with X ~ Gamma(alpha, 1)
// and Y ~ Gamma(beta, 1).
func (s *Sampler) Beta(alpha, beta float64) float64 {
	for {
		x := s.Gamma(alpha, 1)
		y := s.Gamma(beta, 1)
		if math.IsNaN(x) || math.IsNaN(y) {
			return math.NaN()
		}
		// Both gammas can underflow to zero for tiny shapes.
		if sum := x + y; sum > 0 {
			return x / sum
		}
	}
}
