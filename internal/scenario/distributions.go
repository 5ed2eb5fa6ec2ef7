package scenario

import (
	"math"
	"math/rand"
)

// Distribution is a sampleable per-driver performance model. Grounded on
// internal/simulator/distributions.go's Distribution interface in the
// teacher codebase (Normal / TruncatedNormal / Beta), which this package
// reuses verbatim for the per-driver conditional draws inside a regime.
type Distribution interface {
	Sample(rng *rand.Rand) float64
	Mean() float64
	StdDev() float64
}

// NormalDistribution is an unbounded Gaussian.
type NormalDistribution struct {
	mean, stdDev float64
}

func NewNormalDistribution(mean, stdDev float64) *NormalDistribution {
	return &NormalDistribution{mean: mean, stdDev: stdDev}
}

func (d *NormalDistribution) Sample(rng *rand.Rand) float64 {
	return rng.NormFloat64()*d.stdDev + d.mean
}
func (d *NormalDistribution) Mean() float64   { return d.mean }
func (d *NormalDistribution) StdDev() float64 { return d.stdDev }

// TruncatedNormalDistribution rejects draws outside [min, max].
type TruncatedNormalDistribution struct {
	*NormalDistribution
	min, max float64
}

func NewTruncatedNormalDistribution(mean, stdDev, min, max float64) *TruncatedNormalDistribution {
	return &TruncatedNormalDistribution{
		NormalDistribution: NewNormalDistribution(mean, stdDev),
		min:                min,
		max:                max,
	}
}

func (d *TruncatedNormalDistribution) Sample(rng *rand.Rand) float64 {
	for attempt := 0; attempt < 1000; attempt++ {
		s := d.NormalDistribution.Sample(rng)
		if s >= d.min && s <= d.max {
			return s
		}
	}
	// Degenerate bounds: clamp rather than loop forever.
	return math.Max(d.min, math.Min(d.max, d.NormalDistribution.Sample(rng)))
}

// BetaDistribution models a bounded rate/share, e.g. laps-led fraction.
type BetaDistribution struct {
	alpha, beta, scale, shift float64
}

func NewBetaDistribution(alpha, beta, scale, shift float64) *BetaDistribution {
	return &BetaDistribution{alpha: alpha, beta: beta, scale: scale, shift: shift}
}

func (d *BetaDistribution) Sample(rng *rand.Rand) float64 {
	x := sampleGamma(d.alpha, rng)
	y := sampleGamma(d.beta, rng)
	return (x/(x+y))*d.scale + d.shift
}

func (d *BetaDistribution) Mean() float64 {
	return d.alpha/(d.alpha+d.beta)*d.scale + d.shift
}

func (d *BetaDistribution) StdDev() float64 {
	variance := (d.alpha * d.beta) / ((d.alpha + d.beta) * (d.alpha + d.beta) * (d.alpha + d.beta + 1))
	return math.Sqrt(variance) * d.scale
}

// sampleGamma uses the Marsaglia-Tsang method, same as the teacher's
// BetaDistribution.sampleGamma in internal/simulator/distributions.go.
func sampleGamma(shape float64, rng *rand.Rand) float64 {
	if shape < 1 {
		return sampleGamma(shape+1, rng) * math.Pow(rng.Float64(), 1/shape)
	}

	d1 := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d1)

	for {
		x := rng.NormFloat64()
		v := 1.0 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()

		if u < 1-0.0331*x*x*x*x {
			return d1 * v
		}
		if math.Log(u) < 0.5*x*x+d1*(1-v+math.Log(v)) {
			return d1 * v
		}
	}
}
