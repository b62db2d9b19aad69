// Package phred implements conversions between probabilities and the
// Phred scale, and the few likelihood operations built on top of them.
//
// All sums are computed with a shift by the smallest Phred value, so
// totals far beyond the float64 exponent range (tens of thousands on
// the Phred scale) stay finite.
package phred

import (
	"math"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

// scale converts natural logarithms to the Phred scale.
const scale = 10 / math.Ln10

// ToProb converts a Phred value to a probability.
func ToProb(x float64) float64 {
	return math.Pow(10, -x/10)
}

// FromProb converts a probability to the Phred scale. FromProb(0) is
// +Inf.
func FromProb(p float64) float64 {
	return -10 * math.Log10(p)
}

// Sum returns the Phred value of the summed probabilities of xs,
// i.e. FromProb(Σ ToProb(x)). Sum of an empty slice or of a slice of
// +Inf values is +Inf.
func Sum(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(1)
	}
	lns := make([]float64, len(xs))
	for i, x := range xs {
		lns[i] = -x / scale
	}
	m := floats.Max(lns)
	if math.IsInf(m, -1) {
		return math.Inf(1)
	}
	return -scale * floats.LogSumExp(lns)
}

// Normalize rescales a Phred vector so the probabilities sum to one.
func Normalize(xs []float64) []float64 {
	s := Sum(xs)
	res := make([]float64, len(xs))
	for i, x := range xs {
		res[i] = x - s
	}
	return res
}

// Normalize2D normalizes every row of a (site × genotype) matrix.
func Normalize2D(m *mat64.Dense) *mat64.Dense {
	r, c := m.Dims()
	res := mat64.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		res.SetRow(i, Normalize(m.RawRowView(i)))
	}
	return res
}

// Transform passes every row of a Phred matrix through a transition
// matrix in probability space: FromProb(ToProb(pl) · mm). Rows are
// shifted by their minimum before exponentiation.
func Transform(pl, mm *mat64.Dense) *mat64.Dense {
	r, c := pl.Dims()
	_, mc := mm.Dims()
	shift := make([]float64, r)
	p := mat64.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := pl.RawRowView(i)
		shift[i] = floats.Min(row)
		if math.IsInf(shift[i], 1) {
			// zero probability row, p stays zero
			continue
		}
		prow := p.RawRowView(i)
		for j, x := range row {
			prow[j] = ToProb(x - shift[i])
		}
	}
	res := mat64.NewDense(r, mc, nil)
	res.Mul(p, mm)
	res.Apply(func(i, j int, v float64) float64 {
		if math.IsInf(shift[i], 1) {
			return math.Inf(1)
		}
		return shift[i] + FromProb(v)
	}, res)
	return res
}

// PairwiseDiff is a rough distance between two samples given their
// (site × genotype) likelihoods. Both are normalized per site, the
// probability of both samples sharing the genotype is computed, and
// the complement is accumulated over the sites.
func PairwiseDiff(pli, plj *mat64.Dense) (d float64) {
	ni := Normalize2D(pli)
	nj := Normalize2D(plj)
	r, c := ni.Dims()
	for s := 0; s < r; s++ {
		same := 0.0
		for g := 0; g < c; g++ {
			same += ToProb(ni.At(s, g) + nj.At(s, g))
		}
		d += 1 - same
	}
	return
}
