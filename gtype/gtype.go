// Package gtype describes genotype classes and the mutation model
// between them.
package gtype

import (
	"errors"
	"fmt"
	"math"

	"github.com/agnivade/levenshtein"
	"github.com/gonum/matrix/mat64"

	"github.com/treest/treest/phred"
)

// mutScale is the total rate mass of a row/column of the mutation
// matrix.
const mutScale = 2.0

var (
	// GType3 are the three generic biallelic genotypes: homozygous
	// reference, heterozygous, homozygous alternative.
	GType3 = []string{"RR", "RA", "AA"}
	// GType10 are all the unordered diploid nucleotide genotypes.
	GType10 = []string{"AA", "AC", "AG", "AT", "CC", "CG", "CT", "GG", "GT", "TT"}
)

// reverse returns a string with reversed letters.
func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// Distance computes the edit distance between every pair of
// genotypes. Heterozygous genotypes are unordered, so the distance to
// the reversed genotype is considered as well (RA and AR are at zero
// distance).
func Distance(gt []string) [][]int {
	n := len(gt)
	dist := make([][]int, n)
	for i, gi := range gt {
		dist[i] = make([]int, n)
		for j, gj := range gt {
			d := levenshtein.ComputeDistance(gi, gj)
			if dr := levenshtein.ComputeDistance(gi, reverse(gj)); dr < d {
				d = dr
			}
			dist[i][j] = d
		}
	}
	return dist
}

// IsHeterozygous tests if both alleles of the genotype differ.
func IsHeterozygous(g string) bool {
	return len(g) >= 2 && g[0] != g[1]
}

// MutationModel stores substitution matrices between genotypes.
type MutationModel struct {
	// MM is the full matrix.
	MM *mat64.Dense
	// MM0 is the no-mutation part of MM (diagonal only).
	MM0 *mat64.Dense
	// MM1 is the mutation part of MM (off-diagonal only).
	MM1 *mat64.Dense
}

// Affinity returns the raw transition affinity matrix ToProb(mu)^dist
// before the diagonal is rescaled.
func Affinity(mu float64, dist [][]int) (*mat64.Dense, error) {
	if math.IsNaN(mu) || math.IsInf(mu, 0) || mu < 0 {
		return nil, fmt.Errorf("invalid mutation rate: %v", mu)
	}
	n := len(dist)
	if n == 0 {
		return nil, errors.New("empty genotype distance matrix")
	}
	pmu := phred.ToProb(mu)
	aff := mat64.NewDense(n, n, nil)
	for i, row := range dist {
		if len(row) != n {
			return nil, errors.New("genotype distance matrix is not square")
		}
		for j, d := range row {
			if d < 0 {
				return nil, fmt.Errorf("negative genotype distance at (%d, %d)", i, j)
			}
			aff.Set(i, j, math.Pow(pmu, float64(d)))
		}
	}
	return aff, nil
}

// NewMutationModel creates the mutation matrices for the mutation rate
// mu (Phred scale) and the genotype list. Each diagonal entry is set
// so the column sums to mutScale; MM0 keeps the diagonal, MM1 the
// rest.
func NewMutationModel(mu float64, gt []string) (*MutationModel, error) {
	return NewMutationModelDist(mu, Distance(gt))
}

// NewMutationModelDist is NewMutationModel with an explicit genotype
// distance matrix. Every diagonal entry must stay positive, which
// bounds the mutation rate from below (about 3 on the Phred scale for
// GType3).
func NewMutationModelDist(mu float64, dist [][]int) (*MutationModel, error) {
	mm, err := Affinity(mu, dist)
	if err != nil {
		return nil, err
	}
	n, _ := mm.Dims()
	sums := make([]float64, n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			sums[j] += mm.At(i, j)
		}
	}
	for i, sum := range sums {
		if mutScale-sum <= 0 {
			return nil, fmt.Errorf("mutation rate %v is too high: diagonal entry %d is %v", mu, i, mutScale-sum)
		}
	}
	mm0 := mat64.NewDense(n, n, nil)
	mm1 := mat64.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		mm.Set(i, i, mutScale-sums[i])
		for j := 0; j < n; j++ {
			if i == j {
				mm0.Set(i, j, mm.At(i, j))
			} else {
				mm1.Set(i, j, mm.At(i, j))
			}
		}
	}
	return &MutationModel{MM: mm, MM0: mm0, MM1: mm1}, nil
}

// BasePrior returns the Phred-scaled prior of the genotypes given the
// heterozygosity rate het (Phred scale).
// For het=30 and GType3 this is [3.0124709, 33.012471, 3.0124709].
func BasePrior(het float64, gt []string) []float64 {
	prior := make([]float64, len(gt))
	for i, g := range gt {
		if IsHeterozygous(g) {
			prior[i] = het
		}
	}
	return phred.Normalize(prior)
}
