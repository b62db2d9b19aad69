// Package nj builds a start tree by neighbor joining of pairwise
// genotype likelihood distances.
package nj

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/exascience/pargo/parallel"
	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"

	"github.com/treest/treest/gl"
	"github.com/treest/treest/phred"
	"github.com/treest/treest/tree"
)

// log is the global logging variable.
var log = logging.MustGetLogger("nj")

// DistanceMatrix returns a symmetric matrix of size 2m-2 for m samples.
// The upper left m×m block contains pairwise sample distances, the
// rest is filled by Join.
func DistanceMatrix(pl *gl.Likelihoods) (*mat64.SymDense, error) {
	m := pl.NSample()
	if m < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", m)
	}
	samples := make([]*mat64.Dense, m)
	for i := range samples {
		samples[i] = pl.Sample(i)
	}
	D := mat64.NewSymDense(2*m-2, nil)
	// Every goroutine writes its own rows of the upper triangle.
	parallel.Range(0, m, 0, func(low, high int) {
		for i := low; i < high; i++ {
			for j := i + 1; j < m; j++ {
				D.SetSym(i, j, phred.PairwiseDiff(samples[i], samples[j]))
			}
		}
	})
	return D, nil
}

// branchLength converts a joining distance to the stored integer
// branch length.
func branchLength(v float64) float64 {
	return math.Max(0, math.Trunc(v))
}

// Join performs neighbor joining over the samples named by names using
// the distance matrix D created by DistanceMatrix. D is extended with
// the distances to the internal nodes. The pair minimizing the
// criterion is joined, the first pair wins ties. The two nodes left
// at the end become the children of the root. The returned tree is
// reindexed.
func Join(D *mat64.SymDense, names []string) (*tree.Tree, error) {
	M := len(names)
	if M < 2 {
		return nil, errors.New("neighbor joining requires at least 2 samples")
	}
	if D.Symmetric() != 2*M-2 {
		return nil, fmt.Errorf("distance matrix size %d, expected %d", D.Symmetric(), 2*M-2)
	}
	log.Infof("Neighbor joining of %d samples", M)

	t := tree.New()
	nodeOf := make([]int, 2*M-2)
	active := make([]int, M)
	for i, name := range names {
		nodeOf[i] = t.AddNode(name, i)
		active[i] = i
	}

	size := D.Symmetric()
	for m := M; m > 2; m = len(active) {
		d := func(i, j int) float64 {
			return D.At(active[i], active[j])
		}
		u := make([]float64, m)
		for i := 0; i < m; i++ {
			for k := 0; k < m; k++ {
				u[i] += d(i, k)
			}
			u[i] /= float64(m - 2)
		}

		bi, bj := -1, -1
		q := math.Inf(1)
		for i := 0; i < m; i++ {
			for j := i + 1; j < m; j++ {
				if v := d(i, j) - u[i] - u[j]; v < q {
					q = v
					bi, bj = i, j
				}
			}
		}
		if bi < 0 {
			// all criteria are NaN
			return nil, errors.New("neighbor joining: no finite criterion")
		}

		l := size + 2 - m
		dij := d(bi, bj)
		for k := 0; k < m; k++ {
			D.SetSym(l, active[k], (d(bi, k)+d(bj, k)-dij)/2)
		}
		vi := (dij + u[bi] - u[bj]) / 2
		vj := (dij + u[bj] - u[bi]) / 2
		D.SetSym(l, active[bi], vi)
		D.SetSym(l, active[bj], vj)

		node := t.AddNode(strconv.Itoa(l), -1)
		t.AddChild(node, nodeOf[active[bi]], branchLength(vi))
		t.AddChild(node, nodeOf[active[bj]], branchLength(vj))
		nodeOf[l] = node
		log.Debugf("Joined %d and %d into %d, q=%v", active[bi], active[bj], l, q)

		next := make([]int, 0, m-1)
		for k, a := range active {
			if k != bi && k != bj {
				next = append(next, a)
			}
		}
		active = append(next, l)
	}

	root := t.AddNode("", -1)
	dab := D.At(active[0], active[1])
	for _, a := range active {
		t.AddChild(root, nodeOf[a], branchLength(dab/2))
	}
	t.Root = root
	t.Reindex()
	log.Info("Neighbor joining done")
	return t, nil
}
