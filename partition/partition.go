// Package partition builds a start tree by recursive hard partitioning
// of the samples. Every step splits a sample set in two minimizing the
// summed genotype likelihoods of both sides.
package partition

import (
	"errors"
	"math"
	"math/rand"

	"github.com/exascience/pargo/parallel"
	"github.com/gonum/floats"
	"github.com/op/go-logging"
	"github.com/willf/bitset"

	"github.com/treest/treest/gl"
	"github.com/treest/treest/tree"
)

// log is the global logging variable.
var log = logging.MustGetLogger("partition")

// DefaultThreshold is the largest number of samples split by
// exhaustive enumeration.
const DefaultThreshold = 20

// Selector produces candidate bipartitions of m samples. A set bit
// places the sample on side 1. Sample 0 is always on side 0 and side 1
// is never empty.
type Selector interface {
	Candidates(m int) []*bitset.BitSet
}

// Exhaustive enumerates all 2^(m-1)-1 bipartitions.
type Exhaustive struct{}

// Candidates returns the bipartitions in counting order; sample s is on
// side 1 if bit m-1-s of the counter is set.
func (Exhaustive) Candidates(m int) []*bitset.BitSet {
	n := 1 << uint(m-1)
	res := make([]*bitset.BitSet, 0, n-1)
	for i := 1; i < n; i++ {
		res = append(res, fromInt(i, m))
	}
	return res
}

// Sampled draws random bipartitions.
type Sampled struct {
	Rand  *rand.Rand
	Draws int
}

// Candidates draws floor((1+r)*2^k) with k uniform in [1, m-2] and r
// uniform in [0, 1) and expands it to m bits.
func (s Sampled) Candidates(m int) []*bitset.BitSet {
	res := make([]*bitset.BitSet, s.Draws)
	for i := range res {
		k := 1 + s.Rand.Intn(m-2)
		x := int((1 + s.Rand.Float64()) * math.Ldexp(1, k))
		res[i] = fromInt(x, m)
	}
	return res
}

// Auto enumerates all bipartitions up to Threshold samples and samples
// 2^Threshold bipartitions above.
type Auto struct {
	Threshold int
	Rand      *rand.Rand
}

// NewSelector returns the default selector.
func NewSelector(threshold int, rnd *rand.Rand) Auto {
	return Auto{threshold, rnd}
}

// Candidates implements Selector.
func (a Auto) Candidates(m int) []*bitset.BitSet {
	if m <= a.Threshold || m <= 3 {
		return Exhaustive{}.Candidates(m)
	}
	return Sampled{a.Rand, 1 << uint(a.Threshold)}.Candidates(m)
}

// fromInt expands x into m bits, the most significant one belonging to
// sample 0.
func fromInt(x, m int) *bitset.BitSet {
	b := bitset.New(uint(m))
	for s := 0; s < m; s++ {
		if x>>uint(m-1-s)&1 == 1 {
			b.Set(uint(s))
		}
	}
	return b
}

// Cost returns the cost of splitting samples according to side. For
// every site the likelihoods of each side are summed per genotype; the
// sites where one of the sides has a maximum above minEv contribute the
// sum of both minima.
func Cost(pl *gl.Likelihoods, samples []int, side *bitset.BitSet, minEv float64) (c float64) {
	var x [2][gl.NGType]float64
	for s := 0; s < pl.NSite(); s++ {
		x = [2][gl.NGType]float64{}
		for k, j := range samples {
			p := 0
			if side.Test(uint(k)) {
				p = 1
			}
			for g, v := range pl.Row(s, j) {
				x[p][g] += v
			}
		}
		if floats.Max(x[0][:]) > minEv || floats.Max(x[1][:]) > minEv {
			c += floats.Min(x[0][:]) + floats.Min(x[1][:])
		}
	}
	return
}

// Partition builds a tree by recursive bipartitioning with branch
// lengths of one. The returned tree is reindexed.
func Partition(pl *gl.Likelihoods, names []string, minEv float64, sel Selector) (*tree.Tree, error) {
	if len(names) < 2 {
		return nil, errors.New("partition requires at least 2 samples")
	}
	if len(names) != pl.NSample() {
		return nil, errors.New("number of names and samples differ")
	}
	log.Infof("Partitioning %d samples", len(names))
	t := tree.New()
	root := t.AddNode("", -1)
	samples := make([]int, len(names))
	for i := range samples {
		samples[i] = i
	}
	p := &partitioner{pl, names, minEv, sel, t}
	p.split(root, samples)
	t.Reindex()
	log.Info("Partitioning done")
	return t, nil
}

type partitioner struct {
	pl    *gl.Likelihoods
	names []string
	minEv float64
	sel   Selector
	t     *tree.Tree
}

// add attaches the samples below parent as a leaf or a new subtree.
func (p *partitioner) add(parent int, samples []int) {
	if len(samples) == 1 {
		leaf := p.t.AddNode(p.names[samples[0]], samples[0])
		p.t.AddChild(parent, leaf, 1)
		return
	}
	node := p.t.AddNode("", -1)
	p.t.AddChild(parent, node, 1)
	p.split(node, samples)
}

// split adds the two sides of the best bipartition of samples as the
// children of node.
func (p *partitioner) split(node int, samples []int) {
	m := len(samples)
	if m < 2 {
		panic("partition of less than two samples")
	}
	if m == 2 {
		p.add(node, samples[:1])
		p.add(node, samples[1:])
		return
	}

	cands := p.sel.Candidates(m)
	costs := make([]float64, len(cands))
	parallel.Range(0, len(cands), 0, func(low, high int) {
		for i := low; i < high; i++ {
			costs[i] = Cost(p.pl, samples, cands[i], p.minEv)
		}
	})
	best := floats.MinIdx(costs)

	var side0, side1 []int
	for k, j := range samples {
		if cands[best].Test(uint(k)) {
			side1 = append(side1, j)
		} else {
			side0 = append(side0, j)
		}
	}
	log.Debugf("Split %v into %v and %v, cost=%v", samples, side0, side1, costs[best])
	p.add(node, side0)
	p.add(node, side1)
}
