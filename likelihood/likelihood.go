// Package likelihood computes subtree genotype likelihoods under a
// single mutation model and scores trees.
//
// For every node PL0 is the likelihood of the subtree given no
// mutation on the branch above, and every PLm matrix is the
// likelihood given one mutation placed on one of the branches of the
// subtree. All values are on the Phred scale; combining independent
// subtrees adds Phred values.
package likelihood

import (
	"fmt"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"

	"github.com/treest/treest/gl"
	"github.com/treest/treest/gtype"
	"github.com/treest/treest/phred"
	"github.com/treest/treest/tree"
)

// log is the global logging variable.
var log = logging.MustGetLogger("likelihood")

// Model holds the leaf likelihoods and the mutation matrices. It is
// read only and can be shared between goroutines.
type Model struct {
	samples []*mat64.Dense
	mm0     *mat64.Dense
	mm1     *mat64.Dense
	nSite   int
}

// NewModel creates a model for the likelihoods and the mutation model.
func NewModel(pl *gl.Likelihoods, mm *gtype.MutationModel) *Model {
	m := &Model{
		samples: make([]*mat64.Dense, pl.NSample()),
		mm0:     mm.MM0,
		mm1:     mm.MM1,
		nSite:   pl.NSite(),
	}
	for j := range m.samples {
		m.samples[j] = pl.Sample(j)
	}
	log.Debugf("Likelihood model for %d sites, %d samples", m.nSite, len(m.samples))
	return m
}

// NSite returns the number of sites.
func (m *Model) NSite() int {
	return m.nSite
}

// Populate computes likelihoods of all the nodes from scratch.
func (m *Model) Populate(t *tree.Tree) {
	for _, i := range t.PostOrder(t.Root) {
		m.compute(t, i)
	}
}

// Update recomputes the likelihoods of node i, first updating every
// stale node below it.
func (m *Model) Update(t *tree.Tree, i int) {
	for _, c := range t.Children(i) {
		if m.stale(t, c) {
			m.Update(t, c)
		}
	}
	m.compute(t, i)
}

// stale tests if the likelihoods of a node cannot be used: they were
// never computed, a descendant was modified, or the leaves below the
// node changed.
func (m *Model) stale(t *tree.Tree, i int) bool {
	node := t.Node(i)
	return node.PL0 == nil || node.Dirty || !tree.SameLeaves(node.Sid, t.Leaves(i))
}

func add(a, b *mat64.Dense) *mat64.Dense {
	r, c := a.Dims()
	res := mat64.NewDense(r, c, nil)
	res.Add(a, b)
	return res
}

// compute sets the likelihoods of node i from its children.
func (m *Model) compute(t *tree.Tree, i int) {
	node := t.Node(i)
	if t.IsLeaf(i) {
		node.PL0 = m.samples[node.LeafId]
		node.PLm = nil
		node.Sid = []int{node.LeafId}
		node.Dirty = false
		return
	}

	children := t.Children(i)
	if len(children) != 2 {
		panic(fmt.Sprintf("node %d has %d children, only binary trees are supported", i, len(children)))
	}
	var noMut [2]*mat64.Dense
	for k, c := range children {
		noMut[k] = phred.Transform(t.Node(c).PL0, m.mm0)
	}

	var plm []*mat64.Dense
	for k, c := range children {
		child := t.Node(c)
		sister := noMut[1-k]
		for _, r := range child.PLm {
			plm = append(plm, add(phred.Transform(r, m.mm0), sister))
		}
		plm = append(plm, add(phred.Transform(child.PL0, m.mm1), sister))
	}

	sid := t.Leaves(i)
	if len(plm) != 2*len(sid)-2 {
		panic(fmt.Sprintf("node %d has %d mutation rows for %d leaves", i, len(plm), len(sid)))
	}
	node.PL0 = add(noMut[0], noMut[1])
	node.PLm = plm
	node.Sid = sid
	node.Dirty = false
}

// Score reduces the likelihoods of node i to a single value. For every
// site the prior is added to all the mutation placements and to the no
// mutation likelihood, the probabilities are summed and converted back
// to the Phred scale. The result is the sum over the sites; lower is
// better.
func Score(t *tree.Tree, i int, prior []float64) (score float64) {
	node := t.Node(i)
	nSite, nGType := node.PL0.Dims()
	terms := make([]float64, 0, (len(node.PLm)+1)*nGType)
	for s := 0; s < nSite; s++ {
		terms = terms[:0]
		for _, r := range node.PLm {
			for g, v := range r.RawRowView(s) {
				terms = append(terms, v+prior[g])
			}
		}
		for g, v := range node.PL0.RawRowView(s) {
			terms = append(terms, v+prior[g])
		}
		score += phred.Sum(terms)
	}
	return
}
