// Package search improves trees by hill climbing over rootings and
// nearest neighbor interchanges.
//
// Trees passed to the searcher must have up to date likelihoods. The
// searcher never modifies its input trees: candidates are evaluated on
// copies and accepted copies are returned.
package search

import (
	"github.com/exascience/pargo/parallel"
	"github.com/op/go-logging"

	"github.com/treest/treest/likelihood"
	"github.com/treest/treest/tree"
)

// log is the global logging variable.
var log = logging.MustGetLogger("search")

// Stages of the search reported in the trace.
const (
	StageNNI    = "nni"
	StageReroot = "reroot"
)

// DefaultMaxSweeps limits the number of recursive NNI sweeps.
const DefaultMaxSweeps = 1000

// TracePoint is the score after one step of a search stage.
type TracePoint struct {
	Stage string  `json:"stage"`
	Step  int     `json:"step"`
	Score float64 `json:"score"`
}

// Searcher holds the search configuration.
type Searcher struct {
	Model *likelihood.Model
	Prior []float64
	// Delta is the relative improvement required to accept a
	// candidate.
	Delta float64
	// MaxSweeps limits recursive NNI sweeps, 0 means no limit.
	MaxSweeps int
	// OnSweep is called after every recursive NNI sweep.
	OnSweep func(sweep int, t *tree.Tree, score float64)
	Trace   []TracePoint
}

// New creates a searcher with the default sweep limit.
func New(model *likelihood.Model, prior []float64, delta float64) *Searcher {
	return &Searcher{
		Model:     model,
		Prior:     prior,
		Delta:     delta,
		MaxSweeps: DefaultMaxSweeps,
	}
}

// accept tests if a candidate score improves on best by more than the
// relative margin delta.
func accept(cand, best, delta float64) bool {
	return cand < best*(1-delta)
}

func (s *Searcher) score(t *tree.Tree, i int) float64 {
	return likelihood.Score(t, i, s.Prior)
}

func (s *Searcher) trace(stage string, step int, score float64) {
	s.Trace = append(s.Trace, TracePoint{stage, step, score})
}

// rerooted returns a copy of t with the subtree of top rerooted on out.
func (s *Searcher) rerooted(t *tree.Tree, top, out int) *tree.Tree {
	c := t.Copy()
	if err := c.SetOutgroup(top, out); err != nil {
		panic(err)
	}
	s.Model.Update(c, top)
	return c
}

// Reroot tries every descendant of top as the outgroup of the subtree
// of top. It returns the best tree with the score of top, and whether
// a rerooting was accepted. If none was, t itself is returned.
func (s *Searcher) Reroot(t *tree.Tree, top int) (*tree.Tree, float64, bool) {
	best := s.score(t, top)
	outs := t.PostOrder(top)
	outs = outs[:len(outs)-1]
	if len(outs) == 0 {
		return t, best, false
	}

	scores := make([]float64, len(outs))
	parallel.Range(0, len(outs), 0, func(low, high int) {
		for k := low; k < high; k++ {
			scores[k] = s.score(s.rerooted(t, top, outs[k]), top)
		}
	})

	bestK := -1
	for k, sc := range scores {
		if accept(sc, best, s.Delta) {
			best = sc
			bestK = k
		}
	}
	if bestK < 0 {
		return t, best, false
	}
	log.Debugf("Rerooted node %d on %d, score=%v", top, outs[bestK], best)
	return s.rerooted(t, top, outs[bestK]), best, true
}

// RecursiveReroot reroots every internal subtree bottom up, then the
// whole tree. A subtree rerooting is kept only if the score of the
// whole tree does not get worse. It returns the resulting tree and its
// score.
func (s *Searcher) RecursiveReroot(t *tree.Tree) (*tree.Tree, float64) {
	log.Info("Recursive reroot")
	score := s.score(t, t.Root)
	step := 0
	for _, i := range t.PostOrder(t.Root) {
		if t.IsLeaf(i) || t.IsRoot(i) {
			continue
		}
		step++
		cand, sc, ok := s.Reroot(t, i)
		if ok {
			cand.Invalidate(i)
			s.Model.Update(cand, cand.Root)
			if candScore := s.score(cand, cand.Root); candScore <= score {
				t, score = cand, candScore
				log.Debugf("Subtree %d rerooted, subtree score=%v, score=%v", i, sc, score)
			} else {
				log.Debugf("Subtree %d rerooting rejected, score %v > %v", i, candScore, score)
			}
		}
		s.trace(StageReroot, step, score)
	}
	t, score, ok := s.Reroot(t, t.Root)
	if ok {
		log.Debugf("Root moved, score=%v", score)
	}
	s.trace(StageReroot, step+1, score)
	log.Infof("Recursive reroot done, score=%v", score)
	return t, score
}

// swapped returns a copy of t with grandchildren of node exchanged.
// With children c1=(c11,c12) and c2=(c21,c22), swap 1 gives
// c1=(c11,c22), c2=(c21,c12) and swap 2 gives c1=(c11,c21),
// c2=(c22,c12).
func (s *Searcher) swapped(t *tree.Tree, node, swap int) *tree.Tree {
	c := t.Copy()
	c1, c2 := c.Children(node)[0], c.Children(node)[1]
	c12 := c.Children(c1)[1]
	c21, c22 := c.Children(c2)[0], c.Children(c2)[1]
	moved := c22
	if swap == 2 {
		moved = c21
	}
	bl12 := c.Node(c12).BranchLength
	blMoved := c.Node(moved).BranchLength
	c.Detach(c12)
	c.Detach(moved)
	c.AddChild(c1, moved, blMoved)
	c.AddChild(c2, c12, bl12)
	c.Node(c1).Dirty = true
	c.Node(c2).Dirty = true
	s.Model.Update(c, node)
	return c
}

// NNI optimizes the subtree of node by nearest neighbor interchange.
// The current arrangement and both interchanges are rerooted; an
// interchange is selected only if it improves on it by more
// than Delta. It returns the resulting tree, the score of node and
// whether the subtree changed. A nil tree means that no move is
// possible.
func (s *Searcher) NNI(t *tree.Tree, node int) (*tree.Tree, float64, bool) {
	children := t.Children(node)
	c1, c2 := children[0], children[1]
	if t.IsLeaf(c1) && t.IsLeaf(c2) {
		return nil, 0, false
	}
	// Rerooting three subtrees covers all their arrangements.
	if t.IsLeaf(c1) || t.IsLeaf(c2) {
		return s.Reroot(t, node)
	}

	t0, pl0, changed0 := s.Reroot(t, node)
	t1, pl1, _ := s.Reroot(s.swapped(t, node, 1), node)
	t2, pl2, _ := s.Reroot(s.swapped(t, node, 2), node)

	if accept(pl1, pl0, s.Delta) {
		if pl1 < pl2 {
			log.Debugf("NNI 1 at node %d: %v -> %v", node, pl0, pl1)
			return t1, pl1, true
		}
		log.Debugf("NNI 2 at node %d: %v -> %v", node, pl0, pl2)
		return t2, pl2, true
	}
	if accept(pl2, pl0, s.Delta) {
		log.Debugf("NNI 2 at node %d: %v -> %v", node, pl0, pl2)
		return t2, pl2, true
	}
	return t0, pl0, changed0
}

// nniSweep applies NNI to every internal node of t in post-order. It
// returns the resulting tree, its score and the number of changes.
func (s *Searcher) nniSweep(t *tree.Tree) (*tree.Tree, float64, int) {
	score := s.score(t, t.Root)
	changes := 0
	for _, i := range t.PostOrder(t.Root) {
		if t.IsLeaf(i) {
			continue
		}
		cand, sc, changed := s.NNI(t, i)
		if cand == nil || cand == t {
			continue
		}
		if t.IsRoot(i) {
			t, score = cand, sc
		} else {
			t = cand
			t.Invalidate(i)
			s.Model.Update(t, t.Root)
			score = s.score(t, t.Root)
		}
		if changed {
			changes++
		}
	}
	return t, score, changes
}

// RecursiveNNI repeats NNI sweeps over all the internal nodes. A sweep
// result is kept only if it improves the score of the whole tree by
// more than Delta; the search stops at the first sweep which makes no
// change or no such improvement, or after MaxSweeps sweeps. It returns
// the best tree and its score.
func (s *Searcher) RecursiveNNI(t *tree.Tree) (*tree.Tree, float64) {
	log.Info("Recursive NNI")
	score := s.score(t, t.Root)
	for sweep := 1; ; sweep++ {
		if s.MaxSweeps > 0 && sweep > s.MaxSweeps {
			log.Warningf("Recursive NNI stopped after %d sweeps", s.MaxSweeps)
			break
		}
		cand, candScore, changes := s.nniSweep(t)
		s.trace(StageNNI, sweep, candScore)
		improved := changes > 0 && accept(candScore, score, s.Delta)
		if improved {
			t, score = cand, candScore
		}
		if s.OnSweep != nil {
			s.OnSweep(sweep, t, score)
		}
		log.Infof("NNI sweep %d: %d changes, score=%v", sweep, changes, candScore)
		if !improved {
			if changes > 0 {
				log.Infof("NNI sweep %d did not improve the tree (%v >= %v), stopping", sweep, candScore, score)
			}
			break
		}
	}
	return t, score
}
