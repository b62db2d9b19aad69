package search

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/op/go-logging"

	"github.com/treest/treest/gl"
	"github.com/treest/treest/gtype"
	"github.com/treest/treest/likelihood"
	"github.com/treest/treest/nj"
	"github.com/treest/treest/tree"
)

var (
	rr    = []float64{0, 255, 255}
	aa    = []float64{255, 255, 0}
	names = []string{"a", "b", "c", "d"}
)

func init() {
	for _, module := range []string{"search", "likelihood", "nj"} {
		logging.SetLevel(logging.WARNING, module)
	}
}

func searcher(tst *testing.T, pl *gl.Likelihoods, delta float64) *Searcher {
	mm, err := gtype.NewMutationModel(80, gtype.GType3)
	if err != nil {
		tst.Fatal(err)
	}
	return New(likelihood.NewModel(pl, mm), gtype.BasePrior(30, gtype.GType3), delta)
}

func parse(tst *testing.T, s *Searcher, newick string) *tree.Tree {
	t, err := tree.ParseNewick(strings.NewReader(newick), names)
	if err != nil {
		tst.Fatal(err)
	}
	s.Model.Populate(t)
	return t
}

func twoPairs(tst *testing.T) *gl.Likelihoods {
	pl, err := gl.FromArray([][][]float64{
		{rr, rr, aa, aa},
		{rr, rr, aa, aa},
		{rr, rr, aa, aa},
	})
	if err != nil {
		tst.Fatal(err)
	}
	return pl
}

// randomTree returns a neighbor joining tree for m samples with
// random likelihoods.
func randomTree(tst *testing.T, m, nSite int, seed int64) (*gl.Likelihoods, *tree.Tree) {
	r := rand.New(rand.NewSource(seed))
	pl := gl.New(nSite, m)
	samples := make([]string, m)
	for j := range samples {
		samples[j] = string(rune('A' + j))
		for s := 0; s < nSite; s++ {
			// one likely genotype per sample and site
			g0 := r.Intn(gl.NGType)
			for g := 0; g < gl.NGType; g++ {
				if g != g0 {
					pl.Set(s, j, g, math.Floor(10+r.Float64()*90))
				}
			}
		}
	}
	D, err := nj.DistanceMatrix(pl)
	if err != nil {
		tst.Fatal(err)
	}
	t, err := nj.Join(D, samples)
	if err != nil {
		tst.Fatal(err)
	}
	return pl, t
}

func TestAcceptBoundary(tst *testing.T) {
	for _, delta := range []float64{0, 0.01, 0.1} {
		best := 1234.5
		if accept(best*(1-delta), best, delta) {
			tst.Error("Candidate at the boundary should be rejected, delta =", delta)
		}
		if !accept(best*(1-delta)-1e-6, best, delta) {
			tst.Error("Candidate below the boundary should be accepted, delta =", delta)
		}
	}
}

func TestRerootMonotone(tst *testing.T) {
	pl, t := randomTree(tst, 8, 10, 1)
	s := searcher(tst, pl, 0)
	s.Model.Populate(t)
	before := t.String()
	score := likelihood.Score(t, t.Root, s.Prior)

	res, sc, ok := s.Reroot(t, t.Root)
	tst.Log("Reroot:", score, "->", sc, ok)
	if sc > score {
		tst.Error("Reroot made the score worse", score, sc)
	}
	if !ok && res != t {
		tst.Error("Unchanged tree should be returned as is")
	}
	if t.String() != before {
		tst.Error("Input tree was modified")
	}
	if got := likelihood.Score(res, res.Root, s.Prior); math.Abs(got-sc) > 1e-9*sc {
		tst.Error("Returned score does not match the tree", got, sc)
	}
	if res.NLeaves(res.Root) != 8 || !res.IsBinary() {
		tst.Error("Broken tree", res.FullString())
	}
}

func TestNNI(tst *testing.T) {
	pl, t := randomTree(tst, 8, 10, 2)
	s := searcher(tst, pl, 0)
	s.Model.Populate(t)
	score := likelihood.Score(t, t.Root, s.Prior)

	res, sc, _ := s.NNI(t, t.Root)
	if res == nil {
		tst.Fatal("Root of 8 samples always has a move")
	}
	if sc > score {
		tst.Error("NNI made the score worse", score, sc)
	}

	for i := 0; i < t.NNodes(); i++ {
		if t.IsLeaf(i) {
			continue
		}
		cn := t.Children(i)
		if t.IsLeaf(cn[0]) && t.IsLeaf(cn[1]) {
			if res, _, _ := s.NNI(t, i); res != nil {
				tst.Error("Cherry should have no move")
			}
		}
	}
}

func TestRecursiveNNIRandom(tst *testing.T) {
	if testing.Short() {
		tst.Skip("skipping random search in short mode")
	}
	pl, t := randomTree(tst, 7, 8, 3)
	s := searcher(tst, pl, 0)
	s.MaxSweeps = 0
	s.Model.Populate(t)
	start := likelihood.Score(t, t.Root, s.Prior)

	sweeps := 0
	s.OnSweep = func(sweep int, t *tree.Tree, score float64) {
		sweeps = sweep
	}
	res, score := s.RecursiveNNI(t)
	if sweeps < 1 || len(s.Trace) != sweeps {
		tst.Error("Wrong number of sweeps", sweeps, len(s.Trace))
	}
	if score > start {
		tst.Error("NNI made the score worse", start, score)
	}
	if got := likelihood.Score(res, res.Root, s.Prior); math.Abs(got-score) > 1e-9*score {
		tst.Error("Returned score does not match the tree", got, score)
	}

	res, score = s.RecursiveReroot(res)
	if res.NLeaves(res.Root) != 7 || !res.IsBinary() {
		tst.Error("Broken tree", res.FullString())
	}
	if last := s.Trace[len(s.Trace)-1]; last.Stage != StageReroot || last.Score != score {
		tst.Error("Wrong trace", last)
	}
}

func TestSearchNeverWorse(tst *testing.T) {
	nSeed := int64(30)
	if testing.Short() {
		nSeed = 5
	}
	for seed := int64(1); seed <= nSeed; seed++ {
		for _, delta := range []float64{0, 1e-3} {
			pl, t := randomTree(tst, 9, 12, seed)
			s := searcher(tst, pl, delta)
			s.MaxSweeps = 0
			s.Model.Populate(t)
			start := likelihood.Score(t, t.Root, s.Prior)

			nni, nniScore := s.RecursiveNNI(t)
			if nniScore > start {
				tst.Errorf("seed %d, delta %v: NNI %v -> %v", seed, delta, start, nniScore)
			}
			if got := likelihood.Score(nni, nni.Root, s.Prior); math.Abs(got-nniScore) > 1e-9*nniScore {
				tst.Errorf("seed %d, delta %v: NNI returned score %v, tree score %v", seed, delta, nniScore, got)
			}
			// every kept sweep improves the score, so the search cannot cycle
			if n := len(s.Trace); n > 1 {
				for _, tp := range s.Trace[:n-1] {
					if tp.Score > start {
						tst.Errorf("seed %d, delta %v: kept sweep %d is worse than the start", seed, delta, tp.Step)
					}
				}
			}

			res, score := s.RecursiveReroot(nni)
			if score > nniScore {
				tst.Errorf("seed %d, delta %v: reroot %v -> %v", seed, delta, nniScore, score)
			}
			if got := likelihood.Score(res, res.Root, s.Prior); math.Abs(got-score) > 1e-9*score {
				tst.Errorf("seed %d, delta %v: reroot returned score %v, tree score %v", seed, delta, score, got)
			}
		}
	}
}

func TestEndToEnd(tst *testing.T) {
	// equivalent rootings differ by rounding only
	s := searcher(tst, twoPairs(tst), 1e-9)
	s.MaxSweeps = 0
	t := parse(tst, s, "((a:1,c:1):1,(b:1,d:1):1);")
	start := likelihood.Score(t, t.Root, s.Prior)

	t, score := s.RecursiveNNI(t)
	tst.Log("NNI:", t, score)
	if len(s.Trace) > 3 {
		tst.Error("NNI should converge within 3 sweeps, got", len(s.Trace))
	}
	if score >= start {
		tst.Error("NNI should improve the score", start, score)
	}

	t, score = s.RecursiveReroot(t)
	tst.Log("Reroot:", t, score)
	for _, sid := range [][]int{{0, 1}, {2, 3}} {
		n := t.Find(sid)
		if n == tree.NoNode || t.Parent(n) != t.Root {
			tst.Error("Missing root clade", sid, t)
		}
	}

	// already optimal
	good := parse(tst, s, "((a:1,b:1):1,(c:1,d:1):1);")
	if res, _, changed := s.NNI(good, good.Root); changed || res != good {
		tst.Error("Optimal tree should not change")
	}
	s.Trace = nil
	if res, _ := s.RecursiveNNI(good); res != good || len(s.Trace) != 1 {
		tst.Error("Optimal tree should stop after one sweep", len(s.Trace))
	}
}
