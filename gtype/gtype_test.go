package gtype

import (
	"math"
	"testing"
)

const smallDiff = 1e-6

func TestDistance3(tst *testing.T) {
	ref := [][]int{
		{0, 1, 2},
		{1, 0, 1},
		{2, 1, 0},
	}
	dist := Distance(GType3)
	for i := range ref {
		for j := range ref[i] {
			if dist[i][j] != ref[i][j] {
				tst.Errorf("distance %s-%s: expected %d, got %d", GType3[i], GType3[j], ref[i][j], dist[i][j])
			}
		}
	}
}

func TestDistanceUnordered(tst *testing.T) {
	dist := Distance([]string{"RA", "AR"})
	if dist[0][1] != 0 || dist[1][0] != 0 {
		tst.Error("RA and AR should be at zero distance, got", dist)
	}
	dist = Distance(GType10)
	for i := range dist {
		for j := range dist {
			if dist[i][j] != dist[j][i] {
				tst.Errorf("asymmetric distance %s-%s", GType10[i], GType10[j])
			}
		}
	}
}

func TestAffinityDiagonal(tst *testing.T) {
	for _, mu := range []float64{0, 10, 30, 80, 200} {
		aff, err := Affinity(mu, Distance(GType3))
		if err != nil {
			tst.Fatal("Error:", err)
		}
		for i := range GType3 {
			if aff.At(i, i) != 1 {
				tst.Errorf("mu=%v: identity affinity should be 1, got %v", mu, aff.At(i, i))
			}
			for j := range GType3 {
				if aff.At(i, j) > aff.At(i, i) {
					tst.Errorf("mu=%v: affinity (%d,%d) exceeds identity", mu, i, j)
				}
			}
		}
	}
}

func TestMutationModel(tst *testing.T) {
	m, err := NewMutationModel(80, GType3)
	if err != nil {
		tst.Fatal("Error:", err)
	}
	for j := range GType3 {
		s := 0.0
		for i := range GType3 {
			s += m.MM.At(i, j)
			if i == j {
				if m.MM1.At(i, j) != 0 {
					tst.Error("MM1 diagonal should be 0")
				}
				if m.MM0.At(i, j) != m.MM.At(i, j) {
					tst.Error("MM0 diagonal should match MM")
				}
			} else {
				if m.MM0.At(i, j) != 0 {
					tst.Error("MM0 off-diagonal should be 0")
				}
				if m.MM1.At(i, j) != m.MM.At(i, j) {
					tst.Error("MM1 off-diagonal should match MM")
				}
			}
		}
		tst.Log("column", j, "sum", s)
		if math.Abs(s-(mutScale-1)) > 1e-12 {
			tst.Errorf("column %d sums to %v", j, s)
		}
	}
	if math.Abs(m.MM1.At(0, 1)-1e-8) > 1e-20 {
		tst.Error("RR->RA should be 1e-8, got", m.MM1.At(0, 1))
	}
	if math.Abs(m.MM1.At(0, 2)-1e-16) > 1e-28 {
		tst.Error("RR->AA should be 1e-16, got", m.MM1.At(0, 2))
	}
}

func TestMutationModelErrors(tst *testing.T) {
	if _, err := NewMutationModel(-1, GType3); err == nil {
		tst.Error("negative mutation rate should fail")
	}
	if _, err := NewMutationModel(math.NaN(), GType3); err == nil {
		tst.Error("NaN mutation rate should fail")
	}
	if _, err := NewMutationModelDist(80, [][]int{{0, 1}, {1}}); err == nil {
		tst.Error("non-square distance should fail")
	}
	if _, err := NewMutationModelDist(80, [][]int{{0, -1}, {-1, 0}}); err == nil {
		tst.Error("negative distance should fail")
	}
	if _, err := NewMutationModelDist(80, nil); err == nil {
		tst.Error("empty distance should fail")
	}
	for _, mu := range []float64{0, 1, 2, 3} {
		if mm, err := NewMutationModel(mu, GType3); err == nil {
			tst.Errorf("mu=%v gives a non-positive diagonal and should fail, MM[1][1]=%v", mu, mm.MM.At(1, 1))
		}
	}
	if _, err := NewMutationModel(4, GType3); err != nil {
		tst.Error("mu=4 should be accepted:", err)
	}
}

func TestBasePrior(tst *testing.T) {
	prior := BasePrior(30, GType3)
	ref := []float64{3.0124709, 33.012471, 3.0124709}
	for i := range ref {
		if math.Abs(prior[i]-ref[i]) > smallDiff {
			tst.Errorf("prior[%d]: expected %v, got %v", i, ref[i], prior[i])
		}
	}

	prior = BasePrior(30, GType10)
	if math.Abs(prior[0]-6.0271094) > smallDiff || math.Abs(prior[1]-36.027109) > smallDiff {
		tst.Error("unexpected GType10 prior", prior)
	}
}
