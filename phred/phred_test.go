package phred

import (
	"math"
	"testing"

	"github.com/gonum/matrix/mat64"
)

const smallDiff = 1e-9

func TestRoundTrip(tst *testing.T) {
	for _, p := range []float64{1, 0.5, 0.1, 1e-3, 1e-8, 1e-30, 1e-200} {
		q := ToProb(FromProb(p))
		if math.Abs(q-p)/p > smallDiff {
			tst.Errorf("round trip of %v returned %v", p, q)
		}
	}
	if FromProb(1) != 0 {
		tst.Error("Phred of certainty should be 0, got", FromProb(1))
	}
	if !math.IsInf(FromProb(0), 1) {
		tst.Error("Phred of zero should be +Inf")
	}
}

func TestSum(tst *testing.T) {
	xs := []float64{3, 10, 20}
	ref := FromProb(ToProb(3) + ToProb(10) + ToProb(20))
	if s := Sum(xs); math.Abs(s-ref) > smallDiff {
		tst.Error("Expected", ref, "got", s)
	}

	// far beyond float64 range in probability space
	big := []float64{50000, 50000}
	ref = 50000 - 10*math.Log10(2)
	if s := Sum(big); math.Abs(s-ref) > 1e-6 {
		tst.Error("Expected", ref, "got", s)
	}

	if s := Sum([]float64{math.Inf(1), math.Inf(1)}); !math.IsInf(s, 1) {
		tst.Error("Sum of impossible events should be +Inf, got", s)
	}
	if s := Sum([]float64{math.Inf(1), 7}); math.Abs(s-7) > smallDiff {
		tst.Error("Impossible events shouldn't contribute, got", s)
	}
}

func TestNormalize(tst *testing.T) {
	rows := [][]float64{
		{0, 0, 0},
		{0, 30, 255},
		{12, 3, 40},
		{1000, 1010, 1100},
	}
	for _, row := range rows {
		n := Normalize(row)
		p := 0.0
		for _, x := range n {
			p += ToProb(x)
		}
		if math.Abs(p-1) > smallDiff {
			tst.Errorf("normalized %v sums to %v", row, p)
		}
	}

	m := mat64.NewDense(4, 3, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	nm := Normalize2D(m)
	for i := range rows {
		p := 0.0
		for _, x := range nm.RawRowView(i) {
			p += ToProb(x)
		}
		if math.Abs(p-1) > smallDiff {
			tst.Errorf("row %d sums to %v", i, p)
		}
	}
}

func TestTransform(tst *testing.T) {
	pl := mat64.NewDense(2, 3, []float64{
		0, 30, 60,
		10, 0, math.Inf(1),
	})
	mm := mat64.NewDense(3, 3, []float64{
		0.5, 0.1, 0,
		0.1, 0.5, 0.1,
		0, 0.1, 0.5,
	})
	res := Transform(pl, mm)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			ref := 0.0
			for k := 0; k < 3; k++ {
				ref += ToProb(pl.At(i, k)) * mm.At(k, j)
			}
			ref = FromProb(ref)
			if math.Abs(res.At(i, j)-ref) > smallDiff {
				tst.Errorf("(%d,%d): expected %v, got %v", i, j, ref, res.At(i, j))
			}
		}
	}

	zero := mat64.NewDense(1, 3, []float64{math.Inf(1), math.Inf(1), math.Inf(1)})
	res = Transform(zero, mm)
	for j := 0; j < 3; j++ {
		if !math.IsInf(res.At(0, j), 1) {
			tst.Error("zero probability row should stay +Inf, got", res.At(0, j))
		}
	}
}

func TestPairwiseDiff(tst *testing.T) {
	a := mat64.NewDense(2, 3, []float64{0, 255, 255, 0, 255, 255})
	b := mat64.NewDense(2, 3, []float64{255, 255, 0, 255, 255, 0})

	same := PairwiseDiff(a, a)
	diff := PairwiseDiff(a, b)
	tst.Log("same =", same, ", diff =", diff)
	if same > 1e-6 {
		tst.Error("identical sharp samples should be at ~0 distance, got", same)
	}
	if math.Abs(diff-2) > 1e-6 {
		tst.Error("divergent sharp samples should differ at every site, got", diff)
	}
	if d := PairwiseDiff(b, a); math.Abs(d-diff) > smallDiff {
		tst.Error("distance is not symmetric:", d, diff)
	}
}
