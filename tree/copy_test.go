package tree

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/gonum/matrix/mat64"
)

const (
	tree1 = "((((a001:0.242690,a002:0.268555):0.073424,a003:0.252510):0.198740,((((((a004:0.001000,a005:0.014869):0.045007,a006:0.050606):0.056908,a007:0.166439):0.023217,a008:0.094788):0.429852,a009:0.558116):0.130317,(a010:0.009332,a011:0.024271):0.315124):0.217376):0.464470,a012:0.144369):0.0;"
)

func samples(n int) (s []string) {
	for i := 1; i <= n; i++ {
		s = append(s, fmt.Sprintf("a%03d", i))
	}
	return
}

func TestCopy1(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree1), samples(12))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	t.Node(t.Root).PL0 = mat64.NewDense(2, 3, []float64{0, 1, 2, 3, 4, 5})
	t1 := t.Copy()
	t2 := t1.Copy()

	if t.NNodes() != t1.NNodes() {
		tst.Error("node length differ between t and t1")
	}
	if t1.NNodes() != t2.NNodes() {
		tst.Error("node length differ between t1 and t2")
	}

	for i := 0; i < t.NNodes(); i++ {
		if t.Node(i) == t1.Node(i) ||
			t1.Node(i) == t2.Node(i) {
			tst.Error("node pointers match between trees")
		}
		if t.Node(i).BranchLength != t1.Node(i).BranchLength ||
			t1.Node(i).BranchLength != t2.Node(i).BranchLength {
			tst.Error("node length differ")
		}
		if t.Node(i).Name != t1.Node(i).Name ||
			t1.Node(i).Name != t2.Node(i).Name {
			tst.Error("node name differ")
		}
		if !SameLeaves(t.Node(i).Sid, t2.Node(i).Sid) {
			tst.Error("node leaf sets differ")
		}
	}

	for i := 0; i < t1.NNodes(); i++ {
		t1.Node(i).BranchLength = 2
	}

	for i := 0; i < t.NNodes(); i++ {
		if !t.IsRoot(i) && t.Node(i).BranchLength == t1.Node(i).BranchLength {
			tst.Error("node length still match after change")
		}
	}

	for i := 0; i < t2.NNodes(); i++ {
		t2.Node(i).BranchLength = 0.5
	}

	for i := 0; i < t.NNodes(); i++ {
		if t1.Node(i).BranchLength <= t2.Node(i).BranchLength {
			tst.Error("node length is wrong")
		}
	}

	t2.Node(t2.Root).PL0.Set(0, 0, 100)
	if t.Node(t.Root).PL0.At(0, 0) != 0 || t1.Node(t1.Root).PL0.At(0, 0) != 0 {
		tst.Error("likelihood matrices are shared between copies")
	}

	t1.Detach(t1.Children(t1.Root)[0])
	if len(t.Children(t.Root)) != 2 {
		tst.Error("topology is shared between copies")
	}
}

func TestInvalidate(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree1), samples(12))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	leaf := t.Find([]int{4})
	if leaf == NoNode {
		tst.Fatal("leaf a005 not found")
	}
	t.Invalidate(t.Parent(leaf))
	n := 0
	for i := 0; i < t.NNodes(); i++ {
		if t.Node(i).Dirty {
			n++
		}
	}
	// a004,a005 clade and its seven ancestors
	if n != 8 {
		tst.Error("expected 8 dirty nodes, got", n)
	}
	if t.Node(leaf).Dirty || !t.Node(t.Root).Dirty {
		tst.Error("wrong nodes invalidated")
	}
}
