package tree

import "fmt"

// SetOutgroup reroots the subtree of top so that out becomes one of
// the two children of top. The branch between out and its former
// parent is split in half, the two branches below top are merged.
// The nodes whose children change are marked dirty; top keeps its
// index and its place in the tree.
func (t *Tree) SetOutgroup(top, out int) error {
	if out == top {
		return fmt.Errorf("node %d cannot be the outgroup of itself", top)
	}
	if len(t.nodes[top].childNodes) != 2 {
		return fmt.Errorf("node %d has %d children, expected 2", top, len(t.nodes[top].childNodes))
	}

	// n is the child of top on the path to out.
	n := out
	for t.nodes[n].Parent != top {
		n = t.nodes[n].Parent
		if n == NoNode {
			return fmt.Errorf("node %d is not below node %d", out, top)
		}
	}
	parentOut := t.nodes[out].Parent

	t.removeChild(top, n)
	down := t.nodes[top].childNodes[0]

	var out2 int
	if parentOut != top {
		// Reverse the path from parentOut up to n.
		parent := parentOut
		child := t.nodes[parent].Parent
		was := NoNode
		buffered := t.nodes[parent].BranchLength
		for child != top {
			t.nodes[parent].childNodes = append(t.nodes[parent].childNodes, child)
			t.removeChild(child, parent)

			buffered, t.nodes[child].BranchLength = t.nodes[child].BranchLength, buffered

			t.nodes[parent].Parent = was
			t.nodes[parent].Dirty = true
			was = parent
			parent = child
			child = t.nodes[parent].Parent
		}
		t.nodes[parent].childNodes = append(t.nodes[parent].childNodes, down)
		t.nodes[down].Parent = parent
		t.nodes[parent].Parent = was
		t.nodes[parent].Dirty = true
		t.nodes[down].BranchLength += buffered

		out2 = parentOut
		t.removeChild(parentOut, out)
		t.nodes[out2].BranchLength = 0
	} else {
		out2 = down
	}

	t.nodes[top].childNodes = []int{out, out2}
	t.nodes[out].Parent = top
	t.nodes[out2].Parent = top
	mid := (t.nodes[out].BranchLength + t.nodes[out2].BranchLength) / 2
	t.nodes[out].BranchLength = mid
	t.nodes[out2].BranchLength = mid
	t.nodes[top].Dirty = true
	return nil
}
