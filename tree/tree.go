// Package tree implements a binary tree stored in a node arena. Nodes
// refer to their parent and children by index, so copying a tree is a
// copy of the arena.
package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gonum/matrix/mat64"
)

// NoNode is the parent index of the root.
const NoNode = -1

// Node is a tree node. Besides the topology it stores the likelihood
// state computed for the subtree.
type Node struct {
	Name         string
	BranchLength float64
	Parent       int
	childNodes   []int
	Id           int
	// LeafId is the sample index for leaves, -1 for internal
	// nodes.
	LeafId int
	// Sid is the sorted set of leaf ids below the node at the time
	// the likelihoods were computed.
	Sid []int
	// Dirty marks nodes with modified descendants.
	Dirty bool
	// PL0 is the (site × genotype) likelihood of the subtree
	// assuming no mutation on the branch above the node.
	PL0 *mat64.Dense
	// PLm are likelihoods of a single mutation placed on each of
	// the branches of the subtree.
	PLm []*mat64.Dense
}

// Tree is a node arena with a designated root.
type Tree struct {
	nodes []Node
	Root  int
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{Root: NoNode}
}

// AddNode adds a detached node and returns its index. Pointers
// returned by Node are invalidated.
func (t *Tree) AddNode(name string, leafId int) int {
	i := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		Name:   name,
		Parent: NoNode,
		Id:     i,
		LeafId: leafId,
	})
	if t.Root == NoNode {
		t.Root = i
	}
	return i
}

// NNodes returns the size of the arena.
func (t *Tree) NNodes() int {
	return len(t.nodes)
}

// Node returns the node with index i.
func (t *Tree) Node(i int) *Node {
	return &t.nodes[i]
}

// Children returns child indices of the node. The slice should not be
// modified.
func (t *Tree) Children(i int) []int {
	return t.nodes[i].childNodes
}

// Parent returns the parent index or NoNode.
func (t *Tree) Parent(i int) int {
	return t.nodes[i].Parent
}

// IsLeaf tests if the node has no children.
func (t *Tree) IsLeaf(i int) bool {
	return len(t.nodes[i].childNodes) == 0
}

// IsRoot tests if the node is the tree root.
func (t *Tree) IsRoot(i int) bool {
	return i == t.Root
}

// AddChild attaches child to parent as the last child.
func (t *Tree) AddChild(parent, child int, branchLength float64) {
	if t.nodes[child].Parent != NoNode {
		panic(fmt.Sprintf("node %d is already attached to %d", child, t.nodes[child].Parent))
	}
	t.nodes[child].Parent = parent
	t.nodes[child].BranchLength = branchLength
	t.nodes[parent].childNodes = append(t.nodes[parent].childNodes, child)
}

// removeChild removes child from the children of parent, keeping the
// order of the others.
func (t *Tree) removeChild(parent, child int) {
	cn := t.nodes[parent].childNodes
	for k, c := range cn {
		if c == child {
			t.nodes[parent].childNodes = append(cn[:k:k], cn[k+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("node %d is not a child of %d", child, parent))
}

// Detach removes the node from its parent.
func (t *Tree) Detach(i int) {
	p := t.nodes[i].Parent
	if p == NoNode {
		return
	}
	t.removeChild(p, i)
	t.nodes[i].Parent = NoNode
}

// ReplaceChild puts newChild in place of oldChild keeping the child
// order of parent.
func (t *Tree) ReplaceChild(parent, oldChild, newChild int) {
	for k, c := range t.nodes[parent].childNodes {
		if c == oldChild {
			t.nodes[parent].childNodes[k] = newChild
			t.nodes[oldChild].Parent = NoNode
			t.nodes[newChild].Parent = parent
			return
		}
	}
	panic(fmt.Sprintf("node %d is not a child of %d", oldChild, parent))
}

// PostOrder returns indices of the subtree of top, children before
// parents, children in their order.
func (t *Tree) PostOrder(top int) []int {
	order := make([]int, 0, len(t.nodes))
	type frame struct {
		node int
		next int
	}
	stack := []frame{{top, 0}}
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.next < len(t.nodes[f.node].childNodes) {
			c := t.nodes[f.node].childNodes[f.next]
			f.next++
			stack = append(stack, frame{c, 0})
			continue
		}
		order = append(order, f.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

// Leaves returns the sorted leaf ids below the node.
func (t *Tree) Leaves(i int) []int {
	var leaves []int
	for _, n := range t.PostOrder(i) {
		if t.IsLeaf(n) {
			leaves = append(leaves, t.nodes[n].LeafId)
		}
	}
	sort.Ints(leaves)
	return leaves
}

// NLeaves returns the number of leaves below the node.
func (t *Tree) NLeaves(i int) (n int) {
	for _, c := range t.PostOrder(i) {
		if t.IsLeaf(c) {
			n++
		}
	}
	return
}

// Find returns the node with the given leaf set or NoNode.
func (t *Tree) Find(sid []int) int {
	for _, n := range t.PostOrder(t.Root) {
		if equalInts(t.Leaves(n), sid) {
			return n
		}
	}
	return NoNode
}

// Invalidate marks the node and all its ancestors dirty.
func (t *Tree) Invalidate(i int) {
	for ; i != NoNode; i = t.nodes[i].Parent {
		t.nodes[i].Dirty = true
	}
}

// Reindex renumbers nodes in post-order starting from the root, drops
// nodes which are not reachable, resets node ids, and records leaf
// sets. Internal node names are cleared.
func (t *Tree) Reindex() {
	order := t.PostOrder(t.Root)
	newId := make(map[int]int, len(order))
	for i, n := range order {
		newId[n] = i
	}
	nodes := make([]Node, len(order))
	for i, n := range order {
		node := t.nodes[n]
		if node.Parent != NoNode {
			node.Parent = newId[node.Parent]
		}
		cn := make([]int, len(node.childNodes))
		for k, c := range node.childNodes {
			cn[k] = newId[c]
		}
		node.childNodes = cn
		node.Id = i
		if len(cn) > 0 {
			node.Name = ""
			node.LeafId = -1
		}
		nodes[i] = node
	}
	t.nodes = nodes
	t.Root = newId[t.Root]
	for _, n := range order {
		i := newId[n]
		t.nodes[i].Sid = t.Leaves(i)
	}
}

// Copy creates an independent copy of the tree, including the
// likelihood matrices.
func (t *Tree) Copy() *Tree {
	newTree := &Tree{
		nodes: make([]Node, len(t.nodes)),
		Root:  t.Root,
	}
	for i, node := range t.nodes {
		newNode := node
		newNode.childNodes = append([]int(nil), node.childNodes...)
		newNode.Sid = append([]int(nil), node.Sid...)
		if node.PL0 != nil {
			newNode.PL0 = mat64.DenseCopyOf(node.PL0)
		}
		if node.PLm != nil {
			newNode.PLm = make([]*mat64.Dense, len(node.PLm))
			for k, m := range node.PLm {
				newNode.PLm[k] = mat64.DenseCopyOf(m)
			}
		}
		newTree.nodes[i] = newNode
	}
	return newTree
}

// IsBinary tests if every internal node of the tree has exactly two
// children.
func (t *Tree) IsBinary() bool {
	for _, n := range t.PostOrder(t.Root) {
		if c := len(t.nodes[n].childNodes); c != 0 && c != 2 {
			return false
		}
	}
	return true
}

// LongString returns a one-line description of the node.
func (t *Tree) LongString(i int) (s string) {
	node := &t.nodes[i]
	s = "<"
	if node.Parent == NoNode {
		s += "root, "
	}
	if node.Name != "" {
		s += "name=" + node.Name + ", "
	}
	s += fmt.Sprintf("Id=%v, BranchLength=%v", node.Id, node.BranchLength)
	if t.IsLeaf(i) {
		s += fmt.Sprintf(", LeafId=%v", node.LeafId)
	} else {
		s += fmt.Sprintf(", Sid=%v", node.Sid)
	}
	if node.Dirty {
		s += ", dirty"
	}
	s += ">"
	return
}

// FullString returns an indented multi-line representation of the
// tree.
func (t *Tree) FullString() string {
	return strings.TrimSpace(t.prefixString(t.Root, ""))
}

func (t *Tree) prefixString(i int, prefix string) (s string) {
	s = prefix + t.LongString(i) + "\n"
	for _, c := range t.nodes[i].childNodes {
		s += t.prefixString(c, prefix+"    ")
	}
	return
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SameLeaves tests if two sorted leaf sets are equal.
func SameLeaves(a, b []int) bool {
	return equalInts(a, b)
}
