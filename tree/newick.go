package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode is the newick parser mode.
type Mode int

const (
	// NORMAL mode reads node names.
	NORMAL Mode = iota
	// LENGTH mode reads a branch length.
	LENGTH
)

// String returns the newick representation of the tree with leaf
// names and branch lengths.
func (t *Tree) String() string {
	var b strings.Builder
	t.writeNewick(&b, t.Root)
	b.WriteString(";")
	return b.String()
}

// SubtreeString returns the newick representation of the subtree
// starting at node i.
func (t *Tree) SubtreeString(i int) string {
	var b strings.Builder
	t.writeNewick(&b, i)
	b.WriteString(";")
	return b.String()
}

func (t *Tree) writeNewick(b *strings.Builder, i int) {
	node := &t.nodes[i]
	if len(node.childNodes) > 0 {
		b.WriteString("(")
		for k, c := range node.childNodes {
			if k > 0 {
				b.WriteString(",")
			}
			t.writeNewick(b, c)
		}
		b.WriteString(")")
	} else {
		b.WriteString(node.Name)
	}
	if node.Parent != NoNode {
		b.WriteString(":")
		b.WriteString(strconv.FormatFloat(node.BranchLength, 'g', 6, 64))
	}
}

// IsSpecial tests if the rune is a newick control character.
func IsSpecial(c rune) bool {
	switch c {
	case '(', ')', ':', ';', ',':
		return true
	}
	return false

}

// NewickSplit is a bufio.SplitFunc splitting newick into tokens.
func NewickSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	// Skip leading spaces; and return 1-char tokens.
	for width := 0; start < len(data); start += width {
		var r rune
		r, width = utf8.DecodeRune(data[start:])
		if IsSpecial(r) {
			return start + width, data[start : start+width], nil
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// Scan until space or special character.
	for width, i := 0, start; i < len(data); i += width {
		var r rune
		r, width = utf8.DecodeRune(data[i:])
		if unicode.IsSpace(r) || IsSpecial(r) {
			return i, data[start:i], nil
		}
	}
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	// Request more data.
	return 0, nil, nil
}

// ParseNewick reads a binary tree. Leaf names are mapped to the
// indices of samples; every sample has to appear exactly once. A
// trifurcating root (unrooted tree) is resolved into (a,(b,c)).
// The resulting tree is reindexed.
func ParseNewick(rd io.Reader, samples []string) (*Tree, error) {
	leafIds := make(map[string]int, len(samples))
	for i, s := range samples {
		leafIds[s] = i
	}

	scanner := bufio.NewScanner(rd)
	scanner.Split(NewickSplit)

	t := New()
	node := t.AddNode("", -1)
	mode := NORMAL

	done := false
	for !done && scanner.Scan() {
		text := scanner.Text()
		switch text {
		case "(":
			subNode := t.AddNode("", -1)
			t.AddChild(node, subNode, 0)
			node = subNode

		case ",":
			parent := t.nodes[node].Parent
			if parent == NoNode {
				return nil, errors.New("top level comma mismatch")
			}
			subNode := t.AddNode("", -1)
			t.AddChild(parent, subNode, 0)
			node = subNode

		case ")":
			if t.nodes[node].Parent == NoNode {
				return nil, errors.New("brackets mismatch")
			}
			node = t.nodes[node].Parent
		case ":":
			mode = LENGTH
		case ";":
			done = true
		default:
			switch mode {
			case LENGTH:
				l, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, err
				}
				t.nodes[node].BranchLength = l
				mode = NORMAL
			default:
				t.nodes[node].Name = text
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !done {
		return nil, errors.New("newick is not terminated with ;")
	}
	if node != t.Root {
		return nil, errors.New("brackets mismatch")
	}

	seen := make(map[int]bool, len(samples))
	for _, n := range t.PostOrder(t.Root) {
		if !t.IsLeaf(n) {
			continue
		}
		name := t.nodes[n].Name
		id, ok := leafIds[name]
		if !ok {
			return nil, fmt.Errorf("unknown leaf %q", name)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate leaf %q", name)
		}
		seen[id] = true
		t.nodes[n].LeafId = id
	}
	if len(seen) != len(samples) {
		return nil, fmt.Errorf("tree has %d leaves, expected %d", len(seen), len(samples))
	}

	if cn := t.nodes[t.Root].childNodes; len(cn) == 3 {
		b, c := cn[1], cn[2]
		t.Detach(b)
		t.Detach(c)
		n := t.AddNode("", -1)
		t.AddChild(n, b, t.nodes[b].BranchLength)
		t.AddChild(n, c, t.nodes[c].BranchLength)
		t.AddChild(t.Root, n, 0)
	}
	if !t.IsBinary() {
		return nil, errors.New("tree is not binary")
	}
	t.nodes[t.Root].BranchLength = 0
	t.Reindex()
	return t, nil
}
