// Package studydata implements the nested study data dictionary which the
// protocol aggregation pipeline operates on, together with the transformer
// family that reshapes it (resampling, normalization, phase selection,
// subphase splitting, cutting, merging, condition splitting) and the flat
// result table produced by the per-subject mean reduction.
//
// A study data dictionary is a tagged recursive structure: every node is
// either a leaf carrying one time-series frame or a branch carrying named
// children in insertion order. The dictionary carries the names of its
// nesting levels explicitly (e.g. ["subject", "phase"]) instead of deriving
// them from runtime inspection.
package studydata

import (
	"github.com/actigraph/BioPsyKit/pkg/series"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// Level names used by the aggregation pipeline.
const (
	LevelSubject   = "subject"
	LevelPhase     = "phase"
	LevelSubphase  = "subphase"
	LevelCondition = "condition"
)

// Node is one level of a study data dictionary: either a leaf holding a
// frame or a branch holding named children in insertion order.
type Node struct {
	frame    *series.Frame
	keys     []string
	children map[string]*Node
}

// NewLeaf creates a leaf node carrying the given frame.
func NewLeaf(frame *series.Frame) *Node {
	return &Node{frame: frame}
}

// NewBranch creates an empty branch node.
func NewBranch() *Node {
	return &Node{children: map[string]*Node{}}
}

// IsLeaf reports whether the node carries a frame.
func (n *Node) IsLeaf() bool {
	return n.frame != nil
}

// Frame returns the leaf payload, nil for branches.
func (n *Node) Frame() *series.Frame {
	return n.frame
}

// Keys returns the child keys in insertion order.
func (n *Node) Keys() []string {
	return n.keys
}

// Child returns the named child.
func (n *Node) Child(key string) (*Node, bool) {
	child, ok := n.children[key]
	return child, ok
}

// Put adds or replaces a named child, keeping insertion order on first add.
func (n *Node) Put(key string, child *Node) {
	if _, ok := n.children[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.children[key] = child
}

// depth returns the uniform depth of the subtree: 0 for a leaf, 1 + child
// depth for branches. A branch whose children disagree on depth is reported
// as a configuration error.
func (n *Node) depth() (int, error) {
	if n.IsLeaf() {
		return 0, nil
	}
	if len(n.keys) == 0 {
		return 0, validation.NewConfigurationError("branch node has no children")
	}
	depth := -1
	for _, key := range n.keys {
		childDepth, err := n.children[key].depth()
		if err != nil {
			return 0, err
		}
		if depth == -1 {
			depth = childDepth
		} else if childDepth != depth {
			return 0, validation.NewConfigurationError(
				"ragged nesting below key %q: depth %d next to depth %d", key, childDepth, depth)
		}
	}
	return depth + 1, nil
}

// copyTree returns a structural copy of the subtree. Leaf frames are copied
// as well so that transformer outputs never alias cached inputs.
func (n *Node) copyTree() *Node {
	if n.IsLeaf() {
		return NewLeaf(n.frame.Copy())
	}
	out := NewBranch()
	for _, key := range n.keys {
		out.Put(key, n.children[key].copyTree())
	}
	return out
}

// mapLeaves builds a new subtree by applying fn to every leaf frame. The
// path passed to fn holds the branch keys from the root down to the leaf.
func (n *Node) mapLeaves(path []string, fn func(path []string, frame *series.Frame) (*series.Frame, error)) (*Node, error) {
	if n.IsLeaf() {
		frame, err := fn(path, n.frame)
		if err != nil {
			return nil, err
		}
		return NewLeaf(frame), nil
	}
	out := NewBranch()
	for _, key := range n.keys {
		child, err := n.children[key].mapLeaves(append(path, key), fn)
		if err != nil {
			return nil, err
		}
		out.Put(key, child)
	}
	return out, nil
}

// eachLeaf visits every leaf frame together with its key path.
func (n *Node) eachLeaf(path []string, fn func(path []string, frame *series.Frame) error) error {
	if n.IsLeaf() {
		return fn(path, n.frame)
	}
	for _, key := range n.keys {
		if err := n.children[key].eachLeaf(append(path, key), fn); err != nil {
			return err
		}
	}
	return nil
}
