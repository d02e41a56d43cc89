package studydata

import (
	"github.com/actigraph/BioPsyKit/pkg/series"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// Dict is a study data dictionary: a nested tree of per-subject time-series
// frames with explicit level names. Two shapes exist:
//
// un-merged: every leaf frame holds one subject's series for one phase
// (single value column), and one of the levels is named "subject".
//
// merged: one frame per phase holding all subjects' series as parallel
// columns of identical length (see CutToShortest and MergeSubjects).
type Dict struct {
	root   *Node
	levels []string
	merged bool
}

// New creates an empty un-merged dictionary with the given level names.
func New(levels ...string) *Dict {
	return &Dict{root: NewBranch(), levels: append([]string(nil), levels...)}
}

// newMerged creates an empty merged dictionary with the given level names.
func newMerged(levels ...string) *Dict {
	d := New(levels...)
	d.merged = true
	return d
}

// Levels returns the level names from outermost to innermost.
func (d *Dict) Levels() []string {
	return d.levels
}

// Merged reports whether leaf frames hold all subjects as parallel columns.
func (d *Dict) Merged() bool {
	return d.merged
}

// Root returns the root branch node.
func (d *Dict) Root() *Node {
	return d.root
}

// Keys returns the outermost keys in insertion order.
func (d *Dict) Keys() []string {
	return d.root.Keys()
}

// Put inserts a subtree under the outermost key.
func (d *Dict) Put(key string, node *Node) {
	d.root.Put(key, node)
}

// PutFrame inserts a leaf frame under the given key path, creating
// intermediate branches as needed. The path length must match the number of
// declared levels.
func (d *Dict) PutFrame(path []string, frame *series.Frame) error {
	if len(path) != len(d.levels) {
		return validation.NewConfigurationError(
			"key path %v has %d entries but dictionary declares %d levels %v",
			path, len(path), len(d.levels), d.levels)
	}
	node := d.root
	for _, key := range path[:len(path)-1] {
		child, ok := node.Child(key)
		if !ok {
			child = NewBranch()
			node.Put(key, child)
		}
		node = child
	}
	node.Put(path[len(path)-1], NewLeaf(frame))
	return nil
}

// Frame returns the leaf frame under the given key path.
func (d *Dict) Frame(path ...string) (*series.Frame, error) {
	node := d.root
	for _, key := range path {
		child, ok := node.Child(key)
		if !ok {
			return nil, validation.NewValidationError("key %q not found in dictionary", key)
		}
		node = child
	}
	if !node.IsLeaf() {
		return nil, validation.NewValidationError("key path %v does not address a leaf", path)
	}
	return node.Frame(), nil
}

// Depth returns the uniform nesting depth and verifies it matches the
// declared level names.
func (d *Dict) Depth() (int, error) {
	depth, err := d.root.depth()
	if err != nil {
		return 0, err
	}
	if depth != len(d.levels) {
		return 0, validation.NewConfigurationError(
			"dictionary has depth %d but declares %d levels %v", depth, len(d.levels), d.levels)
	}
	return depth, nil
}

// Copy returns a deep copy of the dictionary.
func (d *Dict) Copy() *Dict {
	out := &Dict{
		root:   d.root.copyTree(),
		levels: append([]string(nil), d.levels...),
		merged: d.merged,
	}
	return out
}

// EachLeaf visits every leaf frame together with its key path, outermost
// key first.
func (d *Dict) EachLeaf(fn func(path []string, frame *series.Frame) error) error {
	return d.root.eachLeaf(nil, fn)
}

// levelIndex returns the position of the named level.
func (d *Dict) levelIndex(level string) (int, error) {
	for i, name := range d.levels {
		if name == level {
			return i, nil
		}
	}
	return 0, validation.NewConfigurationError(
		"dictionary has no %q level (levels: %v)", level, d.levels)
}
