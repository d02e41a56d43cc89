package studydata

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/actigraph/BioPsyKit/pkg/series"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// Subphase names one consecutive window of a phase with its nominal
// duration in seconds.
type Subphase struct {
	Name     string
	Duration float64
}

// Reference selects what to normalize heart rate data to: either the named
// phase of each subject or an externally supplied reference frame applied
// to all subjects.
type Reference struct {
	Phase string
	Frame *series.Frame
}

// ResampleSec resamples every leaf frame to exactly one sample per second
// using the frame's own time index.
func ResampleSec(d *Dict) (*Dict, error) {
	root, err := d.root.mapLeaves(nil, func(path []string, frame *series.Frame) (*series.Frame, error) {
		resampled, err := frame.ResampleSec()
		if err != nil {
			return nil, errors.Wrapf(err, "resampling failed for %v", path)
		}
		return resampled, nil
	})
	if err != nil {
		return nil, err
	}
	return &Dict{root: root, levels: append([]string(nil), d.levels...), merged: d.merged}, nil
}

// NormalizeToPhase normalizes every subject's data to the subject's mean
// within the reference phase (or to an externally supplied reference frame),
// expressed as percentage increase: (x - mean) / mean * 100.
//
// The dictionary must be un-merged and subject-outer with two levels.
func NormalizeToPhase(d *Dict, reference Reference) (*Dict, error) {
	if err := requireLevels(d, LevelSubject, LevelPhase); err != nil {
		return nil, err
	}
	if reference.Frame == nil && reference.Phase == "" {
		return nil, validation.NewConfigurationError("normalization requires a reference phase or frame")
	}

	out := New(d.levels...)
	for _, subject := range d.Keys() {
		subjectNode, _ := d.root.Child(subject)

		var mean float64
		if reference.Frame != nil {
			column, _, err := reference.Frame.SingleColumn()
			if err != nil {
				return nil, err
			}
			m, err := reference.Frame.Mean(column)
			if err != nil {
				return nil, errors.Wrap(err, "reference frame mean failed")
			}
			mean = m
		} else {
			referenceNode, ok := subjectNode.Child(reference.Phase)
			if !ok {
				return nil, validation.NewValidationError(
					"reference phase %q not present for subject %q", reference.Phase, subject)
			}
			column, _, err := referenceNode.Frame().SingleColumn()
			if err != nil {
				return nil, err
			}
			m, err := referenceNode.Frame().Mean(column)
			if err != nil {
				return nil, errors.Wrapf(err, "reference mean failed for subject %q", subject)
			}
			mean = m
		}
		if mean == 0 {
			return nil, validation.NewValidationError(
				"reference mean is zero for subject %q, cannot normalize", subject)
		}

		normalized, err := subjectNode.mapLeaves([]string{subject},
			func(path []string, frame *series.Frame) (*series.Frame, error) {
				column, values, err := frame.SingleColumn()
				if err != nil {
					return nil, errors.Wrapf(err, "normalization failed for %v", path)
				}
				out := make([]float64, len(values))
				for i, v := range values {
					out[i] = (v - mean) / mean * 100
				}
				return series.NewFrame(frame.Time(), column, out)
			})
		if err != nil {
			return nil, err
		}
		out.Put(subject, normalized)
	}
	return out, nil
}

// SelectPhases retains only the named phases, preserving the relative order
// of names. An unknown phase name is a hard error.
func SelectPhases(d *Dict, names []string) (*Dict, error) {
	if len(names) == 0 {
		return nil, validation.NewConfigurationError("phase selection requires at least one phase name")
	}
	phaseLevel, err := d.levelIndex(LevelPhase)
	if err != nil {
		return nil, err
	}
	root, err := selectAtDepth(d.root, nil, phaseLevel, names)
	if err != nil {
		return nil, err
	}
	return &Dict{root: root, levels: append([]string(nil), d.levels...), merged: d.merged}, nil
}

func selectAtDepth(n *Node, path []string, depth int, names []string) (*Node, error) {
	if depth == 0 {
		out := NewBranch()
		for _, name := range names {
			child, ok := n.Child(name)
			if !ok {
				return nil, validation.NewValidationError(
					"phase %q not found in dictionary at %v", name, path)
			}
			out.Put(name, child.copyTree())
		}
		return out, nil
	}
	out := NewBranch()
	for _, key := range n.Keys() {
		child, _ := n.Child(key)
		selected, err := selectAtDepth(child, append(path, key), depth-1, names)
		if err != nil {
			return nil, err
		}
		out.Put(key, selected)
	}
	return out, nil
}

// SplitIntoSubphases slices every leaf frame into consecutive,
// non-overlapping windows of the given lengths, starting at series start.
// The last subphase may come out shorter than its nominal duration when the
// underlying series is exhausted; this is intentional truncation, not an
// error. The new "subphase" level is appended as the innermost level.
func SplitIntoSubphases(d *Dict, subphases []Subphase) (*Dict, error) {
	if len(subphases) == 0 {
		return nil, validation.NewConfigurationError("subphase split requires at least one subphase")
	}
	for _, sp := range subphases {
		if sp.Duration <= 0 {
			return nil, validation.NewConfigurationError(
				"subphase %q has non-positive duration %f", sp.Name, sp.Duration)
		}
	}
	root := splitNode(d.root, subphases)
	levels := append(append([]string(nil), d.levels...), LevelSubphase)
	return &Dict{root: root, levels: levels, merged: d.merged}, nil
}

func splitNode(n *Node, subphases []Subphase) *Node {
	if n.IsLeaf() {
		out := NewBranch()
		start := 0.0
		for _, sp := range subphases {
			out.Put(sp.Name, NewLeaf(n.frame.Window(start, start+sp.Duration)))
			start += sp.Duration
		}
		return out
	}
	out := NewBranch()
	for _, key := range n.keys {
		out.Put(key, splitNode(n.children[key], subphases))
	}
	return out
}

// Rearrange swaps the two outermost levels, turning a subject-outer
// dictionary (subject -> phase) into a phase-outer one (phase -> subject).
// Phase order follows first appearance across subjects.
func Rearrange(d *Dict) (*Dict, error) {
	if len(d.levels) < 2 {
		return nil, validation.NewConfigurationError(
			"rearranging requires at least two levels, got %v", d.levels)
	}
	levels := append([]string(nil), d.levels...)
	levels[0], levels[1] = levels[1], levels[0]

	out := &Dict{root: NewBranch(), levels: levels, merged: d.merged}
	for _, outer := range d.Keys() {
		outerNode, _ := d.root.Child(outer)
		if outerNode.IsLeaf() {
			return nil, validation.NewConfigurationError(
				"cannot rearrange: key %q holds a leaf at the outermost level", outer)
		}
		for _, inner := range outerNode.Keys() {
			innerNode, _ := outerNode.Child(inner)
			group, ok := out.root.Child(inner)
			if !ok {
				group = NewBranch()
				out.root.Put(inner, group)
			}
			group.Put(outer, innerNode.copyTree())
		}
	}
	return out, nil
}

// CutToShortest truncates every subject's series within each phase to the
// minimum series length among the subjects of that phase. The dictionary
// must be phase-outer (phase -> subject).
func CutToShortest(d *Dict) (*Dict, error) {
	if err := requireLevels(d, LevelPhase, LevelSubject); err != nil {
		return nil, err
	}
	out := New(d.levels...)
	for _, phase := range d.Keys() {
		phaseNode, _ := d.root.Child(phase)
		minLen := -1
		for _, subject := range phaseNode.Keys() {
			subjectNode, _ := phaseNode.Child(subject)
			if minLen == -1 || subjectNode.Frame().Len() < minLen {
				minLen = subjectNode.Frame().Len()
			}
		}
		logrus.Debugf("cutting phase %q to %d samples", phase, minLen)

		cut := NewBranch()
		for _, subject := range phaseNode.Keys() {
			subjectNode, _ := phaseNode.Child(subject)
			cut.Put(subject, NewLeaf(subjectNode.Frame().Truncate(minLen)))
		}
		out.Put(phase, cut)
	}
	return out, nil
}

// MergeSubjects converts a phase-outer un-merged dictionary into a merged
// one: per phase, all subjects' series become parallel columns of one frame,
// row-aligned on the shortest subject series of that phase.
func MergeSubjects(d *Dict) (*Dict, error) {
	if d.merged {
		return nil, validation.NewConfigurationError("dictionary is already merged")
	}
	if err := requireLevels(d, LevelPhase, LevelSubject); err != nil {
		return nil, err
	}
	cut, err := CutToShortest(d)
	if err != nil {
		return nil, err
	}

	out := newMerged(LevelPhase)
	for _, phase := range cut.Keys() {
		phaseNode, _ := cut.root.Child(phase)
		var merged *series.Frame
		for _, subject := range phaseNode.Keys() {
			subjectNode, _ := phaseNode.Child(subject)
			_, values, err := subjectNode.Frame().SingleColumn()
			if err != nil {
				return nil, errors.Wrapf(err, "merging failed for phase %q, subject %q", phase, subject)
			}
			if merged == nil {
				merged = series.Empty(subjectNode.Frame().Time())
			}
			if err := merged.AddColumn(subject, values); err != nil {
				return nil, errors.Wrapf(err, "merging failed for phase %q, subject %q", phase, subject)
			}
		}
		if merged == nil {
			return nil, validation.NewValidationError("phase %q has no subjects to merge", phase)
		}
		out.Put(phase, NewLeaf(merged))
	}
	return out, nil
}

// MeanPerSubject collapses every leaf series to its scalar mean, producing
// a flat table with one row per key path and the given index level names.
// The number of index names must match the nesting depth.
func MeanPerSubject(d *Dict, indexNames []string, valueColumn string) (*Table, error) {
	depth, err := d.Depth()
	if err != nil {
		return nil, err
	}
	if len(indexNames) != depth {
		return nil, validation.NewConfigurationError(
			"index level names %v do not match nesting depth %d", indexNames, depth)
	}

	column := valueColumn
	table := (*Table)(nil)
	err = d.EachLeaf(func(path []string, frame *series.Frame) error {
		if column == "" {
			name, _, err := frame.SingleColumn()
			if err != nil {
				return errors.Wrapf(err, "mean reduction failed for %v", path)
			}
			column = name
		}
		if table == nil {
			table = NewTable(indexNames, []string{column})
		}
		mean, err := frame.Mean(column)
		if err != nil {
			return errors.Wrapf(err, "mean reduction failed for %v", path)
		}
		return table.AppendRow(path, []float64{mean})
	})
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, validation.NewValidationError("dictionary holds no data to reduce")
	}
	return table, nil
}

// SplitByCondition regroups the dictionary by subject condition. Merged
// dictionaries are regrouped by selecting condition-matching subject
// columns per phase; un-merged dictionaries gain "condition" as an added
// outermost level, grouping whole subject subtrees when the subject level
// is outermost and per-phase subject children when the phase level is.
// A subject without a condition entry is a validation error.
func SplitByCondition(d *Dict, conditions *ConditionMap) (*Dict, error) {
	if conditions == nil || conditions.Len() == 0 {
		return nil, validation.NewConfigurationError("condition split requires a subject condition map")
	}
	if d.merged {
		return splitMergedByCondition(d, conditions)
	}
	if len(d.levels) > 1 && d.levels[0] == LevelPhase && d.levels[1] == LevelSubject {
		return splitPhaseOuterByCondition(d, conditions)
	}
	if d.levels[0] != LevelSubject {
		return nil, validation.NewConfigurationError(
			"condition split requires a subject-outer or phase-outer dictionary, levels are %v", d.levels)
	}

	levels := append([]string{LevelCondition}, d.levels...)
	out := &Dict{root: NewBranch(), levels: levels}
	groups := map[string]*Node{}
	for _, subject := range d.Keys() {
		condition, ok := conditions.Condition(subject)
		if !ok {
			return nil, validation.NewValidationError("subject %q has no condition entry", subject)
		}
		subjectNode, _ := d.root.Child(subject)
		group, ok := groups[condition]
		if !ok {
			group = NewBranch()
			groups[condition] = group
		}
		group.Put(subject, subjectNode.copyTree())
	}
	// Conditions without any subject in the data are skipped, so the output
	// keeps a uniform nesting depth.
	for _, condition := range conditions.Conditions() {
		if group, ok := groups[condition]; ok {
			out.root.Put(condition, group)
		}
	}
	return out, nil
}

func splitPhaseOuterByCondition(d *Dict, conditions *ConditionMap) (*Dict, error) {
	levels := append([]string{LevelCondition}, d.levels...)
	out := &Dict{root: NewBranch(), levels: levels}
	groups := map[string]*Node{}
	for _, phase := range d.Keys() {
		phaseNode, _ := d.root.Child(phase)
		if phaseNode.IsLeaf() {
			return nil, validation.NewConfigurationError(
				"phase-outer condition split expected subject children under phase %q", phase)
		}
		for _, subject := range phaseNode.Keys() {
			condition, ok := conditions.Condition(subject)
			if !ok {
				return nil, validation.NewValidationError("subject %q has no condition entry", subject)
			}
			group, ok := groups[condition]
			if !ok {
				group = NewBranch()
				groups[condition] = group
			}
			phaseGroup, ok := group.Child(phase)
			if !ok {
				phaseGroup = NewBranch()
				group.Put(phase, phaseGroup)
			}
			subjectNode, _ := phaseNode.Child(subject)
			phaseGroup.Put(subject, subjectNode.copyTree())
		}
	}
	// As in the subject-outer path, conditions with no subject in the
	// data get no node in the output.
	for _, condition := range conditions.Conditions() {
		if group, ok := groups[condition]; ok {
			out.root.Put(condition, group)
		}
	}
	return out, nil
}

func splitMergedByCondition(d *Dict, conditions *ConditionMap) (*Dict, error) {
	levels := append([]string{LevelCondition}, d.levels...)
	out := &Dict{root: NewBranch(), levels: levels, merged: true}

	for _, condition := range conditions.Conditions() {
		group := NewBranch()
		for _, phase := range d.Keys() {
			phaseNode, _ := d.root.Child(phase)
			if !phaseNode.IsLeaf() {
				return nil, validation.NewConfigurationError(
					"merged dictionary expected a frame under phase %q", phase)
			}
			frame := phaseNode.Frame()
			selected := series.Empty(frame.Time())
			for _, subject := range frame.Columns() {
				subjectCondition, ok := conditions.Condition(subject)
				if !ok {
					return nil, validation.NewValidationError("subject %q has no condition entry", subject)
				}
				if subjectCondition != condition {
					continue
				}
				values, err := frame.Column(subject)
				if err != nil {
					return nil, err
				}
				if err := selected.AddColumn(subject, values); err != nil {
					return nil, err
				}
			}
			group.Put(phase, NewLeaf(selected))
		}
		out.root.Put(condition, group)
	}
	return out, nil
}

// requireLevels verifies the dictionary declares exactly the given level
// names in order.
func requireLevels(d *Dict, levels ...string) error {
	if len(d.levels) != len(levels) {
		return validation.NewConfigurationError(
			"dictionary levels %v do not match required shape %v", d.levels, levels)
	}
	for i, level := range levels {
		if d.levels[i] != level {
			return validation.NewConfigurationError(
				"dictionary levels %v do not match required shape %v", d.levels, levels)
		}
	}
	if _, err := d.Depth(); err != nil {
		return err
	}
	return nil
}
