package protocol

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/actigraph/BioPsyKit/pkg/hrv"
	"github.com/actigraph/BioPsyKit/pkg/studydata"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// stepKind enumerates the processing steps of the compute pipelines. The
// step order within each pipeline is fixed; callers only choose which steps
// to include.
type stepKind int

const (
	stepResample stepKind = iota
	stepNormalize
	stepSelectPhases
	stepSplitSubphases
	stepRearrange
	stepCutToShortest
	stepMergeSubjects
	stepSplitConditions
)

func (k stepKind) String() string {
	switch k {
	case stepResample:
		return "resample"
	case stepNormalize:
		return "normalize"
	case stepSelectPhases:
		return "select_phases"
	case stepSplitSubphases:
		return "split_into_subphases"
	case stepRearrange:
		return "rearrange"
	case stepCutToShortest:
		return "cut_to_shortest"
	case stepMergeSubjects:
		return "merge_subjects"
	case stepSplitConditions:
		return "split_conditions"
	}
	return "unknown"
}

// step is one validated pipeline step: an enum tag plus the transformation
// it applies.
type step struct {
	kind  stepKind
	apply func(*studydata.Dict) (*studydata.Dict, error)
}

// runSteps executes the steps strictly in order.
func runSteps(data *studydata.Dict, steps []step) (*studydata.Dict, error) {
	for _, s := range steps {
		logrus.Debugf("running pipeline step %s", s.kind)
		out, err := s.apply(data)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %s failed", s.kind)
		}
		data = out
	}
	return data, nil
}

// HRResultOptions selects the processing steps of the heart rate result
// pipeline. The fixed step order is: resample, normalize, select phases,
// split into subphases, mean per subject, add conditions.
type HRResultOptions struct {
	// StudyPart names the study part to process; empty means
	// DefaultStudyPart.
	StudyPart string
	// Resample resamples all series to 1 Hz.
	Resample bool
	// NormalizeTo, when non-nil, normalizes each subject's data to the
	// reference phase or frame (percentage increase).
	NormalizeTo *studydata.Reference
	// SelectPhases, when non-empty, retains only the named phases.
	SelectPhases []string
	// SplitIntoSubphases, when non-empty, slices each phase into the given
	// consecutive subphases.
	SplitIntoSubphases []studydata.Subphase
	// MeanPerSubject collapses every series to its per-subject mean,
	// producing a flat result table.
	MeanPerSubject bool
	// IndexLevels overrides the index level names of the mean reduction.
	// Default: ["subject", "phase"], plus "subphase" when splitting.
	IndexLevels []string
	// ValueColumn names the value column to reduce; empty selects the
	// single column of the data.
	ValueColumn string
	// Conditions, when non-nil, joins subject conditions onto the result.
	Conditions *studydata.ConditionMap
}

// DefaultHRResultOptions mirrors the standard heart rate analysis:
// resampling and the per-subject mean reduction enabled.
func DefaultHRResultOptions() HRResultOptions {
	return HRResultOptions{Resample: true, MeanPerSubject: true}
}

// buildHRSteps assembles the dictionary-stage steps of the heart rate
// result pipeline in their fixed order.
func buildHRSteps(opts HRResultOptions) []step {
	steps := []step{}
	if opts.Resample {
		steps = append(steps, step{stepResample, studydata.ResampleSec})
	}
	if opts.NormalizeTo != nil {
		reference := *opts.NormalizeTo
		steps = append(steps, step{stepNormalize, func(d *studydata.Dict) (*studydata.Dict, error) {
			return studydata.NormalizeToPhase(d, reference)
		}})
	}
	if len(opts.SelectPhases) > 0 {
		names := opts.SelectPhases
		steps = append(steps, step{stepSelectPhases, func(d *studydata.Dict) (*studydata.Dict, error) {
			return studydata.SelectPhases(d, names)
		}})
	}
	if len(opts.SplitIntoSubphases) > 0 {
		subphases := opts.SplitIntoSubphases
		steps = append(steps, step{stepSplitSubphases, func(d *studydata.Dict) (*studydata.Dict, error) {
			return studydata.SplitIntoSubphases(d, subphases)
		}})
	}
	return steps
}

// defaultIndexLevels derives the index level names of the mean reduction.
func defaultIndexLevels(split bool) []string {
	levels := []string{studydata.LevelSubject, studydata.LevelPhase}
	if split {
		levels = append(levels, studydata.LevelSubphase)
	}
	return levels
}

// ComputeHRResults runs the heart rate result pipeline over one study part
// and caches the output under resultID. The call either fully populates the
// cache entry or leaves the cache untouched and returns an error.
func (p *Protocol) ComputeHRResults(resultID string, opts HRResultOptions) error {
	if resultID == "" {
		return errors.New("result identifier must not be empty")
	}
	part := resolvePart(opts.StudyPart)
	data, ok := p.hrData[part]
	if !ok {
		return validation.NewValidationError("no heart rate data for study part %q", part)
	}

	working, err := runSteps(data.Copy(), buildHRSteps(opts))
	if err != nil {
		return err
	}

	if !opts.MeanPerSubject {
		if opts.Conditions != nil {
			working, err = studydata.SplitByCondition(working, opts.Conditions)
			if err != nil {
				return err
			}
		}
		p.hrResults[resultID] = &Result{Dict: working}
		return nil
	}

	indexLevels := opts.IndexLevels
	if indexLevels == nil {
		indexLevels = defaultIndexLevels(len(opts.SplitIntoSubphases) > 0)
	}
	table, err := studydata.MeanPerSubject(working, indexLevels, opts.ValueColumn)
	if err != nil {
		return err
	}
	if opts.Conditions != nil {
		table, err = studydata.AddConditions(table, opts.Conditions)
		if err != nil {
			return err
		}
	}
	p.hrResults[resultID] = &Result{Table: table}
	return nil
}

// HRVResultOptions selects the processing steps of the heart rate
// variability pipeline. The fixed step order is: select phases, split into
// subphases, HRV computation, add conditions.
type HRVResultOptions struct {
	StudyPart          string
	SelectPhases       []string
	SplitIntoSubphases []studydata.Subphase
	// DictLevels names the dictionary levels of the R-peak data; the
	// nesting depth of the data must match. Default: ["subject", "phase"],
	// plus "subphase" when splitting.
	DictLevels []string
	// Processor is the HRV engine; nil selects hrv.TimeDomain.
	Processor hrv.Processor
	// Params configures the HRV engine.
	Params     hrv.Params
	Conditions *studydata.ConditionMap
}

// ComputeHRVResults runs the heart rate variability pipeline over the
// R-peak data of one study part and caches the resulting metric table under
// resultID. A failing leaf fails the whole call atomically; no partial
// results are cached.
func (p *Protocol) ComputeHRVResults(resultID string, opts HRVResultOptions) error {
	if resultID == "" {
		return errors.New("result identifier must not be empty")
	}
	part := resolvePart(opts.StudyPart)
	data, ok := p.rpeakData[part]
	if !ok {
		return validation.NewValidationError("no R peak data for study part %q", part)
	}

	steps := []step{}
	if len(opts.SelectPhases) > 0 {
		names := opts.SelectPhases
		steps = append(steps, step{stepSelectPhases, func(d *studydata.Dict) (*studydata.Dict, error) {
			return studydata.SelectPhases(d, names)
		}})
	}
	if len(opts.SplitIntoSubphases) > 0 {
		subphases := opts.SplitIntoSubphases
		steps = append(steps, step{stepSplitSubphases, func(d *studydata.Dict) (*studydata.Dict, error) {
			return studydata.SplitIntoSubphases(d, subphases)
		}})
	}
	working, err := runSteps(data.Copy(), steps)
	if err != nil {
		return err
	}

	levels := opts.DictLevels
	if levels == nil {
		levels = defaultIndexLevels(len(opts.SplitIntoSubphases) > 0)
	}
	processor := opts.Processor
	if processor == nil {
		processor = hrv.TimeDomain
	}
	table, err := hrv.Compute(working, processor, opts.Params, levels)
	if err != nil {
		return err
	}
	if opts.Conditions != nil {
		table, err = studydata.AddConditions(table, opts.Conditions)
		if err != nil {
			return err
		}
	}
	p.hrvResults[resultID] = table
	return nil
}

// HREnsembleOptions selects the processing steps of the ensemble pipeline.
// The fixed step order is: resample, normalize, rearrange to phase-outer,
// select phases, cut to shortest, merge subjects, add conditions. The
// rearrange step always runs: cutting and merging require phase-outer
// nesting.
type HREnsembleOptions struct {
	StudyPart    string
	Resample     bool
	NormalizeTo  *studydata.Reference
	SelectPhases []string
	// CutPhases truncates every subject's series to the shortest subject
	// series within each phase.
	CutPhases bool
	// MergeDict merges each phase's subject series into one frame with one
	// column per subject.
	MergeDict  bool
	Conditions *studydata.ConditionMap
}

// DefaultHREnsembleOptions mirrors the standard ensemble preparation:
// resampling, cutting and merging enabled.
func DefaultHREnsembleOptions() HREnsembleOptions {
	return HREnsembleOptions{Resample: true, CutPhases: true, MergeDict: true}
}

// ComputeHREnsemble runs the ensemble pipeline over one study part and
// caches the resulting dictionary under ensembleID. Ensemble data are
// time-series data where all subjects within one phase have the same length
// and can be overlaid as mean with standard error.
func (p *Protocol) ComputeHREnsemble(ensembleID string, opts HREnsembleOptions) error {
	if ensembleID == "" {
		return errors.New("ensemble identifier must not be empty")
	}
	part := resolvePart(opts.StudyPart)
	data, ok := p.hrData[part]
	if !ok {
		return validation.NewValidationError("no heart rate data for study part %q", part)
	}

	steps := []step{}
	if opts.Resample {
		steps = append(steps, step{stepResample, studydata.ResampleSec})
	}
	if opts.NormalizeTo != nil {
		reference := *opts.NormalizeTo
		steps = append(steps, step{stepNormalize, func(d *studydata.Dict) (*studydata.Dict, error) {
			return studydata.NormalizeToPhase(d, reference)
		}})
	}
	steps = append(steps, step{stepRearrange, studydata.Rearrange})
	if len(opts.SelectPhases) > 0 {
		names := opts.SelectPhases
		steps = append(steps, step{stepSelectPhases, func(d *studydata.Dict) (*studydata.Dict, error) {
			return studydata.SelectPhases(d, names)
		}})
	}
	if opts.CutPhases {
		steps = append(steps, step{stepCutToShortest, studydata.CutToShortest})
	}
	if opts.MergeDict {
		steps = append(steps, step{stepMergeSubjects, studydata.MergeSubjects})
	}
	if opts.Conditions != nil {
		conditions := opts.Conditions
		steps = append(steps, step{stepSplitConditions, func(d *studydata.Dict) (*studydata.Dict, error) {
			return studydata.SplitByCondition(d, conditions)
		}})
	}

	working, err := runSteps(data.Copy(), steps)
	if err != nil {
		return err
	}
	p.hrEnsemble[ensembleID] = working
	return nil
}
