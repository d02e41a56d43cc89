package protocol

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/actigraph/BioPsyKit/pkg/saliva"
	"github.com/actigraph/BioPsyKit/pkg/studydata"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// DefaultStudyPart is the study part name used when a study has no division
// into individual parts.
const DefaultStudyPart = "Study"

// Result is one cached pipeline output: a flat table when the
// mean-per-subject reduction ran, otherwise the transformed dictionary.
type Result struct {
	Table *studydata.Table
	Dict  *studydata.Dict
}

// Protocol represents a psychological study protocol and the data collected
// within the study. It owns all raw data dictionaries and result caches;
// compute pipelines write a cache entry atomically or not at all.
type Protocol struct {
	name      string
	structure *Structure
	testTimes [2]int

	salivaTypes  []string
	sampleTimes  map[string][]int
	salivaData   map[string]*saliva.RawData
	salivaMeanSE map[string]*saliva.MeanSEData

	hrData    map[string]*studydata.Dict
	rpeakData map[string]*studydata.Dict

	hrResults  map[string]*Result
	hrvResults map[string]*studydata.Table
	hrEnsemble map[string]*studydata.Dict
}

// New creates a protocol with the given name, declared structure (may be
// nil) and test start/end times in minutes. A protocol without a
// psychological test uses test times [0, 0].
func New(name string, structure *Structure, testTimes [2]int) (*Protocol, error) {
	if name == "" {
		return nil, validation.NewConfigurationError("protocol name must not be empty")
	}
	if structure != nil {
		if err := structure.validate(0); err != nil {
			return nil, err
		}
	}
	return &Protocol{
		name:         name,
		structure:    structure,
		testTimes:    testTimes,
		sampleTimes:  map[string][]int{},
		salivaData:   map[string]*saliva.RawData{},
		salivaMeanSE: map[string]*saliva.MeanSEData{},
		hrData:       map[string]*studydata.Dict{},
		rpeakData:    map[string]*studydata.Dict{},
		hrResults:    map[string]*Result{},
		hrvResults:   map[string]*studydata.Table{},
		hrEnsemble:   map[string]*studydata.Dict{},
	}, nil
}

// Name returns the protocol name.
func (p *Protocol) Name() string {
	return p.name
}

// Structure returns the declared protocol structure, nil when the study has
// no declared structure.
func (p *Protocol) Structure() *Structure {
	return p.structure
}

// TestTimes returns the start and end time of the psychological test in
// minutes.
func (p *Protocol) TestTimes() [2]int {
	return p.testTimes
}

// SetTestTimes updates the test start and end times.
func (p *Protocol) SetTestTimes(start, end int) {
	p.testTimes = [2]int{start, end}
}

func (p *Protocol) String() string {
	if len(p.salivaTypes) > 0 {
		return fmt.Sprintf("%s\nSaliva Type(s): %v\nSaliva Sample Times: %v\nStructure: %s",
			p.name, p.salivaTypes, p.sampleTimes, structureString(p.structure))
	}
	return fmt.Sprintf("%s\nStructure: %s", p.name, structureString(p.structure))
}

func structureString(s *Structure) string {
	if s == nil {
		return "null"
	}
	encoded, err := s.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(encoded)
}

// resolvePart maps the empty study part name to DefaultStudyPart.
func resolvePart(studyPart string) string {
	if studyPart == "" {
		return DefaultStudyPart
	}
	return studyPart
}

// AddHRData adds per-subject heart rate time series (and optionally R-peak
// data) collected during one study part. The dictionaries must be un-merged
// and subject-outer (subject -> phase -> series).
func (p *Protocol) AddHRData(studyPart string, hrData, rpeakData *studydata.Dict) error {
	if hrData == nil {
		return validation.NewValidationError("heart rate data must not be nil")
	}
	if err := requireSubjectOuter(hrData, "heart rate data"); err != nil {
		return err
	}
	if rpeakData != nil {
		if err := requireSubjectOuter(rpeakData, "R peak data"); err != nil {
			return err
		}
	}
	part := resolvePart(studyPart)
	p.hrData[part] = hrData
	if rpeakData != nil {
		p.rpeakData[part] = rpeakData
	}
	logrus.Debugf("added heart rate data for study part %q (%d subjects)", part, len(hrData.Keys()))
	return nil
}

func requireSubjectOuter(d *studydata.Dict, what string) error {
	if d.Merged() {
		return validation.NewValidationError("%s must be un-merged", what)
	}
	levels := d.Levels()
	if len(levels) < 2 || levels[0] != studydata.LevelSubject || levels[1] != studydata.LevelPhase {
		return validation.NewValidationError(
			"%s must be subject-outer (subject -> phase), levels are %v", what, levels)
	}
	if _, err := d.Depth(); err != nil {
		return err
	}
	return nil
}

// AddSalivaData adds raw saliva measurements of one saliva type. Sample
// times are minutes relative to the test; pass nil to infer them from the
// data's time column. Resolved sample times are validated against the
// number of samples of every subject.
func (p *Protocol) AddSalivaData(data *saliva.RawData, sampleTimes []int) error {
	if data == nil {
		return validation.NewValidationError("saliva data must not be nil")
	}
	resolved, err := saliva.ResolveSampleTimes(
		map[string]*saliva.RawData{data.Type(): data},
		map[string][]int{data.Type(): sampleTimes},
		p.testTimes,
	)
	if err != nil {
		return err
	}
	if _, ok := p.salivaData[data.Type()]; !ok {
		p.salivaTypes = append(p.salivaTypes, data.Type())
	}
	p.salivaData[data.Type()] = data
	p.sampleTimes[data.Type()] = resolved[data.Type()]
	return nil
}

// SalivaTypes returns the saliva types present in the study, in insertion
// order.
func (p *Protocol) SalivaTypes() []string {
	return p.salivaTypes
}

// SalivaData returns the raw saliva data of the given type.
func (p *Protocol) SalivaData(salivaType string) (*saliva.RawData, bool) {
	data, ok := p.salivaData[salivaType]
	return data, ok
}

// SampleTimes returns the resolved absolute sample times of the given
// saliva type, in minutes.
func (p *Protocol) SampleTimes(salivaType string) ([]int, bool) {
	times, ok := p.sampleTimes[salivaType]
	return times, ok
}

// AddSalivaMeanSE adds pre-aggregated saliva data of one type: mean and
// standard error over subjects per sample, computed outside the protocol.
func (p *Protocol) AddSalivaMeanSE(data *saliva.MeanSEData) error {
	if data == nil {
		return validation.NewValidationError("aggregated saliva data must not be nil")
	}
	_, aggregated := p.salivaMeanSE[data.Type()]
	_, raw := p.salivaData[data.Type()]
	if !aggregated && !raw {
		p.salivaTypes = append(p.salivaTypes, data.Type())
	}
	p.salivaMeanSE[data.Type()] = data
	p.sampleTimes[data.Type()] = data.SampleTimes()
	return nil
}

// SalivaMeanSE returns the mean and standard error over subjects per sample
// for one saliva type: the pre-aggregated table when one was added, else
// the reduction of the stored raw data.
func (p *Protocol) SalivaMeanSE(salivaType string) (times []int, means, ses []float64, err error) {
	if aggregated, ok := p.salivaMeanSE[salivaType]; ok {
		return aggregated.SampleTimes(), aggregated.Means(), aggregated.SEs(), nil
	}
	data, ok := p.salivaData[salivaType]
	if !ok {
		return nil, nil, nil, validation.NewValidationError("no saliva data for type %q", salivaType)
	}
	times = p.sampleTimes[salivaType]
	means, ses, err = data.MeanSE(times)
	return times, means, ses, err
}

// SubphaseDurations derives the ordered subphase split parameters from the
// declared protocol structure. The path addresses the structure node whose
// children are subphase duration leaves; an empty path addresses the root.
func (p *Protocol) SubphaseDurations(path ...string) ([]studydata.Subphase, error) {
	if p.structure == nil {
		return nil, validation.NewConfigurationError("protocol %q declares no structure", p.name)
	}
	node := p.structure
	for _, key := range path {
		child, ok := node.Child(key)
		if !ok {
			return nil, validation.NewValidationError("structure has no entry %q at %v", key, path)
		}
		node = child
	}
	return node.Subphases()
}

// AddHRResults inserts externally computed heart rate results under the
// given identifier.
func (p *Protocol) AddHRResults(resultID string, results *studydata.Table) {
	p.hrResults[resultID] = &Result{Table: results}
}

// HRResults returns the cached heart rate result for the identifier.
func (p *Protocol) HRResults(resultID string) (*Result, bool) {
	result, ok := p.hrResults[resultID]
	return result, ok
}

// AddHRVResults inserts externally computed heart rate variability results
// under the given identifier.
func (p *Protocol) AddHRVResults(resultID string, results *studydata.Table) {
	p.hrvResults[resultID] = results
}

// HRVResults returns the cached heart rate variability result for the
// identifier.
func (p *Protocol) HRVResults(resultID string) (*studydata.Table, bool) {
	result, ok := p.hrvResults[resultID]
	return result, ok
}

// AddHREnsemble inserts externally computed ensemble data under the given
// identifier.
func (p *Protocol) AddHREnsemble(ensembleID string, ensemble *studydata.Dict) {
	p.hrEnsemble[ensembleID] = ensemble
}

// HREnsemble returns the cached ensemble data for the identifier.
func (p *Protocol) HREnsemble(ensembleID string) (*studydata.Dict, bool) {
	ensemble, ok := p.hrEnsemble[ensembleID]
	return ensemble, ok
}

// HRResultIDs returns the identifiers of all cached heart rate results in
// insertion-independent sorted order.
func (p *Protocol) HRResultIDs() []string {
	return sortedKeysResult(p.hrResults)
}

// HRVResultIDs returns the identifiers of all cached HRV results.
func (p *Protocol) HRVResultIDs() []string {
	return sortedKeysTable(p.hrvResults)
}

func sortedKeysResult(m map[string]*Result) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysTable(m map[string]*studydata.Table) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
