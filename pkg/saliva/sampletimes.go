package saliva

import (
	errcollection "github.com/actigraph/BioPsyKit/pkg/utils/err_collection"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// ResolveSampleTimes converts per-type relative sample offsets and the
// protocol's test start/end times into validated absolute sample times.
//
// When no sample times are supplied for a type they are inferred from the
// time column of the raw data, which must then be identical across
// subjects. Absolute times are the relative offsets shifted by the test
// start time. The resolved sequence length must equal the number of samples
// per subject for that type; a mismatch is rejected naming the offending
// type and subject. All types are checked; with a single failing type its
// error is returned as is, otherwise the errors are combined.
func ResolveSampleTimes(data map[string]*RawData, sampleTimes map[string][]int, testTimes [2]int) (map[string][]int, error) {
	resolved := map[string][]int{}
	failures := []error{}
	for salivaType, raw := range data {
		absolute, err := resolveType(raw, sampleTimes[salivaType], testTimes)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		resolved[salivaType] = absolute
	}
	if len(failures) == 1 {
		return nil, failures[0]
	}
	if len(failures) > 0 {
		var collected errcollection.ErrorCollection
		for _, err := range failures {
			collected.Add(err)
		}
		return nil, collected.GetErrIfAny()
	}
	return resolved, nil
}

func resolveType(raw *RawData, times []int, testTimes [2]int) ([]int, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	if times == nil {
		inferred, err := inferSampleTimes(raw)
		if err != nil {
			return nil, err
		}
		times = inferred
	}

	absolute := make([]int, len(times))
	for i, t := range times {
		absolute[i] = t + testTimes[0]
	}

	for _, subject := range raw.Subjects() {
		if len(absolute) != raw.NumSamples(subject) {
			return nil, validation.NewValidationError(
				"saliva type %q: subject %q has %d samples but %d sample times were resolved",
				raw.Type(), subject, raw.NumSamples(subject), len(absolute))
		}
	}
	return absolute, nil
}

// inferSampleTimes extracts sample times from the time column of the raw
// data. All subjects must agree on the sampling times.
func inferSampleTimes(raw *RawData) ([]int, error) {
	if !raw.HasTimes() {
		return nil, validation.NewConfigurationError(
			"saliva type %q: no sample times provided and no time column present", raw.Type())
	}
	reference := raw.Times(raw.Subjects()[0])
	for _, subject := range raw.Subjects() {
		times := raw.Times(subject)
		for i := range times {
			if times[i] != reference[i] {
				return nil, validation.NewValidationError(
					"saliva type %q: subject %q reports sample time %d at sample %d, expected %d",
					raw.Type(), subject, times[i], i, reference[i])
			}
		}
	}
	return append([]int(nil), reference...), nil
}
