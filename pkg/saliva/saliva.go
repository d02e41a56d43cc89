// Package saliva models raw saliva measurements collected during a study
// protocol and resolves per-type sample times against the protocol's test
// start and end times.
//
// Sample times are given in minutes relative to the psychological test: by
// convention a sample collected immediately before the test was collected
// at t = -1 and a sample collected immediately after the test at t = 0.
package saliva

import (
	"github.com/actigraph/BioPsyKit/pkg/series"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// RawData holds the measurements of one saliva type: one value per
// (subject, sample), in sample order per subject, optionally with the
// sampling time recorded alongside.
type RawData struct {
	salivaType string
	subjects   []string
	values     map[string][]float64
	times      map[string][]int
}

// NewRawData creates an empty raw data table for the given saliva type.
func NewRawData(salivaType string) *RawData {
	return &RawData{
		salivaType: salivaType,
		values:     map[string][]float64{},
		times:      map[string][]int{},
	}
}

// Type returns the saliva type of this table.
func (r *RawData) Type() string {
	return r.salivaType
}

// Append adds the next sample value for a subject.
func (r *RawData) Append(subject string, value float64) {
	if _, ok := r.values[subject]; !ok {
		r.subjects = append(r.subjects, subject)
	}
	r.values[subject] = append(r.values[subject], value)
}

// AppendWithTime adds the next sample value for a subject together with its
// sampling time in minutes.
func (r *RawData) AppendWithTime(subject string, value float64, time int) {
	r.Append(subject, value)
	r.times[subject] = append(r.times[subject], time)
}

// Subjects returns all subjects in insertion order.
func (r *RawData) Subjects() []string {
	return r.subjects
}

// Values returns the sample values of a subject in sample order.
func (r *RawData) Values(subject string) []float64 {
	return r.values[subject]
}

// NumSamples returns the number of samples recorded for a subject.
func (r *RawData) NumSamples(subject string) int {
	return len(r.values[subject])
}

// HasTimes reports whether every subject carries a time column.
func (r *RawData) HasTimes() bool {
	if len(r.subjects) == 0 {
		return false
	}
	for _, subject := range r.subjects {
		if len(r.times[subject]) != len(r.values[subject]) {
			return false
		}
	}
	return true
}

// Times returns the recorded sampling times of a subject, nil when absent.
func (r *RawData) Times(subject string) []int {
	return r.times[subject]
}

// Validate checks the structural contract of the table: at least one
// subject, and per subject a consistent value/time shape.
func (r *RawData) Validate() error {
	if len(r.subjects) == 0 {
		return validation.NewValidationError("saliva type %q holds no subjects", r.salivaType)
	}
	n := len(r.values[r.subjects[0]])
	for _, subject := range r.subjects {
		if len(r.values[subject]) != n {
			return validation.NewValidationError(
				"saliva type %q: subject %q has %d samples, subject %q has %d",
				r.salivaType, subject, len(r.values[subject]), r.subjects[0], n)
		}
	}
	return nil
}

// MeanSE reduces the raw data to mean and standard error over subjects per
// sample. The resulting table is indexed by the sample time in minutes.
func (r *RawData) MeanSE(sampleTimes []int) (means, ses []float64, err error) {
	if err := r.Validate(); err != nil {
		return nil, nil, err
	}
	n := r.NumSamples(r.subjects[0])
	if len(sampleTimes) != n {
		return nil, nil, validation.NewValidationError(
			"saliva type %q: %d sample times provided but data holds %d samples per subject",
			r.salivaType, len(sampleTimes), n)
	}
	means = make([]float64, n)
	ses = make([]float64, n)
	for i := 0; i < n; i++ {
		sample := make([]float64, 0, len(r.subjects))
		for _, subject := range r.subjects {
			sample = append(sample, r.values[subject][i])
		}
		means[i], ses[i], err = series.MeanSE(sample)
		if err != nil {
			return nil, nil, err
		}
	}
	return means, ses, nil
}

// MeanSEData is a pre-aggregated saliva table: mean and standard error over
// subjects per sample, as produced by MeanSE or computed externally.
type MeanSEData struct {
	salivaType  string
	sampleTimes []int
	means       []float64
	ses         []float64
}

// NewMeanSEData creates a pre-aggregated saliva table. Sample times, means
// and standard errors must have equal length.
func NewMeanSEData(salivaType string, sampleTimes []int, means, ses []float64) (*MeanSEData, error) {
	if len(sampleTimes) == 0 {
		return nil, validation.NewValidationError("saliva type %q: aggregated data holds no samples", salivaType)
	}
	if len(means) != len(sampleTimes) || len(ses) != len(sampleTimes) {
		return nil, validation.NewValidationError(
			"saliva type %q: %d sample times, %d means, %d standard errors, expected equal lengths",
			salivaType, len(sampleTimes), len(means), len(ses))
	}
	return &MeanSEData{
		salivaType:  salivaType,
		sampleTimes: append([]int(nil), sampleTimes...),
		means:       append([]float64(nil), means...),
		ses:         append([]float64(nil), ses...),
	}, nil
}

// Type returns the saliva type of this table.
func (m *MeanSEData) Type() string {
	return m.salivaType
}

// SampleTimes returns the absolute sample times in minutes.
func (m *MeanSEData) SampleTimes() []int {
	return m.sampleTimes
}

// Means returns the per-sample means over subjects.
func (m *MeanSEData) Means() []float64 {
	return m.means
}

// SEs returns the per-sample standard errors over subjects.
func (m *MeanSEData) SEs() []float64 {
	return m.ses
}
