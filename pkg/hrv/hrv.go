// Package hrv computes heart rate variability metrics over nested
// dictionaries of R-peak detection results.
//
// The metric computation itself is a black box behind the Processor
// contract: it receives one leaf table of R-peak locations and returns one
// small result table whose innermost index level is an artifact of the
// engine's own indexing. The recursive computer walks an arbitrarily nested
// dictionary down to its leaves, invokes the engine per leaf, reassembles
// siblings under the caller's level names and finally drops the artifact
// level.
package hrv

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/actigraph/BioPsyKit/pkg/series"
	"github.com/actigraph/BioPsyKit/pkg/studydata"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// Params configures HRV metric computation.
type Params struct {
	// PNNThresholdMS is the successive-difference threshold for the pNN
	// metric, in milliseconds. Defaults to 50 when zero.
	PNNThresholdMS float64
}

// Processor computes HRV metrics from one table of R-peak locations. The
// returned table carries exactly one index level internal to the engine.
type Processor func(rpeaks *series.Frame, params Params) (*studydata.Table, error)

// Metric column names produced by the default time-domain engine.
const (
	MetricMeanNN = "HRV_MeanNN"
	MetricSDNN   = "HRV_SDNN"
	MetricRMSSD  = "HRV_RMSSD"
	MetricPNN    = "HRV_pNN50"
)

// TimeDomain is the default Processor. It expects a single-column frame of
// R-peak times in seconds and produces standard time-domain metrics in
// milliseconds (MeanNN, SDNN, RMSSD) and percent (pNN50).
func TimeDomain(rpeaks *series.Frame, params Params) (*studydata.Table, error) {
	_, peaks, err := rpeaks.SingleColumn()
	if err != nil {
		return nil, err
	}
	if len(peaks) < 3 {
		return nil, validation.NewValidationError(
			"insufficient R peaks for HRV computation: %d, need at least 3", len(peaks))
	}

	intervals := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		interval := (peaks[i] - peaks[i-1]) * 1000
		if interval <= 0 {
			return nil, validation.NewValidationError(
				"non-increasing R peak times at peak %d", i)
		}
		intervals[i-1] = interval
	}

	meanNN, err := stats.Mean(intervals)
	if err != nil {
		return nil, errors.Wrap(err, "MeanNN computation failed")
	}
	sdnn, err := stats.StandardDeviationSample(intervals)
	if err != nil {
		return nil, errors.Wrap(err, "SDNN computation failed")
	}

	threshold := params.PNNThresholdMS
	if threshold == 0 {
		threshold = 50
	}
	sumSq := 0.0
	above := 0
	for i := 1; i < len(intervals); i++ {
		diff := intervals[i] - intervals[i-1]
		sumSq += diff * diff
		if math.Abs(diff) > threshold {
			above++
		}
	}
	rmssd := math.Sqrt(sumSq / float64(len(intervals)-1))
	pnn := float64(above) / float64(len(intervals)-1) * 100

	result := studydata.NewTable(
		[]string{"estimate"},
		[]string{MetricMeanNN, MetricSDNN, MetricRMSSD, MetricPNN},
	)
	if err := result.AppendRow([]string{"0"}, []float64{meanNN, sdnn, rmssd, pnn}); err != nil {
		return nil, err
	}
	return result, nil
}

// Compute recursively walks a nested dictionary of R-peak tables, invokes
// the processor per leaf and reassembles the results into one table whose
// index levels match levelNames. The nesting depth of the dictionary must
// equal len(levelNames). A failing leaf fails the whole computation; no
// partial result is returned.
func Compute(data *studydata.Dict, proc Processor, params Params, levelNames []string) (*studydata.Table, error) {
	depth, err := data.Depth()
	if err != nil {
		return nil, err
	}
	if depth != len(levelNames) {
		return nil, validation.NewConfigurationError(
			"level names %v do not match nesting depth %d", levelNames, depth)
	}

	result, err := computeNode(data.Root(), proc, params, levelNames, nil)
	if err != nil {
		return nil, err
	}
	// The engine's own index level carries no meaning for the caller.
	return result.DropInnermostLevel()
}

func computeNode(node *studydata.Node, proc Processor, params Params, levelNames []string, path []string) (*studydata.Table, error) {
	if node.IsLeaf() {
		result, err := proc(node.Frame(), params)
		if err != nil {
			return nil, errors.Wrapf(err, "HRV computation failed for %v", path)
		}
		return result, nil
	}

	results := map[string]*studydata.Table{}
	for _, key := range node.Keys() {
		child, _ := node.Child(key)
		result, err := computeNode(child, proc, params, levelNames[1:], append(path, key))
		if err != nil {
			return nil, err
		}
		results[key] = result
	}
	return studydata.Concat(levelNames[0], node.Keys(), results)
}
