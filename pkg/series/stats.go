package series

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// Mean returns the arithmetic mean of the named column.
func (f *Frame) Mean(column string) (float64, error) {
	values, err := f.Column(column)
	if err != nil {
		return 0, err
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0, errors.Wrapf(err, "mean computation failed for column %q", column)
	}
	return mean, nil
}

// MeanSE returns mean and standard error of the given sample.
func MeanSE(values []float64) (mean, se float64, err error) {
	mean, err = stats.Mean(values)
	if err != nil {
		return 0, 0, errors.Wrap(err, "mean computation failed")
	}
	if len(values) < 2 {
		return mean, 0, nil
	}
	stdev, err := stats.StandardDeviationSample(values)
	if err != nil {
		return 0, 0, errors.Wrap(err, "standard deviation computation failed")
	}
	return mean, stdev / math.Sqrt(float64(len(values))), nil
}
