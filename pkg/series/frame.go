// Package series provides the time-series table primitive which the study
// data dictionaries are built from. A Frame holds a monotonically increasing
// time index (seconds, relative to phase start) and one or more named
// float64 columns of equal length. Frames are treated as immutable by the
// aggregation pipeline: all operations return fresh frames and never touch
// their receiver.
package series

import (
	"math"

	"github.com/pkg/errors"

	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// Frame is a tabular time series: a shared time index plus named columns.
type Frame struct {
	time    []float64
	columns []string
	values  map[string][]float64
}

// NewFrame creates a frame from a time index and a single named column.
// The time index must be monotonically increasing; sampling may be irregular.
func NewFrame(time []float64, column string, values []float64) (*Frame, error) {
	if len(time) != len(values) {
		return nil, validation.NewValidationError(
			"column %q has %d values but time index has %d entries", column, len(values), len(time))
	}
	for i := 1; i < len(time); i++ {
		if time[i] <= time[i-1] {
			return nil, validation.NewValidationError(
				"time index is not monotonically increasing at row %d (%f after %f)", i, time[i], time[i-1])
		}
	}
	f := &Frame{time: append([]float64(nil), time...)}
	f.columns = []string{column}
	f.values = map[string][]float64{column: append([]float64(nil), values...)}
	return f, nil
}

// Empty creates a frame with the given time index and no columns yet.
func Empty(time []float64) *Frame {
	return &Frame{
		time:   append([]float64(nil), time...),
		values: map[string][]float64{},
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.time)
}

// Time returns the time index. The returned slice must not be modified.
func (f *Frame) Time() []float64 {
	return f.time
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	return f.columns
}

// NumColumns returns the number of columns.
func (f *Frame) NumColumns() int {
	return len(f.columns)
}

// Column returns the values of the named column.
func (f *Frame) Column(name string) ([]float64, error) {
	values, ok := f.values[name]
	if !ok {
		return nil, validation.NewValidationError("frame has no column %q", name)
	}
	return values, nil
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.values[name]
	return ok
}

// AddColumn appends a named column. The column length must match the frame.
func (f *Frame) AddColumn(name string, values []float64) error {
	if _, ok := f.values[name]; ok {
		return validation.NewValidationError("frame already has a column %q", name)
	}
	if len(values) != len(f.time) {
		return validation.NewValidationError(
			"column %q has %d values but frame has %d rows", name, len(values), len(f.time))
	}
	f.columns = append(f.columns, name)
	f.values[name] = append([]float64(nil), values...)
	return nil
}

// SingleColumn returns the values of the only column of the frame. It fails
// when the column selection is ambiguous.
func (f *Frame) SingleColumn() (string, []float64, error) {
	if len(f.columns) != 1 {
		return "", nil, errors.Errorf(
			"ambiguous column selection: frame has %d columns, expected exactly one", len(f.columns))
	}
	name := f.columns[0]
	return name, f.values[name], nil
}

// Copy returns a deep copy of the frame.
func (f *Frame) Copy() *Frame {
	out := Empty(f.time)
	for _, name := range f.columns {
		out.columns = append(out.columns, name)
		out.values[name] = append([]float64(nil), f.values[name]...)
	}
	return out
}

// Truncate returns a copy limited to the first n rows. When the frame is
// shorter than n the copy keeps all rows.
func (f *Frame) Truncate(n int) *Frame {
	if n > len(f.time) {
		n = len(f.time)
	}
	out := Empty(f.time[:n])
	for _, name := range f.columns {
		out.columns = append(out.columns, name)
		out.values[name] = append([]float64(nil), f.values[name][:n]...)
	}
	return out
}

// Window returns the rows with start <= t < end, with the time index shifted
// so that the window starts at zero. An exhausted window yields an empty
// frame, not an error.
func (f *Frame) Window(start, end float64) *Frame {
	lo := 0
	for lo < len(f.time) && f.time[lo] < start {
		lo++
	}
	hi := lo
	for hi < len(f.time) && f.time[hi] < end {
		hi++
	}
	time := make([]float64, 0, hi-lo)
	for _, t := range f.time[lo:hi] {
		time = append(time, t-start)
	}
	out := Empty(time)
	for _, name := range f.columns {
		out.columns = append(out.columns, name)
		out.values[name] = append([]float64(nil), f.values[name][lo:hi]...)
	}
	return out
}

// ResampleSec resamples the frame to exactly one sample per second by linear
// interpolation on the frame's own time index. The target index runs over
// the whole integer seconds covered by the original index.
func (f *Frame) ResampleSec() (*Frame, error) {
	if len(f.time) < 2 {
		return nil, validation.NewValidationError(
			"cannot resample a frame with %d rows to 1 Hz", len(f.time))
	}
	first := math.Ceil(f.time[0])
	last := math.Floor(f.time[len(f.time)-1])
	n := int(last-first) + 1
	if n < 1 {
		return nil, validation.NewValidationError(
			"frame covers no full second (index range %f..%f)", f.time[0], f.time[len(f.time)-1])
	}

	time := make([]float64, n)
	for i := range time {
		time[i] = first + float64(i)
	}
	out := Empty(time)
	for _, name := range f.columns {
		out.columns = append(out.columns, name)
		out.values[name] = interpolate(f.time, f.values[name], time)
	}
	return out, nil
}

// interpolate evaluates the piecewise-linear function through (xs, ys) at
// the target points. Targets are assumed to lie within [xs[0], xs[len-1]].
func interpolate(xs, ys, targets []float64) []float64 {
	out := make([]float64, len(targets))
	j := 0
	for i, t := range targets {
		for j < len(xs)-2 && xs[j+1] < t {
			j++
		}
		x0, x1 := xs[j], xs[j+1]
		y0, y1 := ys[j], ys[j+1]
		if x1 == x0 {
			out[i] = y0
			continue
		}
		out[i] = y0 + (y1-y0)*(t-x0)/(x1-x0)
	}
	return out
}
