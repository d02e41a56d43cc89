package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrame(t *testing.T) {
	tests := []struct {
		name    string
		time    []float64
		values  []float64
		wantErr bool
	}{
		{
			name:   "regular series",
			time:   []float64{0, 1, 2, 3},
			values: []float64{70, 72, 74, 76},
		},
		{
			name:   "single sample",
			time:   []float64{0},
			values: []float64{70},
		},
		{
			name:    "length mismatch",
			time:    []float64{0, 1},
			values:  []float64{70},
			wantErr: true,
		},
		{
			name:    "non-monotonic time",
			time:    []float64{0, 2, 1},
			values:  []float64{70, 72, 74},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewFrame(tt.time, "Heart_Rate", tt.values)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.time), frame.Len())
			assert.Equal(t, []string{"Heart_Rate"}, frame.Columns())
		})
	}
}

func TestWindow(t *testing.T) {
	frame, err := NewFrame(
		[]float64{0, 1, 2, 3, 4, 5},
		"Heart_Rate",
		[]float64{70, 71, 72, 73, 74, 75},
	)
	require.NoError(t, err)

	tests := []struct {
		name       string
		start, end float64
		wantLen    int
		wantFirst  float64
	}{
		{name: "interior window", start: 1, end: 4, wantLen: 3, wantFirst: 71},
		{name: "window past series end", start: 4, end: 10, wantLen: 2, wantFirst: 74},
		{name: "empty window", start: 10, end: 20, wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window := frame.Window(tt.start, tt.end)
			assert.Equal(t, tt.wantLen, window.Len())
			if tt.wantLen == 0 {
				return
			}
			values, err := window.Column("Heart_Rate")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFirst, values[0])
			assert.Equal(t, 0.0, window.Time()[0], "window time restarts at zero")
		})
	}
}

func TestResampleSec(t *testing.T) {
	tests := []struct {
		name     string
		time     []float64
		values   []float64
		wantTime []float64
		want     []float64
	}{
		{
			name:     "already at one hertz",
			time:     []float64{0, 1, 2},
			values:   []float64{70, 72, 74},
			wantTime: []float64{0, 1, 2},
			want:     []float64{70, 72, 74},
		},
		{
			name:     "oversampled series",
			time:     []float64{0, 0.5, 1, 1.5, 2},
			values:   []float64{70, 71, 72, 73, 74},
			wantTime: []float64{0, 1, 2},
			want:     []float64{70, 72, 74},
		},
		{
			name:     "undersampled series interpolates",
			time:     []float64{0, 2},
			values:   []float64{70, 74},
			wantTime: []float64{0, 1, 2},
			want:     []float64{70, 72, 74},
		},
		{
			name:     "fractional start rounds up to whole seconds",
			time:     []float64{0.5, 1.5, 2.5},
			values:   []float64{70, 72, 74},
			wantTime: []float64{1, 2},
			want:     []float64{71, 73},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewFrame(tt.time, "Heart_Rate", tt.values)
			require.NoError(t, err)
			resampled, err := frame.ResampleSec()
			require.NoError(t, err)
			assert.Equal(t, tt.wantTime, resampled.Time())
			values, err := resampled.Column("Heart_Rate")
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, values, 1e-9)
		})
	}
}

func TestTruncate(t *testing.T) {
	frame, err := NewFrame([]float64{0, 1, 2, 3}, "Heart_Rate", []float64{70, 71, 72, 73})
	require.NoError(t, err)

	assert.Equal(t, 2, frame.Truncate(2).Len())
	assert.Equal(t, 4, frame.Truncate(10).Len(), "truncating beyond length is a no-op")
	assert.Equal(t, 4, frame.Len(), "truncation does not mutate the source")
}

func TestSingleColumn(t *testing.T) {
	frame, err := NewFrame([]float64{0, 1}, "Heart_Rate", []float64{70, 72})
	require.NoError(t, err)

	name, values, err := frame.SingleColumn()
	require.NoError(t, err)
	assert.Equal(t, "Heart_Rate", name)
	assert.Equal(t, []float64{70, 72}, values)

	require.NoError(t, frame.AddColumn("R_Peak", []float64{1, 2}))
	_, _, err = frame.SingleColumn()
	assert.Error(t, err, "two columns are ambiguous")
}

func TestMeanSE(t *testing.T) {
	mean, se, err := MeanSE([]float64{70, 74})
	require.NoError(t, err)
	assert.InDelta(t, 72, mean, 1e-9)
	assert.InDelta(t, 2, se, 1e-9)

	_, _, err = MeanSE(nil)
	assert.Error(t, err)
}
