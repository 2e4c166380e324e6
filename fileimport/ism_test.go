package fileimport

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spectrum measured from 1 kHz up to 100 kHz, then from 100 kHz down to 10 Hz
func downSweep() ismFixture {
	return ismFixture{
		frequency:    []float64{1e3, 1e4, 1e5, 1e4, 1e3, 1e2, 1e1},
		impedance:    []float64{10, 11, 12, 13, 14, 15, 16},
		phase:        []float64{0, -0.1, -0.2, -0.3, -0.4, -0.5, -0.6},
		time:         []float64{100, 101, 102, 103, 104, 105, -106},
		significance: []int16{1, 2, 3, 4, 5, 6, 7},
		date:         "150324",
	}
}

func TestParseIsm_ReversedRange(t *testing.T) {
	ism, err := ParseIsm(downSweep().bytes())
	require.NoError(t, err)

	// min at index 6, max at index 2: points 2..6 reversed
	assert.Equal(t, []float64{1e1, 1e2, 1e3, 1e4, 1e5}, ism.FrequencyArray())
	assert.Equal(t, []float64{16, 15, 14, 13, 12}, ism.ImpedanceArray())
	assert.Equal(t, []float64{-0.6, -0.5, -0.4, -0.3, -0.2}, ism.PhaseArray())
	assert.Equal(t, []int16{7, 6, 5, 4, 3}, ism.SignificanceArray())

	times := ism.MeasurementDateTimeArray()
	require.Len(t, times, 5)
	assert.Equal(t, time.Date(1980, 1, 1, 0, 1, 46, 0, time.UTC), times[0])
	assert.Equal(t, time.Date(1980, 1, 1, 0, 1, 42, 0, time.UTC), times[4])

	assert.Equal(t, time.Date(1980, 1, 1, 0, 1, 46, 0, time.UTC), ism.MeasurementEndDateTime())
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), ism.MeasurementDate())

	z := ism.ComplexImpedanceArray()
	require.Len(t, z, 5)
	assert.InDelta(t, 16*math.Cos(-0.6), real(z[0]), 1e-12)
	assert.InDelta(t, 16*math.Sin(-0.6), imag(z[0]), 1e-12)
}

func TestParseIsm_ForwardRange(t *testing.T) {
	f := ismFixture{
		frequency:    []float64{100, 10, 1, 10, 100, 1000},
		impedance:    []float64{1, 2, 3, 4, 5, 6},
		phase:        []float64{0, 0, 0, 0, 0, 0},
		time:         []float64{0, 1, 2, 3, 4, 5},
		significance: []int16{0, 0, 0, 0, 0, 0},
		date:         "010170",
	}

	ism, err := ParseIsm(f.bytes())
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 10, 100, 1000}, ism.FrequencyArray())
	assert.Equal(t, []float64{3, 4, 5, 6}, ism.ImpedanceArray())
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), ism.MeasurementDate())
}

func TestParseIsmDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"311269", time.Date(2069, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"010170", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"290200", time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"150399xx", time.Date(1999, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseIsmDate(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "0101", "aa0170", "320170", "300201"} {
		_, err := parseIsmDate(bad)
		assert.ErrorIs(t, err, ErrMalformedFile, bad)
	}
}

func TestParseIsm_Truncated(t *testing.T) {
	data := downSweep().bytes()

	for _, n := range []int{0, 5, 12, 40, len(data) - 3} {
		_, err := ParseIsm(data[:n])
		assert.ErrorIs(t, err, ErrMalformedFile, "length %d", n)
	}

	_, err := ParseIsm(append([]byte{0, 0, 0, 0, 0, 0}, 0x7f, 0xff, 0xff, 0xff, 0xff, 0xff))
	assert.ErrorIs(t, err, ErrMalformedFile)
}

func TestReadAndLoadIsm(t *testing.T) {
	data := downSweep().bytes()

	ism, err := ReadIsm(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, ism.FrequencyArray(), 5)

	path := filepath.Join(t.TempDir(), "spectrum.ism")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	ism, err = LoadIsm(path)
	require.NoError(t, err)
	assert.Len(t, ism.FrequencyArray(), 5)

	_, err = LoadIsm(filepath.Join(t.TempDir(), "missing.ism"))
	assert.Error(t, err)
}
