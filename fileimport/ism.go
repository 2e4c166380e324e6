package fileimport

import (
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"slices"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
)

// ismEpoch is the reference of the timestamps stored in ISM files.
var ismEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Ism is an impedance spectrum read from an ISM file.
//
// A spectrum is measured from a start frequency to one limit and then from the other limit
// back. Only the points between the reversal frequency and the end frequency are returned
// by the getters, ordered from the lowest to the highest frequency.
type Ism struct {
	frequency    []float64
	impedance    []float64
	phase        []float64
	significance []int16
	timestamps   []time.Time

	measurementDate time.Time

	from, to int // usable range [from, to)
	reversed bool
}

// LoadIsm reads the ISM file at path.
func LoadIsm(path string) (*Ism, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseIsm(data)
}

// ReadIsm reads an ISM file from r.
func ReadIsm(r io.Reader) (*Ism, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return ParseIsm(data)
}

// ParseIsm decodes the content of an ISM file.
func ParseIsm(data []byte) (*Ism, error) {
	r := newFileReader(data)

	r.skip(6)
	n := r.count()
	frequency := r.float64s(n, "frequency")
	impedance := r.float64s(n, "impedance")
	phase := r.float64s(n, "phase")
	rawTime := r.float64s(n, "time")
	significance := r.int16s(n, "significance")
	date := r.text("date")
	if r.err != nil {
		return nil, r.err
	}

	measurementDate, err := parseIsmDate(date)
	if err != nil {
		return nil, err
	}

	ism := &Ism{
		frequency:       frequency,
		impedance:       impedance,
		phase:           phase,
		significance:    significance,
		timestamps:      make([]time.Time, n),
		measurementDate: measurementDate,
	}
	for i, t := range rawTime {
		ism.timestamps[i] = ismTimestamp(t)
	}

	minIdx, maxIdx := floats.MinIdx(frequency), floats.MaxIdx(frequency)
	ism.from, ism.to = minIdx, maxIdx
	if minIdx > maxIdx {
		ism.reversed = true
		ism.from, ism.to = maxIdx, minIdx
	}
	ism.to++

	return ism, nil
}

// parseIsmDate parses the DDMMYY date. Years below 70 are in the 21st century.
func parseIsmDate(s string) (time.Time, error) {
	if len(s) < 6 {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrMalformedFile, s)
	}

	var parts [3]int
	for i := range parts {
		v, err := strconv.Atoi(s[2*i : 2*i+2])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: date %q", ErrMalformedFile, s)
		}
		parts[i] = v
	}

	day, month, year := parts[0], parts[1], parts[2]
	if year < 70 {
		year += 2000
	} else {
		year += 1900
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrMalformedFile, s)
	}

	return d, nil
}

func ismTimestamp(seconds float64) time.Time {
	us := math.Round(math.Abs(seconds) * 1e6)
	return ismEpoch.Add(time.Duration(us) * time.Microsecond)
}

func usableFloats(ism *Ism, s []float64) []float64 {
	out := slices.Clone(s[ism.from:ism.to])
	if ism.reversed {
		floats.Reverse(out)
	}

	return out
}

// FrequencyArray returns the frequencies in hertz.
func (ism *Ism) FrequencyArray() []float64 {
	return usableFloats(ism, ism.frequency)
}

// ImpedanceArray returns the impedance magnitudes in ohm.
func (ism *Ism) ImpedanceArray() []float64 {
	return usableFloats(ism, ism.impedance)
}

// PhaseArray returns the phases in radian.
func (ism *Ism) PhaseArray() []float64 {
	return usableFloats(ism, ism.phase)
}

// ComplexImpedanceArray returns the impedances as complex numbers.
func (ism *Ism) ComplexImpedanceArray() []complex128 {
	impedance := ism.ImpedanceArray()
	phase := ism.PhaseArray()

	out := make([]complex128, len(impedance))
	for i := range out {
		out[i] = cmplx.Rect(impedance[i], phase[i])
	}

	return out
}

func (ism *Ism) SignificanceArray() []int16 {
	out := slices.Clone(ism.significance[ism.from:ism.to])
	if ism.reversed {
		slices.Reverse(out)
	}

	return out
}

// MeasurementDateTimeArray returns the time of each point. The earliest one is the reversal
// point, the start of the measurement is not included.
func (ism *Ism) MeasurementDateTimeArray() []time.Time {
	out := slices.Clone(ism.timestamps[ism.from:ism.to])
	if ism.reversed {
		slices.Reverse(out)
	}

	return out
}

// MeasurementDate returns the day the measurement was started.
func (ism *Ism) MeasurementDate() time.Time {
	return ism.measurementDate
}

// MeasurementEndDateTime returns the latest timestamp of all points, including the ones
// outside the usable range.
func (ism *Ism) MeasurementEndDateTime() time.Time {
	end := ism.timestamps[0]
	for _, t := range ism.timestamps[1:] {
		if t.After(end) {
			end = t
		}
	}

	return end
}
