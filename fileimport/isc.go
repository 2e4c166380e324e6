package fileimport

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
)

// IscSetup holds the measurement parameters stored at the start of an ISC file.
// Potentials are in volt, times in seconds and currents in ampere.
type IscSetup struct {
	StartPotential          float64
	StartTime               float64
	UpperReversingPotential float64
	LowerReversingPotential float64
	EndTime                 float64
	EndPotential            float64
	// ScanRate is in mV/s, see Isc.ScanRate for V/s.
	ScanRate        float64
	Cycles          float64
	SamplesPerCycle float64
	MinimumCurrent  float64
	MaximumCurrent  float64
	OhmicDrop       float64
	// StartHoldTime is the time of the first point, the time axis starts there.
	StartHoldTime   float64
	EndHoldTime     float64
	AcquisitionTime float64
	// SampleInterval is the time between two points.
	SampleInterval float64
	Delay          float64
}

// IscInfo holds the text fields of an ISC file.
type IscInfo struct {
	Date          string
	System        string
	Temperature   string
	Time          string
	SlewRate      string
	Comments      [5]string
	ElectrodeArea string
	// Calibration is the raw potential calibration, "<offset>,<factor> POPF <power>,<extra offset>".
	Calibration string
}

// Isc is a cyclic voltammetry curve read from an ISC file.
type Isc struct {
	Setup IscSetup
	Info  IscInfo

	// PotentialOffset and PotentialFactor convert the stored voltage codes to volt.
	PotentialOffset float64
	PotentialFactor float64
	// PotentialScalingPower and ExtraOffsetX are only present in newer files.
	PotentialScalingPower float64
	ExtraOffsetX          float64

	voltage []float64
	current []float64
	times   []float64

	start, end time.Time
}

var (
	popfPattern       = regexp.MustCompile(`^\s*(.*?),\s*(.*?)\s*PO.PF *(.*?), *(.*)$`)
	popfLegacyPattern = regexp.MustCompile(`^\s*(.*?),\s*(.*?)\s*PO.PF.*`)
)

// iscDateTimeLayout matches the DDMMYY date followed by a HH:MM:SS time.
const iscDateTimeLayout = "02010615:04:05"

// voltageCodeScale is the full scale of the stored voltage codes.
const voltageCodeScale = 8000.0

// LoadIsc reads the ISC file at path.
func LoadIsc(path string) (*Isc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseIsc(data)
}

// ReadIsc reads an ISC file from r.
func ReadIsc(r io.Reader) (*Isc, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return ParseIsc(data)
}

// ParseIsc decodes the content of an ISC file.
func ParseIsc(data []byte) (*Isc, error) {
	r := newFileReader(data)
	isc := &Isc{}

	s := &isc.Setup
	for _, field := range []*float64{
		&s.StartPotential, &s.StartTime, &s.UpperReversingPotential, &s.LowerReversingPotential,
		&s.EndTime, &s.EndPotential, &s.ScanRate, &s.Cycles, &s.SamplesPerCycle,
		&s.MinimumCurrent, &s.MaximumCurrent, &s.OhmicDrop, &s.StartHoldTime, &s.EndHoldTime,
		&s.AcquisitionTime, &s.SampleInterval, &s.Delay,
	} {
		*field = r.float64()
	}

	n := r.count()
	codes := r.int16s(n, "voltage")
	isc.current = r.float64s(n, "current")

	info := &isc.Info
	for _, field := range []*string{
		&info.Date, &info.System, &info.Temperature, &info.Time, &info.SlewRate,
		&info.Comments[0], &info.Comments[1], &info.Comments[2], &info.Comments[3], &info.Comments[4],
		&info.ElectrodeArea, &info.Calibration,
	} {
		*field = swapCase(r.text("text field"))
	}
	if r.err != nil {
		return nil, r.err
	}

	var err error
	if isc.start, isc.end, err = parseIscTimes(info.Date, info.Time); err != nil {
		return nil, err
	}

	isc.parseCalibration()

	isc.voltage = make([]float64, n)
	for i, c := range codes {
		isc.voltage[i] = float64(c)
	}
	floats.Scale(isc.PotentialFactor/voltageCodeScale, isc.voltage)
	floats.AddConst(isc.PotentialOffset, isc.voltage)

	isc.times = make([]float64, n)
	for i := range isc.times {
		isc.times[i] = float64(i)*s.SampleInterval + s.StartHoldTime
	}

	return isc, nil
}

// parseIscTimes combines the date with the "start-end" time range.
func parseIscTimes(date, timeRange string) (time.Time, time.Time, error) {
	startText, endText, ok := strings.Cut(timeRange, "-")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: time range %q", ErrMalformedFile, timeRange)
	}

	start, err := time.Parse(iscDateTimeLayout, date+startText)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start time: %w", ErrMalformedFile, err)
	}
	end, err := time.Parse(iscDateTimeLayout, date+endText)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end time: %w", ErrMalformedFile, err)
	}

	return start, end, nil
}

// parseCalibration reads offset and factor from the calibration text. Older files lack the
// scaling power and the extra offset. Without a readable calibration the codes are used
// with offset 0 and factor 1.
func (isc *Isc) parseCalibration() {
	isc.PotentialOffset, isc.PotentialFactor = 0, 1

	if m := popfPattern.FindStringSubmatch(isc.Info.Calibration); m != nil {
		if v, ok := parseFloats(m[1:]...); ok {
			isc.PotentialOffset, isc.PotentialFactor = v[0], v[1]
			isc.PotentialScalingPower, isc.ExtraOffsetX = v[2], v[3]
			return
		}
	}

	if m := popfLegacyPattern.FindStringSubmatch(isc.Info.Calibration); m != nil {
		if v, ok := parseFloats(m[1:3]...); ok {
			isc.PotentialOffset, isc.PotentialFactor = v[0], v[1]
		}
	}
}

func parseFloats(texts ...string) ([]float64, bool) {
	out := make([]float64, len(texts))
	for i, t := range texts {
		v, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}

	return out, true
}

// VoltageArray returns the potentials in volt.
func (isc *Isc) VoltageArray() []float64 {
	return isc.voltage
}

// CurrentArray returns the currents in ampere.
func (isc *Isc) CurrentArray() []float64 {
	return isc.current
}

// TimeArray returns the time of each point in seconds.
func (isc *Isc) TimeArray() []float64 {
	return isc.times
}

// ScanRate returns the scan rate in V/s.
func (isc *Isc) ScanRate() float64 {
	return isc.Setup.ScanRate / 1000.0
}

func (isc *Isc) MeasurementStartDateTime() time.Time {
	return isc.start
}

func (isc *Isc) MeasurementEndDateTime() time.Time {
	return isc.end
}
