package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	currentPattern   = regexp.MustCompile(`current=\s*(.*?)A?[\r\n]{0,2}$`)
	potentialPattern = regexp.MustCompile(`potential=\s*(.*?)V?[\r\n]{0,2}$`)
	impedancePattern = regexp.MustCompile(`impedance=\s*(.*?),\s*(.*?)$`)
	allNumPattern    = regexp.MustCompile(`(.*);(.*);([a-zA-Z]*)`)
	devInfPattern    = regexp.MustCompile(`(.*);(.*);(.*);([0-9]*)`)
	acqIndexPattern  = regexp.MustCompile(`\((.*?)\)`)
	acqValuePattern  = regexp.MustCompile(`=\s*(.*)`)
)

func boolValue(state bool) int {
	if state {
		return 1
	}
	return 0
}

// GetCurrent reads the measured current in ampere.
func (w *Wrapper) GetCurrent() (float64, error) {
	return w.RequestValueAndParse("CURRENT", currentPattern)
}

// GetPotential reads the measured potential in volt.
func (w *Wrapper) GetPotential() (float64, error) {
	return w.RequestValueAndParse("POTENTIAL", potentialPattern)
}

// SetCurrent sets the output current in ampere for galvanostatic mode.
func (w *Wrapper) SetCurrent(current float64) (string, error) {
	return w.SetValue("Cset", current)
}

// SetPotential sets the output potential in volt for potentiostatic mode.
func (w *Wrapper) SetPotential(potential float64) (string, error) {
	return w.SetValue("Pset", potential)
}

// SetMaximumShunt sets the index of the largest shunt used for measurements.
func (w *Wrapper) SetMaximumShunt(shunt int) (string, error) {
	return w.SetValue("Rmax", shunt)
}

// SetMinimumShunt sets the index of the smallest shunt used for measurements.
func (w *Wrapper) SetMinimumShunt(shunt int) (string, error) {
	return w.SetValue("Rmin", shunt)
}

// SetShuntIndex fixes the shunt to index by setting both limits.
func (w *Wrapper) SetShuntIndex(shunt int) error {
	if _, err := w.SetMinimumShunt(shunt); err != nil {
		return err
	}
	_, err := w.SetMaximumShunt(shunt)

	return err
}

// SetVoltageRangeIndex selects the potential range of the active potentiostat.
func (w *Wrapper) SetVoltageRangeIndex(vrange int) (string, error) {
	return w.SetValue("Potrange", vrange)
}

// SelectPotentiostat selects the active device, 0 is the main potentiostat and higher
// numbers address external potentiostats.
func (w *Wrapper) SelectPotentiostat(device int) (string, error) {
	return w.SetValue("DEV%", device)
}

// SelectPotentiostatWithoutPotentiostatStateChange selects the active device without
// switching the potentiostat of the previous device off.
func (w *Wrapper) SelectPotentiostatWithoutPotentiostatStateChange(device int) (string, error) {
	return w.SetValue("DEVHOT%", device)
}

// SwitchToSCPIControl hands the active external potentiostat over to SCPI control over USB.
func (w *Wrapper) SwitchToSCPIControl() (string, error) {
	return w.executeChecked("SETUSB")
}

// SwitchToSCPIControlWithoutPotentiostatStateChange hands the device over to SCPI control and
// keeps its potentiostat state.
func (w *Wrapper) SwitchToSCPIControlWithoutPotentiostatStateChange() (string, error) {
	return w.executeChecked("HOT2USB")
}

// GetSerialNumber returns the serial number of the active device.
func (w *Wrapper) GetSerialNumber() (string, error) {
	m, err := w.matchReply("ALLNUM", allNumPattern)
	if err != nil {
		return "", err
	}

	return m[2], nil
}

// GetDeviceName returns the name of the active device.
func (w *Wrapper) GetDeviceName() (string, error) {
	m, err := w.matchReply("ALLNUM", allNumPattern)
	if err != nil {
		return "", err
	}

	return m[3], nil
}

// GetDeviceInformation returns the name and the serial number of the active device.
func (w *Wrapper) GetDeviceInformation() (name string, serial string, err error) {
	m, err := w.matchReply("DEVINF", devInfPattern)
	if err != nil {
		return "", "", err
	}

	return m[3], m[4], nil
}

func (w *Wrapper) matchReply(command string, pattern *regexp.Regexp) ([]string, error) {
	reply, err := w.executeChecked(command)
	if err != nil {
		return nil, err
	}

	m := pattern.FindStringSubmatch(reply)
	if m == nil {
		return nil, fmt.Errorf("%w: %q does not match %s", ErrUnexpectedReply, reply, pattern)
	}

	return m, nil
}

// ReadSetup returns the complete configuration of the active device.
func (w *Wrapper) ReadSetup() (string, error) {
	return w.executeChecked("SENDSETUP")
}

// CalibrateOffsets runs the offset calibration of the active device.
func (w *Wrapper) CalibrateOffsets() (string, error) {
	return w.executeChecked("CALOFFSETS")
}

// EnablePotentiostat switches the potentiostat on or off.
func (w *Wrapper) EnablePotentiostat(enabled bool) (string, error) {
	if enabled {
		return w.executeChecked("Pot=-1")
	}

	return w.executeChecked("Pot=0")
}

// DisablePotentiostat switches the potentiostat off.
func (w *Wrapper) DisablePotentiostat() (string, error) {
	return w.EnablePotentiostat(false)
}

// SetPotentiostatMode sets the coupling of the potentiostat.
func (w *Wrapper) SetPotentiostatMode(mode PotentiostatMode) (string, error) {
	command, err := mode.command()
	if err != nil {
		return "", err
	}

	return w.executeChecked(command)
}

// EnableRuleFileUsage makes the device apply its rule file.
func (w *Wrapper) EnableRuleFileUsage(enabled bool) (string, error) {
	return w.SetValue("UseRuleFile", boolValue(enabled))
}

// SetFrequency sets the output frequency in hertz.
func (w *Wrapper) SetFrequency(frequency float64) (string, error) {
	return w.SetValue("Frq", frequency)
}

// SetAmplitude sets the amplitude in volt or ampere, depending on the potentiostat mode.
func (w *Wrapper) SetAmplitude(amplitude float64) (string, error) {
	return w.SetValue("Ampl", amplitude*1e3)
}

// SetNumberOfPeriods sets the number of periods averaged for one impedance point.
// The value is clamped to 1..100.
func (w *Wrapper) SetNumberOfPeriods(periods int) (string, error) {
	periods = max(1, min(periods, 100))

	return w.SetValue("Nw", periods)
}

// SetUpperFrequencyLimit sets the highest frequency of an EIS sweep.
func (w *Wrapper) SetUpperFrequencyLimit(frequency float64) (string, error) {
	return w.SetValue("Fmax", frequency)
}

// SetLowerFrequencyLimit sets the lowest frequency of an EIS sweep.
func (w *Wrapper) SetLowerFrequencyLimit(frequency float64) (string, error) {
	return w.SetValue("Fmin", frequency)
}

// SetStartFrequency sets the frequency an EIS sweep starts at.
func (w *Wrapper) SetStartFrequency(frequency float64) (string, error) {
	return w.SetValue("Fstart", frequency)
}

// SetUpperStepsPerDecade sets the frequency steps per decade above 66 Hz.
func (w *Wrapper) SetUpperStepsPerDecade(steps int) (string, error) {
	return w.SetValue("dfm", steps)
}

// SetLowerStepsPerDecade sets the frequency steps per decade below 66 Hz.
func (w *Wrapper) SetLowerStepsPerDecade(steps int) (string, error) {
	return w.SetValue("dfl", steps)
}

// SetUpperNumberOfPeriods sets the periods averaged per point above 66 Hz.
func (w *Wrapper) SetUpperNumberOfPeriods(periods int) (string, error) {
	return w.SetValue("Nws", periods)
}

// SetLowerNumberOfPeriods sets the periods averaged per point below 66 Hz.
func (w *Wrapper) SetLowerNumberOfPeriods(periods int) (string, error) {
	return w.SetValue("Nwl", periods)
}

func (w *Wrapper) SetScanStrategy(strategy ScanStrategy) (string, error) {
	return w.SetValue("ScanStrategy", int(strategy))
}

func (w *Wrapper) SetScanDirection(direction ScanDirection) (string, error) {
	return w.SetValue("ScanDirection", int(direction))
}

// ImpedanceOption changes a measurement parameter before GetImpedance measures.
type ImpedanceOption func(*impedanceParams)

type impedanceParams struct {
	frequency *float64
	amplitude *float64
	periods   *int
}

func AtFrequency(frequency float64) ImpedanceOption {
	return func(p *impedanceParams) { p.frequency = &frequency }
}

func WithAmplitude(amplitude float64) ImpedanceOption {
	return func(p *impedanceParams) { p.amplitude = &amplitude }
}

func WithPeriods(periods int) ImpedanceOption {
	return func(p *impedanceParams) { p.periods = &periods }
}

// GetImpedance measures a single impedance point. Parameters not given keep their last value.
func (w *Wrapper) GetImpedance(opts ...ImpedanceOption) (complex128, error) {
	var p impedanceParams
	for _, opt := range opts {
		opt(&p)
	}

	if p.frequency != nil {
		if _, err := w.SetFrequency(*p.frequency); err != nil {
			return 0, err
		}
	}
	if p.amplitude != nil {
		if _, err := w.SetAmplitude(*p.amplitude); err != nil {
			return 0, err
		}
	}
	if p.periods != nil {
		if _, err := w.SetNumberOfPeriods(*p.periods); err != nil {
			return 0, err
		}
	}

	m, err := w.matchReply("IMPEDANCE", impedancePattern)
	if err != nil {
		return 0, err
	}

	re, err := parseFloat(m[1])
	if err != nil {
		return 0, err
	}
	im, err := parseFloat(m[2])
	if err != nil {
		return 0, err
	}

	return complex(re, im), nil
}

// SetEISNaming sets the naming rule of EIS result files.
func (w *Wrapper) SetEISNaming(naming FileNaming) (string, error) {
	return w.SetValue("EIS_MOD", int(naming))
}

// SetEISCounter sets the next number used by FileNamingCounter.
func (w *Wrapper) SetEISCounter(number int) (string, error) {
	return w.SetValue("EIS_NUM", number)
}

// SetEISOutputPath sets the directory of EIS result files. The path must exist on the
// workstation, it is sent in lower case.
func (w *Wrapper) SetEISOutputPath(path string) (string, error) {
	return w.SetValue("EIS_PATH", strings.ToLower(path))
}

// SetEISOutputFileName sets the base name of EIS result files.
func (w *Wrapper) SetEISOutputFileName(name string) (string, error) {
	return w.SetValue("EIS_ROOT", name)
}

// MeasureEIS runs an EIS measurement with the parameters set before.
func (w *Wrapper) MeasureEIS() (string, error) {
	return w.executeChecked("EIS")
}

// ReadAcqSetup returns the configuration of the analog acquisition channels.
func (w *Wrapper) ReadAcqSetup() (string, error) {
	return w.executeChecked("SENDACQSETUP")
}

// ReadAllAcqChannels reads all active acquisition channels, keyed by channel index.
// The reply has the form "ACQVAL(0)= 2.63e-01;ACQVAL(1)= 8.41e-02".
func (w *Wrapper) ReadAllAcqChannels() (map[int]float64, error) {
	reply, err := w.executeChecked("ANALOGALL")
	if err != nil {
		return nil, err
	}

	values := make(map[int]float64)
	for _, pair := range strings.Split(reply, ";") {
		idx := acqIndexPattern.FindStringSubmatch(pair)
		val := acqValuePattern.FindStringSubmatch(pair)
		if idx == nil || val == nil {
			return nil, fmt.Errorf("%w: acquisition value %q", ErrUnexpectedReply, pair)
		}

		key, err := strconv.Atoi(strings.TrimSpace(idx[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
		}
		v, err := parseFloat(val[1])
		if err != nil {
			return nil, err
		}
		values[key] = v
	}

	return values, nil
}

// ReadAcqChannel selects channel and reads its value.
func (w *Wrapper) ReadAcqChannel(channel int) (float64, error) {
	if _, err := w.SetValue("CHANNEL", channel); err != nil {
		return 0, err
	}

	return w.RequestValueAndParse("ANALOGIN", acqValuePattern)
}
