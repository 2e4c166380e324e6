package script

import "fmt"

// PotentiostatMode is the coupling of the potentiostat.
type PotentiostatMode int

const (
	PotentiostatModePotentiostatic PotentiostatMode = iota + 1
	PotentiostatModeGalvanostatic
	PotentiostatModePseudoGalvanostatic
)

func (m PotentiostatMode) command() (string, error) {
	switch m {
	case PotentiostatModePotentiostatic:
		return "Gal=0:GAL=0", nil
	case PotentiostatModeGalvanostatic:
		return "Gal=-1:GAL=1", nil
	case PotentiostatModePseudoGalvanostatic:
		return "Gal=0:GAL=-1", nil
	default:
		return "", fmt.Errorf("%w: potentiostat mode %d", ErrInvalidArgument, int(m))
	}
}

// ScanStrategy is the EIS scan strategy.
type ScanStrategy int

const (
	ScanStrategySingleSine ScanStrategy = iota
	ScanStrategyMultiSine
	ScanStrategyTable
)

// ParseScanStrategy accepts "single", "multi" and "table".
func ParseScanStrategy(s string) (ScanStrategy, error) {
	switch s {
	case "single":
		return ScanStrategySingleSine, nil
	case "multi":
		return ScanStrategyMultiSine, nil
	case "table":
		return ScanStrategyTable, nil
	}
	return 0, fmt.Errorf("%w: scan strategy %q", ErrInvalidArgument, s)
}

// ScanDirection is the direction of an EIS sweep relative to the start frequency.
type ScanDirection int

const (
	ScanDirectionStartToMax ScanDirection = iota
	ScanDirectionStartToMin
)

// ParseScanDirection accepts "startToMax" and "startToMin".
func ParseScanDirection(s string) (ScanDirection, error) {
	switch s {
	case "startToMax":
		return ScanDirectionStartToMax, nil
	case "startToMin":
		return ScanDirectionStartToMin, nil
	}
	return 0, fmt.Errorf("%w: scan direction %q", ErrInvalidArgument, s)
}

// FileNaming is the rule the Thales software uses to name measurement files.
type FileNaming int

const (
	// FileNamingDateTime appends date and time to the base name.
	FileNamingDateTime FileNaming = iota
	// FileNamingCounter appends a sequential number to the base name.
	FileNamingCounter
	// FileNamingIndividual uses the base name as is. Existing files are not overwritten.
	FileNamingIndividual
)

// ParseFileNaming accepts "dateTime", "counter" and "individual".
func ParseFileNaming(s string) (FileNaming, error) {
	switch s {
	case "dateTime":
		return FileNamingDateTime, nil
	case "counter":
		return FileNamingCounter, nil
	case "individual":
		return FileNamingIndividual, nil
	}
	return 0, fmt.Errorf("%w: file naming %q", ErrInvalidArgument, s)
}

// IESweepMode is the sweep mode of current-voltage curve measurements.
type IESweepMode int

const (
	IESweepModeSteadyState   IESweepMode = 0
	IESweepModeFixedSampling IESweepMode = 1
	IESweepModeDynamicScan   IESweepMode = 2
)

// Pad4Mode selects what all PAD4 channels measure.
type Pad4Mode int

const (
	Pad4ModeVoltage Pad4Mode = 0
	Pad4ModeCurrent Pad4Mode = 1
)
