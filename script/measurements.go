package script

import (
	"fmt"
	"strings"
)

// CVParameter is a Remote2 parameter of cyclic voltammetry measurements.
type CVParameter string

const (
	CVStartPotential          CVParameter = "CV_Pstart"
	CVUpperReversingPotential CVParameter = "CV_Pupper"
	CVLowerReversingPotential CVParameter = "CV_Plower"
	CVEndPotential            CVParameter = "CV_Pend"
	CVStartHoldTime           CVParameter = "CV_Tstart"
	CVEndHoldTime             CVParameter = "CV_Tend"
	CVScanRate                CVParameter = "CV_Srate"
	CVCycles                  CVParameter = "CV_Periods"
	CVSamplesPerCycle         CVParameter = "CV_PpPer"
	CVMaximumCurrent          CVParameter = "CV_Ima"
	CVMinimumCurrent          CVParameter = "CV_Imi"
	CVOhmicDrop               CVParameter = "CV_Odrop"
	CVAutoRestartAtOverflow   CVParameter = "CV_AutoReStart"
	CVAutoRestartAtUnderflow  CVParameter = "CV_AutoScale"
	CVAnalogFunctionGenerator CVParameter = "CV_AFGena"
	cvNaming                  CVParameter = "CV_MOD"
	cvCounter                 CVParameter = "CV_NUM"
	cvOutputPath              CVParameter = "CV_PATH"
	cvOutputFileName          CVParameter = "CV_ROOT"
)

// IEParameter is a Remote2 parameter of current-voltage curve measurements.
type IEParameter string

const (
	IEFirstEdgePotential          IEParameter = "IE_EckPot1"
	IESecondEdgePotential         IEParameter = "IE_EckPot2"
	IEThirdEdgePotential          IEParameter = "IE_EckPot3"
	IEFourthEdgePotential         IEParameter = "IE_EckPot4"
	IEFirstEdgePotentialRelation  IEParameter = "IE_EckPot1rel"
	IESecondEdgePotentialRelation IEParameter = "IE_EckPot2rel"
	IEThirdEdgePotentialRelation  IEParameter = "IE_EckPot3rel"
	IEFourthEdgePotentialRelation IEParameter = "IE_EckPot4rel"
	IEPotentialResolution         IEParameter = "IE_Resolution"
	IEMinimumWaitingTime          IEParameter = "IE_WZmin"
	IEMaximumWaitingTime          IEParameter = "IE_WZmax"
	IERelativeTolerance           IEParameter = "IE_Torel"
	IEAbsoluteTolerance           IEParameter = "IE_Toabs"
	IEOhmicDrop                   IEParameter = "IE_Odrop"
	IEScanRate                    IEParameter = "IE_Srate"
	IEMaximumCurrent              IEParameter = "IE_Ima"
	IEMinimumCurrent              IEParameter = "IE_Imi"
	ieSweepMode                   IEParameter = "IE_SweepMode"
	ieNaming                      IEParameter = "IE_MOD"
	ieCounter                     IEParameter = "IE_NUM"
	ieOutputPath                  IEParameter = "IE_PATH"
	ieOutputFileName              IEParameter = "IE_ROOT"
)

// SetCVParameter sets a CV parameter. Boolean values are sent as 1 and 0.
func (w *Wrapper) SetCVParameter(param CVParameter, value any) (string, error) {
	if b, ok := value.(bool); ok {
		value = boolValue(b)
	}

	return w.SetValue(string(param), value)
}

func (w *Wrapper) SetCVNaming(naming FileNaming) (string, error) {
	return w.SetCVParameter(cvNaming, int(naming))
}

func (w *Wrapper) SetCVCounter(number int) (string, error) {
	return w.SetCVParameter(cvCounter, number)
}

// SetCVOutputPath sets the directory of CV result files, it is sent in lower case.
func (w *Wrapper) SetCVOutputPath(path string) (string, error) {
	return w.SetCVParameter(cvOutputPath, strings.ToLower(path))
}

func (w *Wrapper) SetCVOutputFileName(name string) (string, error) {
	return w.SetCVParameter(cvOutputFileName, name)
}

// CheckCVSetup lets the device validate the CV parameters.
func (w *Wrapper) CheckCVSetup() (string, error) {
	return w.executeChecked("CHECKCV")
}

func (w *Wrapper) ReadCVSetup() (string, error) {
	return w.executeChecked("SENDCVSETUP")
}

// MeasureCV runs a cyclic voltammetry measurement with the parameters set before.
func (w *Wrapper) MeasureCV() (string, error) {
	return w.executeChecked("CV")
}

// SetIEParameter sets an IE parameter.
func (w *Wrapper) SetIEParameter(param IEParameter, value any) (string, error) {
	return w.SetValue(string(param), value)
}

func (w *Wrapper) SetIESweepMode(mode IESweepMode) (string, error) {
	switch mode {
	case IESweepModeSteadyState, IESweepModeFixedSampling, IESweepModeDynamicScan:
	default:
		return "", fmt.Errorf("%w: sweep mode %d", ErrInvalidArgument, int(mode))
	}

	return w.SetIEParameter(ieSweepMode, int(mode))
}

func (w *Wrapper) SetIENaming(naming FileNaming) (string, error) {
	return w.SetIEParameter(ieNaming, int(naming))
}

func (w *Wrapper) SetIECounter(number int) (string, error) {
	return w.SetIEParameter(ieCounter, number)
}

// SetIEOutputPath sets the directory of IE result files, it is sent in lower case.
func (w *Wrapper) SetIEOutputPath(path string) (string, error) {
	return w.SetIEParameter(ieOutputPath, strings.ToLower(path))
}

func (w *Wrapper) SetIEOutputFileName(name string) (string, error) {
	return w.SetIEParameter(ieOutputFileName, name)
}

func (w *Wrapper) CheckIESetup() (string, error) {
	return w.executeChecked("CHECKIE")
}

func (w *Wrapper) ReadIESetup() (string, error) {
	return w.executeChecked("SENDIESETUP")
}

// MeasureIE runs a current-voltage curve measurement with the parameters set before.
func (w *Wrapper) MeasureIE() (string, error) {
	return w.executeChecked("IE")
}

// SequenceParameter is a Remote2 parameter of the sequencer.
type SequenceParameter string

const (
	SequenceOhmicDrop              SequenceParameter = "SEQ_RODROP"
	SequenceMaximumRuntime         SequenceParameter = "SEQ_MAXTIME"
	SequenceUpperPotentialLimit    SequenceParameter = "SEQ_EUPPER"
	SequenceLowerPotentialLimit    SequenceParameter = "SEQ_ELOWER"
	SequenceUpperCurrentLimit      SequenceParameter = "SEQ_IUPPER"
	SequenceLowerCurrentLimit      SequenceParameter = "SEQ_ILOWER"
	SequenceCurrentRange           SequenceParameter = "SEQ_IRANGE"
	SequencePotentialLatencyWindow SequenceParameter = "SEQ_POTOFLO"
	SequenceCurrentLatencyWindow   SequenceParameter = "SEQ_CUROFLO"
	sequenceNaming                 SequenceParameter = "SEQ_MOD"
	sequenceCounter                SequenceParameter = "SEQ_NUM"
	sequenceOutputPath             SequenceParameter = "SEQ_PATH"
	sequenceOutputFileName         SequenceParameter = "SEQ_ROOT"
	sequenceAcqGlobal              SequenceParameter = "SEQ_ACQENA"
)

const (
	selectSequenceOK = "SELOK\r"
	runSequenceDone  = "SEQ DONE\r"
)

func (w *Wrapper) SetSequenceParameter(param SequenceParameter, value any) (string, error) {
	return w.SetValue(string(param), value)
}

// SelectSequence selects sequence number 0..9 for RunSequence. The sequence files are
// stored as sequence00.seq to sequence09.seq in the sequencer directory of Thales.
func (w *Wrapper) SelectSequence(number int) (string, error) {
	reply, err := w.ExecuteRemoteCommand(fmt.Sprintf("SELSEQ=%d", number))
	if err != nil {
		return "", err
	}
	if reply != selectSequenceOK {
		return reply, &RemoteError{Reply: strings.TrimRight(reply, "\r") + " Check ZTrace."}
	}

	return reply, nil
}

// RunSequence runs the selected sequence and returns when it has finished.
func (w *Wrapper) RunSequence() (string, error) {
	reply, err := w.ExecuteRemoteCommand("DOSEQ")
	if err != nil {
		return "", err
	}
	if reply != runSequenceDone {
		return reply, &RemoteError{Reply: strings.TrimRight(reply, "\r") + w.errorSuffix}
	}

	return reply, nil
}

func (w *Wrapper) SetSequenceNaming(naming FileNaming) (string, error) {
	return w.SetSequenceParameter(sequenceNaming, int(naming))
}

func (w *Wrapper) SetSequenceCounter(number int) (string, error) {
	return w.SetSequenceParameter(sequenceCounter, number)
}

// SetSequenceOutputPath sets the directory of sequence result files.
func (w *Wrapper) SetSequenceOutputPath(path string) (string, error) {
	return w.SetSequenceParameter(sequenceOutputPath, strings.ToLower(path))
}

func (w *Wrapper) SetSequenceOutputFileName(name string) (string, error) {
	return w.SetSequenceParameter(sequenceOutputFileName, name)
}

// EnableSequenceAcqGlobal switches recording of the acquisition channels in sequences on or off.
func (w *Wrapper) EnableSequenceAcqGlobal(enabled bool) (string, error) {
	v := 0
	if enabled {
		v = -1
	}

	return w.SetSequenceParameter(sequenceAcqGlobal, v)
}

// EnableSequenceAcqChannel switches a single acquisition channel of the sequencer. The
// sequencer index is the acquisition setup index plus one.
func (w *Wrapper) EnableSequenceAcqChannel(channel int, enabled bool) (string, error) {
	return w.executeChecked(fmt.Sprintf("SEQ_ACQ=%d;%d", channel, boolValue(enabled)))
}

func (w *Wrapper) ReadSequenceAcqSetup() (string, error) {
	return w.executeChecked("SENDSEQACQSETUP")
}

// FraParameter is a gain or limit of the analog interface used in FRA mode.
type FraParameter string

const (
	FraVoltageInputGain  FraParameter = "FRA_POT_IN"
	FraVoltageOutputGain FraParameter = "FRA_POT_OUT"
	FraVoltageMinimum    FraParameter = "FRA_POT_MIN"
	FraVoltageMaximum    FraParameter = "FRA_POT_MAX"
	FraCurrentInputGain  FraParameter = "FRA_CUR_IN"
	FraCurrentOutputGain FraParameter = "FRA_CUR_OUT"
	FraCurrentMinimum    FraParameter = "FRA_CUR_MIN"
	FraCurrentMaximum    FraParameter = "FRA_CUR_MAX"
)

// EnableFraMode switches the FRA probe on or off. The analog interface gains have to be
// set before the probe is enabled.
func (w *Wrapper) EnableFraMode(enabled bool) (string, error) {
	return w.SetValue("FRA", boolValue(enabled))
}

func (w *Wrapper) SetFraParameter(param FraParameter, value float64) (string, error) {
	return w.SetValue(string(param), value)
}

func (w *Wrapper) ReadFraSetup() (string, error) {
	return w.executeChecked("SENDFRASETUP")
}

// SetFraPotentiostatMode sets the coupling in FRA mode, only potentiostatic and
// galvanostatic coupling exist there.
func (w *Wrapper) SetFraPotentiostatMode(mode PotentiostatMode) (string, error) {
	switch mode {
	case PotentiostatModePotentiostatic:
		return w.executeChecked("FRAGAL=0")
	case PotentiostatModeGalvanostatic:
		return w.executeChecked("FRAGAL=1")
	default:
		return "", fmt.Errorf("%w: FRA coupling %d", ErrInvalidArgument, int(mode))
	}
}

// Pad4Channel is the setup of a single PAD4 channel. Zero ranges keep the device default.
type Pad4Channel struct {
	Card          int
	Channel       int
	Enabled       bool
	VoltageRange  float64
	ShuntResistor float64
}

// SetupPad4Channel configures one channel of a PAD4 card. PAD4 recording is switched on
// separately with EnablePad4Global.
func (w *Wrapper) SetupPad4Channel(ch Pad4Channel) error {
	commands := []string{fmt.Sprintf("PAD4=%d;%d;%d", ch.Card, ch.Channel, boolValue(ch.Enabled))}
	if ch.VoltageRange != 0 {
		commands = append(commands, fmt.Sprintf("PAD4_PRANGE=%d;%d;%s", ch.Card, ch.Channel, formatValue(ch.VoltageRange)))
	}
	if ch.ShuntResistor != 0 {
		commands = append(commands, fmt.Sprintf("PAD4_RSHUNT=%d;%d;%s", ch.Card, ch.Channel, formatValue(ch.ShuntResistor)))
	}

	for _, command := range commands {
		if _, err := w.executeChecked(command); err != nil {
			return err
		}
	}

	return nil
}

func (w *Wrapper) SetupPad4ModeGlobal(mode Pad4Mode) (string, error) {
	return w.executeChecked(fmt.Sprintf("PAD4MOD=%d", int(mode)))
}

func (w *Wrapper) EnablePad4Global(enabled bool) (string, error) {
	return w.SetValue("PAD4ENA", boolValue(enabled))
}

func (w *Wrapper) ReadPad4SetupGlobal() (string, error) {
	return w.executeChecked("SENDPAD4SETUP")
}
