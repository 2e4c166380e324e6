package script

import (
	"context"
	"testing"
	"time"

	"github.com/arloliu/go-thales/internal/termtest"
	"github.com/arloliu/go-thales/remote"
	"github.com/arloliu/go-thales/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapper_GetImpedance(t *testing.T) {
	w, conn := newWrapper(t, map[string]string{
		"1:IMPEDANCE:": "impedance= 1.2e+02, -3.4e+01\r",
	})

	z, err := w.GetImpedance(AtFrequency(1000), WithAmplitude(0.01), WithPeriods(20))
	require.NoError(t, err)
	assert.InDelta(t, 120, real(z), 1e-9)
	assert.InDelta(t, -34, imag(z), 1e-9)

	assert.Equal(t, []string{
		"1:Frq=1.00000000000000e+03:",
		"1:Ampl=1.00000000000000e+01:",
		"1:Nw=20:",
		"1:IMPEDANCE:",
	}, conn.payloads(telegram.ChannelScript))
}

func TestWrapper_GetImpedanceError(t *testing.T) {
	w, _ := newWrapper(t, map[string]string{
		"1:IMPEDANCE:": "ERROR;12\r",
	})

	_, err := w.GetImpedance()
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "ERROR;12", remoteErr.Reply)
}

func TestWrapper_DeviceIdentity(t *testing.T) {
	w, _ := newWrapper(t, map[string]string{
		"1:ALLNUM:": "0;33000;ZENNIUM\r",
		"1:DEVINF:": "1;2;PP212;45007",
	})

	serial, err := w.GetSerialNumber()
	require.NoError(t, err)
	assert.Equal(t, "33000", serial)

	name, err := w.GetDeviceName()
	require.NoError(t, err)
	assert.Equal(t, "ZENNIUM", name)

	name, serial, err = w.GetDeviceInformation()
	require.NoError(t, err)
	assert.Equal(t, "PP212", name)
	assert.Equal(t, "45007", serial)
}

func TestWrapper_AcqChannels(t *testing.T) {
	w, conn := newWrapper(t, map[string]string{
		"1:ANALOGALL:": "ACQVAL(0)= 2.632052e-01;ACQVAL(1)= 8.413594e-02;ACQVAL(2)= 5.338292e+01\r",
		"1:ANALOGIN:":  "ANALOGIN= 1.5e+00\r",
	})

	values, err := w.ReadAllAcqChannels()
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.InDelta(t, 0.2632052, values[0], 1e-12)
	assert.InDelta(t, 0.08413594, values[1], 1e-12)
	assert.InDelta(t, 53.38292, values[2], 1e-9)

	v, err := w.ReadAcqChannel(3)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, v, 1e-12)

	payloads := conn.payloads(telegram.ChannelScript)
	assert.Equal(t, []string{"1:ANALOGALL:", "1:CHANNEL=3:", "1:ANALOGIN:"}, payloads)

	conn.replies["1:ANALOGALL:"] = "garbage"
	_, err = w.ReadAllAcqChannels()
	require.ErrorIs(t, err, ErrUnexpectedReply)
}

func TestWrapper_Potentiostat(t *testing.T) {
	w, conn := newWrapper(t, nil)

	for _, call := range []func() (string, error){
		func() (string, error) { return w.EnablePotentiostat(true) },
		w.DisablePotentiostat,
		func() (string, error) { return w.SetPotentiostatMode(PotentiostatModePotentiostatic) },
		func() (string, error) { return w.SetPotentiostatMode(PotentiostatModeGalvanostatic) },
		func() (string, error) { return w.SetPotentiostatMode(PotentiostatModePseudoGalvanostatic) },
		func() (string, error) { return w.SelectPotentiostat(2) },
		func() (string, error) { return w.SetScanStrategy(ScanStrategyMultiSine) },
		func() (string, error) { return w.SetScanDirection(ScanDirectionStartToMin) },
		func() (string, error) { return w.SetEISNaming(FileNamingCounter) },
		w.MeasureEIS,
	} {
		_, err := call()
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		"1:Pot=-1:",
		"1:Pot=0:",
		"1:Gal=0:GAL=0:",
		"1:Gal=-1:GAL=1:",
		"1:Gal=0:GAL=-1:",
		"1:DEV%=2:",
		"1:ScanStrategy=1:",
		"1:ScanDirection=1:",
		"1:EIS_MOD=1:",
		"1:EIS:",
	}, conn.payloads(telegram.ChannelScript))

	_, err := w.SetPotentiostatMode(PotentiostatMode(9))
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, w.SetShuntIndex(4))
	payloads := conn.payloads(telegram.ChannelScript)
	assert.Equal(t, []string{"1:Rmin=4:", "1:Rmax=4:"}, payloads[len(payloads)-2:])
}

func TestWrapper_CVAndIE(t *testing.T) {
	w, conn := newWrapper(t, nil)

	_, err := w.SetCVParameter(CVScanRate, 0.1)
	require.NoError(t, err)
	_, err = w.SetCVParameter(CVCycles, 2)
	require.NoError(t, err)
	_, err = w.SetCVParameter(CVAutoRestartAtOverflow, true)
	require.NoError(t, err)
	_, err = w.SetCVOutputPath(`C:\Data`)
	require.NoError(t, err)
	_, err = w.MeasureCV()
	require.NoError(t, err)

	_, err = w.SetIEParameter(IEFirstEdgePotential, -0.5)
	require.NoError(t, err)
	_, err = w.SetIESweepMode(IESweepModeDynamicScan)
	require.NoError(t, err)
	_, err = w.MeasureIE()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"1:CV_Srate=1.00000000000000e-01:",
		"1:CV_Periods=2:",
		"1:CV_AutoReStart=1:",
		`1:CV_PATH=c:\data:`,
		"1:CV:",
		"1:IE_EckPot1=-5.00000000000000e-01:",
		"1:IE_SweepMode=2:",
		"1:IE:",
	}, conn.payloads(telegram.ChannelScript))

	_, err = w.SetIESweepMode(IESweepMode(7))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWrapper_Sequence(t *testing.T) {
	w, conn := newWrapper(t, map[string]string{
		"1:SELSEQ=3:": "SELOK\r",
		"1:SELSEQ=8:": "SEQUENCE NOT FOUND\r",
		"1:DOSEQ:":    "SEQ DONE\r",
	})

	_, err := w.SelectSequence(3)
	require.NoError(t, err)
	_, err = w.RunSequence()
	require.NoError(t, err)

	_, err = w.SelectSequence(8)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "SEQUENCE NOT FOUND Check ZTrace.", remoteErr.Reply)

	conn.replies["1:DOSEQ:"] = "SEQ ABORTED\r"
	_, err = w.RunSequence()
	require.ErrorAs(t, err, &remoteErr)

	_, err = w.EnableSequenceAcqGlobal(true)
	require.NoError(t, err)
	_, err = w.EnableSequenceAcqChannel(3, false)
	require.NoError(t, err)

	payloads := conn.payloads(telegram.ChannelScript)
	assert.Equal(t, []string{"1:SEQ_ACQENA=-1:", "1:SEQ_ACQ=3;0:"}, payloads[len(payloads)-2:])
}

func TestWrapper_FraAndPad4(t *testing.T) {
	w, conn := newWrapper(t, nil)

	_, err := w.EnableFraMode(true)
	require.NoError(t, err)
	_, err = w.SetFraPotentiostatMode(PotentiostatModeGalvanostatic)
	require.NoError(t, err)
	_, err = w.SetFraPotentiostatMode(PotentiostatModePseudoGalvanostatic)
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, w.SetupPad4Channel(Pad4Channel{Card: 1, Channel: 2, Enabled: true, VoltageRange: 4}))
	_, err = w.SetupPad4ModeGlobal(Pad4ModeCurrent)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"1:FRA=1:",
		"1:FRAGAL=1:",
		"1:PAD4=1;2;1:",
		"1:PAD4_PRANGE=1;2;4.00000000000000e+00:",
		"1:PAD4MOD=1:",
	}, conn.payloads(telegram.ChannelScript))
}

func TestDeviceToken(t *testing.T) {
	token := NewDeviceToken()
	require.True(t, token.IsAvailable())

	require.NoError(t, token.Acquire(context.Background()))
	assert.False(t, token.IsAvailable())
	assert.False(t, token.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, token.Acquire(ctx), context.DeadlineExceeded)

	token.Release()
	assert.True(t, token.IsAvailable())
	assert.True(t, token.TryAcquire())
	token.Release()
}

func TestWrapper_OverTermConnection(t *testing.T) {
	srv, err := termtest.NewServer(telegram.ProtocolV2, func(req telegram.Telegram) []telegram.Telegram {
		switch req.Text() {
		case "3,ScriptRemote,7":
			return []telegram.Telegram{termtest.Reply(telegram.ChannelControl, "3,ScriptRemote,6.1.0")}
		case "1:Pset=0:":
			return []telegram.Telegram{termtest.Reply(telegram.ChannelScript, "ERROR;6\r")}
		case "1:POTENTIAL:":
			return []telegram.Telegram{termtest.Reply(telegram.ChannelScript, "potential=1.0V\r")}
		}
		return nil
	})
	require.NoError(t, err)
	defer srv.Close()

	conn, err := remote.Dial(context.Background(), srv.Host(),
		remote.WithPort(srv.Port()),
		remote.WithSettleDelays(0, 0, 0),
		remote.WithCloseDelay(0),
	)
	require.NoError(t, err)
	defer conn.Disconnect()

	w, err := New(conn, WithCommandTimeout(time.Second))
	require.NoError(t, err)

	_, err = w.SetValue("Pset", 0)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)

	potential, err := w.GetPotential()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, potential, 1e-12)
}
