// Package script implements the Remote2 command layer of the Thales software.
//
// Script commands are sent as "1:<command>:" on the script channel and answered on the same
// channel. A reply that contains "ERROR" signals a failed command and is turned into a
// *RemoteError by ParseReply. Term control messages such as version and heartbeat queries use
// the control channel and the comma separated "<kind>,<connection name>,..." format.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-thales/logger"
	"github.com/arloliu/go-thales/telegram"
)

// MinimumThalesVersion is the oldest Thales release accepted by New.
const MinimumThalesVersion = "5.9.1"

// Conn is the part of a Term connection used by the Wrapper. *remote.Connection implements it.
type Conn interface {
	SendStringAndWaitForReplyString(payload string, ch telegram.Channel, timeout time.Duration, replyCh telegram.Channel) (string, error)
	ConnectionName() string
}

// Wrapper sends Remote2 commands over a Conn.
//
// A Wrapper adds no locking of its own. Concurrent use from several goroutines is safe at the
// telegram level, but replies may be paired with the wrong request, so callers serialize
// command sequences, see DeviceToken.
type Wrapper struct {
	conn           Conn
	logger         logger.Logger
	errorSuffix    string
	checkVersion   bool
	versionTimeout time.Duration
	commandTimeout time.Duration
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithoutVersionCheck skips the Thales version check in New.
func WithoutVersionCheck() Option {
	return func(w *Wrapper) { w.checkVersion = false }
}

// WithErrorSuffix sets a text appended to the reply of every RemoteError.
func WithErrorSuffix(suffix string) Option {
	return func(w *Wrapper) { w.errorSuffix = suffix }
}

// WithCommandTimeout bounds every script command. The default 0 waits indefinitely,
// measurements can take hours.
func WithCommandTimeout(d time.Duration) Option {
	return func(w *Wrapper) { w.commandTimeout = d }
}

// WithLogger sets the logger of the wrapper.
func WithLogger(l logger.Logger) Option {
	return func(w *Wrapper) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a Wrapper on conn and verifies that the Thales software is at least
// MinimumThalesVersion. Development builds, whose version contains "devel", are accepted.
func New(conn Conn, opts ...Option) (*Wrapper, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil connection", ErrInvalidArgument)
	}

	w := &Wrapper{
		conn:           conn,
		logger:         logger.GetLogger(),
		checkVersion:   true,
		versionTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.checkVersion {
		if err := w.verifyVersion(); err != nil {
			return nil, err
		}
	}

	return w, nil
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

func (w *Wrapper) verifyVersion() error {
	version, err := w.GetThalesVersion(w.versionTimeout)
	if err != nil {
		return fmt.Errorf("%w: please update the Thales software: %w", ErrUnsupportedVersion, err)
	}

	if strings.Contains(version, "devel") {
		w.logger.Info("thales development version", "version", version)
		return nil
	}

	ok, err := versionAtLeast(version, MinimumThalesVersion)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedVersion, err)
	}
	if !ok {
		return fmt.Errorf("%w: at least version %s is required, but version %s is installed",
			ErrUnsupportedVersion, MinimumThalesVersion, version)
	}

	return nil
}

// versionAtLeast compares the first x.y.z found in version with minimum.
func versionAtLeast(version, minimum string) (bool, error) {
	parse := func(s string) ([3]int, error) {
		var v [3]int
		m := versionPattern.FindStringSubmatch(s)
		if m == nil {
			return v, fmt.Errorf("%w: no version in %q", ErrUnexpectedReply, s)
		}
		for i := range v {
			v[i], _ = strconv.Atoi(m[i+1])
		}
		return v, nil
	}

	have, err := parse(version)
	if err != nil {
		return false, err
	}
	want, err := parse(minimum)
	if err != nil {
		return false, err
	}

	for i := range have {
		if have[i] != want[i] {
			return have[i] > want[i], nil
		}
	}

	return true, nil
}

// ExecuteRemoteCommand sends a raw Remote2 command such as "IMPEDANCE" or "Pset=0"
// and returns the raw reply. The reply is not checked for the error marker.
func (w *Wrapper) ExecuteRemoteCommand(command string) (string, error) {
	return w.conn.SendStringAndWaitForReplyString("1:"+command+":", telegram.ChannelScript,
		w.commandTimeout, telegram.ChannelScript)
}

// executeChecked sends command and converts an error reply to a *RemoteError.
func (w *Wrapper) executeChecked(command string) (string, error) {
	reply, err := w.ExecuteRemoteCommand(command)
	if err != nil {
		return "", err
	}
	if err := ParseReply(reply, w.errorSuffix); err != nil {
		w.logger.Debug("command failed", "command", command, "reply", reply)
		return reply, err
	}

	return reply, nil
}

// SetValue sets the Remote2 parameter name to value and returns the reply.
// Floating point values are sent in exponent notation with 14 fraction digits.
func (w *Wrapper) SetValue(name string, value any) (string, error) {
	return w.executeChecked(name + "=" + formatValue(value))
}

func formatValue(value any) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'e', 14, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'e', 14, 32)
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// RequestValueAndParse sends command and parses the first capture group of pattern in the
// reply as a float. A reply without a match returns ErrUnexpectedReply.
func (w *Wrapper) RequestValueAndParse(command string, pattern *regexp.Regexp) (float64, error) {
	reply, err := w.executeChecked(command)
	if err != nil {
		return 0, err
	}

	m := pattern.FindStringSubmatch(reply)
	if len(m) < 2 {
		return 0, fmt.Errorf("%w: %q does not match %s", ErrUnexpectedReply, reply, pattern)
	}

	return parseFloat(m[1])
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
	}

	return v, nil
}

// control sends a Term control message on the control channel.
func (w *Wrapper) control(timeout time.Duration, format string, args ...any) (string, error) {
	return w.conn.SendStringAndWaitForReplyString(fmt.Sprintf(format, args...),
		telegram.ChannelControl, timeout, telegram.ChannelControl)
}

// controlField sends a control message and returns the third comma separated field of the reply.
func (w *Wrapper) controlField(timeout time.Duration, format string, args ...any) (string, error) {
	reply, err := w.control(timeout, format, args...)
	if err != nil {
		return "", err
	}

	fields := strings.Split(reply, ",")
	if len(fields) < 3 {
		return "", fmt.Errorf("%w: %q has no third field", ErrUnexpectedReply, reply)
	}

	return fields[2], nil
}

// ForceThalesIntoRemoteScript switches a running Thales from anywhere, e.g. the main menu,
// into the Remote Script so it processes further commands.
//
// This is quick when Thales is idle, during a running measurement it can take a while.
func (w *Wrapper) ForceThalesIntoRemoteScript() (string, error) {
	name := w.conn.ConnectionName()
	if _, err := w.control(0, "3,%s,0,OFF", name); err != nil {
		return "", err
	}

	return w.control(0, "2,%s", name)
}

// HideWindow hides the Thales window, it stays in the taskbar but cannot be maximized.
func (w *Wrapper) HideWindow() (string, error) {
	return w.control(0, "3,%s,5,off", w.conn.ConnectionName())
}

// ShowWindow shows the Thales window again.
func (w *Wrapper) ShowWindow() (string, error) {
	return w.control(0, "3,%s,5,on", w.conn.ConnectionName())
}

// GetThalesVersion returns the Thales version as shown in the title bar.
func (w *Wrapper) GetThalesVersion(timeout time.Duration) (string, error) {
	return w.controlField(timeout, "3,%s,7", w.conn.ConnectionName())
}

// GetSerialNumberFromTerm returns the workstation serial number known to the Term software.
// Use GetSerialNumber for the active potentiostat.
func (w *Wrapper) GetSerialNumberFromTerm() (string, error) {
	return w.controlField(0, "3,%s,6", w.conn.ConnectionName())
}

// GetWorkstationHeartBeat returns the heartbeat time in milliseconds of the workstation.
func (w *Wrapper) GetWorkstationHeartBeat(timeout time.Duration) (float64, error) {
	field, err := w.controlField(timeout, "1,%s", w.conn.ConnectionName())
	if err != nil {
		return 0, err
	}

	return parseFloat(field)
}

// GetTermIsActive reports whether the Term answers a heartbeat within timeout.
//
// Once it returns false the connection has to be re-established, Thales forced into the
// Remote Script again and the workstation reset.
func (w *Wrapper) GetTermIsActive(timeout time.Duration) bool {
	if _, err := w.control(timeout, "1,%s", w.conn.ConnectionName()); err != nil {
		w.logger.Debug("term heartbeat failed", "error", err)
		return false
	}

	return true
}
