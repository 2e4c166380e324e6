package script

import (
	"errors"
	"strings"
)

var (
	// ErrUnexpectedReply is returned when a reply does not have the expected shape,
	// e.g. a regular expression did not match or a number could not be parsed.
	ErrUnexpectedReply = errors.New("unexpected reply")

	// ErrUnsupportedVersion is returned by New when the Thales software is older than MinimumThalesVersion
	// or did not answer the version request.
	ErrUnsupportedVersion = errors.New("unsupported thales version")

	// ErrInvalidArgument is returned for arguments rejected before anything is sent.
	ErrInvalidArgument = errors.New("invalid argument")
)

// errorMarker is the substring that flags a failed command in a reply.
const errorMarker = "ERROR"

// RemoteError is a command failure reported by the Thales software.
// Reply holds the reply text without trailing carriage returns, followed by the configured suffix.
// The error numbers in the reply are described in the Remote2 manual.
type RemoteError struct {
	Reply string
}

func (e *RemoteError) Error() string {
	return "thales remote error: " + e.Reply
}

// ParseReply checks reply for the error marker and returns a *RemoteError if it is present.
// suffix is appended to the reply text of the error.
//
// Every command whose reply follows the error marker convention goes through this function.
func ParseReply(reply, suffix string) error {
	if !strings.Contains(reply, errorMarker) {
		return nil
	}

	return &RemoteError{Reply: strings.TrimRight(reply, "\r") + suffix}
}
