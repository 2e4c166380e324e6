package remote

import (
	"errors"
	"fmt"
)

// Transport errors. Every one of them matches ErrConnection with errors.Is.
var (
	// ErrConnection is the root of all transport errors.
	ErrConnection = errors.New("term connection error")

	// ErrConnClosed is returned when the connection was closed, either by Disconnect or because
	// the receiver lost the socket. Waiters blocked on a queue are released with this error.
	ErrConnClosed = fmt.Errorf("%w: connection closed", ErrConnection)

	// ErrNotConnected is returned when sending on a connection that was never connected.
	ErrNotConnected = fmt.Errorf("%w: not connected", ErrConnection)

	// ErrAlreadyConnected is returned by Connect on a connection that is already connected.
	ErrAlreadyConnected = fmt.Errorf("%w: already connected", ErrConnection)
)

// Timeout errors. Every one of them matches ErrTimeout with errors.Is.
// A timeout leaves the connection usable.
var (
	// ErrTimeout is the root of all timeout errors.
	ErrTimeout = errors.New("term timeout")

	// ErrSendLockTimeout is returned when the send lock could not be acquired within the timeout.
	ErrSendLockTimeout = fmt.Errorf("%w: send lock not acquired", ErrTimeout)

	// ErrReceiveTimeout is returned when no telegram arrived on a channel within the timeout.
	ErrReceiveTimeout = fmt.Errorf("%w: no telegram received", ErrTimeout)
)

var (
	// ErrConnConfigNil is returned when an option is applied to a nil ConnectionConfig.
	ErrConnConfigNil = errors.New("connection config is nil")

	// ErrUnknownChannel is returned when waiting on a channel that is not registered.
	ErrUnknownChannel = errors.New("channel not registered")
)
