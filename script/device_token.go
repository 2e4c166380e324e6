package script

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DeviceToken guards a workstation shared by several users of the same process, for example
// a script Wrapper and an SCPI session to an external potentiostat. Holders of the token are
// the only ones expected to drive the device. The token is advisory, nothing is enforced on
// the wire.
type DeviceToken struct {
	sem *semaphore.Weighted
}

func NewDeviceToken() *DeviceToken {
	return &DeviceToken{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the token is free or ctx is done.
func (t *DeviceToken) Acquire(ctx context.Context) error {
	return t.sem.Acquire(ctx, 1)
}

// TryAcquire takes the token if it is free and reports whether it did.
func (t *DeviceToken) TryAcquire() bool {
	return t.sem.TryAcquire(1)
}

// Release returns the token. Releasing a token that is not held panics.
func (t *DeviceToken) Release() {
	t.sem.Release(1)
}

// IsAvailable reports whether the token is currently free. The answer may be stale by the
// time the caller acts on it.
func (t *DeviceToken) IsAvailable() bool {
	if !t.sem.TryAcquire(1) {
		return false
	}
	t.sem.Release(1)

	return true
}
