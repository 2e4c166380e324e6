// Package task runs and tracks the background goroutines of a connection.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-thales/logger"
)

// ErrStopped is returned when a task is started on a manager that was already stopped.
var ErrStopped = errors.New("task manager already stopped")

// Func is the body of a looping task. It returns true to run again, false to stop the goroutine.
type Func func() bool

// RecvFunc is the body of a receiver task. hdr is a reusable buffer sized for one frame header.
// It returns true to keep receiving, false to stop the goroutine.
type RecvFunc func(hdr []byte) bool

// CancelFunc is called once a goroutine exits, whatever the reason.
type CancelFunc func()

// Manager manages the lifecycle of the goroutines owned by a connection or file interface.
//
// Stop cancels the manager context, every task loop checks it before each iteration.
// Wait blocks until all goroutines have returned and then rearms the manager,
// so the same Manager can start new tasks afterwards.
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Start("fileWorker", func() bool {
//	    return pollOnce()
//	})
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx    context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  logger.Logger
	count   atomic.Int32
	tickers sync.Map     // map[string]*time.Ticker
	mu      sync.RWMutex // protect ctx and cancel
	taskMu  sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a new Manager using ctx as parent context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)
	return mgr
}

// Context returns the context of the currently running generation of tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a new goroutine running taskFunc in a loop until it returns false or the manager stops.
func (mgr *Manager) Start(name string, taskFunc Func) error {
	mgr.logger.Debug("start task", "name", name)

	starter, err := mgr.newStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		mgr.runLoop(name, taskFunc)
	})

	return starter.waitForStart()
}

// StartReceiver starts a receiving goroutine. hdrSize is the size of the header buffer handed
// to every taskFunc call, cancelFunc runs when the goroutine exits.
func (mgr *Manager) StartReceiver(name string, hdrSize int, taskFunc RecvFunc, cancelFunc CancelFunc) error {
	mgr.logger.Debug("start receiver task", "name", name)

	starter, err := mgr.newStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		if cancelFunc != nil {
			defer cancelFunc()
		}

		hdr := make([]byte, hdrSize)
		mgr.runLoop(name, func() bool {
			return taskFunc(hdr)
		})
	})

	return starter.waitForStart()
}

// StartInterval runs taskFunc every interval until it returns false or the manager stops.
// If runNow is true, taskFunc also runs once before the first tick.
func (mgr *Manager) StartInterval(name string, taskFunc Func, interval time.Duration, runNow bool) error {
	mgr.logger.Debug("start interval task", "name", name, "interval", interval, "runNow", runNow)

	if interval <= 0 {
		return fmt.Errorf("invalid interval: %v", interval)
	}

	ticker := time.NewTicker(interval)
	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return fmt.Errorf("interval task %s already exists", name)
	}

	cleanup := func() {
		ticker.Stop()
		mgr.tickers.Delete(name)
	}

	starter, err := mgr.newStarter(name)
	if err != nil {
		cleanup()
		return err
	}

	starter.startTask(func() {
		defer cleanup()

		if runNow && !mgr.callWithRecover(name, taskFunc) {
			return
		}

		for {
			ctx := mgr.Context()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	})

	return starter.waitForStart()
}

// Stop signals all running goroutines to terminate.
func (mgr *Manager) Stop() {
	mgr.tickers.Range(func(_, value any) bool {
		if ticker, ok := value.(*time.Ticker); ok {
			ticker.Stop()
		}
		return true
	})

	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate and rearms the manager context.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// WaitTimeout is Wait bounded by timeout. It returns false if goroutines were still running
// when the timeout elapsed, the manager is not rearmed in that case.
func (mgr *Manager) WaitTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		mgr.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) callWithRecover(name string, fn Func) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = false
		}
	}()

	return fn()
}

func (mgr *Manager) runLoop(name string, taskFunc Func) {
	for {
		ctx := mgr.Context()
		select {
		case <-ctx.Done():
			return
		default:
			if !mgr.callWithRecover(name, taskFunc) {
				return
			}
		}
	}
}

type starter struct {
	mgr     *Manager
	name    string
	started chan struct{}
}

func (mgr *Manager) newStarter(name string) (*starter, error) {
	select {
	case <-mgr.Context().Done():
		return nil, ErrStopped
	default:
	}

	return &starter{mgr: mgr, name: name, started: make(chan struct{})}, nil
}

func (s *starter) startTask(body func()) {
	s.mgr.taskMu.RLock()
	defer s.mgr.taskMu.RUnlock()

	s.mgr.wg.Add(1)
	s.mgr.count.Add(1)

	go func() {
		defer s.mgr.wg.Done()
		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug("task terminated", "name", s.name, "task_count", s.mgr.TaskCount())
		}()

		close(s.started)
		body()
	}()
}

func (s *starter) waitForStart() error {
	select {
	case <-s.started:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for %s to start", s.name)
	}
}
