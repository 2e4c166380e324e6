// Package adapter exposes a workstation to callers that cannot hold Go values, such as
// foreign function bindings or line based tools. A Session bundles the connection, the
// script wrapper and the device token of one workstation, a Registry makes the wrapper
// operations callable by name.
package adapter

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/arloliu/go-thales/internal/task"
	"github.com/arloliu/go-thales/logger"
	"github.com/arloliu/go-thales/remote"
	"github.com/arloliu/go-thales/script"
	"go.uber.org/multierr"
)

// WatchConnectionName is the name of the connection used by WatchTerm.
const WatchConnectionName = "Watch"

// ErrWatchRunning is returned by WatchTerm when the session already watches the Term.
var ErrWatchRunning = errors.New("term watch already running")

// Session is an open script connection to a workstation.
type Session struct {
	host     string
	connOpts []remote.ConnOption
	logger   logger.Logger

	conn    *remote.Connection
	wrapper *script.Wrapper
	token   *script.DeviceToken

	taskMgr   *task.Manager
	watchMu   sync.Mutex
	watchConn *remote.Connection
}

type config struct {
	connOpts    []remote.ConnOption
	scriptOpts  []script.Option
	logger      logger.Logger
	forceRemote bool
}

// Option configures a Session.
type Option func(*config)

// WithConnOptions passes options to the connections of the session.
func WithConnOptions(opts ...remote.ConnOption) Option {
	return func(c *config) { c.connOpts = append(c.connOpts, opts...) }
}

// WithScriptOptions passes options to the script wrapper.
func WithScriptOptions(opts ...script.Option) Option {
	return func(c *config) { c.scriptOpts = append(c.scriptOpts, opts...) }
}

func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithForceRemoteScript switches Thales into the Remote Script right after connecting.
func WithForceRemoteScript() Option {
	return func(c *config) { c.forceRemote = true }
}

// Open connects to the workstation at host and creates the script wrapper.
func Open(ctx context.Context, host string, opts ...Option) (*Session, error) {
	cfg := &config{logger: logger.GetLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	conn, err := remote.Dial(ctx, host, slices.Concat(cfg.connOpts, []remote.ConnOption{remote.WithLogger(cfg.logger)})...)
	if err != nil {
		return nil, err
	}

	wrapper, err := script.New(conn, slices.Concat(cfg.scriptOpts, []script.Option{script.WithLogger(cfg.logger)})...)
	if err != nil {
		return nil, multierr.Append(err, conn.Disconnect())
	}

	if cfg.forceRemote {
		if _, err := wrapper.ForceThalesIntoRemoteScript(); err != nil {
			return nil, multierr.Append(err, conn.Disconnect())
		}
	}

	return &Session{
		host:     host,
		connOpts: cfg.connOpts,
		logger:   cfg.logger,
		conn:     conn,
		wrapper:  wrapper,
		token:    script.NewDeviceToken(),
		taskMgr:  task.NewManager(context.WithoutCancel(ctx), cfg.logger),
	}, nil
}

func (s *Session) Wrapper() *script.Wrapper {
	return s.wrapper
}

func (s *Session) Connection() *remote.Connection {
	return s.conn
}

// Token returns the device token shared by all users of this session.
func (s *Session) Token() *script.DeviceToken {
	return s.token
}

// TermStatus is one observation of WatchTerm. HeartBeat is only valid when Active is true.
type TermStatus struct {
	Active    bool
	HeartBeat float64
	Err       error
}

// WatchTerm checks every interval whether the Term still answers and reports the result to fn.
//
// The heartbeat is requested over a separate connection named WatchConnectionName, so the
// watch never takes replies meant for the script connection. Watching stops when fn returns
// false or the session is closed.
func (s *Session) WatchTerm(ctx context.Context, interval time.Duration, fn func(TermStatus) bool) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watchConn != nil {
		return ErrWatchRunning
	}

	conn, err := remote.Dial(ctx, s.host, slices.Concat(s.connOpts, []remote.ConnOption{
		remote.WithConnectionName(WatchConnectionName),
		remote.WithLogger(s.logger),
	})...)
	if err != nil {
		return err
	}

	watcher, err := script.New(conn, script.WithoutVersionCheck(), script.WithLogger(s.logger))
	if err != nil {
		return multierr.Append(err, conn.Disconnect())
	}

	err = s.taskMgr.StartInterval("termWatch", func() bool {
		var status TermStatus
		if status.Active = watcher.GetTermIsActive(interval); status.Active {
			status.HeartBeat, status.Err = watcher.GetWorkstationHeartBeat(interval)
		}

		return fn(status)
	}, interval, false)
	if err != nil {
		return multierr.Append(err, conn.Disconnect())
	}
	s.watchConn = conn

	return nil
}

// Close stops the term watch and disconnects all connections of the session.
func (s *Session) Close() error {
	s.taskMgr.Stop()
	s.taskMgr.Wait()

	var err error
	s.watchMu.Lock()
	if s.watchConn != nil {
		err = multierr.Append(err, s.watchConn.Disconnect())
	}
	s.watchMu.Unlock()

	return multierr.Append(err, s.conn.Disconnect())
}
