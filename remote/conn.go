// Package remote implements the client side of a Term remote connection.
//
// A Connection owns one TCP socket to the Term software. Outgoing telegrams are written by the
// caller under a send lock, incoming telegrams are read by a single receiver goroutine and
// pushed into one FIFO queue per registered channel. Callers pull replies from those queues,
// which gives the synchronous request/reply API of SendStringAndWaitForReplyString.
//
// Example:
//
//	conn, err := remote.Dial(ctx, "192.168.2.50")
//	if err != nil {
//	    return err
//	}
//	defer conn.Disconnect()
//
//	reply, err := conn.SendStringAndWaitForReplyString("1:Pset=0:", telegram.ChannelScript, 0, telegram.ChannelScript)
//
// A Connection is single use. Once disconnected, or once the receiver lost the socket, every
// operation reports ErrConnClosed and a new Connection has to be created.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-thales/internal/pool"
	"github.com/arloliu/go-thales/internal/queue"
	"github.com/arloliu/go-thales/internal/task"
	"github.com/arloliu/go-thales/logger"
	"github.com/arloliu/go-thales/telegram"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
)

// Connection is a connection to the Term software.
type Connection struct {
	ctx      context.Context
	cfg      *ConnectionConfig
	logger   logger.Logger
	name     string
	protocol telegram.ProtocolVersion

	connMu sync.RWMutex
	conn   net.Conn

	sendSem   *semaphore.Weighted
	running   atomic.Bool // receiver is reading
	connected atomic.Bool
	closed    atomic.Bool

	// queues is populated in NewConnection and read-only afterwards
	queues *xsync.MapOf[telegram.Channel, *queue.BlockingQueue[[]byte]]

	taskMgr *task.Manager
	metrics ConnectionMetrics

	stopAfter func() bool // unregisters the teardown bound to ctx

	closeOnce sync.Once
	closeErr  error
}

// NewConnection creates a Connection for cfg. It does not connect, call Connect for that.
//
// ctx is the lifetime of the connection: once it is done the connection disconnects itself,
// which releases every waiter with ErrConnClosed.
func NewConnection(ctx context.Context, cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	name := cfg.ConnectionName()
	l := cfg.Logger().With("conn", name)

	c := &Connection{
		ctx:      ctx,
		cfg:      cfg,
		logger:   l,
		name:     name,
		protocol: cfg.Protocol(),
		sendSem:  semaphore.NewWeighted(1),
		queues:   xsync.NewMapOf[telegram.Channel, *queue.BlockingQueue[[]byte]](),
		taskMgr:  task.NewManager(context.WithoutCancel(ctx), l),
	}

	for _, ch := range cfg.Channels() {
		c.queues.Store(ch, queue.NewBlockingQueue[[]byte]())
	}

	c.stopAfter = context.AfterFunc(ctx, func() {
		c.logger.Debug("connection context done", "method", "NewConnection", "error", ctx.Err())
		_ = c.Disconnect()
	})

	return c, nil
}

// Dial creates a configuration for host, a Connection, and connects it.
//
// ctx only bounds the dial and the registration. The returned connection lives until
// Disconnect, cancelling ctx afterwards does not affect it.
func Dial(ctx context.Context, host string, opts ...ConnOption) (*Connection, error) {
	cfg, err := NewConnectionConfig(host, opts...)
	if err != nil {
		return nil, err
	}

	conn, err := NewConnection(context.WithoutCancel(ctx), cfg)
	if err != nil {
		return nil, err
	}

	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	return conn, nil
}

// Connect dials the Term software, starts the receiver and registers the connection name.
//
// The Term listener needs settle time around the registration, Connect waits the delays
// configured with WithSettleDelays. ctx bounds the dial and the delays.
func (c *Connection) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if !c.connected.CompareAndSwap(false, true) {
		return ErrAlreadyConnected
	}

	addr := c.cfg.Address()
	c.cfg.mu.RLock()
	connectTimeout := c.cfg.connectTimeout
	preConnect, registration, postRegistration := c.cfg.preConnectDelay, c.cfg.registrationDelay, c.cfg.postRegistrationDelay
	c.cfg.mu.RUnlock()

	if err := pool.Sleep(ctx, preConnect); err != nil {
		c.connected.Store(false)
		return err
	}

	c.logger.Debug("dial term", "method", "Connect", "address", addr, "protocol", c.protocol)

	dialer := &net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.connected.Store(false)
		return fmt.Errorf("%w: connect to %s: %w", ErrConnection, addr, err)
	}

	if err := c.attach(conn); err != nil {
		c.connected.Store(false)
		_ = conn.Close()
		return err
	}

	if err := c.register(ctx, registration, postRegistration); err != nil {
		_ = c.Disconnect()
		return err
	}

	c.logger.Info("connected to term", "address", addr)

	return nil
}

// attach takes ownership of conn and starts the receiver on it.
func (c *Connection) attach(conn net.Conn) error {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.running.Store(true)
	err := c.taskMgr.StartReceiver("receiver", telegram.HeaderSize,
		func(hdr []byte) bool {
			return c.receiveTelegram(conn, hdr)
		},
		func() {
			// the receiver also exits when the Term drops the socket
			if c.running.CompareAndSwap(true, false) {
				c.closeQueues()
			}
			c.logger.Debug("receiver stopped", "method", "receiverTask")
		},
	)
	if err != nil {
		c.running.Store(false)
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()

		return fmt.Errorf("%w: start receiver: %w", ErrConnection, err)
	}

	return nil
}

func (c *Connection) register(ctx context.Context, before, after time.Duration) error {
	if err := pool.Sleep(ctx, before); err != nil {
		return err
	}

	frame, err := c.protocol.RegistrationFrame(c.name)
	if err != nil {
		return err
	}
	if err := c.writeFrame(frame, 0); err != nil {
		return fmt.Errorf("send registration: %w", err)
	}

	return pool.Sleep(ctx, after)
}

// ConnectionName returns the name the connection registers with.
func (c *Connection) ConnectionName() string {
	return c.name
}

// Protocol returns the framing generation of the connection.
func (c *Connection) Protocol() telegram.ProtocolVersion {
	return c.protocol
}

// IsConnected reports whether the connection holds an open socket with a running receiver.
func (c *Connection) IsConnected() bool {
	return c.getConn() != nil && c.running.Load()
}

// GetLogger returns the logger of the connection.
func (c *Connection) GetLogger() logger.Logger {
	return c.logger
}

// GetMetrics returns the counters of the connection.
func (c *Connection) GetMetrics() *ConnectionMetrics {
	return &c.metrics
}

// SendTelegram sends payload on channel ch.
//
// timeout bounds both the acquisition of the send lock and the socket write, a timeout <= 0
// blocks indefinitely. Failing to get the send lock returns ErrSendLockTimeout, socket
// failures return an error matching ErrConnection.
func (c *Connection) SendTelegram(payload []byte, ch telegram.Channel, timeout time.Duration) error {
	frame, err := telegram.Encode(ch, payload, c.protocol.LengthOrder())
	if err != nil {
		return err
	}

	return c.writeFrame(frame, timeout)
}

// SendString encodes s to the wire character set and sends it on channel ch.
func (c *Connection) SendString(s string, ch telegram.Channel, timeout time.Duration) error {
	frame, err := telegram.EncodeString(ch, s, c.protocol.LengthOrder())
	if err != nil {
		return err
	}

	return c.writeFrame(frame, timeout)
}

// WaitForBinaryTelegram pops the next payload received on channel ch.
//
// A timeout <= 0 waits until a telegram arrives or the connection closes. Payloads queued
// before a close are still returned, after that the result is ErrConnClosed.
func (c *Connection) WaitForBinaryTelegram(ch telegram.Channel, timeout time.Duration) ([]byte, error) {
	q, ok := c.queues.Load(ch)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, ch)
	}

	payload, err := q.Pop(timeout)
	switch {
	case err == nil:
		return payload, nil
	case errors.Is(err, queue.ErrClosed):
		return nil, ErrConnClosed
	case errors.Is(err, queue.ErrTimeout):
		c.metrics.incRecvTimeout()
		return nil, fmt.Errorf("%w on channel %s after %s", ErrReceiveTimeout, ch, timeout)
	default:
		return nil, err
	}
}

// WaitForStringTelegram is WaitForBinaryTelegram with the payload decoded as text.
func (c *Connection) WaitForStringTelegram(ch telegram.Channel, timeout time.Duration) (string, error) {
	payload, err := c.WaitForBinaryTelegram(ch, timeout)
	if err != nil {
		return "", err
	}

	return telegram.DecodeText(payload), nil
}

// SendStringAndWaitForReplyString sends payload on ch and waits for the next telegram on replyCh.
// timeout applies to the send and to the wait separately.
//
// The pair is not atomic: a stale reply already queued on replyCh is returned instead of the
// reply to this request. FlushChannel discards such leftovers.
func (c *Connection) SendStringAndWaitForReplyString(payload string, ch telegram.Channel, timeout time.Duration, replyCh telegram.Channel) (string, error) {
	if err := c.SendString(payload, ch, timeout); err != nil {
		return "", err
	}

	return c.WaitForStringTelegram(replyCh, timeout)
}

// SendAndWaitForReply is the binary form of SendStringAndWaitForReplyString.
func (c *Connection) SendAndWaitForReply(payload []byte, ch telegram.Channel, timeout time.Duration, replyCh telegram.Channel) ([]byte, error) {
	if err := c.SendTelegram(payload, ch, timeout); err != nil {
		return nil, err
	}

	return c.WaitForBinaryTelegram(replyCh, timeout)
}

// FlushChannel discards all telegrams queued on ch and returns how many were dropped.
func (c *Connection) FlushChannel(ch telegram.Channel) int {
	q, ok := c.queues.Load(ch)
	if !ok {
		return 0
	}

	return q.Drain()
}

// Close is Disconnect, it makes Connection an io.Closer.
func (c *Connection) Close() error {
	return c.Disconnect()
}

// Disconnect closes the connection.
//
// With the current protocol generation the close is first announced on the control channel and
// its reply awaited. Then the goodbye telegram is sent, the receiver is stopped, the socket is
// closed and every receive queue is closed, which releases all blocked waiters with
// ErrConnClosed. Steps that fail are reported in the combined error, the teardown always
// completes. Disconnect can be called more than once.
func (c *Connection) Disconnect() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.disconnect()
	})

	return c.closeErr
}

func (c *Connection) disconnect() error {
	c.closed.Store(true)
	c.stopAfter()

	c.cfg.mu.RLock()
	closeDelay, replyTimeout := c.cfg.closeDelay, c.cfg.closeReplyTimeout
	c.cfg.mu.RUnlock()

	conn := c.getConn()
	var errs error

	if conn != nil && c.running.Load() {
		if c.protocol.AnnouncesClose() {
			_, err := c.SendStringAndWaitForReplyString(fmt.Sprintf("3,%s,0,RS", c.name),
				telegram.ChannelControl, replyTimeout, telegram.ChannelControl)
			errs = multierr.Append(errs, err)
			time.Sleep(closeDelay)
		}

		errs = multierr.Append(errs, c.writeFrame(c.protocol.GoodbyeFrame(), replyTimeout))
		time.Sleep(closeDelay)
	}

	if conn != nil {
		c.stopReceiver(conn, replyTimeout)
		time.Sleep(closeDelay)

		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierr.Append(errs, fmt.Errorf("%w: close socket: %w", ErrConnection, err))
		}

		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
	}

	c.closeQueues()
	c.connected.Store(false)

	c.logger.Info("disconnected from term", "error", errs)

	return errs
}

// stopReceiver clears the running flag, unblocks the pending read and waits for the receiver.
func (c *Connection) stopReceiver(conn net.Conn, timeout time.Duration) {
	c.running.Store(false)
	c.taskMgr.Stop()

	if rc, ok := conn.(interface{ CloseRead() error }); ok {
		_ = rc.CloseRead()
	} else {
		_ = conn.SetReadDeadline(time.Now())
	}

	if !c.taskMgr.WaitTimeout(timeout) {
		c.logger.Warn("receiver did not stop in time", "method", "stopReceiver", "timeout", timeout)
	}
}

func (c *Connection) closeQueues() {
	c.queues.Range(func(_ telegram.Channel, q *queue.BlockingQueue[[]byte]) bool {
		q.Close()
		return true
	})
}

func (c *Connection) getConn() net.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	return c.conn
}

// writeFrame writes a complete frame under the send lock.
func (c *Connection) writeFrame(frame []byte, timeout time.Duration) error {
	conn := c.getConn()
	if conn == nil {
		if c.closed.Load() {
			return ErrConnClosed
		}
		return ErrNotConnected
	}

	if err := c.acquireSendLock(timeout); err != nil {
		c.metrics.incSendErr()
		return err
	}
	defer c.sendSem.Release(1)

	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()
	}

	n, err := conn.Write(frame)
	if err != nil {
		c.metrics.incSendErr()
		c.logger.Debug("failed to write telegram", "method", "writeFrame", "error", err)

		return fmt.Errorf("%w: write telegram: %w", ErrConnection, err)
	}
	c.metrics.incTelegramSend(n)

	return nil
}

func (c *Connection) acquireSendLock(timeout time.Duration) error {
	if timeout <= 0 {
		return c.sendSem.Acquire(context.Background(), 1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.sendSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w after %s", ErrSendLockTimeout, timeout)
	}

	return nil
}
