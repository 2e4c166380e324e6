package livedata

import (
	"context"
	"slices"
	"time"

	"github.com/arloliu/go-thales/logger"
	"github.com/arloliu/go-thales/remote"
	"github.com/arloliu/go-thales/telegram"
)

// DefaultConnectionName is the name the Term software sends online display data to.
const DefaultConnectionName = "Logging"

// Receiver is the part of a Term connection a Reader pulls telegrams from.
type Receiver interface {
	WaitForBinaryTelegram(ch telegram.Channel, timeout time.Duration) ([]byte, error)
}

// Reader returns the packets received on one channel.
type Reader struct {
	recv    Receiver
	channel telegram.Channel
	logger  logger.Logger
	closer  interface{ Disconnect() error }
}

type config struct {
	channel  telegram.Channel
	logger   logger.Logger
	connOpts []remote.ConnOption
}

// Option configures a Reader.
type Option func(*config)

// WithChannel sets the channel packets arrive on. The default is the script channel.
func WithChannel(ch telegram.Channel) Option {
	return func(c *config) { c.channel = ch }
}

func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConnOptions passes options to the connection opened by Dial.
func WithConnOptions(opts ...remote.ConnOption) Option {
	return func(c *config) { c.connOpts = append(c.connOpts, opts...) }
}

func newConfig(opts []Option) *config {
	cfg := &config{channel: telegram.ChannelScript, logger: logger.GetLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// NewReader creates a Reader on recv. The caller keeps ownership of recv.
func NewReader(recv Receiver, opts ...Option) *Reader {
	cfg := newConfig(opts)

	return &Reader{recv: recv, channel: cfg.channel, logger: cfg.logger}
}

// Dial opens a connection named DefaultConnectionName to host and returns a Reader owning it.
func Dial(ctx context.Context, host string, opts ...Option) (*Reader, error) {
	cfg := newConfig(opts)

	connOpts := append([]remote.ConnOption{remote.WithConnectionName(DefaultConnectionName)}, cfg.connOpts...)
	if !slices.Contains(telegram.DefaultChannels(), cfg.channel) {
		connOpts = append(connOpts, remote.WithChannels(append(telegram.DefaultChannels(), cfg.channel)...))
	}

	conn, err := remote.Dial(ctx, host, connOpts...)
	if err != nil {
		return nil, err
	}

	return &Reader{recv: conn, channel: cfg.channel, logger: cfg.logger, closer: conn}, nil
}

// Next waits for the next packet. A timeout <= 0 waits until a packet arrives or the
// connection closes. Empty telegrams are skipped.
func (r *Reader) Next(timeout time.Duration) (Packet, error) {
	for {
		payload, err := r.recv.WaitForBinaryTelegram(r.channel, timeout)
		if err != nil {
			return Packet{}, err
		}

		p, err := ParsePacket(payload)
		if err != nil {
			r.logger.Debug("skip live data telegram", "channel", r.channel, "error", err)
			continue
		}

		return p, nil
	}
}

// Close disconnects the connection opened by Dial. It does nothing for readers created
// with NewReader.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}

	return r.closer.Disconnect()
}
