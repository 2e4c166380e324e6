package remote

import (
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-thales/logger"
	"github.com/arloliu/go-thales/telegram"
)

const (
	// DefaultPort is the TCP port the Term software listens on.
	DefaultPort = 260
	// DefaultConnectionName is the registration name required for script commands.
	DefaultConnectionName = "ScriptRemote"
)

// ConnectionConfig represents the configuration parameters of a Term connection.
type ConnectionConfig struct {
	mu sync.RWMutex

	// host specifies the host running the Term software.
	host string

	// port specifies the TCP port of the Term software.
	// Defaults to 260.
	port int

	// connectionName is the name the connection registers with.
	// "ScriptRemote" is required for script commands, "Logging" for online display data,
	// other names are free to choose.
	// Defaults to "ScriptRemote".
	connectionName string

	// protocol selects the framing generation.
	// Defaults to telegram.ProtocolV2.
	protocol telegram.ProtocolVersion

	// channels lists the channels that get a receive queue.
	// Defaults to telegram.DefaultChannels().
	channels []telegram.Channel

	// connectTimeout bounds the TCP dial.
	// Defaults to 5 seconds.
	connectTimeout time.Duration

	// preConnectDelay is waited before dialing.
	// Defaults to 400 milliseconds.
	preConnectDelay time.Duration

	// registrationDelay is waited between starting the receiver and sending the registration.
	// The Term listener has startup races, the settle delays work around them.
	// Defaults to 400 milliseconds.
	registrationDelay time.Duration

	// postRegistrationDelay is waited after the registration before Connect returns.
	// Defaults to 800 milliseconds.
	postRegistrationDelay time.Duration

	// closeDelay is waited between the close steps of Disconnect.
	// Defaults to 200 milliseconds.
	closeDelay time.Duration

	// closeReplyTimeout bounds the wait for the reply to the close announcement.
	// Defaults to 3 seconds.
	closeReplyTimeout time.Duration

	// logger provides a logger instance for connection events and errors.
	logger logger.Logger
}

// NewConnectionConfig creates a Term connection configuration for host with optional functional options.
//
// It initializes a ConnectionConfig with default values and then applies opts in order.
// See the documentation of ConnOption and the WithXXX functions for the available options.
//
// Returns the configuration and the first error reported by an option.
func NewConnectionConfig(host string, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		port:                  DefaultPort,
		connectionName:        DefaultConnectionName,
		protocol:              telegram.ProtocolV2,
		channels:              telegram.DefaultChannels(),
		connectTimeout:        5 * time.Second,
		preConnectDelay:       400 * time.Millisecond,
		registrationDelay:     400 * time.Millisecond,
		postRegistrationDelay: 800 * time.Millisecond,
		closeDelay:            200 * time.Millisecond,
		closeReplyTimeout:     3 * time.Second,
		logger:                logger.GetLogger(),
	}

	if err := withRemoteHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Address returns host:port.
func (cfg *ConnectionConfig) Address() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

func (cfg *ConnectionConfig) ConnectionName() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.connectionName
}

func (cfg *ConnectionConfig) Protocol() telegram.ProtocolVersion {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.protocol
}

// Channels returns a copy of the registered receive channels.
func (cfg *ConnectionConfig) Channels() []telegram.Channel {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return slices.Clone(cfg.channels)
}

func (cfg *ConnectionConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return ErrConnConfigNil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	return c.applyFunc(cfg)
}

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

// withRemoteHost validates host as an IP address or a syntactically valid host name.
// Name resolution happens on dial.
func withRemoteHost(host string) ConnOption {
	return newConnOptFunc("withRemoteHost", func(cfg *ConnectionConfig) error {
		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		host = strings.Trim(host, ".")
		if host == "" || strings.ContainsAny(host, " \t/\\:") {
			return errors.New("invalid host")
		}
		cfg.host = host

		return nil
	})
}

// WithPort sets the TCP port of the Term software.
// An error is returned if the port is out of the valid range (1-65535).
//
// The default value is 260.
func WithPort(port int) ConnOption {
	return newConnOptFunc("WithPort", func(cfg *ConnectionConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithConnectionName sets the name the connection registers with.
//
// The Term software binds roles to fixed names: "ScriptRemote" accepts script commands and
// "Logging" receives online display data. Other names can be used for control channel
// traffic, e.g. "FileExchange" for file transfers.
//
// The default value is "ScriptRemote".
func WithConnectionName(name string) ConnOption {
	return newConnOptFunc("WithConnectionName", func(cfg *ConnectionConfig) error {
		if name == "" || strings.Contains(name, ",") {
			return errors.New("connection name must be non-empty and must not contain ','")
		}
		if _, err := telegram.EncodeText(name); err != nil {
			return err
		}
		cfg.connectionName = name

		return nil
	})
}

// WithProtocolVersion selects the framing generation spoken by the Term software.
//
// The default value is telegram.ProtocolV2.
func WithProtocolVersion(v telegram.ProtocolVersion) ConnOption {
	return newConnOptFunc("WithProtocolVersion", func(cfg *ConnectionConfig) error {
		if err := v.Validate(); err != nil {
			return err
		}
		cfg.protocol = v

		return nil
	})
}

// WithChannels replaces the set of channels that get a receive queue.
// Telegrams on other channels are dropped by the receiver.
//
// The default value is telegram.DefaultChannels().
func WithChannels(channels ...telegram.Channel) ConnOption {
	return newConnOptFunc("WithChannels", func(cfg *ConnectionConfig) error {
		if len(channels) == 0 {
			return errors.New("at least one channel is required")
		}
		cfg.channels = slices.Compact(slices.Sorted(slices.Values(channels)))

		return nil
	})
}

// WithConnectTimeout sets the TCP dial timeout, between 100 milliseconds and 60 seconds.
//
// The default value is 5 seconds.
func WithConnectTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithConnectTimeout", func(cfg *ConnectionConfig) error {
		if val < 100*time.Millisecond || val > 60*time.Second {
			return errors.New("connect timeout out of range [0.1, 60]")
		}
		cfg.connectTimeout = val

		return nil
	})
}

// WithSettleDelays sets the delays waited before dialing, before sending the registration
// and after sending it. Each delay must be between 0 and 10 seconds.
//
// The default values are 400, 400 and 800 milliseconds.
func WithSettleDelays(preConnect, registration, postRegistration time.Duration) ConnOption {
	return newConnOptFunc("WithSettleDelays", func(cfg *ConnectionConfig) error {
		for _, d := range []time.Duration{preConnect, registration, postRegistration} {
			if d < 0 || d > 10*time.Second {
				return errors.New("settle delay out of range [0, 10]")
			}
		}
		cfg.preConnectDelay = preConnect
		cfg.registrationDelay = registration
		cfg.postRegistrationDelay = postRegistration

		return nil
	})
}

// WithCloseDelay sets the delay waited between the steps of Disconnect, between 0 and 10 seconds.
//
// The default value is 200 milliseconds.
func WithCloseDelay(val time.Duration) ConnOption {
	return newConnOptFunc("WithCloseDelay", func(cfg *ConnectionConfig) error {
		if val < 0 || val > 10*time.Second {
			return errors.New("close delay out of range [0, 10]")
		}
		cfg.closeDelay = val

		return nil
	})
}

// WithCloseReplyTimeout bounds the wait for the reply to the close announcement, between
// 100 milliseconds and 60 seconds. It only applies to protocol generations that announce the close.
//
// The default value is 3 seconds.
func WithCloseReplyTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithCloseReplyTimeout", func(cfg *ConnectionConfig) error {
		if val < 100*time.Millisecond || val > 60*time.Second {
			return errors.New("close reply timeout out of range [0.1, 60]")
		}
		cfg.closeReplyTimeout = val

		return nil
	})
}

// WithLogger sets the logger of the connection. A nil logger is rejected.
//
// The default value is logger.GetLogger().
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
