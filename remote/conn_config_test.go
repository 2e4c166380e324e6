package remote

import (
	"testing"
	"time"

	"github.com/arloliu/go-thales/logger"
	"github.com/arloliu/go-thales/telegram"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConnectionConfig("127.0.0.1")
	require.NoError(err)
	require.Equal("127.0.0.1:260", cfg.Address())
	require.Equal(DefaultConnectionName, cfg.ConnectionName())
	require.Equal(telegram.ProtocolV2, cfg.Protocol())
	require.Equal(telegram.DefaultChannels(), cfg.Channels())
	require.Equal(400*time.Millisecond, cfg.preConnectDelay)
	require.Equal(400*time.Millisecond, cfg.registrationDelay)
	require.Equal(800*time.Millisecond, cfg.postRegistrationDelay)
	require.Equal(200*time.Millisecond, cfg.closeDelay)
	require.NotNil(cfg.Logger())
}

func TestNewConnectionConfig_Options(t *testing.T) {
	require := require.New(t)

	l := logger.NewNopMockLogger()
	cfg, err := NewConnectionConfig("term.lab.local",
		WithPort(2600),
		WithConnectionName("Logging"),
		WithProtocolVersion(telegram.ProtocolV1),
		WithChannels(telegram.ChannelScript, telegram.ChannelScript, telegram.ChannelOnlineDisplay),
		WithConnectTimeout(time.Second),
		WithSettleDelays(0, 10*time.Millisecond, 20*time.Millisecond),
		WithCloseDelay(0),
		WithCloseReplyTimeout(500*time.Millisecond),
		WithLogger(l),
	)
	require.NoError(err)
	require.Equal("term.lab.local:2600", cfg.Address())
	require.Equal("Logging", cfg.ConnectionName())
	require.Equal(telegram.ProtocolV1, cfg.Protocol())
	require.Equal([]telegram.Channel{telegram.ChannelScript, telegram.ChannelOnlineDisplay}, cfg.Channels())
	require.Equal(time.Second, cfg.connectTimeout)
	require.Equal(20*time.Millisecond, cfg.postRegistrationDelay)
	require.Zero(cfg.closeDelay)
	require.Same(l, cfg.Logger())
}

func TestNewConnectionConfig_Invalid(t *testing.T) {
	tests := []struct {
		description string
		host        string
		opt         ConnOption
	}{
		{"empty host", "", nil},
		{"host with path", "term/x", nil},
		{"port zero", "127.0.0.1", WithPort(0)},
		{"port too large", "127.0.0.1", WithPort(70000)},
		{"empty name", "127.0.0.1", WithConnectionName("")},
		{"name with comma", "127.0.0.1", WithConnectionName("a,b")},
		{"unencodable name", "127.0.0.1", WithConnectionName("接続")},
		{"unknown protocol", "127.0.0.1", WithProtocolVersion(telegram.ProtocolVersion(7))},
		{"no channels", "127.0.0.1", WithChannels()},
		{"connect timeout", "127.0.0.1", WithConnectTimeout(time.Millisecond)},
		{"negative settle", "127.0.0.1", WithSettleDelays(-1, 0, 0)},
		{"close delay", "127.0.0.1", WithCloseDelay(time.Minute)},
		{"close reply timeout", "127.0.0.1", WithCloseReplyTimeout(0)},
		{"nil logger", "127.0.0.1", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			var opts []ConnOption
			if tt.opt != nil {
				opts = append(opts, tt.opt)
			}
			_, err := NewConnectionConfig(tt.host, opts...)
			require.Error(t, err)
		})
	}
}

func TestConnOption_NilConfig(t *testing.T) {
	require.ErrorIs(t, WithPort(260).apply(nil), ErrConnConfigNil)
}
