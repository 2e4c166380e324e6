package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{" warn ", WarnLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"fatal", FatalLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSlogLogger_JSON(t *testing.T) {
	t.Setenv("ENV", "")
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)
	require.Equal(InfoLevel, l.Level())

	l.Debug("hidden")
	require.Zero(buf.Len())

	l.With("conn", "ScriptRemote").Info("connected", "port", 260)

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("connected", rec["msg"])
	require.Equal("ScriptRemote", rec["conn"])
	require.EqualValues(260, rec["port"])
	require.Contains(rec, "ts")

	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, l.Level())
}

func TestDefaultLogger(t *testing.T) {
	require := require.New(t)

	orig := GetLogger()
	t.Cleanup(func() { SetDefault(orig) })

	m := NewMockLogger()
	m.On("Warn", "unknown channel", []any{"channel", 7}).Once()
	SetDefault(m)
	SetDefault(nil)

	require.Same(m, GetLogger())
	Warn("unknown channel", "channel", 7)
	m.AssertExpectations(t)
}
