package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuildConfigByEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		env              string
		wantLevel        zapcore.Level
		wantDisableStack bool
		wantCaller       bool
		wantCallerKey    string
	}{
		{
			name:             "development",
			env:              "development",
			wantLevel:        zap.DebugLevel,
			wantDisableStack: true,
			wantCaller:       false,
			wantCallerKey:    zapcore.OmitKey,
		},
		{
			name:             "debug",
			env:              " DEBUG ",
			wantLevel:        zap.DebugLevel,
			wantDisableStack: false,
			wantCaller:       true,
			wantCallerKey:    "caller",
		},
		{
			name:             "production",
			env:              "production",
			wantLevel:        zap.InfoLevel,
			wantDisableStack: true,
			wantCaller:       false,
			wantCallerKey:    zapcore.OmitKey,
		},
		{
			name:             "fallback",
			env:              "staging",
			wantLevel:        zap.InfoLevel,
			wantDisableStack: true,
			wantCaller:       false,
			wantCallerKey:    zapcore.OmitKey,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, withCaller := buildConfig(tc.env)
			require.Equal(t, tc.wantLevel, cfg.Level.Level())
			require.Equal(t, tc.wantDisableStack, cfg.DisableStacktrace)
			require.Equal(t, tc.wantCaller, withCaller)
			require.Equal(t, tc.wantCallerKey, cfg.EncoderConfig.CallerKey)
			require.Equal(t, "timestamp", cfg.EncoderConfig.TimeKey)
		})
	}
}

func TestNewAndNop(t *testing.T) {
	t.Parallel()

	l, err := New("dbgateway", "production")
	require.NoError(t, err)
	require.NotNil(t, l)
	l.SafeSync()

	nop := NewNop()
	require.NotNil(t, nop)
	nop.Infow("discarded", "k", "v")
}
