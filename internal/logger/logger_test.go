package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"panic":   zapcore.PanicLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestFromContext_FallsBackToGlobal checks that a bare context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestWithNameAndKV ensures names and fields attached to the context reach the output.
func TestWithNameAndKV(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())

	ctx = WithName(ctx, "daemon")
	ctx = WithKV(ctx, "pid", 42)

	InfoKV(ctx, "started", "preventing", true)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "daemon", entries[0].LoggerName)
	require.Equal(t, "started", entries[0].Message)

	fields := entries[0].ContextMap()
	require.EqualValues(t, 42, fields["pid"])
	require.Equal(t, true, fields["preventing"])
}

// TestNew_WritesConsoleLines makes sure New honours the writer and level.
func TestNew_WritesConsoleLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := New(&buf, zapcore.WarnLevel)
	l.Info("hidden")
	l.Warn("visible")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "visible")
}
