package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require := require.New(t)

	for name, want := range map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		" warn ":  WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
	} {
		lv, err := ParseLevel(name)
		require.NoError(err, name)
		require.Equal(want, lv, name)
	}

	_, err := ParseLevel("chatty")
	require.Error(err)
}

func TestSlogLogger_JSON(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlogWithOptions(InfoLevel, WithOutput(&buf))

	l.Debug("hidden")
	require.Zero(buf.Len())

	l.With("component", "router").Warn("dropped packet", "port", 2)

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("dropped packet", rec["msg"])
	require.Equal("WARN", rec["level"])
	require.Equal("router", rec["component"])
	require.EqualValues(2, rec["port"])
	require.Contains(rec, "ts")
}

func TestSlogLogger_SetLevelSharedWithChildren(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlogWithOptions(ErrorLevel, WithOutput(&buf))
	child := l.With("component", "protocol")
	require.Equal(ErrorLevel, child.Level())

	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, child.Level())

	child.Debug("visible now")
	require.Contains(buf.String(), "visible now")
}

func TestSetDefault(t *testing.T) {
	require := require.New(t)

	orig := GetLogger()
	defer SetDefault(orig)

	m := NewNopMockLogger()
	SetDefault(m)
	Info("hello", "k", "v")
	m.AssertCalled(t, "Info", "hello", []any{"k", "v"})

	SetDefault(nil)
	require.Same(m, GetLogger())
}
