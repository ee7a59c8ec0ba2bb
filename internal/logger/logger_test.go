package logger

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		format      string
		wantJSON    bool
	}{
		{"production defaults to json", "production", "", true},
		{"development defaults to pretty", "development", "", false},
		{"explicit json wins", "development", "json", true},
		{"explicit pretty wins", "production", "pretty", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Writer: &buf, Environment: tt.environment, Format: tt.format, Level: slog.LevelInfo})
			log.Info("hello", "key", "value")

			var decoded map[string]any
			err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded)
			if tt.wantJSON {
				require.NoError(t, err)
				assert.Equal(t, "hello", decoded["msg"])
				assert.Equal(t, "value", decoded["key"])
			} else {
				assert.Error(t, err)
				assert.Contains(t, buf.String(), "hello")
				assert.Contains(t, buf.String(), "key=value")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		" error ": slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestPrettyHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	log.Info("quiet")
	log.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "WRN")
	assert.Contains(t, buf.String(), "loud")
}

func TestPrettyHandler_NilOptionsDefaultsToInfo(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, nil)

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
}

func TestPrettyHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil)).
		With("component", "tags").
		WithGroup("move").
		With("from", "a")

	log.Info("moved", "to", "b", "note", "two words")

	out := buf.String()
	assert.Contains(t, out, "component=tags")
	assert.Contains(t, out, "move.from=a")
	assert.Contains(t, out, "move.to=b")
	assert.Contains(t, out, `move.note="two words"`)
}

func TestPrettyHandler_AddSource(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{AddSource: true}))
	log.Info("with source")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFormatLevel(t *testing.T) {
	label, color := formatLevel(slog.LevelDebug)
	assert.Equal(t, "DBG", label)
	assert.Equal(t, colorMagenta, color)

	label, _ = formatLevel(slog.LevelError + 4)
	assert.Equal(t, "ERR", label)
}

func TestFormatValue(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, "2026-01-02T03:04:05Z", formatValue(slog.TimeValue(at)))
	assert.Equal(t, "1.5s", formatValue(slog.DurationValue(1500*time.Millisecond)))
	assert.Equal(t, "42", formatValue(slog.IntValue(42)))
	assert.Equal(t, "plain", formatValue(slog.StringValue("plain")))
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: formatJSON})

	log.WithError(errors.New("boom")).
		WithField("tag", "t1").
		WithFields(map[string]any{"depth": 2}).
		Info("helper chain")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	assert.Equal(t, "boom", decoded["error"])
	assert.Equal(t, "t1", decoded["tag"])
	assert.EqualValues(t, 2, decoded["depth"])
}

func TestLogger_WithErrorNil(t *testing.T) {
	log := New(Config{Writer: &bytes.Buffer{}})
	assert.Same(t, log, log.WithError(nil))
}

func TestContextLogger(t *testing.T) {
	fallback := Discard()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	var buf bytes.Buffer
	scoped := slog.New(NewPrettyHandler(&buf, nil)).With("request_id", "r-1")
	ctx := IntoContext(context.Background(), scoped)

	FromContext(ctx, fallback).Info("scoped")
	assert.True(t, strings.Contains(buf.String(), "request_id=r-1"))
}
