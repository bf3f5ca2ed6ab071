package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_RendersTemplateProperties(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(buf, DebugLevel)

	log.Info("Selected {Package} {Version}", "o-grid", "5.2.1")

	assert.Contains(t, buf.String(), "o-grid")
	assert.Contains(t, buf.String(), "5.2.1")
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		log      func(Logger)
		expected bool
	}{
		{"info allows info", InfoLevel, func(l Logger) { l.Info("message") }, true},
		{"info drops debug", InfoLevel, func(l Logger) { l.Debug("message") }, false},
		{"warn drops info", WarnLevel, func(l Logger) { l.InfoContext(context.Background(), "message") }, false},
		{"error allows error", ErrorLevel, func(l Logger) { l.Error("message") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.log(NewLogger(buf, tt.level))
			assert.Equal(t, tt.expected, bytes.Contains(buf.Bytes(), []byte("message")))
		})
	}
}

func TestLogger_ForContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(buf, InfoLevel).ForContext("Source", "hosted")

	log.Info("Listing {Count} versions", 3)

	assert.Contains(t, buf.String(), "3")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	}
	for input, expected := range tests {
		level, err := ParseLogLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, level, input)
	}

	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
}

func TestNullLogger(t *testing.T) {
	log := OrNull(nil)
	log.Info("dropped")
	log.ForContext("k", "v").ErrorContext(context.Background(), "dropped")

	buf := &bytes.Buffer{}
	real := NewLogger(buf, InfoLevel)
	assert.Same(t, real, OrNull(real))
}
