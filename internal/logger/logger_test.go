package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("writes json at configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(Config{Level: "warn"}, &buf)

		l.Info().Msg("hidden")
		l.Warn().Str("component", "sync").Msg("shown")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "sync", entry["component"])
		assert.Equal(t, "shown", entry["message"])
		assert.Contains(t, entry, "time")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(Config{Level: "loud"}, &buf)

		l.Debug().Msg("hidden")
		assert.Empty(t, buf.String())

		l.Info().Msg("shown")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("pretty format is not json", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(Config{Format: "pretty"}, &buf)

		l.Info().Msg("hello")
		assert.Contains(t, buf.String(), "hello")
		assert.False(t, json.Valid(buf.Bytes()))
	})
}
