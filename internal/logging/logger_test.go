package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}

	for input, want := range cases {
		t.Run("Should parse "+input, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(input))
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	t.Run("Should write json with the service field", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewWithWriter(buf, "info", "json")

		logger.Info().Int("rows", 3).Msg("Workbook loaded")

		out := buf.String()
		assert.Contains(t, out, `"service":"brandsync"`)
		assert.Contains(t, out, `"rows":3`)
		assert.Contains(t, out, `"message":"Workbook loaded"`)
	})

	t.Run("Should drop messages below the level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewWithWriter(buf, "error", "json")

		logger.Info().Msg("hidden")
		logger.Error().Msg("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("Should render console output on request", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewWithWriter(buf, "info", "console")

		logger.Info().Msg("✓ Chunk submitted")

		assert.Contains(t, buf.String(), "✓ Chunk submitted")
		assert.NotContains(t, buf.String(), `"message"`)
	})

	t.Run("Should fall back to json for non-terminal writers", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewWithWriter(buf, "info", "auto")

		logger.Info().Msg("plain")

		assert.Contains(t, buf.String(), `"message":"plain"`)
	})
}
