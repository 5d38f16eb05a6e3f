package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "production")

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Str("doctor", "Dr. Lee").Msg("shown")
	assert.Contains(t, buf.String(), `"doctor":"Dr. Lee"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestUnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "loud", "production")
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestDevelopmentConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "development")
	log.Debug().Msg("slots loaded")
	assert.Contains(t, buf.String(), "slots loaded")
	assert.NotContains(t, buf.String(), `"message"`)
}
