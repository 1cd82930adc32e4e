package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")

	log.Info().Str("run_id", "r1").Msg("Harvest started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "Harvest started", line["message"])
	assert.Equal(t, "r1", line["run_id"])
	assert.Contains(t, line, "time")
	assert.Contains(t, line, "caller")
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "pretty")

	log.Info().Msg("Page processed")
	assert.Contains(t, buf.String(), "Page processed")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNew_AutoIsJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "auto")

	log.Info().Msg("x")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	New(&buf, "nonsense", "json")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
