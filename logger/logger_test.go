package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(""))
}

func TestForSiteAddsField(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Out: &buf})
	t.Cleanup(func() { Init(Options{Level: "disabled", Out: &bytes.Buffer{}}) })

	l := ForSite("cafe24")
	l.Info().Str("category", "셔츠").Msg("category start")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cafe24", entry["site"])
	assert.Equal(t, "셔츠", entry["category"])
	assert.Equal(t, "category start", entry["message"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "info", Out: &buf})
	t.Cleanup(func() { Init(Options{Level: "disabled", Out: &bytes.Buffer{}}) })

	l := ForComponent("fetcher")
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
}
