package diagnostics

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologSink_InfoWritesEventAndFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerologSink(zerolog.New(&buf))

	sink.Info("order_placed", map[string]any{"venue": "hyperliquid", "size": 10.0})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "order_placed", line["message"])
	assert.Equal(t, "hyperliquid", line["venue"])
	assert.Equal(t, 10.0, line["size"])
}

func TestZerologSink_ErrorIncludesErrorField(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerologSink(zerolog.New(&buf))

	sink.Error("close_failed", errors.New("boom"), map[string]any{"normalized": "BTC-USD"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "close_failed", line["message"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "BTC-USD", line["normalized"])
}

func TestNoopSink_NeverPanics(t *testing.T) {
	var s Sink = NoopSink{}
	assert.NotPanics(t, func() {
		s.Info("x", nil)
		s.Warn("x", nil)
		s.Error("x", errors.New("e"), nil)
	})
}
