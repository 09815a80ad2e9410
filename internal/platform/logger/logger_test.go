package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("production emits json", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "production", "info")
		log.Info("proposal_created", "domain", "energy")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "proposal_created", line["msg"])
		assert.Equal(t, "concord", line["service"])
		assert.Equal(t, "energy", line["domain"])
	})

	t.Run("level filters debug", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "dev", "warn")
		log.Info("hidden")
		assert.Empty(t, buf.String())
		log.Warn("shown")
		assert.Contains(t, buf.String(), "shown")
	})
}
