package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("prod пишет JSON без debug", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(EnvProd, &buf)
		log.Debug("hidden")
		log.Info("visible", "k", "v")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "visible", rec["msg"])
		assert.Equal(t, "v", rec["k"])
	})

	t.Run("local пишет текст с debug", func(t *testing.T) {
		var buf bytes.Buffer
		New(EnvLocal, &buf).Debug("shown")
		assert.Contains(t, buf.String(), "msg=shown")
	})
}
