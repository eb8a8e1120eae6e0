package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf, Service: "agent"})

	log.WithCall("CA1").Info("Turn handled", "state", "GREETING")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "agent", record[SERVICE])
	assert.Equal(t, "CA1", record[CALL_ID])
	assert.Equal(t, "GREETING", record["state"])
}

func TestLevels(t *testing.T) {
	tests := []struct {
		level   string
		debug   bool
		warning bool
	}{
		{DEBUG, true, true},
		{"", false, true},
		{"WARN", false, true},
		{ERROR, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Output: &buf, Level: tt.level, Format: TEXT})

			log.Debug("debug line")
			log.Warn("warn line")

			assert.Equal(t, tt.debug, strings.Contains(buf.String(), "debug line"))
			assert.Equal(t, tt.warning, strings.Contains(buf.String(), "warn line"))
		})
	}
}

func TestPhonesAreMasked(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf})

	log.Info("Rate limit exceeded", PHONE, "+15551234567", FROM, "+15559876543", "slot_id", "s-1")

	out := buf.String()
	assert.NotContains(t, out, "+15551234567")
	assert.Contains(t, out, "********4567")
	assert.Contains(t, out, "********6543")
	assert.Contains(t, out, "s-1")
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*******2030", MaskPhone("15550102030"))
	assert.Equal(t, "123", MaskPhone("123"))
	assert.Equal(t, "", MaskPhone(""))
}
