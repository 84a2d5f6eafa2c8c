package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitiveFieldRedacted(t *testing.T) {
	var buf bytes.Buffer
	l := New(DebugLevel, JSONFormat, &buf)
	l.Info("login attempt", map[string]interface{}{"password": "hunter2", "user": "alice"})

	var e entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "[REDACTED]", e.Fields["password"])
	assert.Equal(t, "alice", e.Fields["user"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(WarnLevel, TextFormat, &buf)
	l.Info("should not appear")
	l.Error("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestWithComponentTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(DebugLevel, TextFormat, &buf).WithComponent("acquire")
	l.Info("starting")
	assert.Contains(t, buf.String(), "[acquire]")
}

func TestFieldLoggerChaining(t *testing.T) {
	var buf bytes.Buffer
	l := New(DebugLevel, JSONFormat, &buf)
	l.WithField("run_id", "r1").WithField("tid", "t1").Info("processing")

	var e entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "r1", e.Fields["run_id"])
	assert.Equal(t, "t1", e.Fields["tid"])
}
