package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelsAndKeyValues(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Debug("hidden", "k", 1)
	Info("shown", "user", "alice", "count", 3)
	Error("failed", errors.New("boom"), "day", "2024-3-15")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "user=alice")
	assert.Contains(t, out, "count=3")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "err=boom")
	assert.Contains(t, out, "day=2024-3-15")
}

func TestOddKeyValueIsDropped(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("odd", "a", 1, "dangling")

	assert.Contains(t, buf.String(), "a=1")
	assert.NotContains(t, buf.String(), "BADKEY")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
