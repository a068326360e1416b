package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, lvl string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(lvl)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		Init("info")
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":    LevelDebug,
		" WARN ":   LevelWarn,
		"warning":  LevelWarn,
		"Error":    LevelError,
		"fatal":    LevelFatal,
		"nonsense": LevelInfo,
		"":         LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
	assert.Equal(t, "info", Level(42).String())
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "warn")
	assert.Equal(t, "warn", LevelString())

	Debugf("debug-msg")
	Infof("info-msg %d", 1)
	Infow("info-fields", Fields{"k": "v"})
	Warnf("warn-msg %s", "x")
	Errorf("error-msg")

	out := buf.String()
	assert.NotContains(t, out, "debug-msg")
	assert.NotContains(t, out, "info-")
	assert.Contains(t, out, "[WARN] warn-msg x")
	assert.Contains(t, out, "[ERROR] error-msg")
}

func TestFieldsRenderSortedAndQuoted(t *testing.T) {
	buf := capture(t, "info")

	Errorw("draft write failed", Fields{"op": "save", "draftId": "d-1", "err": "connection reset"})
	require.Contains(t, buf.String(), `[ERROR] draft write failed draftId=d-1 err="connection reset" op=save`)

	assert.Equal(t, "", Fields{}.String())
}
