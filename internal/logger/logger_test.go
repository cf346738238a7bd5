package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var info, errs bytes.Buffer
	SetWriters(&info, &errs)
	prev := GetLevel()
	t.Cleanup(func() {
		SetLevel(prev)
		SetWriters(os.Stdout, os.Stderr)
	})
	return &info, &errs
}

func TestLevelFiltering(t *testing.T) {
	info, errs := capture(t)
	SetLevel(WARN)

	Info("hidden")
	Warn("shown", 3)
	Error("broken")

	assert.NotContains(t, info.String(), "hidden")
	assert.Contains(t, info.String(), "[WARN] logger_test.go")
	assert.Contains(t, info.String(), "shown 3")
	assert.Contains(t, errs.String(), "[ERROR]")
	assert.Contains(t, errs.String(), "broken")
}

func TestObjectsRenderAsJSON(t *testing.T) {
	info, _ := capture(t)
	SetLevel(DEBUG)

	Debug("team", map[string]int{"elo": 1510})

	assert.Contains(t, info.String(), "[Object of type map[string]int]")
	assert.Contains(t, info.String(), `"elo": 1510`)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, WARN, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetLogOutputFile(t *testing.T) {
	path := t.TempDir() + "/oracle.log"
	require.NoError(t, SetLogOutput('f', path))
	t.Cleanup(func() {
		Close()
		SetWriters(os.Stdout, os.Stderr)
	})

	Info("written to file")
	require.NoError(t, Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "written to file")

	assert.Error(t, SetLogOutput('x', ""))
}
