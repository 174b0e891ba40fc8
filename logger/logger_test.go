package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}

	return out
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Service: "gameserver", Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	log.Info("client connected", F("remote", "127.0.0.1:5000"), Err(errors.New("boom")))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "gameserver", lines[0]["service"])
	assert.Equal(t, "client connected", lines[0]["message"])
	assert.Equal(t, "127.0.0.1:5000", lines[0]["remote"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Contains(t, lines[0], "time")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Service: "s", Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)

	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept")
	log.Error("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Run("unknown level", func(t *testing.T) {
		_, err := New(Options{Level: "loud"})
		assert.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New(Options{Format: "xml"})
		assert.Error(t, err)
	})
}

func TestWith_AttachesFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Service: "s", Format: "json", Output: &buf})
	require.NoError(t, err)

	child := log.With(F("component", "registry"), F("conn_id", 7))
	child.Info("swept")
	log.Info("parent")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "registry", lines[0]["component"])
	assert.EqualValues(t, 7, lines[0]["conn_id"])
	assert.NotContains(t, lines[1], "component")
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("nothing")
	log.With(F("k", "v")).Error("nothing")
	assert.NoError(t, log.Close())
}

func TestNew_FileOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer

	log, err := New(Options{Service: "gameserver", Format: "json", Dir: dir, Output: &buf})
	require.NoError(t, err)

	log.Info("to both")
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())

	name := filepath.Join(dir, "gameserver_"+time.Now().Format(dateLayout)+".log")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestDailyFileWriter_Rotates(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDailyFileWriter("svc", dir)
	require.NoError(t, err)

	day := time.Date(2026, 1, 2, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return day }

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "svc_2026-01-02.log"), w.CurrentLogFile())

	day = day.Add(2 * time.Minute)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "svc_2026-01-03.log"), w.CurrentLogFile())

	require.NoError(t, w.Close())
	assert.Empty(t, w.CurrentLogFile())

	_, err = w.Write([]byte("late"))
	assert.Error(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "svc_2026-01-03.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))
}
