package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_FiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN)

	l.Info("ORDER", "hidden")
	l.Warn("ORDER", "visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "[ORDER")
}

func TestLogger_CallerIsUserCode(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG)

	l.LogOrder("ADMIT", "ORD-20240101-001", "committed")

	assert.Contains(t, buf.String(), "logger_test.go")
	assert.Contains(t, buf.String(), "[ADMIT] ORD-20240101-001 - committed")
}

func TestLogger_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	l, err := NewLogger(Options{Service: "pos", Dir: dir, Console: &console, NoColor: true})
	require.NoError(t, err)

	l.LogAPI("POST", "/api/orders", 201, 15*time.Millisecond)
	l.Close()

	path := filepath.Join(dir, "pos-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "API", entry.Category)
	assert.Equal(t, "pos", entry.Service)
	assert.Contains(t, entry.Message, "POST /api/orders - 201")
}

func TestLogger_FatalExits(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("CONFIG", "missing DSN")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "missing DSN")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" WARNING "))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}
