package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `[2026-01-15 09:59:00] [INFO] Orchestrator created stores=3
[2026-01-15 10:00:01] [WARN] Store init failed store=docs error=refused
{"time":"2026-01-15T10:00:02Z","level":"INFO","msg":"Connection opened","store":"cache"}
[2026-01-15 10:00:03] [INFO] Connection opened store=docs
not a log line
`

func TestTailLinesKeepsLastN(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, tailLines(strings.NewReader(sampleLog), &out, 2, logFilter{}))
	assert.Equal(t, "[2026-01-15 10:00:03] [INFO] Connection opened store=docs\nnot a log line\n", out.String())
}

func TestTailLinesFiltersByStore(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, tailLines(strings.NewReader(sampleLog), &out, 10, logFilter{store: "docs"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Store init failed")
	assert.Contains(t, lines[1], "Connection opened")

	out.Reset()
	require.NoError(t, tailLines(strings.NewReader(sampleLog), &out, 10, logFilter{store: "cache"}))
	assert.Contains(t, out.String(), `"store":"cache"`)
}

func TestParseLogLine(t *testing.T) {
	ts, name := parseLogLine(`{"time":"2026-01-15T10:00:02Z","store":"cache"}`)
	assert.Equal(t, "cache", name)
	assert.True(t, ts.Equal(time.Date(2026, 1, 15, 10, 0, 2, 0, time.UTC)))

	ts, name = parseLogLine("[2026-01-15 10:00:01] [WARN] Store init failed store=docs")
	assert.Equal(t, "docs", name)
	assert.Equal(t, 10, ts.Hour())

	ts, name = parseLogLine("garbage")
	assert.True(t, ts.IsZero())
	assert.Empty(t, name)
}

func TestLogFilterSince(t *testing.T) {
	since := time.Date(2026, 1, 15, 10, 0, 2, 0, time.UTC)
	f := logFilter{since: since}
	assert.False(t, f.match(`{"time":"2026-01-15T10:00:01Z","msg":"old"}`))
	assert.True(t, f.match(`{"time":"2026-01-15T10:00:02Z","msg":"new"}`))
	assert.True(t, f.match("no timestamp"))
	assert.False(t, f.match(""))
}
