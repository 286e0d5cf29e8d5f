package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxbus-protocol/luxbus-go/pkg/buslog"
)

// writeSampleTrace creates a small trace file with one full exchange,
// one uncorrelated line, a state change, and an error.
func writeSampleTrace(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.ltrace")

	logger, err := buslog.NewFileLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	raw := 125
	latency := 40 * time.Millisecond

	logger.Log(buslog.Event{
		Timestamp: base,
		SessionID: "11111111-aaaa-bbbb-cccc-dddddddddddd",
		Direction: buslog.DirectionOut,
		Category:  buslog.CategoryCommand,
		Device:    "/dev/ttyUSB0",
		Command:   &buslog.CommandEvent{Text: " 18 01-1", Priority: "HIGH", Address: "01-1"},
	})
	logger.Log(buslog.Event{
		Timestamp: base.Add(latency),
		SessionID: "11111111-aaaa-bbbb-cccc-dddddddddddd",
		Direction: buslog.DirectionIn,
		Category:  buslog.CategoryLine,
		Device:    "/dev/ttyUSB0",
		Line: &buslog.LineEvent{
			Text: "18 125", Correlated: true, Address: "01-1",
			Raw: &raw, Latency: &latency,
		},
	})
	logger.Log(buslog.Event{
		Timestamp: base.Add(time.Second),
		SessionID: "11111111-aaaa-bbbb-cccc-dddddddddddd",
		Direction: buslog.DirectionIn,
		Category:  buslog.CategoryLine,
		Line:      &buslog.LineEvent{Text: "garbage", Correlated: false},
	})
	logger.Log(buslog.Event{
		Timestamp:   base.Add(2 * time.Second),
		SessionID:   "11111111-aaaa-bbbb-cccc-dddddddddddd",
		Category:    buslog.CategoryState,
		StateChange: &buslog.StateChangeEvent{OldState: "OPEN", NewState: "CLOSED", Reason: "close requested"},
	})
	logger.Log(buslog.Event{
		Timestamp: base.Add(3 * time.Second),
		SessionID: "22222222-aaaa-bbbb-cccc-dddddddddddd",
		Category:  buslog.CategoryError,
		Error:     &buslog.ErrorEventData{Message: "read failed", Context: "reader loop"},
	})

	return path
}

func TestViewFormatsEvents(t *testing.T) {
	path := writeSampleTrace(t)

	var out bytes.Buffer
	require.NoError(t, RunView([]string{path}, &out))

	text := out.String()
	assert.Contains(t, text, `Text: " 18 01-1"`)
	assert.Contains(t, text, "Priority: HIGH")
	assert.Contains(t, text, "Correlated to: 01-1")
	assert.Contains(t, text, "Raw value: 125")
	assert.Contains(t, text, "Uncorrelated (discarded)")
	assert.Contains(t, text, "OPEN -> CLOSED")
	assert.Contains(t, text, "Error: read failed")
	assert.Contains(t, text, "[sess:11111111]")
}

func TestViewFilters(t *testing.T) {
	path := writeSampleTrace(t)

	var out bytes.Buffer
	require.NoError(t, RunView([]string{"-category", "command", path}, &out))
	assert.Contains(t, out.String(), " 18 01-1")
	assert.NotContains(t, out.String(), "garbage")

	out.Reset()
	require.NoError(t, RunView([]string{"-direction", "in", "-address", "01-1", path}, &out))
	assert.Contains(t, out.String(), "18 125")
	assert.NotContains(t, out.String(), "Priority: HIGH")

	assert.Error(t, RunView([]string{"-direction", "sideways", path}, &out))
}

func TestStats(t *testing.T) {
	path := writeSampleTrace(t)

	stats, err := Collect(path)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalEvents)
	assert.Equal(t, 1, stats.Commands)
	assert.Equal(t, 2, stats.Lines)
	assert.Equal(t, 1, stats.Correlated)
	assert.Equal(t, 1, stats.StateEvents)
	assert.Equal(t, 1, stats.Errors)
	assert.Len(t, stats.Sessions, 2)

	as := stats.ByAddress["01-1"]
	require.NotNil(t, as)
	assert.Equal(t, 1, as.Commands)
	assert.Equal(t, 1, as.Replies)
	require.NotNil(t, as.LastRaw)
	assert.Equal(t, 125, *as.LastRaw)
	assert.Equal(t, 40*time.Millisecond, as.MaxLatency)

	var out bytes.Buffer
	require.NoError(t, RunStats([]string{path}, &out))
	assert.Contains(t, out.String(), "Events:       5")
	assert.Contains(t, out.String(), "01-1")
}

func TestFilterWritesNewFile(t *testing.T) {
	path := writeSampleTrace(t)
	outPath := filepath.Join(t.TempDir(), "filtered.ltrace")

	var out bytes.Buffer
	require.NoError(t, RunFilter([]string{
		"-session", "11111111-aaaa-bbbb-cccc-dddddddddddd",
		"-o", outPath, path,
	}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "Wrote 4 events"))

	stats, err := Collect(outPath)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalEvents)
	assert.Len(t, stats.Sessions, 1)
	assert.Equal(t, 0, stats.Errors)
}

func TestFilterRequiresOutput(t *testing.T) {
	path := writeSampleTrace(t)
	var out bytes.Buffer
	assert.Error(t, RunFilter([]string{path}, &out))
	assert.Error(t, RunFilter([]string{"-o", path, path}, &out))
}
