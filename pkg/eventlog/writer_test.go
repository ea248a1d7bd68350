package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadEvents(t *testing.T) {
	logDir := t.TempDir()

	writer, err := NewWriter(logDir, 0)
	require.NoError(t, err)
	defer writer.Close()

	require.NoError(t, writer.WriteEvent(Progress("run-1", "writing", "Drafting introduction", map[string]any{"section": "intro"})))
	require.NoError(t, writer.WriteEvent(Result("run-1", "success", "writing_outputs/paper_x")))

	logFile := writer.CurrentLogFile()
	require.NotEmpty(t, logFile)

	events, err := ReadEvents(logFile)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, KindProgress, events[0].Kind)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.Equal(t, "writing", events[0].Stage)
	assert.Equal(t, "Drafting introduction", events[0].Message)
	assert.Equal(t, "intro", events[0].Details["section"])
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp should be filled in")
	assert.WithinDuration(t, time.Now().UTC(), events[0].Timestamp, time.Minute)

	assert.Equal(t, KindResult, events[1].Kind)
	assert.Equal(t, "success", events[1].Status)
	assert.Equal(t, "writing_outputs/paper_x", events[1].PaperDir)
}

func TestAppendsAcrossWriters(t *testing.T) {
	logDir := t.TempDir()

	first, err := NewWriter(logDir, 0)
	require.NoError(t, err)
	require.NoError(t, first.WriteEvent(Progress("run-1", "planning", "Planning", nil)))
	require.NoError(t, first.Close())

	second, err := NewWriter(logDir, 0)
	require.NoError(t, err)
	require.NoError(t, second.WriteEvent(Progress("run-2", "writing", "Writing", nil)))
	logFile := second.CurrentLogFile()
	require.NoError(t, second.Close())

	events, err := ReadEvents(logFile)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.Equal(t, "run-2", events[1].RunID)
}

func TestPruneKeepsNewestFiles(t *testing.T) {
	logDir := t.TempDir()

	for _, date := range []string{"2020-01-01", "2020-01-02", "2020-01-03"} {
		stale := filepath.Join(logDir, fmt.Sprintf("runs-%s.jsonl", date))
		require.NoError(t, os.WriteFile(stale, []byte("{}\n"), 0o644))
	}

	writer, err := NewWriter(logDir, 2)
	require.NoError(t, err)
	defer writer.Close()

	files, err := ListLogFiles(logDir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(logDir, "runs-2020-01-03.jsonl"), files[0])
	assert.Equal(t, writer.CurrentLogFile(), files[1])
}

func TestReadEventsMissingFile(t *testing.T) {
	_, err := ReadEvents(filepath.Join(t.TempDir(), "runs-2020-01-01.jsonl"))
	assert.Error(t, err)
}

func TestCurrentLogFileAfterClose(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), 0)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	assert.Empty(t, writer.CurrentLogFile())
}
