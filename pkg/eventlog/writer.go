// Package eventlog appends run progress and results to daily rotated JSONL files.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event kinds.
const (
	KindProgress = "progress"
	KindResult   = "result"
)

// Event is one record in the run log.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	RunID     string         `json:"run_id"`
	Kind      string         `json:"kind"`
	Stage     string         `json:"stage,omitempty"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Status    string         `json:"status,omitempty"`
	PaperDir  string         `json:"paper_dir,omitempty"`
}

// Progress builds a progress event for a run.
func Progress(runID, stage, message string, details map[string]any) Event {
	return Event{RunID: runID, Kind: KindProgress, Stage: stage, Message: message, Details: details}
}

// Result builds a terminal result event for a run.
func Result(runID, status, paperDir string) Event {
	return Event{RunID: runID, Kind: KindResult, Status: status, PaperDir: paperDir}
}

// Writer handles structured logging of run events to daily rotated JSONL files.
type Writer struct {
	logDir      string
	keepFiles   int
	currentFile *os.File
	currentDate string
	mu          sync.Mutex
}

// NewWriter creates an event log writer with daily rotation in the given
// directory. keepFiles bounds how many rotated files are retained; zero or
// negative keeps everything.
func NewWriter(logDir string, keepFiles int) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	writer := &Writer{
		logDir:    logDir,
		keepFiles: keepFiles,
	}

	if err := writer.rotateIfNeeded(); err != nil {
		return nil, fmt.Errorf("initialize log file: %w", err)
	}

	return writer, nil
}

// WriteEvent appends one event to the current log file, rotating first if the
// date has changed. A zero timestamp is filled in with the current time.
func (w *Writer) WriteEvent(event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	if _, err := w.currentFile.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	if err := w.currentFile.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}

	return nil
}

func (w *Writer) rotateIfNeeded() error {
	newDate := time.Now().Format("2006-01-02")
	if w.currentFile == nil || w.currentDate != newDate {
		return w.rotate(newDate)
	}
	return nil
}

func (w *Writer) rotate(newDate string) error {
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("close current log file: %w", err)
		}
	}

	logPath := filepath.Join(w.logDir, fmt.Sprintf("runs-%s.jsonl", newDate))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logPath, err)
	}

	w.currentFile = file
	w.currentDate = newDate

	w.pruneOldFiles()

	return nil
}

// pruneOldFiles deletes the oldest rotated files beyond the retention count.
// Zero-padded dates make lexicographic order chronological.
func (w *Writer) pruneOldFiles() {
	if w.keepFiles <= 0 {
		return
	}
	files, err := ListLogFiles(w.logDir)
	if err != nil || len(files) <= w.keepFiles {
		return
	}
	for _, stale := range files[:len(files)-w.keepFiles] {
		os.Remove(stale)
	}
}

// Close closes the current log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile != nil {
		err := w.currentFile.Close()
		w.currentFile = nil
		if err != nil {
			return fmt.Errorf("close event log file: %w", err)
		}
	}

	return nil
}

// CurrentLogFile returns the path of the currently active log file.
func (w *Writer) CurrentLogFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return ""
	}

	return filepath.Join(w.logDir, fmt.Sprintf("runs-%s.jsonl", w.currentDate))
}

// ReadEvents reads and parses every event in a log file.
func ReadEvents(logFilePath string) ([]Event, error) {
	file, err := os.Open(logFilePath)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse event: %w", err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	return events, nil
}

// ListLogFiles returns all run log files in the directory, oldest first.
func ListLogFiles(logDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, "runs-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("list log files: %w", err)
	}
	return files, nil
}
