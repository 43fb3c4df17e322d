// Package logging writes structured run events as JSONL. Each run gets
// its own event file named by run ID; errors are additionally mirrored
// into a shared errors file for quick triage across runs.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel maps a CLI string onto a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return Level(s)
	default:
		return LevelInfo
	}
}

// Category represents the subsystem generating the log
type Category string

const (
	CategorySession    Category = "session"
	CategoryStep       Category = "step"
	CategorySupervisor Category = "supervisor"
	CategoryCatalog    Category = "catalog"
	CategoryArtifact   Category = "artifact"
	CategoryDriver     Category = "driver"
)

// Event represents a structured log event
type Event struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      Level          `json:"level"`
	Category   Category       `json:"category"`
	EventType  string         `json:"type"`
	RunID      string         `json:"run_id,omitempty"`
	Collection string         `json:"collection,omitempty"`
	Step       string         `json:"step,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// Logger writes structured events to the run file and mirrors errors.
type Logger struct {
	runID     string
	runFile   *os.File
	errorFile *os.File
	mu        sync.Mutex
	minLevel  Level
}

// NewLogger creates a logger writing under baseDir for one run.
func NewLogger(baseDir, runID string) (*Logger, error) {
	runsDir := filepath.Join(baseDir, "runs")
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	runFile, err := os.OpenFile(
		filepath.Join(runsDir, runID+".jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	errorFile, err := os.OpenFile(
		filepath.Join(baseDir, "errors.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		runFile.Close()
		return nil, fmt.Errorf("open error log: %w", err)
	}

	return &Logger{
		runID:     runID,
		runFile:   runFile,
		errorFile: errorFile,
		minLevel:  LevelInfo,
	}, nil
}

// Nop returns a logger that discards everything; handy for tests.
func Nop() *Logger {
	return &Logger{minLevel: LevelError, runID: "nop"}
}

// SetMinLevel sets the minimum log level
func (l *Logger) SetMinLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// Log writes one event. Below-threshold events are dropped.
func (l *Logger) Log(event Event) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelRank[event.Level] < levelRank[l.minLevel] {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RunID = l.runID

	raw, err := json.Marshal(event)
	if err != nil {
		return
	}
	raw = append(raw, '\n')
	if l.runFile != nil {
		_, _ = l.runFile.Write(raw)
	}
	if event.Level == LevelError && l.errorFile != nil {
		_, _ = l.errorFile.Write(raw)
	}
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(cat Category, eventType, format string, args ...any) {
	l.Log(Event{Level: LevelDebug, Category: cat, EventType: eventType, Message: fmt.Sprintf(format, args...)})
}

// Infof logs a formatted info message.
func (l *Logger) Infof(cat Category, eventType, format string, args ...any) {
	l.Log(Event{Level: LevelInfo, Category: cat, EventType: eventType, Message: fmt.Sprintf(format, args...)})
}

// Warnf logs a formatted warning.
func (l *Logger) Warnf(cat Category, eventType, format string, args ...any) {
	l.Log(Event{Level: LevelWarn, Category: cat, EventType: eventType, Message: fmt.Sprintf(format, args...)})
}

// Errorf logs a formatted error, mirrored into the errors file.
func (l *Logger) Errorf(cat Category, eventType, format string, args ...any) {
	l.Log(Event{Level: LevelError, Category: cat, EventType: eventType, Message: fmt.Sprintf(format, args...)})
}

// Item logs an info event scoped to one work item.
func (l *Logger) Item(cat Category, eventType, collection, stepName string, details map[string]any) {
	l.Log(Event{
		Level:      LevelInfo,
		Category:   cat,
		EventType:  eventType,
		Collection: collection,
		Step:       stepName,
		Details:    details,
	})
}

// Close flushes and closes the underlying files.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var lastErr error
	if l.runFile != nil {
		if err := l.runFile.Close(); err != nil {
			lastErr = err
		}
		l.runFile = nil
	}
	if l.errorFile != nil {
		if err := l.errorFile.Close(); err != nil {
			lastErr = err
		}
		l.errorFile = nil
	}
	return lastErr
}
