// Package report writes the JSONL audit trail of schema changes made by the
// store: every created table, added column, rebuild, backup and recovery step
// becomes one line an operator can replay after the fact. Summaries fold
// those lines back into a Markdown report.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventCreateTable EventType = "create_table"
	EventAddColumn   EventType = "add_column"
	EventCreateIndex EventType = "create_index"
	EventRebuild     EventType = "rebuild"
	EventDropTable   EventType = "drop_table"
	EventDataLoss    EventType = "data_loss"
	EventUnresolved  EventType = "unresolved"
	EventRecovery    EventType = "recovery"
	EventBackup      EventType = "backup"
	EventFatal       EventType = "fatal"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single schema-management event
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	Table     string            `json:"table,omitempty"`
	Column    string            `json:"column,omitempty"`
	Index     string            `json:"index,omitempty"`
	Path      string            `json:"path,omitempty"`
	Rows      int64             `json:"rows,omitempty"`
	Bytes     int64             `json:"bytes,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"` // in milliseconds
	Reason    string            `json:"reason,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("schema-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Append: two passes in the same second share a file
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogCreateTable logs a table creation
func (l *EventLogger) LogCreateTable(table string, indexes int) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventCreateTable,
		Table: table,
		Extra: map[string]string{
			"indexes": fmt.Sprintf("%d", indexes),
		},
	})
}

// LogAddColumn logs an additive column change
func (l *EventLogger) LogAddColumn(table, column string) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventAddColumn,
		Table:  table,
		Column: column,
	})
}

// LogCreateIndex logs an index creation
func (l *EventLogger) LogCreateIndex(table, index string) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventCreateIndex,
		Table: table,
		Index: index,
	})
}

// LogRebuild logs the outcome of an in-place table rebuild
func (l *EventLogger) LogRebuild(table string, rows int64, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventRebuild,
		Table:    table,
		Rows:     rows,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogDataLoss logs rows that could not be carried over by a rebuild
func (l *EventLogger) LogDataLoss(table string, rows int64, reason string) error {
	return l.Log(&Event{
		Level:  LevelWarning,
		Event:  EventDataLoss,
		Table:  table,
		Rows:   rows,
		Reason: reason,
	})
}

// LogUnresolved logs a mismatch left in place
func (l *EventLogger) LogUnresolved(table, column, reason string) error {
	return l.Log(&Event{
		Level:  LevelWarning,
		Event:  EventUnresolved,
		Table:  table,
		Column: column,
		Reason: reason,
	})
}

// LogDropTable logs removal of an undeclared table
func (l *EventLogger) LogDropTable(table string) error {
	return l.Log(&Event{
		Level: LevelWarning,
		Event: EventDropTable,
		Table: table,
	})
}

// LogRecovery logs a recovery state transition
func (l *EventLogger) LogRecovery(state string, err error) error {
	level := LevelWarning
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:  level,
		Event:  EventRecovery,
		Reason: state,
		Error:  errMsg,
	})
}

// LogBackup logs a database file backup
func (l *EventLogger) LogBackup(path string, bytes int64) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventBackup,
		Path:  path,
		Bytes: bytes,
	})
}

// LogFatal logs exhaustion of automatic recovery
func (l *EventLogger) LogFatal(backupPath string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: EventFatal,
		Path:  backupPath,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
