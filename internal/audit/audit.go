// Package audit records environment lifecycle events.
// Events are stored as JSON Lines (JSONL) files, one per environment.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventCreate    EventType = "create"
	EventStart     EventType = "start"
	EventRunning   EventType = "running"
	EventStop      EventType = "stop"
	EventStopped   EventType = "stopped"
	EventError     EventType = "error"
	EventReconcile EventType = "reconcile"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	Environment string    `json:"environment"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Details     string    `json:"details,omitempty"`
}

// Logger writes and reads audit events.
// Events are stored in {dir}/{id}.jsonl.
type Logger struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewLogger creates a new audit logger rooted at dir.
func NewLogger(dir string) *Logger {
	return &Logger{dir: dir, now: time.Now}
}

func (l *Logger) eventPath(id string) (string, error) {
	return config.SafePath(l.dir, id, ".jsonl")
}

// Log appends an event to the environment's audit log.
func (l *Logger) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	path, err := l.eventPath(event.Environment)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0750); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// LogTransition is a convenience method for a status change.
func (l *Logger) LogTransition(eventType EventType, id, from, to, details string) error {
	return l.Log(Event{
		Type:        eventType,
		Environment: id,
		From:        from,
		To:          to,
		Details:     details,
	})
}

// Events reads all events for an environment in chronological order.
func (l *Logger) Events(id string) ([]Event, error) {
	path, err := l.eventPath(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}
	return events, nil
}

// Remove deletes the audit log for an environment.
func (l *Logger) Remove(id string) error {
	path, err := l.eventPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
