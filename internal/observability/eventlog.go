package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event is a single board event such as a task move or a failed store call.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN, ERROR
	Type    string         `json:"type"`  // e.g. "task.created", "task.moved"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventFilter specifies criteria for reading events. Zero fields match all.
type EventFilter struct {
	Since  *time.Time
	Until  *time.Time
	Type   string
	Level  string
	TaskID string
}

// EventLog defines the interface for writing and reading events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog implements EventLog using an append-only JSONL file.
type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog opens (creating if needed) the JSONL file at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, file: f}, nil
}

func (l *jsonlEventLog) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Read scans the file and returns the events matching filter, oldest first.
// Malformed lines are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if matchesEventFilter(event, filter) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}
	return events, nil
}

func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func matchesEventFilter(event Event, filter EventFilter) bool {
	if filter.Since != nil && event.Time.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && event.Time.After(*filter.Until) {
		return false
	}
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.Level != "" && event.Level != filter.Level {
		return false
	}
	if filter.TaskID != "" {
		if id, _ := event.Data["task_id"].(string); id != filter.TaskID {
			return false
		}
	}
	return true
}

// Recorder adapts an EventLog to the LogEvent(type, data) call used by the
// board services. It stamps the time, derives the level and writes a short
// human-readable message.
type Recorder struct {
	log EventLog
	now func() time.Time
}

// NewRecorder wraps log. A nil log makes every LogEvent a no-op.
func NewRecorder(log EventLog) *Recorder {
	return &Recorder{log: log, now: func() time.Time { return time.Now().UTC() }}
}

// LogEvent writes one event.
func (r *Recorder) LogEvent(eventType string, data map[string]any) error {
	if r == nil || r.log == nil {
		return nil
	}
	return r.log.Write(Event{
		Time:    r.now(),
		Level:   levelFor(eventType),
		Type:    eventType,
		Message: messageFor(eventType, data),
		Data:    data,
	})
}

func levelFor(eventType string) string {
	switch {
	case strings.HasSuffix(eventType, ".failed"):
		return "ERROR"
	case strings.HasSuffix(eventType, ".deleted"):
		return "WARN"
	}
	return "INFO"
}

func messageFor(eventType string, data map[string]any) string {
	id, _ := data["task_id"].(string)
	switch eventType {
	case "task.created":
		return fmt.Sprintf("task %s created", id)
	case "task.moved":
		return fmt.Sprintf("task %s moved from %v to %v", id, data["old_stage"], data["new_stage"])
	case "task.subtask_toggled":
		return fmt.Sprintf("subtask %v of task %s toggled", data["subtask_id"], id)
	case "task.updated":
		return fmt.Sprintf("task %s updated", id)
	case "task.deleted":
		return fmt.Sprintf("task %s deleted", id)
	case "contact.created":
		return fmt.Sprintf("contact %v created", data["name"])
	case "contact.deleted":
		return fmt.Sprintf("contact %v deleted", data["contact_id"])
	case "store.failed":
		return fmt.Sprintf("store call %v failed: %v", data["op"], data["error"])
	}
	return eventType
}
