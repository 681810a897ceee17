package observability

import (
	"fmt"
	"time"
)

// Metrics holds board activity derived from the event log.
type Metrics struct {
	TasksCreated    int            `json:"tasks_created"`
	TasksCompleted  int            `json:"tasks_completed"`
	TasksMoved      int            `json:"tasks_moved"`
	TasksDeleted    int            `json:"tasks_deleted"`
	SubtasksToggled int            `json:"subtasks_toggled"`
	MovesByStage    map[string]int `json:"moves_by_stage"`
	TasksByPriority map[string]int `json:"tasks_by_priority"`
	ContactsCreated int            `json:"contacts_created"`
	StoreFailures   int            `json:"store_failures"`
	EventCount      int            `json:"event_count"`
	OldestEvent     *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent     *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event since the given time. A move into the done
// column counts as a completion.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		MovesByStage:    make(map[string]int),
		TasksByPriority: make(map[string]int),
		EventCount:      len(events),
	}

	for i, event := range events {
		t := event.Time
		if i == 0 {
			m.OldestEvent = &t
		}
		m.NewestEvent = &t

		switch event.Type {
		case "task.created":
			m.TasksCreated++
			if p, ok := event.Data["priority"].(string); ok {
				m.TasksByPriority[p]++
			}
		case "task.moved":
			m.TasksMoved++
			if stage, ok := event.Data["new_stage"].(string); ok {
				m.MovesByStage[stage]++
				if stage == "done" {
					m.TasksCompleted++
				}
			}
		case "task.deleted":
			m.TasksDeleted++
		case "task.subtask_toggled":
			m.SubtasksToggled++
		case "contact.created":
			m.ContactsCreated++
		case "store.failed":
			m.StoreFailures++
		}
	}

	return m, nil
}
