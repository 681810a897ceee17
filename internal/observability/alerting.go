package observability

import (
	"fmt"
	"sort"
	"time"

	"github.com/joinboard/join/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	// UrgentOpen is the largest number of open urgent tasks tolerated.
	UrgentOpen int `yaml:"urgent_threshold" json:"urgent_threshold"`
	// DueSoonDays flags urgent tasks due within this many days.
	DueSoonDays int `yaml:"due_soon_days" json:"due_soon_days"`
	// StoreFailures is the number of failed store calls within
	// StoreFailureWindow that raises an alert.
	StoreFailures      int           `yaml:"store_failures" json:"store_failures"`
	StoreFailureWindow time.Duration `yaml:"store_failure_window" json:"store_failure_window"`
}

// DefaultAlertThresholds returns the default thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		UrgentOpen:         5,
		DueSoonDays:        2,
		StoreFailures:      3,
		StoreFailureWindow: time.Hour,
	}
}

// AlertEngine evaluates alert conditions against the board and the event log.
type AlertEngine interface {
	Evaluate(tasks []models.Task) ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine. eventLog may be nil, which disables
// the store failure check.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate returns every triggered alert, highest severity first.
func (ae *alertEngine) Evaluate(tasks []models.Task) ([]Alert, error) {
	now := ae.now()
	var alerts []Alert

	alerts = append(alerts, ae.checkOverdue(tasks, now)...)
	alerts = append(alerts, ae.checkDueSoon(tasks, now)...)
	alerts = append(alerts, ae.checkUrgentLoad(tasks, now)...)

	failures, err := ae.checkStoreFailures(now)
	if err != nil {
		return nil, fmt.Errorf("checking store failures: %w", err)
	}
	alerts = append(alerts, failures...)

	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank(alerts[i].Severity) < severityRank(alerts[j].Severity)
	})
	return alerts, nil
}

// open reports whether a task still needs work. Tasks without a stage are
// open.
func isOpen(t models.Task) bool {
	return t.Stage != models.StageDone
}

func dueDate(t models.Task) (time.Time, bool) {
	d, err := time.Parse("2006-01-02", t.DueDate)
	return d, err == nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// checkOverdue flags open tasks whose due date has passed.
func (ae *alertEngine) checkOverdue(tasks []models.Task, now time.Time) []Alert {
	today := startOfDay(now)
	var alerts []Alert
	for _, t := range tasks {
		due, ok := dueDate(t)
		if !ok || !isOpen(t) || !due.Before(today) {
			continue
		}
		days := int(today.Sub(due).Hours() / 24)
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("overdue-%s", t.ID),
			Condition:   "task_overdue",
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("task %q (%s) is %d day(s) overdue", t.Title, t.ID, days),
			TriggeredAt: now,
		})
	}
	return alerts
}

// checkDueSoon flags open urgent tasks due within the threshold.
func (ae *alertEngine) checkDueSoon(tasks []models.Task, now time.Time) []Alert {
	today := startOfDay(now)
	limit := today.AddDate(0, 0, ae.thresholds.DueSoonDays)
	var alerts []Alert
	for _, t := range tasks {
		due, ok := dueDate(t)
		if !ok || !isOpen(t) || t.Priority != models.PriorityUrgent {
			continue
		}
		if due.Before(today) || due.After(limit) {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("due-soon-%s", t.ID),
			Condition:   "urgent_due_soon",
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("urgent task %q (%s) is due %s", t.Title, t.ID, t.DueDate),
			TriggeredAt: now,
		})
	}
	return alerts
}

// checkUrgentLoad alerts when too many urgent tasks are open at once.
func (ae *alertEngine) checkUrgentLoad(tasks []models.Task, now time.Time) []Alert {
	count := 0
	for _, t := range tasks {
		if isOpen(t) && t.Priority == models.PriorityUrgent {
			count++
		}
	}
	if count <= ae.thresholds.UrgentOpen {
		return nil
	}
	return []Alert{{
		ID:          "urgent-load",
		Condition:   "too_many_urgent",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("%d urgent tasks are open, exceeding the maximum of %d", count, ae.thresholds.UrgentOpen),
		TriggeredAt: now,
	}}
}

// checkStoreFailures alerts when the document store keeps failing.
func (ae *alertEngine) checkStoreFailures(now time.Time) ([]Alert, error) {
	if ae.eventLog == nil || ae.thresholds.StoreFailures <= 0 {
		return nil, nil
	}
	since := now.Add(-ae.thresholds.StoreFailureWindow)
	events, err := ae.eventLog.Read(EventFilter{Type: "store.failed", Since: &since})
	if err != nil {
		return nil, err
	}
	if len(events) < ae.thresholds.StoreFailures {
		return nil, nil
	}
	return []Alert{{
		ID:          "store-failures",
		Condition:   "store_unreachable",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("%d store calls failed in the last %s", len(events), ae.thresholds.StoreFailureWindow),
		TriggeredAt: now,
	}}, nil
}

func severityRank(s AlertSeverity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}
