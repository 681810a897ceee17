package core

import (
	"time"

	"github.com/joinboard/join/pkg/models"
)

// BoardSummary holds the numbers of the summary page.
type BoardSummary struct {
	Total    int                  `json:"total" yaml:"total"`
	PerStage map[models.Stage]int `json:"per_stage" yaml:"per_stage"`
	Urgent   int                  `json:"urgent" yaml:"urgent"`
	// NextUrgentDeadline is the earliest due date among urgent tasks that
	// are not done, or "" when there is none.
	NextUrgentDeadline string `json:"next_urgent_deadline,omitempty" yaml:"next_urgent_deadline,omitempty"`
	Overdue            int    `json:"overdue" yaml:"overdue"`
}

// Summarize counts tasks per column and urgency. Tasks in the done column are
// never overdue. today is compared by calendar date.
func Summarize(tasks []models.Task, today time.Time) BoardSummary {
	s := BoardSummary{PerStage: make(map[models.Stage]int, len(models.Stages))}
	for _, st := range models.Stages {
		s.PerStage[st] = 0
	}
	todayStr := today.Format(dateLayout)

	for _, t := range tasks {
		s.Total++
		col := ColumnFor(t)
		s.PerStage[col]++
		if col == models.StageDone {
			continue
		}
		if t.Priority == models.PriorityUrgent {
			s.Urgent++
			if isDate(t.DueDate) && (s.NextUrgentDeadline == "" || t.DueDate < s.NextUrgentDeadline) {
				s.NextUrgentDeadline = t.DueDate
			}
		}
		if isDate(t.DueDate) && t.DueDate < todayStr {
			s.Overdue++
		}
	}
	return s
}

// isDate reports whether s is a YYYY-MM-DD date. Such strings order
// chronologically when compared as strings.
func isDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
