package core

import (
	"testing"
	"time"

	"github.com/joinboard/join/pkg/models"
)

func TestSummarize(t *testing.T) {
	today := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	tasks := []models.Task{
		{ID: "1", Stage: models.StageTodo, Priority: models.PriorityUrgent, DueDate: "2026-05-20"},
		{ID: "2", Stage: models.StageProgress, Priority: models.PriorityUrgent, DueDate: "2026-05-12"},
		{ID: "3", Stage: models.StageDone, Priority: models.PriorityUrgent, DueDate: "2026-05-01"},
		{ID: "4", Category: models.CategoryUserStory, Priority: models.PriorityLow, DueDate: "2026-05-09"},
		{ID: "5", Stage: models.StageFeedback, Priority: models.PriorityMedium, DueDate: "bad"},
	}

	s := Summarize(tasks, today)
	if s.Total != 5 {
		t.Errorf("Total = %d", s.Total)
	}
	if s.PerStage[models.StageTodo] != 2 || s.PerStage[models.StageProgress] != 1 ||
		s.PerStage[models.StageFeedback] != 1 || s.PerStage[models.StageDone] != 1 {
		t.Errorf("PerStage = %v", s.PerStage)
	}
	if s.Urgent != 2 {
		t.Errorf("Urgent = %d, want 2 (done tasks excluded)", s.Urgent)
	}
	if s.NextUrgentDeadline != "2026-05-12" {
		t.Errorf("NextUrgentDeadline = %q", s.NextUrgentDeadline)
	}
	if s.Overdue != 1 {
		t.Errorf("Overdue = %d, want 1", s.Overdue)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, time.Now())
	if s.Total != 0 || s.NextUrgentDeadline != "" || len(s.PerStage) != 4 {
		t.Errorf("summary = %+v", s)
	}
}
