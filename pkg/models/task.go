package models

import (
	"sort"
	"strconv"
)

// Stage is the board column a task currently occupies.
type Stage string

const (
	StageTodo     Stage = "todo"
	StageProgress Stage = "progress"
	StageFeedback Stage = "feedback"
	StageDone     Stage = "done"
)

// Stages lists the board columns in display order.
var Stages = []Stage{StageTodo, StageProgress, StageFeedback, StageDone}

// Valid reports whether s is one of the four board columns.
func (s Stage) Valid() bool {
	switch s {
	case StageTodo, StageProgress, StageFeedback, StageDone:
		return true
	}
	return false
}

// Label returns the column heading shown on the board.
func (s Stage) Label() string {
	switch s {
	case StageTodo:
		return "To do"
	case StageProgress:
		return "In progress"
	case StageFeedback:
		return "Await feedback"
	case StageDone:
		return "Done"
	}
	return string(s)
}

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityUrgent || p == PriorityMedium || p == PriorityLow
}

// Category is the task classification label. It is distinct from Stage.
type Category string

const (
	CategoryTechnicalTask Category = "Technical Task"
	CategoryUserStory     Category = "User Story"
)

// Categories lists the labels accepted at task creation.
var Categories = []Category{CategoryTechnicalTask, CategoryUserStory}

// Valid reports whether c is one of the fixed category labels.
func (c Category) Valid() bool {
	return c == CategoryTechnicalTask || c == CategoryUserStory
}

// ContactRef is the snapshot of a contact embedded by value into a task.
type ContactRef struct {
	Name     string `json:"name" yaml:"name"`
	Color    string `json:"color" yaml:"color"`
	Initials string `json:"initials" yaml:"initials"`
}

// Subtask is a checklist item of a task. IsEditing only exists while an
// edit session renders the item and is never written to the store.
type Subtask struct {
	Title     string `json:"title" yaml:"title"`
	Completed bool   `json:"completed" yaml:"completed"`
	IsEditing bool   `json:"-" yaml:"-"`
}

// SubtaskMap maps a subtask id, unique within its task, to the subtask.
type SubtaskMap map[string]Subtask

// Clone returns a deep copy with IsEditing cleared.
func (m SubtaskMap) Clone() SubtaskMap {
	out := make(SubtaskMap, len(m))
	for id, st := range m {
		out[id] = Subtask{Title: st.Title, Completed: st.Completed}
	}
	return out
}

// SortedIDs returns the subtask ids in display order: numeric ids ascending,
// then all remaining ids lexically.
func (m SubtaskMap) SortedIDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return LessID(ids[i], ids[j]) })
	return ids
}

// LessID orders document keys: numeric keys ascending (timestamp tokens sort
// chronologically), then all remaining keys lexically.
func LessID(a, b string) bool {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return x < y
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// Progress returns the number of completed subtasks and the total.
func (m SubtaskMap) Progress() (done, total int) {
	for _, st := range m {
		if st.Completed {
			done++
		}
	}
	return done, len(m)
}

// Task is a card on the board. ID is the document key under tasks/ and is
// not part of the stored body.
type Task struct {
	ID               string       `json:"-" yaml:"id"`
	Title            string       `json:"title" yaml:"title"`
	Description      string       `json:"description,omitempty" yaml:"description,omitempty"`
	DueDate          string       `json:"dueDate" yaml:"due_date"`
	Priority         Priority     `json:"priority" yaml:"priority"`
	Category         Category     `json:"category" yaml:"category"`
	Stage            Stage        `json:"stage,omitempty" yaml:"stage,omitempty"`
	AssignedContacts []ContactRef `json:"assignedContacts" yaml:"assigned_contacts"`
	Subtasks         SubtaskMap   `json:"subtasks" yaml:"subtasks"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	if t.AssignedContacts != nil {
		out.AssignedContacts = append([]ContactRef(nil), t.AssignedContacts...)
	}
	if t.Subtasks != nil {
		out.Subtasks = t.Subtasks.Clone()
	}
	return out
}
