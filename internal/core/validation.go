package core

import (
	"net/mail"
	"strings"
	"time"

	"github.com/joinboard/join/pkg/models"
)

// dateLayout is the wire format of Task.DueDate.
const dateLayout = "2006-01-02"

// TaskDraft carries the fields of the add-task form.
type TaskDraft struct {
	Title            string
	Description      string
	DueDate          string
	Priority         models.Priority
	Category         models.Category
	AssignedContacts []models.ContactRef
	Subtasks         []string
}

// ContactDraft carries the fields of the add-contact form.
type ContactDraft struct {
	Name  string
	Email string
	Phone string
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ValidateTaskDraft checks the required fields of a new task. today is the
// creation date; the due date may not precede it. An empty priority is
// accepted and later defaults to medium.
func ValidateTaskDraft(d TaskDraft, today time.Time) error {
	if isBlank(d.Title) {
		return &ValidationError{Field: "title", Message: "This field is required"}
	}
	if isBlank(d.DueDate) {
		return &ValidationError{Field: "dueDate", Message: "This field is required"}
	}
	due, err := time.ParseInLocation(dateLayout, strings.TrimSpace(d.DueDate), today.Location())
	if err != nil {
		return &ValidationError{Field: "dueDate", Message: "Use the format YYYY-MM-DD"}
	}
	y, m, dd := today.Date()
	if due.Before(time.Date(y, m, dd, 0, 0, 0, 0, today.Location())) {
		return &ValidationError{Field: "dueDate", Message: "Due date cannot be in the past"}
	}
	if d.Category == "" {
		return &ValidationError{Field: "category", Message: "This field is required"}
	}
	if !d.Category.Valid() {
		return &ValidationError{Field: "category", Message: "Select Technical Task or User Story"}
	}
	if d.Priority != "" && !d.Priority.Valid() {
		return &ValidationError{Field: "priority", Message: "Select urgent, medium or low"}
	}
	return nil
}

// ValidateContactDraft checks name and email of a new contact.
func ValidateContactDraft(d ContactDraft) error {
	if isBlank(d.Name) {
		return &ValidationError{Field: "name", Message: "This field is required"}
	}
	if isBlank(d.Email) {
		return &ValidationError{Field: "email", Message: "This field is required"}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(d.Email)); err != nil {
		return &ValidationError{Field: "email", Message: "Enter a valid email address"}
	}
	return nil
}
