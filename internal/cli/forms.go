package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/pkg/models"
)

// fieldCheck validates one field of a task draft by filling the others with
// valid values, so the form reports the error next to the right field.
func fieldCheck(field string, today time.Time, fill func(*core.TaskDraft)) error {
	d := core.TaskDraft{
		Title:    "x",
		DueDate:  today.Format("2006-01-02"),
		Category: models.CategoryUserStory,
	}
	fill(&d)
	var verr *core.ValidationError
	if err := core.ValidateTaskDraft(d, today); errors.As(err, &verr) && verr.Field == field {
		return errors.New(verr.Message)
	}
	return nil
}

// runTaskForm asks for a new task. contacts feed the assignee picker.
func runTaskForm(contacts []models.Contact, today time.Time) (core.TaskDraft, error) {
	var (
		draft    core.TaskDraft
		priority = string(models.PriorityMedium)
		category string
		assigned []string
		subtasks string
	)

	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Value(&draft.Title).
			Validate(func(s string) error {
				return fieldCheck("title", today, func(d *core.TaskDraft) { d.Title = s })
			}),
		huh.NewText().
			Title("Description").
			Value(&draft.Description),
		huh.NewInput().
			Title("Due date").
			Placeholder("YYYY-MM-DD").
			Value(&draft.DueDate).
			Validate(func(s string) error {
				return fieldCheck("dueDate", today, func(d *core.TaskDraft) { d.DueDate = s })
			}),
		huh.NewSelect[string]().
			Title("Priority").
			Options(
				huh.NewOption("Urgent", string(models.PriorityUrgent)),
				huh.NewOption("Medium", string(models.PriorityMedium)),
				huh.NewOption("Low", string(models.PriorityLow)),
			).
			Value(&priority),
		huh.NewSelect[string]().
			Title("Category").
			Options(
				huh.NewOption("Select task category", ""),
				huh.NewOption(string(models.CategoryTechnicalTask), string(models.CategoryTechnicalTask)),
				huh.NewOption(string(models.CategoryUserStory), string(models.CategoryUserStory)),
			).
			Value(&category).
			Validate(func(s string) error {
				return fieldCheck("category", today, func(d *core.TaskDraft) { d.Category = models.Category(s) })
			}),
	}

	if len(contacts) > 0 {
		opts := make([]huh.Option[string], 0, len(contacts))
		for _, c := range contacts {
			opts = append(opts, huh.NewOption(fmt.Sprintf("%s (%s)", c.Name, c.Ref().Initials), c.ID))
		}
		fields = append(fields, huh.NewMultiSelect[string]().
			Title("Assigned to").
			Options(opts...).
			Value(&assigned))
	}

	fields = append(fields, huh.NewText().
		Title("Subtasks").
		Description("One per line").
		Value(&subtasks))

	form := huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeCharm())
	if err := form.Run(); err != nil {
		return core.TaskDraft{}, fmt.Errorf("task form: %w", err)
	}

	draft.Priority = models.Priority(priority)
	draft.Category = models.Category(category)

	sel := core.NewContactSelection()
	byID := make(map[string]models.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}
	for _, id := range assigned {
		if c, ok := byID[id]; ok {
			sel.Add(c.Ref())
		}
	}
	draft.AssignedContacts = sel.List()

	for _, line := range strings.Split(subtasks, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			draft.Subtasks = append(draft.Subtasks, line)
		}
	}
	return draft, nil
}

// contactFieldCheck is fieldCheck for contact drafts.
func contactFieldCheck(field string, fill func(*core.ContactDraft)) error {
	d := core.ContactDraft{Name: "x", Email: "x@example.com"}
	fill(&d)
	var verr *core.ValidationError
	if err := core.ValidateContactDraft(d); errors.As(err, &verr) && verr.Field == field {
		return errors.New(verr.Message)
	}
	return nil
}

// runContactForm asks for a new contact.
func runContactForm() (core.ContactDraft, error) {
	var d core.ContactDraft
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&d.Name).
				Validate(func(s string) error {
					return contactFieldCheck("name", func(p *core.ContactDraft) { p.Name = s })
				}),
			huh.NewInput().
				Title("Email").
				Value(&d.Email).
				Validate(func(s string) error {
					return contactFieldCheck("email", func(p *core.ContactDraft) { p.Email = s })
				}),
			huh.NewInput().
				Title("Phone").
				Value(&d.Phone),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return core.ContactDraft{}, fmt.Errorf("contact form: %w", err)
	}
	return d, nil
}
