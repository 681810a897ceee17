package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/internal/docstore"
	"github.com/joinboard/join/internal/logger"
)

var testToday = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// seedBoard points the package services at an in-memory document tree
// holding two tasks and one contact. The previous services are restored when
// the test ends.
func seedBoard(t *testing.T) *docstore.Local {
	t.Helper()

	tree := docstore.NewTree()
	tree.Restore(map[string]any{
		"tasks": map[string]any{
			"1767225600000": map[string]any{
				"title":    "Design login",
				"dueDate":  "2026-03-12",
				"priority": "urgent",
				"category": "User Story",
				"stage":    "progress",
				"assignedContacts": []any{
					map[string]any{"name": "Anna Berg", "color": "#FF7A00", "initials": "AB"},
				},
				"subtasks": map[string]any{
					"0": map[string]any{"title": "wireframe", "completed": true},
					"1": map[string]any{"title": "review", "completed": false},
				},
			},
			"1767225600001": map[string]any{
				"title":    "Fix build",
				"dueDate":  "2026-03-01",
				"priority": "low",
				"category": "Technical Task",
			},
		},
		"contacts": map[string]any{
			"c1": map[string]any{"name": "Anna Berg", "email": "anna@example.com", "color": "#FF7A00"},
		},
	})
	store := docstore.NewLocal(tree)

	origTasks, origContacts, origNow := Tasks, Contacts, now
	t.Cleanup(func() {
		Tasks, Contacts, now = origTasks, origContacts, origNow
	})
	Tasks = core.NewTaskRepository(store, nil, nil, logger.Discard())
	Contacts = core.NewContactBook(store, nil, logger.Discard())
	now = func() time.Time { return testToday }
	return store
}

// runCmd runs a command's RunE with its output captured.
func runCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

// setFlag sets a package flag variable for the duration of a test.
func setFlag[T any](t *testing.T, p *T, v T) {
	t.Helper()
	orig := *p
	*p = v
	t.Cleanup(func() { *p = orig })
}
