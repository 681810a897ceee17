package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/internal/observability"
	"github.com/joinboard/join/pkg/models"
)

// Board services, set during app initialization in app.go.
var (
	Tasks    core.TaskRepository
	Contacts core.ContactBook
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)

// Config is the loaded configuration and BasePath the directory it was read
// from. Both are set in app.go.
var (
	Config   *models.GlobalConfig
	BasePath string
)

// now is the clock used for due-date validation and summaries.
var now = time.Now

// loadTasks refreshes the task cache from the store. A failed load leaves the
// board empty and is reported by the repository's logger.
func loadTasks(ctx context.Context) ([]models.Task, error) {
	if Tasks == nil {
		return nil, fmt.Errorf("task repository not initialized")
	}
	return Tasks.LoadAll(ctx), nil
}

// loadContacts refreshes the contact book from the store.
func loadContacts(ctx context.Context) ([]models.Contact, error) {
	if Contacts == nil {
		return nil, fmt.Errorf("contact book not initialized")
	}
	return Contacts.LoadAll(ctx), nil
}

// ctxOf returns the command's context, or a background context when the
// command runs outside Execute.
func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
