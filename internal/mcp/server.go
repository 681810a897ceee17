// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the join board as MCP tools for AI assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/internal/observability"
	"github.com/joinboard/join/pkg/models"
)

// Server wraps the board services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	tasks       core.TaskRepository
	contacts    core.ContactBook
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
	now         func() time.Time
}

// NewServer creates a new MCP server. contacts, metricsCalc and alertEngine
// may be nil; the matching tools then report that they are unavailable.
func NewServer(tasks core.TaskRepository, contacts core.ContactBook, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		tasks:       tasks,
		contacts:    contacts,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
		now:         time.Now,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "join", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves over stdio, blocking until the client disconnects or the context
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task id (the document key under tasks/)"`
}

type subtaskOutput struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type taskOutput struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	DueDate          string          `json:"due_date"`
	Priority         string          `json:"priority"`
	Category         string          `json:"category"`
	Stage            string          `json:"stage"`
	AssignedContacts []string        `json:"assigned_contacts,omitempty"`
	Subtasks         []subtaskOutput `json:"subtasks,omitempty"`
	SubtasksDone     int             `json:"subtasks_done"`
	SubtasksTotal    int             `json:"subtasks_total"`
}

type listTasksInput struct {
	Stage string `json:"stage,omitempty" jsonschema:"filter by board column (todo, progress, feedback, done)"`
	Query string `json:"query,omitempty" jsonschema:"case-insensitive search in title and description"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type moveTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task id"`
	Stage  string `json:"stage" jsonschema:"required,the target column (todo, progress, feedback, done)"`
}

type toggleSubtaskInput struct {
	TaskID    string `json:"task_id" jsonschema:"required,the task id"`
	SubtaskID string `json:"subtask_id" jsonschema:"required,the subtask id within the task"`
}

type deleteTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task id"`
}

type messageOutput struct {
	Message string `json:"message"`
}

type getSummaryInput struct{}

type summaryOutput struct {
	Total              int            `json:"total"`
	PerStage           map[string]int `json:"per_stage"`
	Urgent             int            `json:"urgent"`
	NextUrgentDeadline string         `json:"next_urgent_deadline,omitempty"`
	Overdue            int            `json:"overdue"`
}

type listContactsInput struct{}

type contactOutput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Initials string `json:"initials"`
}

type listContactsOutput struct {
	Contacts []contactOutput `json:"contacts"`
	Count    int             `json:"count"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
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
	OldestEvent     string         `json:"oldest_event,omitempty"`
	NewestEvent     string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List board tasks with an optional column filter and search query.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get a task by id, including its subtasks and assigned contacts.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "move_task",
		Description: "Move a task to another board column. Valid columns: todo, progress, feedback, done.",
	}, s.handleMoveTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "toggle_subtask",
		Description: "Flip the completed flag of one subtask.",
	}, s.handleToggleSubtask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task from the board.",
	}, s.handleDeleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_summary",
		Description: "Get task counts per column, urgent and overdue counts and the next urgent deadline.",
	}, s.handleGetSummary)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_contacts",
		Description: "List contacts sorted by name.",
	}, s.handleListContacts)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get board activity from the event log: tasks created, moved, completed and deleted.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (overdue tasks, urgent tasks due soon, urgent load, store failures).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(ctx context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	if input.Stage != "" && !models.Stage(input.Stage).Valid() {
		return errorResult(fmt.Sprintf("invalid stage %q: must be one of todo, progress, feedback, done", input.Stage)), listTasksOutput{}, nil
	}
	s.tasks.LoadAll(ctx)

	var tasks []models.Task
	switch {
	case input.Stage != "":
		stage := models.Stage(input.Stage)
		tasks = s.tasks.ByStage(stage)
	case input.Query != "":
		tasks = s.tasks.Search(input.Query)
	default:
		tasks = s.tasks.All()
	}

	if input.Stage != "" && input.Query != "" {
		matches := make(map[string]bool)
		for _, t := range s.tasks.Search(input.Query) {
			matches[t.ID] = true
		}
		filtered := tasks[:0]
		for _, t := range tasks {
			if matches[t.ID] {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleGetTask(ctx context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	s.tasks.LoadAll(ctx)
	task, ok := s.tasks.Get(input.TaskID)
	if !ok {
		return errorResult(fmt.Sprintf("task %s not found", input.TaskID)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleMoveTask(ctx context.Context, _ *gomcp.CallToolRequest, input moveTaskInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), messageOutput{}, nil
	}
	if input.Stage == "" {
		return errorResult("stage is required"), messageOutput{}, nil
	}
	s.tasks.LoadAll(ctx)
	if _, ok := s.tasks.Get(input.TaskID); !ok {
		return errorResult(fmt.Sprintf("task %s not found", input.TaskID)), messageOutput{}, nil
	}

	if err := s.tasks.UpdateStage(ctx, input.TaskID, models.Stage(input.Stage)); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return errorResult(fmt.Sprintf("invalid stage %q: must be one of todo, progress, feedback, done", input.Stage)), messageOutput{}, nil
		}
		return errorResult(fmt.Sprintf("moving task %s: %s", input.TaskID, err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s moved to %s", input.TaskID, input.Stage)}, nil
}

func (s *Server) handleToggleSubtask(ctx context.Context, _ *gomcp.CallToolRequest, input toggleSubtaskInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.TaskID == "" || input.SubtaskID == "" {
		return errorResult("task_id and subtask_id are required"), messageOutput{}, nil
	}
	// ToggleSubtaskCompletion writes the whole task back.
	s.tasks.LoadAll(ctx)
	task, ok := s.tasks.Get(input.TaskID)
	if !ok {
		return errorResult(fmt.Sprintf("task %s not found", input.TaskID)), messageOutput{}, nil
	}
	if _, ok := task.Subtasks[input.SubtaskID]; !ok {
		return errorResult(fmt.Sprintf("subtask %s not found in task %s", input.SubtaskID, input.TaskID)), messageOutput{}, nil
	}

	if err := s.tasks.ToggleSubtaskCompletion(ctx, input.TaskID, input.SubtaskID); err != nil {
		return errorResult(fmt.Sprintf("toggling subtask %s: %s", input.SubtaskID, err)), messageOutput{}, nil
	}

	state := "open"
	if updated, ok := s.tasks.Get(input.TaskID); ok && updated.Subtasks[input.SubtaskID].Completed {
		state = "completed"
	}
	return nil, messageOutput{Message: fmt.Sprintf("subtask %s of task %s is now %s", input.SubtaskID, input.TaskID, state)}, nil
}

func (s *Server) handleDeleteTask(ctx context.Context, _ *gomcp.CallToolRequest, input deleteTaskInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), messageOutput{}, nil
	}
	s.tasks.LoadAll(ctx)
	if _, ok := s.tasks.Get(input.TaskID); !ok {
		return errorResult(fmt.Sprintf("task %s not found", input.TaskID)), messageOutput{}, nil
	}
	if err := s.tasks.Delete(ctx, input.TaskID); err != nil {
		return errorResult(fmt.Sprintf("deleting task %s: %s", input.TaskID, err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s deleted", input.TaskID)}, nil
}

func (s *Server) handleGetSummary(ctx context.Context, _ *gomcp.CallToolRequest, _ getSummaryInput) (*gomcp.CallToolResult, summaryOutput, error) {
	s.tasks.LoadAll(ctx)
	sum := core.Summarize(s.tasks.All(), s.now())
	out := summaryOutput{
		Total:              sum.Total,
		PerStage:           make(map[string]int, len(sum.PerStage)),
		Urgent:             sum.Urgent,
		NextUrgentDeadline: sum.NextUrgentDeadline,
		Overdue:            sum.Overdue,
	}
	for stage, n := range sum.PerStage {
		out.PerStage[string(stage)] = n
	}
	return nil, out, nil
}

func (s *Server) handleListContacts(ctx context.Context, _ *gomcp.CallToolRequest, _ listContactsInput) (*gomcp.CallToolResult, listContactsOutput, error) {
	if s.contacts == nil {
		return errorResult("contact book not available"), listContactsOutput{}, nil
	}
	contacts := s.contacts.LoadAll(ctx)
	out := listContactsOutput{
		Contacts: make([]contactOutput, len(contacts)),
		Count:    len(contacts),
	}
	for i, c := range contacts {
		out.Contacts[i] = contactOutput{
			ID:       c.ID,
			Name:     c.Name,
			Email:    c.Email,
			Phone:    c.Phone,
			Initials: c.Ref().Initials,
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := ParseSince(sinceStr, s.now())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TasksCreated:    metrics.TasksCreated,
		TasksCompleted:  metrics.TasksCompleted,
		TasksMoved:      metrics.TasksMoved,
		TasksDeleted:    metrics.TasksDeleted,
		SubtasksToggled: metrics.SubtasksToggled,
		MovesByStage:    metrics.MovesByStage,
		TasksByPriority: metrics.TasksByPriority,
		ContactsCreated: metrics.ContactsCreated,
		StoreFailures:   metrics.StoreFailures,
		EventCount:      metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(ctx context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (event log may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate(s.tasks.LoadAll(ctx))
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	done, total := t.Subtasks.Progress()
	out := taskOutput{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		DueDate:       t.DueDate,
		Priority:      string(t.Priority),
		Category:      string(t.Category),
		Stage:         string(core.ColumnFor(t)),
		SubtasksDone:  done,
		SubtasksTotal: total,
	}
	for _, c := range t.AssignedContacts {
		out.AssignedContacts = append(out.AssignedContacts, c.Name)
	}
	for _, id := range t.Subtasks.SortedIDs() {
		st := t.Subtasks[id]
		out.Subtasks = append(out.Subtasks, subtaskOutput{ID: id, Title: st.Title, Completed: st.Completed})
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		MovesByStage:    make(map[string]int),
		TasksByPriority: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a human-friendly duration string like "7d", "30d", or
// "24h" into the corresponding time before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
