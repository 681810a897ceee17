package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/internal/docstore"
	"github.com/joinboard/join/internal/logger"
	"github.com/joinboard/join/internal/observability"
	"github.com/joinboard/join/pkg/models"
)

// --- Fake implementations ---

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
	since   time.Time
}

func (f *fakeMetricsCalculator) Calculate(since time.Time) (*observability.Metrics, error) {
	f.since = since
	return f.metrics, nil
}

type fakeAlertEngine struct {
	alerts []observability.Alert
	seen   int
}

func (f *fakeAlertEngine) Evaluate(tasks []models.Task) ([]observability.Alert, error) {
	f.seen = len(tasks)
	return f.alerts, nil
}

// --- Test helpers ---

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// seedBoard returns a repository and contact book loaded from an in-memory
// document tree holding two tasks and one contact.
func seedBoard(t *testing.T) (core.TaskRepository, core.ContactBook, *docstore.Local) {
	t.Helper()

	tree := docstore.NewTree()
	root := map[string]any{
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
	}
	tree.Restore(root)
	store := docstore.NewLocal(tree)

	ctx := context.Background()
	repo := core.NewTaskRepository(store, nil, nil, logger.Discard())
	repo.LoadAll(ctx)
	book := core.NewContactBook(store, nil, logger.Discard())
	book.LoadAll(ctx)
	return repo, book, store
}

func newTestServer(t *testing.T, mc observability.MetricsCalculator, ae observability.AlertEngine) (*Server, core.TaskRepository) {
	t.Helper()
	repo, book, _ := seedBoard(t)
	srv := NewServer(repo, book, mc, ae, "test")
	srv.now = func() time.Time { return testNow }
	return srv, repo
}

// callTool connects a client to the server over in-memory transports and
// calls a tool.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()
	result := callToolAllowError(t, srv, toolName, args)
	if result == nil {
		t.Fatalf("call tool %s failed at the protocol level", toolName)
	}
	return result
}

// callToolAllowError returns nil when the call fails at the protocol level,
// e.g. on schema validation.
func callToolAllowError(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()
	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return nil
	}
	return result
}

// decode reads the structured output, falling back to the text content.
func decode(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()
	if result.StructuredContent != nil {
		data, _ := json.Marshal(result.StructuredContent)
		if err := json.Unmarshal(data, out); err == nil {
			return
		}
	}
	text := extractText(result)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("unmarshalling output: %v (text was: %s)", err, text)
	}
}

// extractText extracts the text from the first TextContent in a CallToolResult.
func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- Tests ---

func TestListTasksAll(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "list_tasks", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out listTasksOutput
	decode(t, result, &out)
	if out.Count != 2 {
		t.Errorf("expected 2 tasks, got %d", out.Count)
	}
}

func TestListTasksByStage(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "list_tasks", map[string]any{"stage": "todo"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out listTasksOutput
	decode(t, result, &out)
	if out.Count != 1 || out.Tasks[0].ID != "1767225600001" {
		t.Fatalf("expected the stage-less task in todo, got %+v", out.Tasks)
	}
}

func TestListTasksStageAndQuery(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "list_tasks", map[string]any{"stage": "progress", "query": "build"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out listTasksOutput
	decode(t, result, &out)
	if out.Count != 0 {
		t.Fatalf("expected no match, got %+v", out.Tasks)
	}
}

func TestListTasksInvalidStage(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "list_tasks", map[string]any{"stage": "backlog"})
	if !result.IsError {
		t.Fatal("expected error for unknown stage")
	}
}

func TestGetTask(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "get_task", map[string]any{"task_id": "1767225600000"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out taskOutput
	decode(t, result, &out)

	if out.Title != "Design login" || out.Stage != "progress" || out.Priority != "urgent" {
		t.Errorf("unexpected task %+v", out)
	}
	if out.SubtasksDone != 1 || out.SubtasksTotal != 2 {
		t.Errorf("expected 1/2 subtasks, got %d/%d", out.SubtasksDone, out.SubtasksTotal)
	}
	if len(out.Subtasks) != 2 || out.Subtasks[0].Title != "wireframe" {
		t.Errorf("expected ordered subtasks, got %+v", out.Subtasks)
	}
	if len(out.AssignedContacts) != 1 || out.AssignedContacts[0] != "Anna Berg" {
		t.Errorf("unexpected contacts %v", out.AssignedContacts)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "get_task", map[string]any{"task_id": "missing"})
	if !result.IsError {
		t.Fatal("expected error result for non-existent task")
	}
	if extractText(result) == "" {
		t.Fatal("expected error message in result content")
	}
}

func TestGetTaskMissingID(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callToolAllowError(t, srv, "get_task", map[string]any{})
	if result == nil {
		return
	}
	if !result.IsError {
		t.Fatal("expected error result for missing task_id")
	}
}

func TestMoveTask(t *testing.T) {
	srv, repo := newTestServer(t, nil, nil)

	result := callTool(t, srv, "move_task", map[string]any{"task_id": "1767225600001", "stage": "done"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	task, ok := repo.Get("1767225600001")
	if !ok || task.Stage != models.StageDone {
		t.Fatalf("expected task in done, got %+v", task)
	}
}

func TestMoveTaskInvalidStage(t *testing.T) {
	srv, repo := newTestServer(t, nil, nil)

	result := callTool(t, srv, "move_task", map[string]any{"task_id": "1767225600000", "stage": "archive"})
	if !result.IsError {
		t.Fatal("expected error for invalid stage")
	}
	if task, _ := repo.Get("1767225600000"); task.Stage != models.StageProgress {
		t.Errorf("expected task to stay in progress, got %s", task.Stage)
	}
}

func TestToggleSubtask(t *testing.T) {
	srv, repo := newTestServer(t, nil, nil)

	result := callTool(t, srv, "toggle_subtask", map[string]any{"task_id": "1767225600000", "subtask_id": "1"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out messageOutput
	decode(t, result, &out)
	if out.Message != "subtask 1 of task 1767225600000 is now completed" {
		t.Errorf("unexpected message %q", out.Message)
	}
	task, _ := repo.Get("1767225600000")
	if !task.Subtasks["1"].Completed {
		t.Fatal("expected subtask 1 to be completed")
	}
}

func TestToggleSubtaskUnknown(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "toggle_subtask", map[string]any{"task_id": "1767225600000", "subtask_id": "9"})
	if !result.IsError {
		t.Fatal("expected error for unknown subtask")
	}
}

func TestDeleteTask(t *testing.T) {
	srv, repo := newTestServer(t, nil, nil)

	result := callTool(t, srv, "delete_task", map[string]any{"task_id": "1767225600001"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	if _, ok := repo.Get("1767225600001"); ok {
		t.Fatal("expected task to be gone")
	}

	result = callTool(t, srv, "delete_task", map[string]any{"task_id": "1767225600001"})
	if !result.IsError {
		t.Fatal("expected error deleting a missing task")
	}
}

func TestGetSummary(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "get_summary", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out summaryOutput
	decode(t, result, &out)

	if out.Total != 2 || out.Urgent != 1 || out.Overdue != 1 {
		t.Errorf("unexpected summary %+v", out)
	}
	if out.NextUrgentDeadline != "2026-03-12" {
		t.Errorf("expected next urgent deadline 2026-03-12, got %q", out.NextUrgentDeadline)
	}
	if out.PerStage["todo"] != 1 || out.PerStage["progress"] != 1 || out.PerStage["done"] != 0 {
		t.Errorf("unexpected per-stage counts %v", out.PerStage)
	}
}

func TestListContacts(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "list_contacts", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out listContactsOutput
	decode(t, result, &out)
	if out.Count != 1 || out.Contacts[0].Initials != "AB" {
		t.Errorf("unexpected contacts %+v", out.Contacts)
	}
}

func TestGetMetrics(t *testing.T) {
	now := time.Now().UTC()
	mc := &fakeMetricsCalculator{
		metrics: &observability.Metrics{
			TasksCreated:    5,
			TasksCompleted:  3,
			MovesByStage:    map[string]int{"progress": 2, "done": 3},
			TasksByPriority: map[string]int{"urgent": 1, "low": 4},
			EventCount:      42,
			OldestEvent:     &now,
			NewestEvent:     &now,
		},
	}
	srv, _ := newTestServer(t, mc, nil)

	result := callTool(t, srv, "get_metrics", map[string]any{"since": "24h"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var m metricsOutput
	decode(t, result, &m)
	if m.TasksCreated != 5 || m.EventCount != 42 || m.MovesByStage["done"] != 3 {
		t.Errorf("unexpected metrics %+v", m)
	}
	if !mc.since.Equal(testNow.Add(-24 * time.Hour)) {
		t.Errorf("expected since %v, got %v", testNow.Add(-24*time.Hour), mc.since)
	}
}

func TestGetMetricsDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "get_metrics", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when metrics calculator is nil")
	}
}

func TestGetAlerts(t *testing.T) {
	ae := &fakeAlertEngine{
		alerts: []observability.Alert{{
			ID:          "overdue-1767225600001",
			Condition:   "task_overdue",
			Severity:    observability.SeverityHigh,
			Message:     "task \"Fix build\" (1767225600001) is 9 day(s) overdue",
			TriggeredAt: testNow,
		}},
	}
	srv, _ := newTestServer(t, nil, ae)

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out getAlertsOutput
	decode(t, result, &out)
	if out.Count != 1 || out.Alerts[0].Severity != "high" {
		t.Errorf("unexpected alerts %+v", out)
	}
	if ae.seen != 2 {
		t.Errorf("expected the engine to see 2 tasks, saw %d", ae.seen)
	}
}

func TestGetAlertsDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when alert engine is nil")
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"7d", testNow.AddDate(0, 0, -7), false},
		{"30d", testNow.AddDate(0, 0, -30), false},
		{"24h", testNow.Add(-24 * time.Hour), false},
		{"", time.Time{}, true},
		{"x", time.Time{}, true},
		{"7x", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSince(tt.input, testNow)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSince(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseSince(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestToolsSeeWritesFromOtherClients(t *testing.T) {
	repo, book, store := seedBoard(t)
	srv := NewServer(repo, book, nil, nil, "test")
	srv.now = func() time.Time { return testNow }
	ctx := context.Background()

	// Another client moves a task to done and adds one.
	moved := map[string]any{
		"title":    "Design login",
		"dueDate":  "2026-03-12",
		"priority": "urgent",
		"category": "User Story",
		"stage":    "done",
		"subtasks": map[string]any{
			"0": map[string]any{"title": "wireframe", "completed": true},
			"1": map[string]any{"title": "review", "completed": false},
		},
	}
	if _, err := store.Put(ctx, "tasks/1767225600000", moved); err != nil {
		t.Fatalf("Put: %v", err)
	}
	added := map[string]any{"title": "Write release notes", "dueDate": "2026-03-20", "category": "User Story"}
	if _, err := store.Put(ctx, "tasks/1767225600002", added); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var list listTasksOutput
	decode(t, callTool(t, srv, "list_tasks", map[string]any{}), &list)
	if list.Count != 3 {
		t.Errorf("expected 3 tasks after another client added one, got %d", list.Count)
	}

	result := callTool(t, srv, "toggle_subtask", map[string]any{"task_id": "1767225600000", "subtask_id": "1"})
	if result.IsError {
		t.Fatalf("toggle_subtask: %s", extractText(result))
	}
	raw, err := store.Get(ctx, "tasks/1767225600000/stage")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(raw) != `"done"` {
		t.Errorf("toggle should keep the stored stage, got %s", raw)
	}
}
