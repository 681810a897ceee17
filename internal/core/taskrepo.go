package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/joinboard/join/pkg/models"
)

// TaskRepository is the in-memory cache of every task on the board and the
// only writer of task documents. Lookups that miss make mutations silent
// no-ops. Every write replaces the whole document.
type TaskRepository interface {
	// LoadAll re-fetches the tasks collection and replaces the cache. A failed
	// fetch is logged and leaves the cache empty.
	LoadAll(ctx context.Context) []models.Task
	Create(ctx context.Context, draft TaskDraft) (*models.Task, error)
	UpdateStage(ctx context.Context, taskID string, stage models.Stage) error
	ToggleSubtaskCompletion(ctx context.Context, taskID, subtaskID string) error
	Delete(ctx context.Context, taskID string) error
	Update(ctx context.Context, task models.Task) error

	Get(taskID string) (models.Task, bool)
	All() []models.Task
	ByStage(stage models.Stage) []models.Task
	Search(query string) []models.Task

	// MirrorSubtasks overwrites the cached subtasks of a task without writing
	// to the store.
	MirrorSubtasks(taskID string, subtasks models.SubtaskMap)
	// OnDelete registers a listener called with the id of every task removed
	// by Delete.
	OnDelete(fn func(taskID string))
}

// taskRepository implements TaskRepository over a DocumentStore.
type taskRepository struct {
	store  DocumentStore
	ids    IDGenerator
	events EventLogger
	log    *log.Logger
	now    func() time.Time

	mu        sync.RWMutex
	tasks     []models.Task
	listeners []func(string)
}

// NewTaskRepository creates a TaskRepository. events and logger may be nil.
func NewTaskRepository(store DocumentStore, ids IDGenerator, events EventLogger, logger *log.Logger) TaskRepository {
	if ids == nil {
		ids = NewIDGenerator(nil)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &taskRepository{
		store:  store,
		ids:    ids,
		events: events,
		log:    logger,
		now:    time.Now,
	}
}

func (r *taskRepository) LoadAll(ctx context.Context) []models.Task {
	raw, err := r.store.Get(ctx, tasksPath)
	if err != nil {
		r.log.Error("loading tasks", "err", err)
		r.emit("store.failed", map[string]any{"op": "load_tasks", "error": err.Error()})
		r.replace(nil)
		return nil
	}

	tasks, skipped, err := decodeTasks(raw)
	if err != nil {
		r.log.Error("decoding tasks", "err", err)
		r.replace(nil)
		return nil
	}
	if len(skipped) > 0 {
		r.log.Warn("skipped undecodable tasks", "ids", skipped)
	}

	r.replace(tasks)
	r.log.Debug("tasks loaded", "count", len(tasks))
	return r.All()
}

func (r *taskRepository) replace(tasks []models.Task) {
	r.mu.Lock()
	r.tasks = tasks
	r.mu.Unlock()
}

// Create validates the draft, appends the new task to the cache and then
// writes it at tasks/{id}. The cache entry stays when the write fails.
func (r *taskRepository) Create(ctx context.Context, draft TaskDraft) (*models.Task, error) {
	if err := ValidateTaskDraft(draft, r.now()); err != nil {
		return nil, err
	}

	priority := draft.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	task := models.Task{
		ID:               r.ids.NewID(),
		Title:            strings.TrimSpace(draft.Title),
		Description:      strings.TrimSpace(draft.Description),
		DueDate:          strings.TrimSpace(draft.DueDate),
		Priority:         priority,
		Category:         draft.Category,
		Stage:            models.StageTodo,
		AssignedContacts: dedupRefs(draft.AssignedContacts),
		Subtasks:         subtasksFromTitles(draft.Subtasks),
	}

	r.mu.Lock()
	r.tasks = append(r.tasks, task.Clone())
	r.mu.Unlock()

	if _, err := r.store.Put(ctx, taskPath(task.ID), wireTask(task)); err != nil {
		r.log.Error("creating task", "id", task.ID, "err", err)
		r.emit("store.failed", map[string]any{"op": "create_task", "task_id": task.ID, "error": err.Error()})
		return nil, networkError("creating task", err)
	}

	r.emit("task.created", map[string]any{
		"task_id":  task.ID,
		"title":    task.Title,
		"priority": string(task.Priority),
		"due_date": task.DueDate,
	})
	return &task, nil
}

// UpdateStage writes the task with its new stage and refreshes the cache from
// the store. A failed write leaves the cache as it was.
func (r *taskRepository) UpdateStage(ctx context.Context, taskID string, stage models.Stage) error {
	if !stage.Valid() {
		return &ValidationError{Field: "stage", Message: fmt.Sprintf("unknown stage %q", stage)}
	}

	task, ok := r.Get(taskID)
	if !ok {
		return nil
	}
	old := ColumnFor(task)
	task.Stage = stage

	if _, err := r.store.Put(ctx, taskPath(taskID), wireTask(task)); err != nil {
		r.log.Error("moving task", "id", taskID, "stage", stage, "err", err)
		r.emit("store.failed", map[string]any{"op": "move_task", "task_id": taskID, "error": err.Error()})
		return networkError("moving task", err)
	}

	r.emit("task.moved", map[string]any{
		"task_id":   taskID,
		"old_stage": string(old),
		"new_stage": string(stage),
	})
	r.LoadAll(ctx)
	return nil
}

// ToggleSubtaskCompletion flips one subtask in the cache and writes the task.
// The flip is kept when the write fails.
func (r *taskRepository) ToggleSubtaskCompletion(ctx context.Context, taskID, subtaskID string) error {
	r.mu.Lock()
	idx := r.indexOf(taskID)
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	subtasks := NormalizeSubtasks(r.tasks[idx].Subtasks)
	st, ok := subtasks[subtaskID]
	if !ok {
		r.tasks[idx].Subtasks = subtasks
		r.mu.Unlock()
		return nil
	}
	st.Completed = !st.Completed
	subtasks[subtaskID] = st
	r.tasks[idx].Subtasks = subtasks
	task := r.tasks[idx].Clone()
	r.mu.Unlock()

	if _, err := r.store.Put(ctx, taskPath(taskID), wireTask(task)); err != nil {
		r.log.Error("toggling subtask", "id", taskID, "subtask", subtaskID, "err", err)
		r.emit("store.failed", map[string]any{"op": "toggle_subtask", "task_id": taskID, "error": err.Error()})
		return networkError("toggling subtask", err)
	}

	r.emit("task.subtask_toggled", map[string]any{
		"task_id":    taskID,
		"subtask_id": subtaskID,
		"completed":  st.Completed,
	})
	return nil
}

// Delete removes the task document and, on success, the cache entry. Delete
// listeners run after the cache is updated.
func (r *taskRepository) Delete(ctx context.Context, taskID string) error {
	if _, ok := r.Get(taskID); !ok {
		return nil
	}

	if err := r.store.Delete(ctx, taskPath(taskID)); err != nil {
		r.log.Error("deleting task", "id", taskID, "err", err)
		r.emit("store.failed", map[string]any{"op": "delete_task", "task_id": taskID, "error": err.Error()})
		return networkError("deleting task", err)
	}

	r.mu.Lock()
	if idx := r.indexOf(taskID); idx >= 0 {
		r.tasks = append(r.tasks[:idx], r.tasks[idx+1:]...)
	}
	listeners := append([]func(string){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(taskID)
	}
	r.emit("task.deleted", map[string]any{"task_id": taskID})
	return nil
}

// Update writes the full task document and refreshes the cache.
func (r *taskRepository) Update(ctx context.Context, task models.Task) error {
	if _, ok := r.Get(task.ID); !ok {
		return nil
	}
	if isBlank(task.Title) {
		return &ValidationError{Field: "title", Message: "This field is required"}
	}

	if _, err := r.store.Put(ctx, taskPath(task.ID), wireTask(task)); err != nil {
		r.log.Error("updating task", "id", task.ID, "err", err)
		r.emit("store.failed", map[string]any{"op": "update_task", "task_id": task.ID, "error": err.Error()})
		return networkError("updating task", err)
	}

	r.emit("task.updated", map[string]any{"task_id": task.ID})
	r.LoadAll(ctx)
	return nil
}

func (r *taskRepository) Get(taskID string) (models.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if idx := r.indexOf(taskID); idx >= 0 {
		return r.tasks[idx].Clone(), true
	}
	return models.Task{}, false
}

func (r *taskRepository) All() []models.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Task, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = t.Clone()
	}
	return out
}

// ByStage returns the tasks shown in a board column, including tasks without
// a stored stage that fall back to the column.
func (r *taskRepository) ByStage(stage models.Stage) []models.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Task
	for _, t := range r.tasks {
		if ColumnFor(t) == stage {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Search returns tasks whose title or description contains query, ignoring
// case. An empty query matches everything.
func (r *taskRepository) Search(query string) []models.Task {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return r.All()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Task
	for _, t := range r.tasks {
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (r *taskRepository) MirrorSubtasks(taskID string, subtasks models.SubtaskMap) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx := r.indexOf(taskID); idx >= 0 {
		r.tasks[idx].Subtasks = subtasks.Clone()
	}
}

func (r *taskRepository) OnDelete(fn func(taskID string)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// indexOf must be called with r.mu held.
func (r *taskRepository) indexOf(taskID string) int {
	for i, t := range r.tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

func (r *taskRepository) emit(eventType string, data map[string]any) {
	if r.events == nil {
		return
	}
	if err := r.events.LogEvent(eventType, data); err != nil {
		r.log.Warn("recording event", "type", eventType, "err", err)
	}
}

// dedupRefs keeps the first ref of each name in order.
func dedupRefs(refs []models.ContactRef) []models.ContactRef {
	sel := NewContactSelection()
	for _, ref := range refs {
		sel.Add(ref)
	}
	return sel.List()
}
