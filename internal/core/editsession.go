package core

import (
	"context"
	"strings"

	"github.com/joinboard/join/pkg/models"
)

// SubtaskEntry is one row of an edit session in display order.
type SubtaskEntry struct {
	ID string
	models.Subtask
}

// EditSession is the working copy of a task's subtasks while the edit
// overlay is open. Every mutation is mirrored straight into the repository's
// cached task, so the board shows edits before they are committed and
// Discard does not revert them.
type EditSession struct {
	repo     TaskRepository
	ids      IDGenerator
	taskID   string
	subtasks models.SubtaskMap
}

// OpenEditSession starts a session for taskID with a normalized copy of its
// subtasks. It reports false when the task is not cached.
func OpenEditSession(repo TaskRepository, taskID string) (*EditSession, bool) {
	task, ok := repo.Get(taskID)
	if !ok {
		return nil, false
	}
	return &EditSession{
		repo:     repo,
		ids:      NewIDGenerator(nil),
		taskID:   taskID,
		subtasks: NormalizeSubtasks(task.Subtasks),
	}, true
}

// TaskID returns the id of the task being edited.
func (s *EditSession) TaskID() string {
	return s.taskID
}

// StartEdit switches one entry into edit mode and every other entry out of it.
func (s *EditSession) StartEdit(id string) {
	if _, ok := s.subtasks[id]; !ok {
		return
	}
	for k, st := range s.subtasks {
		st.IsEditing = k == id
		s.subtasks[k] = st
	}
	s.mirror()
}

// AddSubtask appends a subtask and returns its id. Blank titles are ignored.
func (s *EditSession) AddSubtask(title string) (string, bool) {
	if isBlank(title) {
		return "", false
	}
	id := s.ids.NewID()
	for {
		if _, taken := s.subtasks[id]; !taken {
			break
		}
		id = s.ids.NewID()
	}
	s.subtasks[id] = models.Subtask{Title: strings.TrimSpace(title)}
	s.mirror()
	return id, true
}

// SaveSubtask renames an entry and leaves edit mode. Blank titles are ignored.
func (s *EditSession) SaveSubtask(id, title string) bool {
	st, ok := s.subtasks[id]
	if !ok || isBlank(title) {
		return false
	}
	st.Title = strings.TrimSpace(title)
	st.IsEditing = false
	s.subtasks[id] = st
	s.mirror()
	return true
}

// DeleteSubtask removes an entry.
func (s *EditSession) DeleteSubtask(id string) {
	if _, ok := s.subtasks[id]; !ok {
		return
	}
	delete(s.subtasks, id)
	s.mirror()
}

// Entries returns the working copy in display order, edit flags included.
func (s *EditSession) Entries() []SubtaskEntry {
	ids := s.subtasks.SortedIDs()
	out := make([]SubtaskEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, SubtaskEntry{ID: id, Subtask: s.subtasks[id]})
	}
	return out
}

// Commit writes the task, with the mirrored subtasks, through the repository.
// A task deleted while the session was open is not recreated.
func (s *EditSession) Commit(ctx context.Context) error {
	task, ok := s.repo.Get(s.taskID)
	if !ok {
		return nil
	}
	task.Subtasks = s.subtasks.Clone()
	return s.repo.Update(ctx, task)
}

// Discard empties the working copy. Mirrored changes stay in the repository.
func (s *EditSession) Discard() {
	s.subtasks = make(models.SubtaskMap)
}

func (s *EditSession) mirror() {
	s.repo.MirrorSubtasks(s.taskID, s.subtasks)
}
