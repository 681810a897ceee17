package core

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/joinboard/join/pkg/models"
)

// LongPressDelay is how long a touch must be held before moves count as a drag.
const LongPressDelay = 500 * time.Millisecond

// categoryStages places tasks that were stored without a stage.
var categoryStages = map[models.Category]models.Stage{
	models.CategoryTechnicalTask: models.StageTodo,
	models.CategoryUserStory:     models.StageTodo,
}

// ColumnFor returns the board column of a task: its stage when set, otherwise
// the column derived from its category. The task itself is not modified.
func ColumnFor(t models.Task) models.Stage {
	if t.Stage.Valid() {
		return t.Stage
	}
	if s, ok := categoryStages[t.Category]; ok {
		return s
	}
	return models.StageTodo
}

// Highlighter renders the drop-target highlight of a column.
type Highlighter interface {
	Highlight(stage models.Stage)
	Unhighlight(stage models.Stage)
}

// ColumnResolver maps a touch point to the column under it.
type ColumnResolver interface {
	ColumnAt(x, y int) (models.Stage, bool)
}

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock schedules the long-press timer.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns a Clock backed by time.AfterFunc.
func SystemClock() Clock { return systemClock{} }

// StageEngine owns the drag register and the highlighted column of the board
// and turns pointer, touch and keyboard gestures into stage updates. At most
// one column is highlighted at any time.
type StageEngine struct {
	repo     TaskRepository
	hl       Highlighter
	resolver ColumnResolver
	clock    Clock
	log      *log.Logger

	mu          sync.Mutex
	dragged     string
	highlighted models.Stage
	armed       bool
	timer       Timer
	gesture     uint64
}

// NewStageEngine creates a StageEngine. hl, resolver and clock may be nil:
// highlighting is then untracked by the view, touch moves never resolve a
// column and the system clock is used.
func NewStageEngine(repo TaskRepository, hl Highlighter, resolver ColumnResolver, clock Clock, logger *log.Logger) *StageEngine {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StageEngine{
		repo:     repo,
		hl:       hl,
		resolver: resolver,
		clock:    clock,
		log:      logger,
	}
}

// ColumnOf returns the column a task is shown in.
func (e *StageEngine) ColumnOf(t models.Task) models.Stage {
	return ColumnFor(t)
}

// Dragged returns the task id in the drag register, or "".
func (e *StageEngine) Dragged() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dragged
}

// Highlighted returns the highlighted column, or "".
func (e *StageEngine) Highlighted() models.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.highlighted
}

// Reset clears both registers and cancels a pending long press.
func (e *StageEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *StageEngine) resetLocked() {
	e.stopTimerLocked()
	e.setHighlightLocked("")
	e.dragged = ""
	e.armed = false
	e.gesture++
}

func (e *StageEngine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// setHighlightLocked unhighlights the current column before highlighting the
// next one. An empty stage only clears.
func (e *StageEngine) setHighlightLocked(stage models.Stage) {
	if e.highlighted == stage {
		return
	}
	if e.highlighted != "" && e.hl != nil {
		e.hl.Unhighlight(e.highlighted)
	}
	e.highlighted = stage
	if stage != "" && e.hl != nil {
		e.hl.Highlight(stage)
	}
}

// DragStart begins a pointer drag of taskID.
func (e *StageEngine) DragStart(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
	e.dragged = taskID
	e.log.Debug("drag started", "task", taskID)
}

// AllowDrop reports whether a column accepts drops.
func (e *StageEngine) AllowDrop(stage models.Stage) bool {
	return stage.Valid()
}

// DragOver highlights the column under the pointer.
func (e *StageEngine) DragOver(stage models.Stage) {
	if !stage.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setHighlightLocked(stage)
}

// DragLeave removes the highlight when the pointer leaves the highlighted column.
func (e *StageEngine) DragLeave(stage models.Stage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.highlighted == stage {
		e.setHighlightLocked("")
	}
}

// Drop moves the dragged task into stage. With an empty register nothing
// moves. The register is cleared only when the move succeeds.
func (e *StageEngine) Drop(ctx context.Context, stage models.Stage) error {
	e.mu.Lock()
	taskID := e.dragged
	e.setHighlightLocked("")
	e.mu.Unlock()

	if taskID == "" || !e.AllowDrop(stage) {
		return nil
	}
	if err := e.repo.UpdateStage(ctx, taskID, stage); err != nil {
		return err
	}

	e.mu.Lock()
	if e.dragged == taskID {
		e.dragged = ""
	}
	e.mu.Unlock()
	return nil
}

// TouchStart records taskID and arms the long-press timer. Moves before the
// timer fires are treated as scrolling.
func (e *StageEngine) TouchStart(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
	e.dragged = taskID
	gesture := e.gesture
	e.timer = e.clock.AfterFunc(LongPressDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.gesture == gesture {
			e.armed = true
		}
	})
}

// Armed reports whether the current touch has turned into a drag.
func (e *StageEngine) Armed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armed
}

// TouchMove resolves the column under the touch point and moves the highlight
// to it. A point outside every column clears the highlight.
func (e *StageEngine) TouchMove(x, y int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.armed || e.dragged == "" {
		return
	}
	var stage models.Stage
	if e.resolver != nil {
		if s, ok := e.resolver.ColumnAt(x, y); ok && s.Valid() {
			stage = s
		}
	}
	e.setHighlightLocked(stage)
}

// TouchEnd cancels the timer and commits the drag to the highlighted column,
// if any. Both registers are cleared either way.
func (e *StageEngine) TouchEnd(ctx context.Context) error {
	e.mu.Lock()
	taskID := e.dragged
	target := e.highlighted
	e.resetLocked()
	e.mu.Unlock()

	if taskID == "" || target == "" {
		return nil
	}
	return e.repo.UpdateStage(ctx, taskID, target)
}

// MoveTo moves a task to stage without a gesture.
func (e *StageEngine) MoveTo(ctx context.Context, taskID string, stage models.Stage) error {
	return e.repo.UpdateStage(ctx, taskID, stage)
}

// MoveNext moves a task one column right and returns its new column. A task
// already in the last column, or one that does not exist, stays put.
func (e *StageEngine) MoveNext(ctx context.Context, taskID string) (models.Stage, error) {
	return e.shift(ctx, taskID, 1)
}

// MovePrev moves a task one column left.
func (e *StageEngine) MovePrev(ctx context.Context, taskID string) (models.Stage, error) {
	return e.shift(ctx, taskID, -1)
}

func (e *StageEngine) shift(ctx context.Context, taskID string, delta int) (models.Stage, error) {
	task, ok := e.repo.Get(taskID)
	if !ok {
		return "", nil
	}
	current := ColumnFor(task)
	idx := stageIndex(current) + delta
	if idx < 0 || idx >= len(models.Stages) {
		return current, nil
	}
	next := models.Stages[idx]
	if err := e.repo.UpdateStage(ctx, taskID, next); err != nil {
		return current, err
	}
	return next, nil
}

func stageIndex(s models.Stage) int {
	for i, st := range models.Stages {
		if st == s {
			return i
		}
	}
	return 0
}
