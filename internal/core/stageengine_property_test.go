package core

import (
	"context"
	"testing"

	"github.com/joinboard/join/pkg/models"
	"pgregory.net/rapid"
)

// exclusiveHighlighter counts highlighted columns for rapid checks.
type exclusiveHighlighter struct {
	active map[models.Stage]bool
	max    int
}

func (h *exclusiveHighlighter) Highlight(s models.Stage) {
	h.active[s] = true
	if len(h.active) > h.max {
		h.max = len(h.active)
	}
}

func (h *exclusiveHighlighter) Unhighlight(s models.Stage) {
	delete(h.active, s)
}

// Feature: join-board, Property 5: Highlight exclusivity
// Any touch path over the board keeps at most one column highlighted, and
// none after touchend commits or cancels.
func TestProperty_HighlightExclusivity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := newFakeStore()
		store.seed("tasks", "T1", t1Doc)
		repo, _ := newTestRepo(store)
		repo.LoadAll(context.Background())

		hl := &exclusiveHighlighter{active: map[models.Stage]bool{}}
		clock := &manualClock{}
		e := NewStageEngine(repo, hl, columnStrip{}, clock, quietLogger())

		e.TouchStart("T1")
		if rapid.Bool().Draw(rt, "longPress") {
			clock.fire()
		}

		xs := rapid.SliceOfN(rapid.IntRange(-100, 500), 0, 20).Draw(rt, "path")
		for _, x := range xs {
			e.TouchMove(x, 0)
			if len(hl.active) > 1 {
				rt.Fatalf("after move to %d: %d columns highlighted", x, len(hl.active))
			}
			if h := e.Highlighted(); h != "" && !hl.active[h] {
				rt.Fatalf("engine register %q disagrees with view %v", h, hl.active)
			}
		}

		if err := e.TouchEnd(context.Background()); err != nil {
			rt.Fatalf("TouchEnd: %v", err)
		}
		if len(hl.active) != 0 {
			rt.Fatalf("columns still highlighted after touchend: %v", hl.active)
		}
		if hl.max > 1 {
			rt.Fatalf("peak highlighted columns = %d", hl.max)
		}
	})
}

// Feature: join-board, Property 5: Highlight exclusivity (todo, progress, done)
func TestHighlightExclusivity_FixedPath(t *testing.T) {
	e, repo, _, hl, clock := newTestEngine(t)

	e.TouchStart("T1")
	clock.fire()
	for _, s := range []models.Stage{models.StageTodo, models.StageProgress, models.StageDone} {
		e.TouchMove(columnX(s), 0)
		if len(hl.active) != 1 || !hl.active[s] {
			t.Fatalf("over %s: highlighted %v", s, hl.active)
		}
	}
	if err := e.TouchEnd(context.Background()); err != nil {
		t.Fatalf("TouchEnd: %v", err)
	}
	if len(hl.active) != 0 {
		t.Errorf("highlighted after touchend: %v", hl.active)
	}
	task, _ := repo.Get("T1")
	if task.Stage != models.StageDone {
		t.Errorf("stage = %q, want done", task.Stage)
	}
}
