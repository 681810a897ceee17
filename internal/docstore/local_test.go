package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/pkg/models"
)

func TestLocal_CRUD(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(NewTree())

	raw, err := l.Get(ctx, "tasks")
	if err != nil || raw != nil {
		t.Fatalf("Get on empty tree = %s, %v", raw, err)
	}

	key, err := l.Create(ctx, "contacts", models.Contact{Name: "Anna Berg", Email: "anna@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	raw, err = l.Get(ctx, "contacts/"+key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var c models.Contact
	if err := json.Unmarshal(raw, &c); err != nil {
		t.Fatalf("decoding contact: %v", err)
	}
	if c.Name != "Anna Berg" {
		t.Fatalf("expected Anna Berg, got %q", c.Name)
	}

	if _, err := l.Put(ctx, "tasks/1", map[string]any{"title": "x"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := l.Delete(ctx, "tasks/1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if raw, _ := l.Get(ctx, "tasks"); raw != nil {
		t.Fatalf("expected tasks pruned after delete, got %s", raw)
	}
}

func TestLocal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLocal(NewTree())
	if _, err := l.Get(ctx, "tasks"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, err := l.Put(ctx, "tasks/1", 1); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestLocal_PersistsThroughSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "board.db")

	snap, err := NewSnapshotter("sqlite", path)
	if err != nil {
		t.Fatalf("NewSnapshotter: %v", err)
	}
	l, err := OpenLocal(snap, nil)
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	if _, err := l.Put(ctx, "tasks/1767225600000", map[string]any{"title": "Persist me", "stage": "todo"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	snap, err = NewSnapshotter("sqlite", path)
	if err != nil {
		t.Fatalf("reopening snapshot: %v", err)
	}
	reopened, err := OpenLocal(snap, nil)
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	defer reopened.Close()

	raw, err := reopened.Get(ctx, "tasks/1767225600000/title")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(raw) != `"Persist me"` {
		t.Fatalf("expected persisted title, got %s", raw)
	}
}

func TestLocal_BacksTaskRepository(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(NewTree())
	repo := core.NewTaskRepository(l, nil, nil, nil)

	task, err := repo.Create(ctx, core.TaskDraft{
		Title:    "Plan sprint",
		DueDate:  "2099-01-01",
		Category: models.CategoryUserStory,
		Subtasks: []string{"collect", "estimate"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateStage(ctx, task.ID, models.StageFeedback); err != nil {
		t.Fatalf("UpdateStage: %v", err)
	}

	fresh := core.NewTaskRepository(l, nil, nil, nil)
	tasks := fresh.LoadAll(ctx)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	got := tasks[0]
	if got.ID != task.ID || got.Stage != models.StageFeedback {
		t.Fatalf("unexpected task %+v", got)
	}
	if len(got.Subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %v", got.Subtasks)
	}
}

func TestLocal_SharedSnapshotKeepsOtherWriters(t *testing.T) {
	for _, kind := range []string{"yaml", "sqlite"} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "board."+kind)
			open := func() *Local {
				snap, err := NewSnapshotter(kind, path)
				if err != nil {
					t.Fatalf("NewSnapshotter: %v", err)
				}
				l, err := OpenLocal(snap, log.New(io.Discard))
				if err != nil {
					t.Fatalf("OpenLocal: %v", err)
				}
				t.Cleanup(func() { _ = l.Close() })
				return l
			}

			board := open()
			cli := open()

			if _, err := cli.Put(ctx, "tasks/T2", map[string]any{"title": "from cli"}); err != nil {
				t.Fatalf("Put T2: %v", err)
			}
			raw, err := board.Get(ctx, "tasks/T2/title")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(raw) != `"from cli"` {
				t.Errorf("board should see T2 written elsewhere, got %s", raw)
			}

			if _, err := board.Put(ctx, "tasks/T1", map[string]any{"title": "from board"}); err != nil {
				t.Fatalf("Put T1: %v", err)
			}
			if err := cli.Delete(ctx, "tasks/T2"); err != nil {
				t.Fatalf("Delete T2: %v", err)
			}

			raw, err = open().Get(ctx, "tasks")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			var tasks map[string]map[string]any
			if err := json.Unmarshal(raw, &tasks); err != nil {
				t.Fatalf("decoding tasks: %v", err)
			}
			if len(tasks) != 1 || tasks["T1"]["title"] != "from board" {
				t.Errorf("expected only T1 from board, got %s", raw)
			}
		})
	}
}

func TestLocal_FailedSaveIsReported(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	snap, err := NewSnapshotter("yaml", path)
	if err != nil {
		t.Fatalf("NewSnapshotter: %v", err)
	}
	l, err := OpenLocal(snap, log.New(io.Discard))
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	if err := os.Mkdir(path, 0o750); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Put(ctx, "tasks/T1", map[string]any{"title": "lost"}); err == nil {
		t.Error("Put should fail when the snapshot cannot be written")
	}
	if _, err := l.Create(ctx, "contacts", map[string]any{"name": "Anna"}); err == nil {
		t.Error("Create should fail when the snapshot cannot be written")
	}
	if err := l.Delete(ctx, "tasks/T1"); err == nil {
		t.Error("Delete should fail when the snapshot cannot be written")
	}

	repo := core.NewTaskRepository(l, nil, nil, nil)
	_, err = repo.Create(ctx, core.TaskDraft{
		Title:    "Plan sprint",
		DueDate:  "2099-01-01",
		Category: models.CategoryUserStory,
	})
	if !errors.Is(err, core.ErrNetwork) {
		t.Errorf("repository Create should report ErrNetwork, got %v", err)
	}
}
