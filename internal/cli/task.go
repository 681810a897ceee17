package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/internal/logger"
	"github.com/joinboard/join/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage board tasks (list, show, add, move, toggle, delete, edit-subtasks)",
	Long: `Task commands read and write the tasks collection of the document store.

Every command reloads the board first, so changes made elsewhere are seen.`,
}

// errCreateFailed is shown when the store rejects a new task.
var errCreateFailed = errors.New("Failed to create task. Please try again.")

var (
	taskListStage  string
	taskListSearch string
	taskListJSON   bool
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks grouped by board column",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := loadTasks(ctxOf(cmd))
		if err != nil {
			return err
		}

		if taskListSearch != "" {
			tasks = Tasks.Search(taskListSearch)
		}
		if taskListStage != "" {
			stage := models.Stage(taskListStage)
			if !stage.Valid() {
				return fmt.Errorf("invalid stage %q: must be one of todo, progress, feedback, done", taskListStage)
			}
			tasks = filterStage(tasks, stage)
		}

		out := cmd.OutOrStdout()
		if taskListJSON {
			return writeTasksJSON(out, tasks)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks found.")
			return nil
		}
		printTaskTable(out, tasks)
		return nil
	},
}

var taskShowYAML bool

var taskShowCmd = &cobra.Command{
	Use:               "show <task-id>",
	Short:             "Show a task with its subtasks and assigned contacts",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := requireTask(cmd, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if taskShowYAML {
			data, err := yaml.Marshal(task)
			if err != nil {
				return fmt.Errorf("formatting task as YAML: %w", err)
			}
			_, err = out.Write(data)
			return err
		}
		printTaskDetail(out, task)
		return nil
	},
}

var (
	taskAddTitle       string
	taskAddDescription string
	taskAddDue         string
	taskAddPriority    string
	taskAddCategory    string
	taskAddAssign      []string
	taskAddSubtasks    []string
	taskAddInteractive bool
)

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a task in the To do column",
	Long: `Create a task from flags, or with --interactive from a form.

Title, due date (YYYY-MM-DD, not in the past) and category are required.
Priority defaults to medium. --assign takes contact names and may repeat.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadTasks(ctxOf(cmd)); err != nil {
			return err
		}

		var draft core.TaskDraft
		if taskAddInteractive {
			if _, err := loadContacts(ctxOf(cmd)); err != nil {
				return err
			}
			d, err := runTaskForm(Contacts.All(), now())
			if err != nil {
				return err
			}
			draft = d
		} else {
			refs, err := resolveAssignees(cmd, taskAddAssign)
			if err != nil {
				return err
			}
			draft = core.TaskDraft{
				Title:            taskAddTitle,
				Description:      taskAddDescription,
				DueDate:          taskAddDue,
				Priority:         models.Priority(strings.ToLower(taskAddPriority)),
				Category:         parseCategory(taskAddCategory),
				AssignedContacts: refs,
				Subtasks:         taskAddSubtasks,
			}
		}

		task, err := Tasks.Create(ctxOf(cmd), draft)
		if err != nil {
			if errors.Is(err, core.ErrNetwork) {
				return errCreateFailed
			}
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created task %s: %s\n", task.ID, task.Title)
		if len(task.AssignedContacts) > 0 {
			fmt.Fprintf(out, "Assigned to: %s\n", badgeText(task.AssignedContacts, core.FormBadgeLimit))
		}
		return nil
	},
}

var (
	taskMoveNext bool
	taskMovePrev bool
)

var taskMoveCmd = &cobra.Command{
	Use:   "move <task-id> [stage]",
	Short: "Move a task to another column",
	Long: `Move a task to todo, progress, feedback or done, or one column
along with --next / --prev.`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: completeTaskIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireTask(cmd, args[0]); err != nil {
			return err
		}
		engine := core.NewStageEngine(Tasks, nil, nil, nil, logger.Named("stage"))
		ctx := ctxOf(cmd)
		out := cmd.OutOrStdout()

		switch {
		case taskMoveNext && taskMovePrev:
			return fmt.Errorf("--next and --prev are mutually exclusive")
		case taskMoveNext || taskMovePrev:
			if len(args) == 2 {
				return fmt.Errorf("a stage argument cannot be combined with --next or --prev")
			}
			move := engine.MoveNext
			if taskMovePrev {
				move = engine.MovePrev
			}
			stage, err := move(ctx, args[0])
			if err != nil {
				return fmt.Errorf("moving task %s: %w", args[0], err)
			}
			fmt.Fprintf(out, "Task %s is in %s\n", args[0], stage.Label())
			return nil
		}

		if len(args) != 2 {
			return fmt.Errorf("a stage is required (todo, progress, feedback, done) unless --next or --prev is set")
		}
		stage := models.Stage(strings.ToLower(args[1]))
		if err := engine.MoveTo(ctx, args[0], stage); err != nil {
			return fmt.Errorf("moving task %s: %w", args[0], err)
		}
		fmt.Fprintf(out, "Moved task %s to %s\n", args[0], stage.Label())
		return nil
	},
}

var taskToggleCmd = &cobra.Command{
	Use:               "toggle <task-id> <subtask-id>",
	Short:             "Flip the completed flag of a subtask",
	Long: `Flip the completed flag of a subtask.

Subtask ids are listed by "join task show". A hosted database returns
numbered subtasks as an array, and those get fresh ids on every load, so
look the id up right before toggling.`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeTaskIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := requireTask(cmd, args[0])
		if err != nil {
			return err
		}
		if _, ok := task.Subtasks[args[1]]; !ok {
			return fmt.Errorf("subtask %s not found in task %s (subtask ids: %s)",
				args[1], args[0], strings.Join(task.Subtasks.SortedIDs(), ", "))
		}
		if err := Tasks.ToggleSubtaskCompletion(ctxOf(cmd), args[0], args[1]); err != nil {
			return fmt.Errorf("toggling subtask %s: %w", args[1], err)
		}

		updated, _ := Tasks.Get(args[0])
		done, total := updated.Subtasks.Progress()
		fmt.Fprintf(cmd.OutOrStdout(), "Subtasks of %s: %d/%d done\n", args[0], done, total)
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:               "delete <task-id>",
	Short:             "Delete a task",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := requireTask(cmd, args[0])
		if err != nil {
			return err
		}
		if err := Tasks.Delete(ctxOf(cmd), task.ID); err != nil {
			return fmt.Errorf("deleting task %s: %w", task.ID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s: %s\n", task.ID, task.Title)
		return nil
	},
}

var (
	editSubtasksAdd    []string
	editSubtasksRename []string
	editSubtasksRemove []string
)

var taskEditSubtasksCmd = &cobra.Command{
	Use:   "edit-subtasks <task-id>",
	Short: "Add, rename and remove subtasks, then save the task",
	Long: `Edit the subtask list of a task in one session and save it.

  --add <title>          append a subtask (repeatable)
  --rename <id>=<title>  rename a subtask (repeatable)
  --remove <id>          delete a subtask (repeatable)

Removals run first, then renames, then additions.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireTask(cmd, args[0]); err != nil {
			return err
		}
		session, ok := core.OpenEditSession(Tasks, args[0])
		if !ok {
			return fmt.Errorf("task %s not found", args[0])
		}

		if err := applySubtaskEdits(session, editSubtasksRemove, editSubtasksRename, editSubtasksAdd); err != nil {
			session.Discard()
			return err
		}
		if err := session.Commit(ctxOf(cmd)); err != nil {
			return fmt.Errorf("saving task %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Saved %d subtask(s) for task %s\n", len(session.Entries()), args[0])
		for _, e := range session.Entries() {
			fmt.Fprintf(out, "  %s %s %s\n", checkbox(e.Completed), e.ID, e.Title)
		}
		return nil
	},
}

// applySubtaskEdits runs the requested edits against session.
func applySubtaskEdits(session *core.EditSession, remove, rename, add []string) error {
	known := make(map[string]bool)
	for _, e := range session.Entries() {
		known[e.ID] = true
	}

	for _, id := range remove {
		if !known[id] {
			return fmt.Errorf("subtask %s not found", id)
		}
		session.DeleteSubtask(id)
		delete(known, id)
	}
	for _, pair := range rename {
		id, title, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --rename %q: want <id>=<title>", pair)
		}
		if !known[id] {
			return fmt.Errorf("subtask %s not found", id)
		}
		session.StartEdit(id)
		if !session.SaveSubtask(id, title) {
			return fmt.Errorf("subtask %s needs a non-empty title", id)
		}
	}
	for _, title := range add {
		if _, ok := session.AddSubtask(title); !ok {
			return fmt.Errorf("subtask titles must not be empty")
		}
	}
	return nil
}

// requireTask reloads the board and returns the task, or an error naming the
// missing id.
func requireTask(cmd *cobra.Command, id string) (models.Task, error) {
	if _, err := loadTasks(ctxOf(cmd)); err != nil {
		return models.Task{}, err
	}
	task, ok := Tasks.Get(id)
	if !ok {
		return models.Task{}, fmt.Errorf("task %s not found", id)
	}
	return task, nil
}

// resolveAssignees looks up contacts by name and returns their task snapshots.
func resolveAssignees(cmd *cobra.Command, names []string) ([]models.ContactRef, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if _, err := loadContacts(ctxOf(cmd)); err != nil {
		return nil, err
	}
	sel := core.NewContactSelection()
	for _, name := range names {
		c, ok := Contacts.FindByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown contact %q", name)
		}
		sel.Add(c.Ref())
	}
	return sel.List(), nil
}

// parseCategory accepts the category label in any case, or the short forms
// "technical" and "story".
func parseCategory(s string) models.Category {
	s = strings.TrimSpace(s)
	for _, c := range models.Categories {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	switch strings.ToLower(s) {
	case "technical", "tech":
		return models.CategoryTechnicalTask
	case "story", "user-story":
		return models.CategoryUserStory
	}
	return models.Category(s)
}

func filterStage(tasks []models.Task, stage models.Stage) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if core.ColumnFor(t) == stage {
			out = append(out, t)
		}
	}
	return out
}

type taskJSON struct {
	ID string `json:"id"`
	models.Task
	Stage models.Stage `json:"stage"`
}

func writeTasksJSON(w io.Writer, tasks []models.Task) error {
	items := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, taskJSON{ID: t.ID, Task: t, Stage: core.ColumnFor(t)})
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting tasks as JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTaskTable(w io.Writer, tasks []models.Task) {
	for _, stage := range models.Stages {
		column := filterStage(tasks, stage)
		if len(column) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s (%d)\n", stageStyle(stage).Render(stage.Label()), len(column))
		for _, t := range column {
			done, total := t.Subtasks.Progress()
			fmt.Fprintf(w, "  %-15s %-32s %-7s %-10s %d/%d  %s\n",
				t.ID, truncate(t.Title, 32), t.Priority, t.DueDate, done, total, badgeText(t.AssignedContacts, core.BoardBadgeLimit))
		}
		fmt.Fprintln(w)
	}
}

func printTaskDetail(w io.Writer, t models.Task) {
	fmt.Fprintf(w, "%s  %s\n", t.ID, t.Title)
	fmt.Fprintf(w, "  Column:    %s\n", core.ColumnFor(t).Label())
	fmt.Fprintf(w, "  Category:  %s\n", t.Category)
	fmt.Fprintf(w, "  Priority:  %s\n", t.Priority)
	fmt.Fprintf(w, "  Due:       %s\n", t.DueDate)
	if t.Description != "" {
		fmt.Fprintf(w, "  About:     %s\n", t.Description)
	}
	if len(t.AssignedContacts) > 0 {
		fmt.Fprintln(w, "  Assigned:")
		for _, c := range t.AssignedContacts {
			fmt.Fprintf(w, "    %s  %s\n", badgeStyle(c.Color).Render(c.Initials), c.Name)
		}
	}
	if len(t.Subtasks) > 0 {
		done, total := t.Subtasks.Progress()
		fmt.Fprintf(w, "  Subtasks (%d/%d):\n", done, total)
		for _, id := range t.Subtasks.SortedIDs() {
			st := t.Subtasks[id]
			fmt.Fprintf(w, "    %s %s %s\n", checkbox(st.Completed), id, st.Title)
		}
	}
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

// badgeText renders up to limit initials followed by "+N" for the rest.
func badgeText(refs []models.ContactRef, limit int) string {
	shown, more := core.Badges(refs, limit)
	parts := make([]string, 0, len(shown)+1)
	for _, r := range shown {
		parts = append(parts, r.Initials)
	}
	if more > 0 {
		parts = append(parts, fmt.Sprintf("+%d", more))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func init() {
	taskListCmd.Flags().StringVar(&taskListStage, "stage", "", "Only show one column (todo, progress, feedback, done)")
	taskListCmd.Flags().StringVar(&taskListSearch, "search", "", "Only show tasks whose title or description contains this text")
	taskListCmd.Flags().BoolVar(&taskListJSON, "json", false, "Output tasks as JSON")
	_ = taskListCmd.RegisterFlagCompletionFunc("stage", completeStages)

	taskShowCmd.Flags().BoolVar(&taskShowYAML, "yaml", false, "Output the task as YAML")

	taskAddCmd.Flags().StringVar(&taskAddTitle, "title", "", "Task title")
	taskAddCmd.Flags().StringVar(&taskAddDescription, "description", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskAddDue, "due", "", "Due date (YYYY-MM-DD)")
	taskAddCmd.Flags().StringVar(&taskAddPriority, "priority", "", "Priority (urgent, medium, low)")
	taskAddCmd.Flags().StringVar(&taskAddCategory, "category", "", `Category ("Technical Task" or "User Story")`)
	taskAddCmd.Flags().StringArrayVar(&taskAddAssign, "assign", nil, "Assign a contact by name (repeatable)")
	taskAddCmd.Flags().StringArrayVar(&taskAddSubtasks, "subtask", nil, "Add a subtask (repeatable)")
	taskAddCmd.Flags().BoolVarP(&taskAddInteractive, "interactive", "i", false, "Fill the task in with a form")
	_ = taskAddCmd.RegisterFlagCompletionFunc("priority", completePriorities)
	_ = taskAddCmd.RegisterFlagCompletionFunc("category", completeCategories)
	_ = taskAddCmd.RegisterFlagCompletionFunc("assign", completeContactNames)

	taskMoveCmd.Flags().BoolVar(&taskMoveNext, "next", false, "Move one column right")
	taskMoveCmd.Flags().BoolVar(&taskMovePrev, "prev", false, "Move one column left")

	taskEditSubtasksCmd.Flags().StringArrayVar(&editSubtasksAdd, "add", nil, "Add a subtask (repeatable)")
	taskEditSubtasksCmd.Flags().StringArrayVar(&editSubtasksRename, "rename", nil, "Rename a subtask, <id>=<title> (repeatable)")
	taskEditSubtasksCmd.Flags().StringArrayVar(&editSubtasksRemove, "remove", nil, "Remove a subtask by id (repeatable)")

	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskAddCmd, taskMoveCmd, taskToggleCmd, taskDeleteCmd, taskEditSubtasksCmd)
	rootCmd.AddCommand(taskCmd)
}
