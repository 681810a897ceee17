package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/internal/logger"
	"github.com/joinboard/join/pkg/models"
)

// Board geometry. Every card takes the same number of rows so a mouse
// position maps back to a card without measuring rendered output.
const (
	boardTop       = 2 // title and status lines
	cardsTop       = boardTop + 3
	cardHeight     = 4
	minColumnWidth = 24
)

type boardKeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Up      key.Binding
	Down    key.Binding
	MovePrv key.Binding
	MoveNxt key.Binding
	Open    key.Binding
	Toggle  key.Binding
	Delete  key.Binding
	Confirm key.Binding
	Search  key.Binding
	Refresh key.Binding
	Help    key.Binding
	Back    key.Binding
	Quit    key.Binding
}

func (k boardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.MovePrv, k.MoveNxt, k.Open, k.Search, k.Help, k.Quit}
}

func (k boardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.MovePrv, k.MoveNxt, k.Open, k.Toggle},
		{k.Delete, k.Search, k.Refresh},
		{k.Help, k.Back, k.Quit},
	}
}

func defaultBoardKeyMap() boardKeyMap {
	return boardKeyMap{
		Left:    key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "prev column")),
		Right:   key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "next column")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		MovePrv: key.NewBinding(key.WithKeys("h", "shift+left"), key.WithHelp("h", "move task left")),
		MoveNxt: key.NewBinding(key.WithKeys("l", "shift+right"), key.WithHelp("l", "move task right")),
		Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle subtask")),
		Delete:  key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete task")),
		Confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// boardLayout maps screen cells to columns and cards.
type boardLayout struct {
	width int
}

func (l boardLayout) columnWidth() int {
	w := l.width / len(models.Stages)
	if w < minColumnWidth {
		return minColumnWidth
	}
	return w
}

// ColumnAt implements core.ColumnResolver.
func (l boardLayout) ColumnAt(x, y int) (models.Stage, bool) {
	if x < 0 || y < boardTop {
		return "", false
	}
	i := x / l.columnWidth()
	if i >= len(models.Stages) {
		return "", false
	}
	return models.Stages[i], true
}

// cardAt returns the column and card index under a cell.
func (l boardLayout) cardAt(x, y int) (models.Stage, int, bool) {
	stage, ok := l.ColumnAt(x, y)
	if !ok || y < cardsTop {
		return "", 0, false
	}
	return stage, (y - cardsTop) / cardHeight, true
}

type boardModel struct {
	repo   core.TaskRepository
	engine *core.StageEngine
	keys   boardKeyMap
	help   help.Model
	search textinput.Model

	layout boardLayout
	height int

	tasks     []models.Task
	query     string
	col       int
	row       int
	subRow    int
	detail    bool
	detailID  string
	searching bool
	dragging  bool
	confirmID string

	loading bool
	status  string
	err     error

	// deleted receives the ids of tasks removed from the repository.
	deleted chan string
}

// boardLoadedMsg carries a fresh copy of the task cache.
type boardLoadedMsg struct {
	tasks []models.Task
}

// boardActionMsg reports the outcome of a mutation.
type boardActionMsg struct {
	status string
	err    error
}

func newBoardModel(repo core.TaskRepository) boardModel {
	ti := textinput.New()
	ti.Placeholder = "Find task"
	ti.Prompt = "/ "
	ti.CharLimit = 80

	deleted := make(chan string, 16)
	repo.OnDelete(func(taskID string) {
		select {
		case deleted <- taskID:
		default:
		}
	})

	layout := boardLayout{}
	return boardModel{
		repo:    repo,
		engine:  core.NewStageEngine(repo, nil, layout, nil, logger.Named("board")),
		keys:    defaultBoardKeyMap(),
		help:    help.New(),
		search:  ti,
		layout:  layout,
		loading: true,
		deleted: deleted,
	}
}

// closeDeleted leaves the detail view when its task has been deleted.
func (m *boardModel) closeDeleted() {
	for {
		select {
		case id := <-m.deleted:
			if m.detail && id == m.detailID {
				m.detail = false
			}
		default:
			return
		}
	}
}

func (m boardModel) Init() tea.Cmd {
	return loadBoard(m.repo)
}

func loadBoard(repo core.TaskRepository) tea.Cmd {
	return func() tea.Msg {
		return boardLoadedMsg{tasks: repo.LoadAll(context.Background())}
	}
}

func shiftTask(engine *core.StageEngine, taskID string, delta int) tea.Cmd {
	return func() tea.Msg {
		var (
			stage models.Stage
			err   error
		)
		if delta < 0 {
			stage, err = engine.MovePrev(context.Background(), taskID)
		} else {
			stage, err = engine.MoveNext(context.Background(), taskID)
		}
		if err != nil {
			return boardActionMsg{err: err}
		}
		return boardActionMsg{status: "Task is in " + stage.Label()}
	}
}

func dropTask(engine *core.StageEngine, stage models.Stage) tea.Cmd {
	return func() tea.Msg {
		if err := engine.Drop(context.Background(), stage); err != nil {
			return boardActionMsg{err: err}
		}
		return boardActionMsg{status: "Dropped into " + stage.Label()}
	}
}

func deleteTask(repo core.TaskRepository, taskID string) tea.Cmd {
	return func() tea.Msg {
		if err := repo.Delete(context.Background(), taskID); err != nil {
			return boardActionMsg{err: err}
		}
		return boardActionMsg{status: "Task deleted"}
	}
}

func toggleSubtask(repo core.TaskRepository, taskID, subtaskID string) tea.Cmd {
	return func() tea.Msg {
		if err := repo.ToggleSubtaskCompletion(context.Background(), taskID, subtaskID); err != nil {
			return boardActionMsg{err: err}
		}
		return boardActionMsg{}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.engine = core.NewStageEngine(m.repo, nil, m.layout, nil, logger.Named("board"))
		return m, nil

	case boardLoadedMsg:
		m.loading = false
		m.closeDeleted()
		m.tasks = msg.tasks
		m.clamp()
		return m, nil

	case boardActionMsg:
		m.err = msg.err
		if msg.status != "" {
			m.status = msg.status
		}
		m.closeDeleted()
		m.tasks = m.repo.All()
		m.clamp()
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m boardModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.query = strings.TrimSpace(m.search.Value())
		m.search.Blur()
		m.row = 0
		m.clamp()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.query = ""
		m.search.SetValue("")
		m.search.Blur()
		m.clamp()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m boardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmID != "" {
		id := m.confirmID
		m.confirmID = ""
		if key.Matches(msg, m.keys.Confirm) {
			return m, deleteTask(m.repo, id)
		}
		m.status = "Delete cancelled"
		return m, nil
	}

	task, hasTask := m.selected()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Back):
		switch {
		case m.detail:
			m.detail = false
		case m.query != "":
			m.query = ""
			m.search.SetValue("")
			m.clamp()
		}

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.detail = false
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, loadBoard(m.repo)

	case key.Matches(msg, m.keys.Left) && !m.detail:
		if m.col > 0 {
			m.col--
			m.clamp()
		}

	case key.Matches(msg, m.keys.Right) && !m.detail:
		if m.col < len(models.Stages)-1 {
			m.col++
			m.clamp()
		}

	case key.Matches(msg, m.keys.Up):
		if m.detail {
			if m.subRow > 0 {
				m.subRow--
			}
		} else if m.row > 0 {
			m.row--
		}

	case key.Matches(msg, m.keys.Down):
		if m.detail {
			if m.subRow < len(task.Subtasks)-1 {
				m.subRow++
			}
		} else if m.row < len(m.column(models.Stages[m.col]))-1 {
			m.row++
		}

	case key.Matches(msg, m.keys.Open):
		if hasTask {
			m.detail = !m.detail
			m.detailID = task.ID
			m.subRow = 0
		}

	case key.Matches(msg, m.keys.Toggle):
		if m.detail && hasTask {
			ids := core.NormalizeSubtasks(task.Subtasks).SortedIDs()
			if m.subRow < len(ids) {
				return m, toggleSubtask(m.repo, task.ID, ids[m.subRow])
			}
		}

	case key.Matches(msg, m.keys.MovePrv):
		if hasTask {
			return m, shiftTask(m.engine, task.ID, -1)
		}

	case key.Matches(msg, m.keys.MoveNxt):
		if hasTask {
			return m, shiftTask(m.engine, task.ID, 1)
		}

	case key.Matches(msg, m.keys.Delete):
		if hasTask {
			m.confirmID = task.ID
			m.status = fmt.Sprintf("Delete %q? (y/N)", task.Title)
		}
	}
	return m, nil
}

// handleMouse turns a left-button press, drag and release into the drag
// protocol of the stage engine.
func (m boardModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.detail || m.searching {
		return m, nil
	}
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		stage, idx, ok := m.layout.cardAt(msg.X, msg.Y)
		if !ok {
			return m, nil
		}
		cards := m.column(stage)
		if idx >= len(cards) {
			return m, nil
		}
		m.col = stageIndex(stage)
		m.row = idx
		m.dragging = true
		m.engine.DragStart(cards[idx].ID)

	case tea.MouseActionMotion:
		if !m.dragging {
			return m, nil
		}
		if stage, ok := m.layout.ColumnAt(msg.X, msg.Y); ok && m.engine.AllowDrop(stage) {
			m.engine.DragOver(stage)
		} else if h := m.engine.Highlighted(); h != "" {
			m.engine.DragLeave(h)
		}

	case tea.MouseActionRelease:
		if !m.dragging {
			return m, nil
		}
		m.dragging = false
		stage, ok := m.layout.ColumnAt(msg.X, msg.Y)
		if !ok {
			m.engine.Reset()
			return m, nil
		}
		m.col = stageIndex(stage)
		return m, dropTask(m.engine, stage)
	}
	return m, nil
}

// visible returns the tasks matching the current search.
func (m boardModel) visible() []models.Task {
	if m.query == "" {
		return m.tasks
	}
	return m.repo.Search(m.query)
}

func (m boardModel) column(stage models.Stage) []models.Task {
	return filterStage(m.visible(), stage)
}

func (m boardModel) selected() (models.Task, bool) {
	cards := m.column(models.Stages[m.col])
	if m.row < 0 || m.row >= len(cards) {
		return models.Task{}, false
	}
	return cards[m.row], true
}

func (m *boardModel) clamp() {
	n := len(m.column(models.Stages[m.col]))
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
	if _, ok := m.selected(); !ok {
		m.detail = false
	}
}

func (m boardModel) View() string {
	title := titleStyle.Render(" Join Board ")

	var statusLine string
	switch {
	case m.searching:
		statusLine = m.search.View()
	case m.err != nil:
		statusLine = errorStyle.Render("Error: " + m.err.Error())
	case m.loading:
		statusLine = mutedStyle.Render("Loading tasks...")
	case m.query != "":
		statusLine = mutedStyle.Render(fmt.Sprintf("Search: %q  %s", m.query, m.status))
	default:
		statusLine = mutedStyle.Render(m.status)
	}

	var body string
	if m.detail {
		task, _ := m.selected()
		body = m.renderDetail(task)
	} else {
		body = m.renderColumns()
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s", title, statusLine, body, m.help.View(m.keys))
}

func (m boardModel) renderColumns() string {
	width := m.layout.columnWidth()
	highlighted := m.engine.Highlighted()
	dragged := m.engine.Dragged()

	cols := make([]string, 0, len(models.Stages))
	for i, stage := range models.Stages {
		cards := m.column(stage)
		var b strings.Builder
		b.WriteString(stageStyle(stage).Render(fmt.Sprintf("%s (%d)", stage.Label(), len(cards))))
		b.WriteString("\n\n")
		if len(cards) == 0 {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("No tasks %s", strings.ToLower(stage.Label()))))
		}
		for j, t := range cards {
			card := renderCard(t, width-4)
			switch {
			case t.ID == dragged:
				card = draggedCardStyle.Render(card)
			case i == m.col && j == m.row:
				card = selectedCardStyle.Render(card)
			}
			b.WriteString(card)
			b.WriteString("\n\n")
		}

		style := columnStyle
		if stage == highlighted {
			style = highlightColumnStyle
		}
		cols = append(cols, style.Width(width-2).Render(strings.TrimRight(b.String(), "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// renderCard renders the three lines of a board card.
func renderCard(t models.Task, width int) string {
	done, total := t.Subtasks.Progress()
	progress := ""
	if total > 0 {
		progress = fmt.Sprintf("%d/%d subtasks ", done, total)
	}
	meta := fmt.Sprintf("%s%s", progress, priorityStyle(t.Priority).Render(string(t.Priority)))

	shown, more := core.Badges(t.AssignedContacts, core.BoardBadgeLimit)
	badges := make([]string, 0, len(shown)+1)
	for _, r := range shown {
		badges = append(badges, badgeStyle(r.Color).Render(r.Initials))
	}
	if more > 0 {
		badges = append(badges, mutedStyle.Render(fmt.Sprintf("+%d", more)))
	}

	return strings.Join([]string{
		mutedStyle.Render(truncate(string(t.Category), width)),
		lipgloss.NewStyle().Bold(true).Render(truncate(t.Title, width)),
		meta + " " + strings.Join(badges, " "),
	}, "\n")
}

func (m boardModel) renderDetail(t models.Task) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(t.Title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s  %s  due %s\n", t.Category, priorityStyle(t.Priority).Render(string(t.Priority)), t.DueDate)
	if t.Description != "" {
		b.WriteString("\n" + t.Description + "\n")
	}
	if len(t.AssignedContacts) > 0 {
		b.WriteString("\nAssigned to:\n")
		for _, c := range t.AssignedContacts {
			fmt.Fprintf(&b, "  %s %s\n", badgeStyle(c.Color).Render(c.Initials), c.Name)
		}
	}
	subtasks := core.NormalizeSubtasks(t.Subtasks)
	if len(subtasks) > 0 {
		b.WriteString("\nSubtasks:\n")
		for i, id := range subtasks.SortedIDs() {
			line := fmt.Sprintf("%s %s", checkbox(subtasks[id].Completed), subtasks[id].Title)
			if i == m.subRow {
				line = selectedCardStyle.Render(line)
			}
			b.WriteString("  " + line + "\n")
		}
	}
	return columnStyle.Width(m.layout.columnWidth()*2).Render(strings.TrimRight(b.String(), "\n"))
}

func stageIndex(s models.Stage) int {
	for i, st := range models.Stages {
		if st == s {
			return i
		}
	}
	return 0
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the interactive kanban board",
	Long: `Open a full-screen board with the four columns To do, In progress,
Await feedback and Done.

Drag cards between columns with the mouse, or select a card and press h/l to
move it one column. Press enter for details, where space toggles subtasks.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Tasks == nil {
			return fmt.Errorf("task repository not initialized")
		}
		p := tea.NewProgram(newBoardModel(Tasks), tea.WithAltScreen(), tea.WithMouseCellMotion())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running board: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}
