// Package tui renders the task list controller in a terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fastygo/taskhub/client/tasklist"
	"github.com/fastygo/taskhub/domain"
)

const requestTimeout = 10 * time.Second

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	summaryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	cursorStyle   = lipgloss.NewStyle().Bold(true)
	doneStyle     = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	inputStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	priorityStyle = map[domain.Priority]lipgloss.Style{
		domain.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		domain.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
	dueStyle = map[tasklist.DueKind]lipgloss.Style{
		tasklist.DueCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		tasklist.DueOverdue:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		tasklist.DueToday:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		tasklist.DueTomorrow:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		tasklist.DueSoon:      lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		tasklist.DueFuture:    lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
	}
)

var (
	statusCycle = []tasklist.StatusFilter{tasklist.StatusAll, tasklist.StatusPending, tasklist.StatusCompleted}
	quickCycle  = []tasklist.QuickFilter{tasklist.QuickAll, tasklist.QuickHigh, tasklist.QuickToday, tasklist.QuickOverdue}
)

type inputMode int

const (
	modeList inputMode = iota
	modeAdd
	modeEdit
	modeSearch
)

// Run starts the full-screen task list.
func Run(ctx context.Context, controller *tasklist.Controller) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}
	program := tea.NewProgram(newModel(ctx, controller), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type model struct {
	ctx        context.Context
	controller *tasklist.Controller

	cursor   int
	mode     inputMode
	input    string
	editID   string
	showHelp bool
	busy     bool
}

type opDoneMsg struct{ err error }

func newModel(ctx context.Context, controller *tasklist.Controller) *model {
	return &model{ctx: ctx, controller: controller}
}

func (m *model) Init() tea.Cmd {
	m.busy = true
	return m.run(m.controller.Refresh)
}

func (m *model) run(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		return opDoneMsg{err: fn(ctx)}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case opDoneMsg:
		m.busy = false
		m.clampCursor()
		return m, nil
	case tea.KeyMsg:
		if m.mode != modeList {
			return m.updateInput(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m *model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.controller.View()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "?", "h":
		m.showHelp = !m.showHelp
	case "r", "f5":
		m.busy = true
		return m, m.run(m.controller.Refresh)
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(view.Items)-1 {
			m.cursor++
		}
	case "right", "n":
		m.controller.GoToPage(view.Page + 1)
		m.cursor = 0
	case "left", "p":
		m.controller.GoToPage(view.Page - 1)
		m.cursor = 0
	case "tab":
		m.controller.SetStatusFilter(nextStatus(m.controller.State().Status))
		m.cursor = 0
	case "f":
		m.controller.SetQuickFilter(nextQuick(m.controller.State().Quick))
		m.cursor = 0
	case "/":
		m.mode = modeSearch
		m.input = m.controller.State().Search
	case "a":
		m.mode = modeAdd
		m.input = ""
	case "e":
		if id, ok := m.selected(view); ok {
			m.mode = modeEdit
			m.editID = id
			m.input = FormatTask(view.Items[m.cursor].Task)
		}
	case " ", "x":
		if id, ok := m.selected(view); ok {
			m.busy = true
			return m, m.run(func(ctx context.Context) error {
				_, err := m.controller.ToggleComplete(ctx, id)
				return err
			})
		}
	case "d":
		if id, ok := m.selected(view); ok {
			m.busy = true
			return m, m.run(func(ctx context.Context) error {
				return m.controller.Delete(ctx, id)
			})
		}
	}
	return m, nil
}

func (m *model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeList
		m.input = ""
		m.editID = ""
		return m, nil
	case tea.KeyEnter:
		mode, text, editID := m.mode, m.input, m.editID
		m.mode = modeList
		m.input = ""
		m.editID = ""
		if mode == modeSearch {
			m.controller.SetSearch(text)
			m.cursor = 0
			return m, nil
		}
		if mode == modeEdit {
			return m, m.submitEdit(editID, text)
		}
		input, err := ParseNewTask(text)
		if err != nil {
			m.controller.Dispatch(tasklist.OperationFailed{Message: err.Error()})
			return m, nil
		}
		m.busy = true
		m.cursor = 0
		return m, m.run(func(ctx context.Context) error {
			_, err := m.controller.Create(ctx, input)
			return err
		})
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	if m.mode == modeSearch {
		m.controller.SetSearch(m.input)
		m.cursor = 0
	}
	return m, nil
}

func (m *model) submitEdit(id, text string) tea.Cmd {
	current, ok := m.controller.State().Find(id)
	if !ok {
		m.controller.Dispatch(tasklist.OperationFailed{Message: domain.ErrTaskNotFound.Message})
		return nil
	}
	patch, err := EditPatch(current, text)
	if err != nil {
		m.controller.Dispatch(tasklist.OperationFailed{Message: err.Error()})
		return nil
	}
	if patch.IsEmpty() {
		return nil
	}
	m.busy = true
	return m.run(func(ctx context.Context) error {
		_, err := m.controller.Update(ctx, id, patch)
		return err
	})
}

func (m *model) selected(view tasklist.View) (string, bool) {
	if m.cursor < 0 || m.cursor >= len(view.Items) {
		return "", false
	}
	return view.Items[m.cursor].Task.ID, true
}

func (m *model) clampCursor() {
	n := len(m.controller.View().Items)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) View() string {
	var b strings.Builder
	state := m.controller.State()
	view := tasklist.Derive(state, m.controller.Today())

	b.WriteString(titleStyle.Render("taskhub") + "\n\n")
	if m.showHelp {
		writeHelp(&b)
		return b.String()
	}

	s := view.Summary
	b.WriteString(summaryStyle.Render(fmt.Sprintf(
		"Total %d  Pending %d  Completed %d  Overdue %d  |  showing %d / %d",
		s.Total, s.Pending, s.Completed, s.Overdue, len(view.Items), view.Filtered,
	)) + "\n")
	b.WriteString(summaryStyle.Render(fmt.Sprintf(
		"status: %s  quick: %s  search: %q", state.Status, state.Quick, state.Search,
	)) + "\n\n")

	if len(view.Items) == 0 {
		if state.Loading {
			b.WriteString("  Loading...\n")
		} else {
			b.WriteString("  No tasks.\n")
		}
	}
	for i, item := range view.Items {
		b.WriteString(renderRow(item, i == m.cursor) + "\n")
	}

	b.WriteString(fmt.Sprintf("\n  page %d of %d\n", view.Page, view.TotalPages))

	switch m.mode {
	case modeAdd:
		b.WriteString(inputStyle.Render("new task (title ; priority ; YYYY-MM-DD ; description): "+m.input) + "\n")
	case modeEdit:
		b.WriteString(inputStyle.Render("edit (empty date clears it): "+m.input) + "\n")
	case modeSearch:
		b.WriteString(inputStyle.Render("search: "+m.input) + "\n")
	}
	if state.LastError != "" {
		b.WriteString(errorStyle.Render("error: "+state.LastError) + "\n")
	}
	footer := "? help | q quit"
	if m.busy {
		footer = "working... | " + footer
	}
	b.WriteString(footerStyle.Render(footer) + "\n")
	return b.String()
}

func renderRow(item tasklist.Item, selected bool) string {
	check := "[ ]"
	if item.Task.Completed {
		check = "[x]"
	}
	title := item.Task.Title
	if item.Task.Completed {
		title = doneStyle.Render(title)
	}
	prio := priorityStyle[item.Task.Priority].Render(string(item.Task.Priority))
	line := fmt.Sprintf("%s %s (%s)", check, title, prio)
	if label := item.Due.Label(); label != "" {
		line += "  " + dueStyle[item.Due.Kind].Render(label)
	}
	if selected {
		return cursorStyle.Render("> ") + line
	}
	return "  " + line
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  r, F5        Refresh\n")
	b.WriteString("  j/k          Move\n")
	b.WriteString("  space, x     Toggle complete\n")
	b.WriteString("  d            Delete\n")
	b.WriteString("  a            Add task\n")
	b.WriteString("  e            Edit task\n")
	b.WriteString("  /            Search\n")
	b.WriteString("  tab          Cycle all / pending / completed\n")
	b.WriteString("  f            Cycle quick filter all / high / today / overdue\n")
	b.WriteString("  n/p          Next / previous page\n")
	b.WriteString("  ?, h         Toggle this help\n\n")
}

func nextStatus(current tasklist.StatusFilter) tasklist.StatusFilter {
	for i, f := range statusCycle {
		if f == current {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return tasklist.StatusAll
}

func nextQuick(current tasklist.QuickFilter) tasklist.QuickFilter {
	for i, f := range quickCycle {
		if f == current {
			return quickCycle[(i+1)%len(quickCycle)]
		}
	}
	return tasklist.QuickAll
}

// ParseNewTask reads "title ; priority ; YYYY-MM-DD ; description" where everything after
// the title is optional.
func ParseNewTask(text string) (domain.NewTask, error) {
	f, err := parseFields(text)
	if err != nil {
		return domain.NewTask{}, err
	}
	input := domain.NewTask{Title: f.title, DueDate: f.due}
	if f.description != nil {
		input.Description = *f.description
	}
	if f.priority != "" {
		input.Priority = string(f.priority)
	}
	return input, nil
}

// FormatTask renders t in the form ParseNewTask and EditPatch read.
func FormatTask(t domain.Task) string {
	due := ""
	if !t.DueDate.IsZero() {
		due = t.DueDate.String()
	}
	return fmt.Sprintf("%s ; %s ; %s ; %s", t.Title, t.Priority, due, t.Description)
}

// EditPatch compares the edited line with current and returns a patch holding only the
// fields that changed. A blank priority keeps the current one; a blank date clears it.
// The description is only touched when the fourth part is present.
func EditPatch(current domain.Task, text string) (domain.TaskPatch, error) {
	f, err := parseFields(text)
	if err != nil {
		return domain.TaskPatch{}, err
	}
	var patch domain.TaskPatch
	if f.title != current.Title {
		patch.Title = &f.title
	}
	if f.priority != "" && f.priority != current.Priority {
		patch.Priority = &f.priority
	}
	if f.description != nil && *f.description != current.Description {
		patch.Description = f.description
	}
	if f.hasDue {
		switch {
		case f.due.IsZero() && !current.DueDate.IsZero():
			patch.DueDate = domain.ClearDate()
		case !f.due.IsZero() && !f.due.Equal(current.DueDate):
			patch.DueDate = domain.SetDate(f.due)
		}
	}
	return patch, nil
}

type fields struct {
	title       string
	priority    domain.Priority
	due         domain.Date
	hasDue      bool
	description *string
}

func parseFields(text string) (fields, error) {
	parts := strings.SplitN(text, ";", 4)
	f := fields{title: strings.TrimSpace(parts[0])}
	if f.title == "" {
		return fields{}, domain.ErrTitleRequired
	}
	if len(parts) > 1 {
		if raw := strings.TrimSpace(parts[1]); raw != "" {
			priority, err := domain.ParsePriority(raw)
			if err != nil {
				return fields{}, err
			}
			f.priority = priority
		}
	}
	if len(parts) > 2 {
		f.hasDue = true
		if raw := strings.TrimSpace(parts[2]); raw != "" {
			due, err := domain.ParseDate(raw)
			if err != nil {
				return fields{}, err
			}
			f.due = due
		}
	}
	if len(parts) > 3 {
		description := strings.TrimSpace(parts[3])
		f.description = &description
	}
	return f, nil
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
