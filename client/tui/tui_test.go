package tui

import (
	"bytes"
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskhub/client/tasklist"
	"github.com/fastygo/taskhub/domain"
)

func TestParseNewTask(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    domain.NewTask
		wantErr error
	}{
		{name: "title only", input: "  Buy milk ", want: domain.NewTask{Title: "Buy milk"}},
		{name: "with priority", input: "Pay bills ; HIGH", want: domain.NewTask{Title: "Pay bills", Priority: "high"}},
		{
			name:  "with date",
			input: "Pay bills;low;2024-03-15",
			want:  domain.NewTask{Title: "Pay bills", Priority: "low", DueDate: domain.NewDate(2024, time.March, 15)},
		},
		{name: "blank priority defaults", input: "Walk ; ; ", want: domain.NewTask{Title: "Walk"}},
		{
			name:  "with description",
			input: "Groceries ; low ; ; milk; bread",
			want:  domain.NewTask{Title: "Groceries", Priority: "low", Description: "milk; bread"},
		},
		{name: "missing title", input: " ; high", wantErr: domain.ErrTitleRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNewTask(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseNewTask("Trip ; urgent")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = ParseNewTask("Trip ; high ; next week")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestEditPatch(t *testing.T) {
	due := domain.NewDate(2024, time.March, 15)
	current := domain.Task{ID: "t1", Title: "Pay bills", Description: "gas", Priority: domain.PriorityHigh, DueDate: due}

	t.Run("unchanged line is empty", func(t *testing.T) {
		patch, err := EditPatch(current, FormatTask(current))
		require.NoError(t, err)
		assert.True(t, patch.IsEmpty())
	})

	t.Run("only changed fields", func(t *testing.T) {
		patch, err := EditPatch(current, "Pay all bills ; high ; 2024-03-15 ; gas")
		require.NoError(t, err)
		require.NotNil(t, patch.Title)
		assert.Equal(t, "Pay all bills", *patch.Title)
		assert.Nil(t, patch.Priority)
		assert.Nil(t, patch.Description)
		assert.Nil(t, patch.Completed)
		assert.False(t, patch.DueDate.Set)
	})

	t.Run("blank date clears", func(t *testing.T) {
		patch, err := EditPatch(current, "Pay bills ; high ;  ; gas")
		require.NoError(t, err)
		assert.Equal(t, domain.ClearDate(), patch.DueDate)
		assert.Nil(t, patch.Title)
	})

	t.Run("new date and priority", func(t *testing.T) {
		patch, err := EditPatch(current, "Pay bills ; low ; 2024-03-20")
		require.NoError(t, err)
		require.NotNil(t, patch.Priority)
		assert.Equal(t, domain.PriorityLow, *patch.Priority)
		assert.Equal(t, domain.SetDate(domain.NewDate(2024, time.March, 20)), patch.DueDate)
		assert.Nil(t, patch.Description, "description untouched without a fourth part")
	})

	t.Run("blank priority keeps current", func(t *testing.T) {
		patch, err := EditPatch(current, "Pay bills ; ; 2024-03-15 ; electricity")
		require.NoError(t, err)
		assert.Nil(t, patch.Priority)
		require.NotNil(t, patch.Description)
		assert.Equal(t, "electricity", *patch.Description)
	})

	t.Run("title only leaves date alone", func(t *testing.T) {
		patch, err := EditPatch(current, "Pay bills")
		require.NoError(t, err)
		assert.True(t, patch.IsEmpty())
	})

	t.Run("blank title rejected", func(t *testing.T) {
		_, err := EditPatch(current, " ; high")
		assert.ErrorIs(t, err, domain.ErrTitleRequired)
	})
}

func TestFormatTaskWithoutDate(t *testing.T) {
	task := domain.Task{Title: "Walk", Priority: domain.PriorityLow}
	assert.Equal(t, "Walk ; low ;  ; ", FormatTask(task))

	patch, err := EditPatch(task, FormatTask(task))
	require.NoError(t, err)
	assert.True(t, patch.IsEmpty())
}

func TestFilterCycles(t *testing.T) {
	assert.Equal(t, tasklist.StatusPending, nextStatus(tasklist.StatusAll))
	assert.Equal(t, tasklist.StatusAll, nextStatus(tasklist.StatusCompleted))
	assert.Equal(t, tasklist.QuickHigh, nextQuick(tasklist.QuickAll))
	assert.Equal(t, tasklist.QuickAll, nextQuick(tasklist.QuickOverdue))
}

func TestRenderRow(t *testing.T) {
	today := domain.NewDate(2024, time.March, 15)
	task := domain.Task{ID: "a", Title: "Pay bills", Priority: domain.PriorityHigh, DueDate: today}
	row := renderRow(tasklist.Item{Task: task, Due: tasklist.Classify(task, today)}, true)
	assert.Contains(t, row, "[ ]")
	assert.Contains(t, row, "Pay bills")
	assert.Contains(t, row, "Due today")
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

type recordingService struct {
	tasks   []domain.Task
	patches map[string]domain.TaskPatch
}

func (s *recordingService) ListTasks(context.Context) ([]domain.Task, error) {
	return append([]domain.Task(nil), s.tasks...), nil
}

func (s *recordingService) CreateTask(context.Context, domain.NewTask) (*domain.Task, error) {
	return nil, domain.ErrInternal
}

func (s *recordingService) UpdateTask(_ context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	s.patches[id] = patch
	for _, task := range s.tasks {
		if task.ID == id {
			patch.Apply(&task)
			return &task, nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (s *recordingService) DeleteTask(context.Context, string) error { return nil }

func TestEditKeySendsPatch(t *testing.T) {
	due := domain.NewDate(2024, time.March, 15)
	svc := &recordingService{
		tasks:   []domain.Task{{ID: "t1", Title: "Pay bills", Priority: domain.PriorityHigh, DueDate: due}},
		patches: map[string]domain.TaskPatch{},
	}
	controller := tasklist.NewController(svc, nil, tasklist.WithClock(func() time.Time {
		return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, controller.Refresh(context.Background()))

	m := newModel(context.Background(), controller)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	require.Equal(t, modeEdit, m.mode)
	assert.Equal(t, "Pay bills ; high ; 2024-03-15 ; ", m.input)

	m.input = "Pay bills ; high ;  ; "
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	done, ok := cmd().(opDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	patch := svc.patches["t1"]
	assert.Equal(t, domain.ClearDate(), patch.DueDate)
	assert.Nil(t, patch.Title)
	assert.Nil(t, patch.Completed)

	task, _ := controller.State().Find("t1")
	assert.False(t, task.HasDueDate())
}
