package tasklist

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
)

const genericFailure = "request failed, please try again"

// TaskService is the subset of the API client the controller drives.
type TaskService interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, input domain.NewTask) (*domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type ControllerOption func(*Controller)

// WithClock fixes what "today" means; tests pin it.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller owns a State and applies server results to it through Reduce. Failed calls
// leave the task collection as it was and record LastError. Nothing is retried.
type Controller struct {
	service TaskService
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State
}

func NewController(service TaskService, logger *zap.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		service: service,
		logger:  logger.Named("tasklist"),
		now:     time.Now,
		state:   NewState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View derives the current frame for today's date.
func (c *Controller) View() View {
	return Derive(c.State(), c.Today())
}

func (c *Controller) Today() domain.Date {
	return domain.DateOf(c.now())
}

func (c *Controller) Dispatch(a Action) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, a)
	return c.state
}

func (c *Controller) SetStatusFilter(f StatusFilter) { c.Dispatch(SetStatusFilter{Filter: f}) }
func (c *Controller) SetQuickFilter(f QuickFilter)   { c.Dispatch(SetQuickFilter{Filter: f}) }
func (c *Controller) SetSearch(text string)          { c.Dispatch(SetSearch{Text: text}) }

// GoToPage moves to page, clamped to the pages the current view has.
func (c *Controller) GoToPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pages := Derive(c.state, c.Today()).TotalPages; page > pages {
		page = pages
	}
	c.state = Reduce(c.state, GoToPage{Page: page})
}

// BeginFetch issues the next sequence number and marks the list as loading.
func (c *Controller) BeginFetch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.state.FetchSeq + 1
	c.state = Reduce(c.state, FetchStarted{Seq: seq})
	return seq
}

// Refresh reloads the collection. A response overtaken by a later Refresh is ignored.
func (c *Controller) Refresh(ctx context.Context) error {
	seq := c.BeginFetch()
	tasks, err := c.service.ListTasks(ctx)
	if err != nil {
		c.logger.Error("fetch tasks failed", zap.Uint64("seq", seq), zap.Error(err))
		c.Dispatch(FetchFailed{Seq: seq, Message: failureMessage(err)})
		return err
	}
	c.Dispatch(FetchSucceeded{Seq: seq, Tasks: tasks})
	return nil
}

func (c *Controller) Create(ctx context.Context, input domain.NewTask) (*domain.Task, error) {
	task, err := c.service.CreateTask(ctx, input)
	if err != nil {
		return nil, c.fail("create task failed", err)
	}
	c.Dispatch(TaskCreated{Task: *task})
	return task, nil
}

func (c *Controller) Update(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	task, err := c.service.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, c.fail("update task failed", err, zap.String("task_id", id))
	}
	c.Dispatch(TaskUpdated{Task: *task})
	return task, nil
}

// ToggleComplete flips the completion flag. Only the completed field is sent, so other
// fields held by this client cannot overwrite newer server values.
func (c *Controller) ToggleComplete(ctx context.Context, id string) (*domain.Task, error) {
	current, ok := c.State().Find(id)
	if !ok {
		return nil, c.fail("toggle task failed", domain.ErrTaskNotFound, zap.String("task_id", id))
	}
	completed := !current.Completed
	return c.Update(ctx, id, domain.TaskPatch{Completed: &completed})
}

func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.service.DeleteTask(ctx, id); err != nil {
		return c.fail("delete task failed", err, zap.String("task_id", id))
	}
	c.Dispatch(TaskDeleted{ID: id})
	return nil
}

func (c *Controller) fail(msg string, err error, fields ...zap.Field) error {
	c.logger.Error(msg, append(fields, zap.Error(err))...)
	c.Dispatch(OperationFailed{Message: failureMessage(err)})
	return err
}

func failureMessage(err error) string {
	var dErr *domain.Error
	if errors.As(err, &dErr) && dErr.Message != "" {
		return dErr.Message
	}
	return genericFailure
}
