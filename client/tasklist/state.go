package tasklist

import "github.com/fastygo/taskhub/domain"

// State is the full client-side model of the task list. Reduce is the only way it changes.
type State struct {
	Tasks  []domain.Task
	Status StatusFilter
	Quick  QuickFilter
	Search string
	Page   int

	Loading   bool
	LastError string
	// FetchSeq is the sequence number of the latest fetch issued. Results carrying any
	// other number are dropped. Local writes advance it too, so a fetch that was in flight
	// during a write cannot overwrite the written task.
	FetchSeq uint64
}

func NewState() State {
	return State{
		Tasks:  []domain.Task{},
		Status: StatusAll,
		Quick:  QuickAll,
		Page:   1,
	}
}

// Action is an event applied by Reduce.
type Action interface {
	action()
}

type SetStatusFilter struct{ Filter StatusFilter }
type SetQuickFilter struct{ Filter QuickFilter }
type SetSearch struct{ Text string }
type GoToPage struct{ Page int }

type FetchStarted struct{ Seq uint64 }

type FetchSucceeded struct {
	Seq   uint64
	Tasks []domain.Task
}

type FetchFailed struct {
	Seq     uint64
	Message string
}

type TaskCreated struct{ Task domain.Task }
type TaskUpdated struct{ Task domain.Task }
type TaskDeleted struct{ ID string }
type OperationFailed struct{ Message string }

func (SetStatusFilter) action() {}
func (SetQuickFilter) action()  {}
func (SetSearch) action()       {}
func (GoToPage) action()        {}
func (FetchStarted) action()    {}
func (FetchSucceeded) action()  {}
func (FetchFailed) action()     {}
func (TaskCreated) action()     {}
func (TaskUpdated) action()     {}
func (TaskDeleted) action()     {}
func (OperationFailed) action() {}

// Reduce returns the state after a. The input state and its task slice are never modified.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetStatusFilter:
		s.Status = a.Filter
		s.Page = 1
	case SetQuickFilter:
		s.Quick = a.Filter
		s.Page = 1
	case SetSearch:
		s.Search = a.Text
		s.Page = 1
	case GoToPage:
		s.Page = max(1, a.Page)
	case FetchStarted:
		if a.Seq > s.FetchSeq {
			s.FetchSeq = a.Seq
		}
		s.Loading = true
	case FetchSucceeded:
		if a.Seq != s.FetchSeq {
			return s
		}
		s.Tasks = cloneTasks(a.Tasks)
		s.Loading = false
		s.LastError = ""
	case FetchFailed:
		if a.Seq != s.FetchSeq {
			return s
		}
		s.Loading = false
		s.LastError = a.Message
	case TaskCreated:
		tasks := make([]domain.Task, 0, len(s.Tasks)+1)
		tasks = append(tasks, a.Task)
		s.Tasks = append(tasks, s.Tasks...)
		s.Page = 1
		s.LastError = ""
		s = supersedeFetch(s)
	case TaskUpdated:
		tasks := cloneTasks(s.Tasks)
		for i := range tasks {
			if tasks[i].ID == a.Task.ID {
				tasks[i] = a.Task
				break
			}
		}
		s.Tasks = tasks
		s.LastError = ""
		s = supersedeFetch(s)
	case TaskDeleted:
		tasks := make([]domain.Task, 0, len(s.Tasks))
		for _, task := range s.Tasks {
			if task.ID != a.ID {
				tasks = append(tasks, task)
			}
		}
		s.Tasks = tasks
		s.LastError = ""
		s = supersedeFetch(s)
	case OperationFailed:
		s.LastError = a.Message
	}
	return s
}

// supersedeFetch drops whatever fetch is outstanding.
func supersedeFetch(s State) State {
	if s.Loading {
		s.FetchSeq++
		s.Loading = false
	}
	return s
}

// Find returns the task with id, if present.
func (s State) Find(id string) (domain.Task, bool) {
	for _, task := range s.Tasks {
		if task.ID == id {
			return task, true
		}
	}
	return domain.Task{}, false
}

func cloneTasks(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	return out
}
