package tasklist

import (
	"sort"
	"strings"

	"github.com/fastygo/taskhub/domain"
)

// PageSize is the number of tasks per page.
const PageSize = 5

type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusPending   StatusFilter = "pending"
	StatusCompleted StatusFilter = "completed"
)

type QuickFilter string

const (
	QuickAll     QuickFilter = "all"
	QuickHigh    QuickFilter = "high"
	QuickToday   QuickFilter = "today"
	QuickOverdue QuickFilter = "overdue"
)

// Item is one rendered row.
type Item struct {
	Task domain.Task
	Due  DueStatus
}

// Summary counts cover the whole collection, not the filtered view.
type Summary struct {
	Total     int
	Pending   int
	Completed int
	Overdue   int
}

// View is everything a renderer needs for one frame.
type View struct {
	Items      []Item
	Page       int
	TotalPages int
	// Filtered is the match count before pagination.
	Filtered int
	Summary  Summary
}

// Derive runs the pipeline over s for the given day. It never mutates s.
func Derive(s State, today domain.Date) View {
	matched := Filter(s.Tasks, s.Status, s.Search, s.Quick, today)
	SortByDue(matched)
	page, pages, items := Paginate(matched, s.Page)

	rows := make([]Item, len(items))
	for i, task := range items {
		rows[i] = Item{Task: task, Due: Classify(task, today)}
	}
	return View{
		Items:      rows,
		Page:       page,
		TotalPages: pages,
		Filtered:   len(matched),
		Summary:    Summarize(s.Tasks, today),
	}
}

// Filter applies the status, search and quick filters in that order and returns a new slice.
func Filter(tasks []domain.Task, status StatusFilter, search string, quick QuickFilter, today domain.Date) []domain.Task {
	query := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if !matchStatus(task, status) || !matchSearch(task, query) || !matchQuick(task, quick, today) {
			continue
		}
		out = append(out, task)
	}
	return out
}

func matchStatus(task domain.Task, status StatusFilter) bool {
	switch status {
	case StatusPending:
		return !task.Completed
	case StatusCompleted:
		return task.Completed
	default:
		return true
	}
}

func matchSearch(task domain.Task, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(task.Title), query) ||
		strings.Contains(strings.ToLower(task.Description), query)
}

func matchQuick(task domain.Task, quick QuickFilter, today domain.Date) bool {
	switch quick {
	case QuickHigh:
		return task.Priority == domain.PriorityHigh
	case QuickToday:
		return !task.Completed && task.HasDueDate() && task.DueDate.Equal(today)
	case QuickOverdue:
		return !task.Completed && task.HasDueDate() && task.DueDate.Before(today)
	default:
		return true
	}
}

// SortByDue orders tasks by due date ascending with undated tasks last. Ties keep their
// incoming order.
func SortByDue(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.Before(b)
		}
	})
}

// Paginate clamps page into [1, pages] and returns that page's slice.
func Paginate(tasks []domain.Task, page int) (clamped, pages int, items []domain.Task) {
	pages = (len(tasks) + PageSize - 1) / PageSize
	if pages < 1 {
		pages = 1
	}
	clamped = page
	if clamped < 1 {
		clamped = 1
	}
	if clamped > pages {
		clamped = pages
	}
	start := (clamped - 1) * PageSize
	end := start + PageSize
	if end > len(tasks) {
		end = len(tasks)
	}
	if start > end {
		start = end
	}
	return clamped, pages, tasks[start:end]
}

// Summarize counts tasks by state. Overdue means pending and due strictly before today.
func Summarize(tasks []domain.Task, today domain.Date) Summary {
	var s Summary
	s.Total = len(tasks)
	for _, task := range tasks {
		if task.Completed {
			s.Completed++
			continue
		}
		s.Pending++
		if task.HasDueDate() && task.DueDate.Before(today) {
			s.Overdue++
		}
	}
	return s
}
