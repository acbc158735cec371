package tasklist

import (
	"fmt"

	"github.com/fastygo/taskhub/domain"
)

// DueKind classifies a task relative to today.
type DueKind int

const (
	DueNone DueKind = iota
	DueCompleted
	DueOverdue
	DueToday
	DueTomorrow
	DueSoon
	DueFuture
)

var dueKindNames = [...]string{"none", "completed", "overdue", "today", "tomorrow", "soon", "future"}

func (k DueKind) String() string {
	if int(k) < len(dueKindNames) {
		return dueKindNames[k]
	}
	return fmt.Sprintf("DueKind(%d)", int(k))
}

// soonWindow is the last day count still reported as DueSoon.
const soonWindow = 3

// DueStatus is the classification plus the day distance it was derived from.
// Days is positive for future dates and counts overdue days for DueOverdue.
type DueStatus struct {
	Kind DueKind
	Days int
}

// Classify is total: every task maps to exactly one DueKind. Tasks without a due date are
// DueNone even when completed.
func Classify(task domain.Task, today domain.Date) DueStatus {
	if task.DueDate.IsZero() {
		return DueStatus{Kind: DueNone}
	}
	if task.Completed {
		return DueStatus{Kind: DueCompleted}
	}

	diff := task.DueDate.DaysSince(today)
	switch {
	case diff < 0:
		return DueStatus{Kind: DueOverdue, Days: -diff}
	case diff == 0:
		return DueStatus{Kind: DueToday}
	case diff == 1:
		return DueStatus{Kind: DueTomorrow, Days: 1}
	case diff <= soonWindow:
		return DueStatus{Kind: DueSoon, Days: diff}
	default:
		return DueStatus{Kind: DueFuture, Days: diff}
	}
}

// Label is the text shown next to a task; DueNone has none.
func (s DueStatus) Label() string {
	switch s.Kind {
	case DueCompleted:
		return "Completed"
	case DueOverdue:
		return fmt.Sprintf("Overdue by %d days", s.Days)
	case DueToday:
		return "Due today"
	case DueTomorrow:
		return "Due tomorrow"
	case DueSoon, DueFuture:
		return fmt.Sprintf("%d days left", s.Days)
	default:
		return ""
	}
}
