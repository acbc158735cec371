package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps user input onto a Priority. Empty input yields the default.
func ParsePriority(value string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", NewError(ErrCodeInvalid, "priority must be one of low, medium, high")
	}
}

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Task represents a user-owned to-do item. OwnerID is never serialized.
type Task struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Completed   bool      `json:"completed"`
	DueDate     Date      `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Completed
}

// HasDueDate reports whether a due date is set.
func (t *Task) HasDueDate() bool {
	return t != nil && !t.DueDate.IsZero()
}

// NewTask is the create input. Owner is never part of it.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DueDate     Date   `json:"dueDate"`
}

// Build validates the input and returns a task owned by ownerID.
func (n NewTask) Build(ownerID string) (*Task, error) {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	priority, err := ParsePriority(n.Priority)
	if err != nil {
		return nil, err
	}
	return &Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(n.Description),
		Priority:    priority,
		DueDate:     n.DueDate,
	}, nil
}

// TaskPatch carries a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *Priority
	DueDate     OptionalDate
}

type taskPatchWire struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Completed   *bool        `json:"completed"`
	Priority    *string      `json:"priority"`
	DueDate     OptionalDate `json:"dueDate"`
}

// UnmarshalJSON decodes a patch, normalising and validating supplied fields.
func (p *TaskPatch) UnmarshalJSON(data []byte) error {
	var wire taskPatchWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	patch := TaskPatch{Completed: wire.Completed}
	if wire.Title != nil {
		title := strings.TrimSpace(*wire.Title)
		patch.Title = &title
	}
	if wire.Description != nil {
		desc := strings.TrimSpace(*wire.Description)
		patch.Description = &desc
	}
	if wire.Priority != nil && strings.TrimSpace(*wire.Priority) != "" {
		priority, err := ParsePriority(*wire.Priority)
		if err != nil {
			return err
		}
		patch.Priority = &priority
	}
	patch.DueDate = wire.DueDate
	*p = patch
	return nil
}

// MarshalJSON emits only the supplied fields.
func (p TaskPatch) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, 5)
	if p.Title != nil {
		out["title"] = *p.Title
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.Completed != nil {
		out["completed"] = *p.Completed
	}
	if p.Priority != nil {
		out["priority"] = *p.Priority
	}
	if p.DueDate.Set {
		out["dueDate"] = p.DueDate.Value
	}
	return json.Marshal(out)
}

// Validate rejects a patch that would break task invariants.
func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrTitleRequired
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return NewError(ErrCodeInvalid, "priority must be one of low, medium, high")
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil && p.Priority == nil && !p.DueDate.Set
}

// Apply writes the supplied fields onto t.
func (p TaskPatch) Apply(t *Task) {
	if t == nil {
		return
	}
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Value
	}
}
