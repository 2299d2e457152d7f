package model

import (
	"slices"
	"strings"
	"time"
)

// Priority levels for a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority normalizes a priority string. Unknown or empty values
// fall back to medium.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// Task is the unit of work tracked by a store. IDs are assigned by the
// store and are immutable afterwards.
type Task struct {
	ID          int64      `json:"id" db:"id"`
	Text        string     `json:"text" db:"text"`
	Priority    Priority   `json:"priority" db:"priority"`
	Completed   bool       `json:"completed" db:"completed"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	Tags        []string   `json:"tags" db:"tags"`

	// Extended fields. Stores round-trip them; beyond rejecting
	// self-parenting no hierarchy invariants are enforced.
	Attachments []string `json:"attachments,omitempty" db:"-"`
	Links       []string `json:"links,omitempty" db:"-"`
	ParentID    *int64   `json:"parent_id,omitempty" db:"-"`
	Subtasks    []int64  `json:"subtasks,omitempty" db:"-"`
	Notes       string   `json:"notes,omitempty" db:"-"`
	IsGlobal    bool     `json:"is_global,omitempty" db:"-"`
}

// NewTask constructs an unsaved task with the creation timestamp set.
// The store assigns the ID.
func NewTask(text string, priority Priority, tags []string) Task {
	t := Task{
		Text:      strings.TrimSpace(text),
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	for _, tag := range tags {
		t.AddTag(tag)
	}
	return t
}

// MarkDone marks the task completed and stamps completed_at.
func (t *Task) MarkDone() {
	now := time.Now().UTC()
	t.Completed = true
	t.CompletedAt = &now
}

// Reactivate clears the completed state and its timestamp.
func (t *Task) Reactivate() {
	t.Completed = false
	t.CompletedAt = nil
}

// AddTag appends a tag if not already present. Insertion order is kept.
func (t *Task) AddTag(tag string) {
	if tag == "" || slices.Contains(t.Tags, tag) {
		return
	}
	t.Tags = append(t.Tags, tag)
}

// RemoveTag deletes a tag, reporting whether it was present.
func (t *Task) RemoveTag(tag string) bool {
	i := slices.Index(t.Tags, tag)
	if i < 0 {
		return false
	}
	t.Tags = slices.Delete(t.Tags, i, i+1)
	return true
}

// AddLink appends a URL if not already present.
func (t *Task) AddLink(url string) {
	if url == "" || slices.Contains(t.Links, url) {
		return
	}
	t.Links = append(t.Links, url)
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	c.Tags = slices.Clone(t.Tags)
	c.Attachments = slices.Clone(t.Attachments)
	c.Links = slices.Clone(t.Links)
	c.Subtasks = slices.Clone(t.Subtasks)
	if t.CompletedAt != nil {
		done := *t.CompletedAt
		c.CompletedAt = &done
	}
	if t.ParentID != nil {
		parent := *t.ParentID
		c.ParentID = &parent
	}
	return c
}

// Equal reports field-wise equality. Timestamps are compared with
// time.Time.Equal so monotonic clock readings don't matter.
func (t Task) Equal(o Task) bool {
	if t.ID != o.ID ||
		t.Text != o.Text ||
		t.Priority != o.Priority ||
		t.Completed != o.Completed ||
		t.Notes != o.Notes ||
		t.IsGlobal != o.IsGlobal {
		return false
	}
	if !t.CreatedAt.Equal(o.CreatedAt) {
		return false
	}
	if (t.CompletedAt == nil) != (o.CompletedAt == nil) {
		return false
	}
	if t.CompletedAt != nil && !t.CompletedAt.Equal(*o.CompletedAt) {
		return false
	}
	if (t.ParentID == nil) != (o.ParentID == nil) {
		return false
	}
	if t.ParentID != nil && *t.ParentID != *o.ParentID {
		return false
	}
	return stringsEqual(t.Tags, o.Tags) &&
		stringsEqual(t.Attachments, o.Attachments) &&
		stringsEqual(t.Links, o.Links) &&
		slices.Equal(t.Subtasks, o.Subtasks)
}

// stringsEqual treats nil and empty slices as the same.
func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	return slices.Equal(a, b)
}
