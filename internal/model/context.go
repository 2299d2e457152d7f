package model

import "time"

// DefaultContext is the workspace every installation starts with.
// It cannot be deleted.
const DefaultContext = "default"

// Context is a named, isolated workspace. Each context maps to its own
// task and archive files.
type Context struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
