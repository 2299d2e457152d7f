package store

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tixtracker/tix/internal/model"
)

// TaskStore is the persistence contract for tasks. Both backends honor
// identical externally observable behavior for the same call sequence,
// so the presentation layer can swap them freely.
//
// Absence of a task is never an error: GetTask returns (nil, nil),
// UpdateTask silently no-ops, DeleteTask reports a boolean. Errors are
// reserved for invalid input and backend I/O failures.
type TaskStore interface {
	// AddTask allocates an ID, constructs the task, and persists it.
	// Text is trimmed; empty or all-whitespace text is rejected.
	AddTask(ctx context.Context, text string, priority model.Priority, tags []string) (model.Task, error)

	// GetTask looks up a task by ID. Absent IDs yield (nil, nil).
	GetTask(ctx context.Context, id int64) (*model.Task, error)

	// UpdateTask replaces the stored task with the same ID. Unknown
	// IDs are ignored.
	UpdateTask(ctx context.Context, task model.Task) error

	// DeleteTask removes a task, reporting whether it was present.
	DeleteTask(ctx context.Context, id int64) (bool, error)

	// LoadTasks returns every task in storage order.
	LoadTasks(ctx context.Context) ([]model.Task, error)

	// SaveTasks replaces the entire task set. The next ID becomes
	// max(id)+1, or 1 when the set is empty.
	SaveTasks(ctx context.Context, tasks []model.Task) error

	// GetActiveTasks returns tasks with completed == false.
	GetActiveTasks(ctx context.Context) ([]model.Task, error)

	// GetCompletedTasks returns tasks with completed == true.
	GetCompletedTasks(ctx context.Context) ([]model.Task, error)

	// ListTasks returns one 1-based page of tasks in storage order.
	ListTasks(ctx context.Context, page, pageSize int) ([]model.Task, error)

	// IterTasks lazily yields up to count tasks starting at the given
	// offset. The sequence is restartable; each range re-reads.
	IterTasks(ctx context.Context, start, count int) iter.Seq2[model.Task, error]

	// Close releases the backing file or database handle.
	Close() error
}

// Default file names inside the data directory.
const (
	tasksFileName    = "tasks.json"
	tasksDBName      = "tasks.db"
	archiveFileName  = "archived.json"
	contextsDirName  = "contexts"
	templatesDirName = "templates"
	attachDirName    = "attachments"
	historyFileName  = "history.json"
	activeCtxName    = "active_context"
)

// TaskFilePath returns the JSON task file for a context inside dir.
// The default context lives at dir/tasks.json, every other context at
// dir/contexts/<name>.json.
func TaskFilePath(dir, contextName string) string {
	if contextName == "" || contextName == model.DefaultContext {
		return filepath.Join(dir, tasksFileName)
	}
	return filepath.Join(dir, contextsDirName, contextName+".json")
}

// ArchiveFilePath returns the archive file for a context inside dir.
func ArchiveFilePath(dir, contextName string) string {
	if contextName == "" || contextName == model.DefaultContext {
		return filepath.Join(dir, archiveFileName)
	}
	return filepath.Join(dir, contextsDirName, contextName+"_archived.json")
}

// Open constructs the TaskStore selected by cfg for the given context.
func Open(cfg *model.AppConfig, contextName string, logger *zap.Logger) (TaskStore, error) {
	switch cfg.Storage.Backend {
	case model.BackendSQLite:
		return NewSQLiteTaskStore(filepath.Join(cfg.Storage.Dir, tasksDBName), logger)
	case model.BackendJSON, "":
		return NewJSONTaskStore(TaskFilePath(cfg.Storage.Dir, contextName), logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
