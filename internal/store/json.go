package store

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tixtracker/tix/internal/model"
)

// JSONTaskStore persists tasks in a single JSON document and serves
// reads from an in-memory index rebuilt at construction. Every mutation
// rewrites the whole file, so bulk changes should go through SaveTasks
// rather than repeated UpdateTask calls.
//
// The store owns its file exclusively for the process lifetime. A
// concurrent external writer races with the index; that is an accepted
// limitation of a single-user tool.
type JSONTaskStore struct {
	path   string
	logger *zap.Logger

	index  map[int64]model.Task
	order  []int64 // insertion-ordered IDs; defines listing order
	nextID int64
}

// NewJSONTaskStore opens (or creates) the task file at path and builds
// the in-memory index. Legacy bare-array documents are upgraded and
// rewritten in place; unreadable or malformed documents are treated as
// an empty store and healed on the next write.
func NewJSONTaskStore(path string, logger *zap.Logger) (*JSONTaskStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}

	s := &JSONTaskStore{
		path:   path,
		logger: logger,
		index:  make(map[int64]model.Task),
		nextID: 1,
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading task file %s: %w", path, err)
	}

	doc, upgraded, decodeErr := decodeDocument(raw)
	if decodeErr != nil {
		logger.Warn("treating malformed task file as empty",
			zap.String("path", path),
			zap.Error(decodeErr),
		)
		return s, nil
	}

	s.nextID = doc.NextID
	if s.nextID < 1 {
		s.nextID = 1
	}
	for _, task := range doc.Tasks {
		if _, dup := s.index[task.ID]; dup {
			continue
		}
		s.index[task.ID] = task
		s.order = append(s.order, task.ID)
	}

	if upgraded {
		if err := s.persist(); err != nil {
			return nil, err
		}
		logger.Info("upgraded legacy task document",
			zap.String("path", path),
			zap.Int("tasks", len(s.order)),
			zap.Int64("next_id", s.nextID),
		)
	}

	return s, nil
}

// persist flushes the full index to disk in the current document shape.
func (s *JSONTaskStore) persist() error {
	doc := document{NextID: s.nextID, Tasks: make([]model.Task, 0, len(s.order))}
	for _, id := range s.order {
		doc.Tasks = append(doc.Tasks, s.index[id])
	}

	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing task file %s: %w", s.path, err)
	}
	return nil
}

// AddTask allocates the next ID, stores the task, and persists.
func (s *JSONTaskStore) AddTask(ctx context.Context, text string, priority model.Priority, tags []string) (model.Task, error) {
	if strings.TrimSpace(text) == "" {
		return model.Task{}, fmt.Errorf("task text must not be empty")
	}

	task := model.NewTask(text, priority, tags)
	task.ID = s.nextID

	s.index[task.ID] = task.Clone()
	s.order = append(s.order, task.ID)
	s.nextID++

	if err := s.persist(); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// GetTask returns the task with the given ID, or (nil, nil) if absent.
func (s *JSONTaskStore) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	task, ok := s.index[id]
	if !ok {
		return nil, nil
	}
	c := task.Clone()
	return &c, nil
}

// UpdateTask replaces the stored task if its ID exists; unknown IDs
// are a silent no-op.
func (s *JSONTaskStore) UpdateTask(ctx context.Context, task model.Task) error {
	if task.ParentID != nil && *task.ParentID == task.ID {
		return fmt.Errorf("task %d cannot be its own parent", task.ID)
	}
	if _, ok := s.index[task.ID]; !ok {
		return nil
	}
	s.index[task.ID] = task.Clone()
	return s.persist()
}

// DeleteTask removes a task, reporting whether it was present. The
// allocator is not rewound, so the deleted ID is never reissued.
func (s *JSONTaskStore) DeleteTask(ctx context.Context, id int64) (bool, error) {
	if _, ok := s.index[id]; !ok {
		return false, nil
	}
	delete(s.index, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

// LoadTasks returns all tasks in insertion order.
func (s *JSONTaskStore) LoadTasks(ctx context.Context) ([]model.Task, error) {
	return s.slice(0, len(s.order)), nil
}

// SaveTasks replaces the entire task set. Duplicate IDs keep the last
// occurrence. The allocator resets to max(id)+1, or 1 when empty.
func (s *JSONTaskStore) SaveTasks(ctx context.Context, tasks []model.Task) error {
	index := make(map[int64]model.Task, len(tasks))
	order := make([]int64, 0, len(tasks))
	var maxID int64
	for _, task := range tasks {
		if _, seen := index[task.ID]; !seen {
			order = append(order, task.ID)
		}
		index[task.ID] = task.Clone()
		if task.ID > maxID {
			maxID = task.ID
		}
	}

	s.index = index
	s.order = order
	s.nextID = maxID + 1
	return s.persist()
}

// GetActiveTasks returns incomplete tasks in insertion order.
func (s *JSONTaskStore) GetActiveTasks(ctx context.Context) ([]model.Task, error) {
	return s.filter(func(t model.Task) bool { return !t.Completed }), nil
}

// GetCompletedTasks returns completed tasks in insertion order.
func (s *JSONTaskStore) GetCompletedTasks(ctx context.Context) ([]model.Task, error) {
	return s.filter(func(t model.Task) bool { return t.Completed }), nil
}

// ListTasks returns one 1-based page of the current ordering.
func (s *JSONTaskStore) ListTasks(ctx context.Context, page, pageSize int) ([]model.Task, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("page and page size must be positive")
	}
	start := (page - 1) * pageSize
	return s.slice(start, start+pageSize), nil
}

// IterTasks lazily yields up to count tasks starting at the given
// offset. The returned sequence snapshots the ordering when ranged, so
// it can be restarted.
func (s *JSONTaskStore) IterTasks(ctx context.Context, start, count int) iter.Seq2[model.Task, error] {
	return func(yield func(model.Task, error) bool) {
		if start < 0 {
			start = 0
		}
		for _, task := range s.slice(start, start+count) {
			if !yield(task, nil) {
				return
			}
		}
	}
}

// Close is a no-op; the file handle is not held open between writes.
func (s *JSONTaskStore) Close() error {
	return nil
}

// slice copies tasks [start, end) of the current ordering.
func (s *JSONTaskStore) slice(start, end int) []model.Task {
	if start < 0 {
		start = 0
	}
	if end > len(s.order) {
		end = len(s.order)
	}
	if start >= end {
		return []model.Task{}
	}
	tasks := make([]model.Task, 0, end-start)
	for _, id := range s.order[start:end] {
		tasks = append(tasks, s.index[id].Clone())
	}
	return tasks
}

func (s *JSONTaskStore) filter(keep func(model.Task) bool) []model.Task {
	tasks := make([]model.Task, 0, len(s.order))
	for _, id := range s.order {
		if task := s.index[id]; keep(task) {
			tasks = append(tasks, task.Clone())
		}
	}
	return tasks
}
