package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tixtracker/tix/internal/model"
)

// ArchiveStore holds tasks moved out of the active store. Archived
// tasks keep their original IDs; the archive has no allocator of its
// own. Moving a task between the active store and the archive is two
// separate writes by the caller and is not atomic: a failure between
// them can lose or duplicate the task.
type ArchiveStore struct {
	path   string
	logger *zap.Logger
}

// archiveDocument is the on-disk shape: the active store's task list
// without the allocator.
type archiveDocument struct {
	Tasks []model.Task `json:"tasks"`
}

// NewArchiveStore opens (or creates) the archive file at path.
func NewArchiveStore(path string, logger *zap.Logger) (*ArchiveStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory %s: %w", dir, err)
	}

	s := &ArchiveStore{path: path, logger: logger}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// read loads the archived task list, healing malformed files to empty.
func (s *ArchiveStore) read() ([]model.Task, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading archive file %s: %w", s.path, err)
	}

	var loose struct {
		Tasks *[]taskRecord `json:"tasks"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil || loose.Tasks == nil {
		s.logger.Warn("treating malformed archive file as empty",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil, nil
	}

	tasks := make([]model.Task, 0, len(*loose.Tasks))
	for _, rec := range *loose.Tasks {
		tasks = append(tasks, normalizeTask(rec))
	}
	return tasks, nil
}

func (s *ArchiveStore) write(tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.MarshalIndent(archiveDocument{Tasks: tasks}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding archive document: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing archive file %s: %w", s.path, err)
	}
	return nil
}

// LoadTasks returns all archived tasks in file order.
func (s *ArchiveStore) LoadTasks(ctx context.Context) ([]model.Task, error) {
	return s.read()
}

// SaveTasks replaces the whole archive.
func (s *ArchiveStore) SaveTasks(ctx context.Context, tasks []model.Task) error {
	return s.write(tasks)
}

// Add appends a task to the archive, keeping its original ID.
func (s *ArchiveStore) Add(ctx context.Context, task model.Task) error {
	tasks, err := s.read()
	if err != nil {
		return err
	}
	return s.write(append(tasks, task.Clone()))
}

// Remove deletes a task from the archive and returns it, or (nil, nil)
// if absent.
func (s *ArchiveStore) Remove(ctx context.Context, id int64) (*model.Task, error) {
	tasks, err := s.read()
	if err != nil {
		return nil, err
	}
	for i, task := range tasks {
		if task.ID == id {
			removed := task
			if err := s.write(append(tasks[:i], tasks[i+1:]...)); err != nil {
				return nil, err
			}
			return &removed, nil
		}
	}
	return nil, nil
}

// Get returns an archived task by ID, or (nil, nil) if absent.
func (s *ArchiveStore) Get(ctx context.Context, id int64) (*model.Task, error) {
	tasks, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if task.ID == id {
			found := task
			return &found, nil
		}
	}
	return nil, nil
}
