package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tixtracker/tix/internal/model"
)

// Operation actions recorded in history.
const (
	OpAdd    = "add"
	OpDelete = "delete"
	OpUpdate = "update"
)

// Operation is one recorded mutation with the task snapshots needed to
// reverse or replay it.
type Operation struct {
	ID     string      `json:"id"`
	Action string      `json:"action"`
	Before *model.Task `json:"before,omitempty"`
	After  *model.Task `json:"after,omitempty"`
	At     time.Time   `json:"at"`
}

// HistoryStore keeps bounded undo/redo stacks of operations in a JSON
// file. Recording a new operation clears the redo stack; the undo
// stack evicts its oldest entry past the limit.
type HistoryStore struct {
	path  string
	limit int
}

type historyDocument struct {
	Undo []Operation `json:"undo"`
	Redo []Operation `json:"redo"`
}

// NewHistoryStore opens (or creates) the history file at path. A
// non-positive limit falls back to 10.
func NewHistoryStore(path string, limit int) (*HistoryStore, error) {
	if limit <= 0 {
		limit = 10
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory %s: %w", dir, err)
	}

	s := &HistoryStore{path: path, limit: limit}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(historyDocument{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *HistoryStore) read() (historyDocument, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return historyDocument{}, nil
	}
	if err != nil {
		return historyDocument{}, fmt.Errorf("reading history file %s: %w", s.path, err)
	}

	var doc historyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		// A corrupt history only loses undo depth, never tasks.
		return historyDocument{}, nil
	}
	return doc, nil
}

func (s *HistoryStore) write(doc historyDocument) error {
	if doc.Undo == nil {
		doc.Undo = []Operation{}
	}
	if doc.Redo == nil {
		doc.Redo = []Operation{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing history file %s: %w", s.path, err)
	}
	return nil
}

// Record pushes an operation onto the undo stack and clears redo. An
// operation without an ID gets one assigned.
func (s *HistoryStore) Record(op Operation) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.At.IsZero() {
		op.At = time.Now().UTC()
	}

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Undo = append(doc.Undo, op)
	if len(doc.Undo) > s.limit {
		doc.Undo = doc.Undo[len(doc.Undo)-s.limit:]
	}
	doc.Redo = nil
	return s.write(doc)
}

// PopUndo moves the latest operation from the undo stack to the redo
// stack and returns it, or (nil, nil) when the stack is empty.
func (s *HistoryStore) PopUndo() (*Operation, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if len(doc.Undo) == 0 {
		return nil, nil
	}
	op := doc.Undo[len(doc.Undo)-1]
	doc.Undo = doc.Undo[:len(doc.Undo)-1]
	doc.Redo = append(doc.Redo, op)
	if err := s.write(doc); err != nil {
		return nil, err
	}
	return &op, nil
}

// PopRedo moves the latest operation from the redo stack back to the
// undo stack and returns it, or (nil, nil) when the stack is empty.
func (s *HistoryStore) PopRedo() (*Operation, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if len(doc.Redo) == 0 {
		return nil, nil
	}
	op := doc.Redo[len(doc.Redo)-1]
	doc.Redo = doc.Redo[:len(doc.Redo)-1]
	doc.Undo = append(doc.Undo, op)
	if err := s.write(doc); err != nil {
		return nil, err
	}
	return &op, nil
}

// Undo reverses the most recent recorded operation against the given
// store and returns it, or (nil, nil) when there is nothing to undo.
func (s *HistoryStore) Undo(ctx context.Context, store TaskStore) (*Operation, error) {
	op, err := s.PopUndo()
	if err != nil || op == nil {
		return op, err
	}

	switch op.Action {
	case OpAdd:
		if op.After == nil {
			return op, malformedOp(op)
		}
		if _, err := store.DeleteTask(ctx, op.After.ID); err != nil {
			return op, fmt.Errorf("undoing add of task %d: %w", op.After.ID, err)
		}
	case OpDelete:
		if op.Before == nil {
			return op, malformedOp(op)
		}
		if err := restoreTask(ctx, store, *op.Before); err != nil {
			return op, fmt.Errorf("undoing delete of task %d: %w", op.Before.ID, err)
		}
	case OpUpdate:
		if op.Before == nil {
			return op, malformedOp(op)
		}
		if err := store.UpdateTask(ctx, *op.Before); err != nil {
			return op, fmt.Errorf("undoing update of task %d: %w", op.Before.ID, err)
		}
	default:
		return op, fmt.Errorf("unknown history action %q", op.Action)
	}
	return op, nil
}

// Redo replays the most recently undone operation against the given
// store and returns it, or (nil, nil) when there is nothing to redo.
func (s *HistoryStore) Redo(ctx context.Context, store TaskStore) (*Operation, error) {
	op, err := s.PopRedo()
	if err != nil || op == nil {
		return op, err
	}

	switch op.Action {
	case OpAdd:
		if op.After == nil {
			return op, malformedOp(op)
		}
		if err := restoreTask(ctx, store, *op.After); err != nil {
			return op, fmt.Errorf("redoing add of task %d: %w", op.After.ID, err)
		}
	case OpDelete:
		if op.Before == nil {
			return op, malformedOp(op)
		}
		if _, err := store.DeleteTask(ctx, op.Before.ID); err != nil {
			return op, fmt.Errorf("redoing delete of task %d: %w", op.Before.ID, err)
		}
	case OpUpdate:
		if op.After == nil {
			return op, malformedOp(op)
		}
		if err := store.UpdateTask(ctx, *op.After); err != nil {
			return op, fmt.Errorf("redoing update of task %d: %w", op.After.ID, err)
		}
	default:
		return op, fmt.Errorf("unknown history action %q", op.Action)
	}
	return op, nil
}

// malformedOp reports a history entry missing the task snapshot its
// action needs. Record never writes such entries, but the file is
// user-visible and can be hand-edited.
func malformedOp(op *Operation) error {
	return fmt.Errorf("malformed history operation %s: missing task snapshot", op.ID)
}

// restoreTask re-inserts a task under its original ID. SaveTasks is
// the only contract operation that accepts caller-chosen IDs, so the
// restore is a full read-modify-write of the task set.
func restoreTask(ctx context.Context, store TaskStore, task model.Task) error {
	tasks, err := store.LoadTasks(ctx)
	if err != nil {
		return err
	}
	return store.SaveTasks(ctx, append(tasks, task))
}
