package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tixtracker/tix/internal/model"
)

// SQLiteTaskStore implements TaskStore on a local SQLite database. The
// database is the sole source of truth: there is no in-memory index,
// every read queries and every write commits immediately. IDs come
// from the table's autoincrement primary key.
//
// Tags are persisted comma-joined in a single column, so a tag
// containing a comma cannot round-trip.
type SQLiteTaskStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSQLiteTaskStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteTaskStore(dbPath string, logger *zap.Logger) (*SQLiteTaskStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteTaskStore{db: db, logger: logger}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteTaskStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteTaskStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		s.logger.Debug("applied schema migration", zap.Int("version", m.version))
	}

	return nil
}

const taskColumns = `id, text, priority, completed, created_at, completed_at, tags,
	notes, parent_id, is_global, attachments, links, subtasks`

// AddTask inserts a new task; the autoincrement primary key assigns
// the ID, so deleted IDs are never reissued.
func (s *SQLiteTaskStore) AddTask(ctx context.Context, text string, priority model.Priority, tags []string) (model.Task, error) {
	if strings.TrimSpace(text) == "" {
		return model.Task{}, fmt.Errorf("task text must not be empty")
	}

	task := model.NewTask(text, priority, tags)
	args, err := taskArgs(task)
	if err != nil {
		return model.Task{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			text, priority, completed, created_at, completed_at, tags,
			notes, parent_id, is_global, attachments, links, subtasks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("inserting task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, fmt.Errorf("reading inserted task id: %w", err)
	}
	task.ID = id
	return task, nil
}

// GetTask retrieves a task by ID. Absent IDs yield (nil, nil).
func (s *SQLiteTaskStore) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}
	return &task, nil
}

// UpdateTask replaces the row with the task's ID; unknown IDs are a
// silent no-op.
func (s *SQLiteTaskStore) UpdateTask(ctx context.Context, task model.Task) error {
	if task.ParentID != nil && *task.ParentID == task.ID {
		return fmt.Errorf("task %d cannot be its own parent", task.ID)
	}

	args, err := taskArgs(task)
	if err != nil {
		return err
	}
	args = append(args, task.ID)

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET
			text = ?, priority = ?, completed = ?, created_at = ?,
			completed_at = ?, tags = ?, notes = ?, parent_id = ?,
			is_global = ?, attachments = ?, links = ?, subtasks = ?
		WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating task %d: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes a task, reporting whether it was present.
func (s *SQLiteTaskStore) DeleteTask(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting task %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting task %d: %w", id, err)
	}
	return rows > 0, nil
}

// LoadTasks returns every task ordered by ID.
func (s *SQLiteTaskStore) LoadTasks(ctx context.Context) ([]model.Task, error) {
	return s.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks ORDER BY id")
}

// SaveTasks transactionally replaces the entire task set, keeping the
// given IDs, and resets the autoincrement sequence to max(id) so the
// next insert allocates max(id)+1.
func (s *SQLiteTaskStore) SaveTasks(ctx context.Context, tasks []model.Task) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clearing tasks: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO tasks (
			id, text, priority, completed, created_at, completed_at, tags,
			notes, parent_id, is_global, attachments, links, subtasks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	var maxID int64
	seen := make(map[int64]bool, len(tasks))
	for _, task := range tasks {
		if seen[task.ID] {
			// Last occurrence wins, matching the JSON backend.
			if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", task.ID); err != nil {
				return fmt.Errorf("replacing duplicate task %d: %w", task.ID, err)
			}
		}
		seen[task.ID] = true

		args, err := taskArgs(task)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, append([]interface{}{task.ID}, args...)...); err != nil {
			return fmt.Errorf("saving task %d: %w", task.ID, err)
		}
		if task.ID > maxID {
			maxID = task.ID
		}
	}

	// sqlite_sequence only exists after the first autoincrement
	// insert; reset it so the next AddTask allocates maxID+1.
	var seqTable int
	if err := tx.Get(&seqTable,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='sqlite_sequence'",
	); err != nil {
		return fmt.Errorf("checking sqlite_sequence table: %w", err)
	}
	if seqTable > 0 {
		if _, err := tx.ExecContext(ctx,
			"UPDATE sqlite_sequence SET seq = ? WHERE name = 'tasks'", maxID,
		); err != nil {
			return fmt.Errorf("resetting task sequence: %w", err)
		}
	}

	return tx.Commit()
}

// GetActiveTasks returns incomplete tasks ordered by ID.
func (s *SQLiteTaskStore) GetActiveTasks(ctx context.Context) ([]model.Task, error) {
	return s.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE completed = 0 ORDER BY id")
}

// GetCompletedTasks returns completed tasks ordered by ID.
func (s *SQLiteTaskStore) GetCompletedTasks(ctx context.Context) ([]model.Task, error) {
	return s.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE completed = 1 ORDER BY id")
}

// ListTasks returns one 1-based page using LIMIT/OFFSET.
func (s *SQLiteTaskStore) ListTasks(ctx context.Context, page, pageSize int) ([]model.Task, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("page and page size must be positive")
	}
	return s.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks ORDER BY id LIMIT ? OFFSET ?",
		pageSize, (page-1)*pageSize,
	)
}

// IterTasks lazily yields up to count tasks starting at the given
// offset. Each range runs a fresh query, so the sequence is
// restartable; ordering after concurrent external modification is not
// guaranteed.
func (s *SQLiteTaskStore) IterTasks(ctx context.Context, start, count int) iter.Seq2[model.Task, error] {
	return func(yield func(model.Task, error) bool) {
		if start < 0 {
			start = 0
		}
		if count < 1 {
			return
		}
		rows, err := s.db.QueryxContext(ctx,
			"SELECT "+taskColumns+" FROM tasks ORDER BY id LIMIT ? OFFSET ?",
			count, start,
		)
		if err != nil {
			yield(model.Task{}, fmt.Errorf("querying tasks: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				yield(model.Task{}, err)
				return
			}
			if !yield(task, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Task{}, fmt.Errorf("iterating tasks: %w", err))
		}
	}
}

func (s *SQLiteTaskStore) queryTasks(ctx context.Context, query string, args ...interface{}) ([]model.Task, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// taskArgs renders the non-ID column values for insert/update, in
// taskColumns order.
func taskArgs(t model.Task) ([]interface{}, error) {
	attachments, err := json.Marshal(emptyIfNil(t.Attachments))
	if err != nil {
		return nil, fmt.Errorf("marshaling attachments for task %d: %w", t.ID, err)
	}
	links, err := json.Marshal(emptyIfNil(t.Links))
	if err != nil {
		return nil, fmt.Errorf("marshaling links for task %d: %w", t.ID, err)
	}
	subtasks := "[]"
	if len(t.Subtasks) > 0 {
		raw, err := json.Marshal(t.Subtasks)
		if err != nil {
			return nil, fmt.Errorf("marshaling subtasks for task %d: %w", t.ID, err)
		}
		subtasks = string(raw)
	}

	var completedAt interface{}
	if t.CompletedAt != nil {
		completedAt = t.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	return []interface{}{
		t.Text, string(t.Priority), boolToInt(t.Completed),
		t.CreatedAt.UTC().Format(time.RFC3339Nano), completedAt,
		strings.Join(t.Tags, ","),
		t.Notes, t.ParentID, boolToInt(t.IsGlobal),
		string(attachments), string(links), subtasks,
	}, nil
}

// rowScanner is satisfied by both *sqlx.Row and *sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTask reads one row in taskColumns order.
func scanTask(row rowScanner) (model.Task, error) {
	var (
		task        model.Task
		completed   int
		isGlobal    int
		createdAt   string
		completedAt sql.NullString
		tags        string
		attachments string
		links       string
		subtasks    string
	)

	err := row.Scan(
		&task.ID, &task.Text, &task.Priority, &completed,
		&createdAt, &completedAt, &tags,
		&task.Notes, &task.ParentID, &isGlobal,
		&attachments, &links, &subtasks,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, err
		}
		return model.Task{}, fmt.Errorf("scanning task row: %w", err)
	}

	task.Completed = completed != 0
	task.IsGlobal = isGlobal != 0
	if ts := parseTimestamp(createdAt); ts != nil {
		task.CreatedAt = *ts
	}
	if completedAt.Valid {
		task.CompletedAt = parseTimestamp(completedAt.String)
	}
	if tags != "" {
		// Deduplicate on read so reloads match the JSON backend's
		// normalization.
		task.Tags = dedupe(strings.Split(tags, ","))
	}
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &task.Attachments); err != nil {
			return model.Task{}, fmt.Errorf("unmarshaling attachments: %w", err)
		}
	}
	if links != "" {
		if err := json.Unmarshal([]byte(links), &task.Links); err != nil {
			return model.Task{}, fmt.Errorf("unmarshaling links: %w", err)
		}
	}
	if subtasks != "" && subtasks != "[]" {
		if err := json.Unmarshal([]byte(subtasks), &task.Subtasks); err != nil {
			return model.Task{}, fmt.Errorf("unmarshaling subtasks: %w", err)
		}
	}

	return task, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
