package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	text         TEXT NOT NULL,
	priority     TEXT NOT NULL DEFAULT 'medium',
	completed    INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
	created_at   TEXT NOT NULL DEFAULT '',
	completed_at TEXT,
	tags         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		// Extended-model columns. Attachments, links, and subtasks are
		// JSON-encoded; tags stay comma-joined for compatibility with
		// the v1 column.
		version: 2,
		sql: `
ALTER TABLE tasks ADD COLUMN notes TEXT NOT NULL DEFAULT '';
ALTER TABLE tasks ADD COLUMN parent_id INTEGER;
ALTER TABLE tasks ADD COLUMN is_global INTEGER NOT NULL DEFAULT 0;
ALTER TABLE tasks ADD COLUMN attachments TEXT NOT NULL DEFAULT '[]';
ALTER TABLE tasks ADD COLUMN links TEXT NOT NULL DEFAULT '[]';
ALTER TABLE tasks ADD COLUMN subtasks TEXT NOT NULL DEFAULT '[]';

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
