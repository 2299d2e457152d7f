package testutil

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/tixtracker/tix/internal/store"
)

// NewJSONStore creates a JSONTaskStore backed by a file in a fresh
// temporary directory.
func NewJSONStore(t *testing.T) *store.JSONTaskStore {
	t.Helper()

	s, err := store.NewJSONTaskStore(
		filepath.Join(t.TempDir(), "tasks.json"),
		zaptest.NewLogger(t),
	)
	if err != nil {
		t.Fatalf("creating json test store: %v", err)
	}
	return s
}

// NewSQLiteStore creates a SQLiteTaskStore on a throwaway database
// file with all migrations applied. It automatically closes the store
// when the test completes. A file is used rather than :memory: because
// the connection pool would give each connection its own empty
// in-memory database.
func NewSQLiteStore(t *testing.T) *store.SQLiteTaskStore {
	t.Helper()

	s, err := store.NewSQLiteTaskStore(
		filepath.Join(t.TempDir(), "tasks.db"),
		zaptest.NewLogger(t),
	)
	if err != nil {
		t.Fatalf("creating sqlite test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing sqlite test store: %v", err)
		}
	})

	return s
}
