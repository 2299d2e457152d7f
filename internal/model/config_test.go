package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.Backend != BackendJSON {
		t.Errorf("expected default backend json, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.PageSize != 20 {
		t.Errorf("expected default page size 20, got %d", cfg.Storage.PageSize)
	}
	if cfg.History.Limit != 10 {
		t.Errorf("expected default history limit 10, got %d", cfg.History.Limit)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "storage:\n  backend: sqlite\n  dir: /data/tix\n  page_size: 5\nhistory:\n  limit: 3\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("expected sqlite backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Dir != "/data/tix" {
		t.Errorf("expected dir /data/tix, got %q", cfg.Storage.Dir)
	}
	if cfg.Storage.PageSize != 5 || cfg.History.Limit != 3 {
		t.Errorf("unexpected sizes: %+v", cfg)
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: mongodb\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &AppConfig{
		Storage: StorageConfig{Backend: BackendSQLite, Dir: "/data", PageSize: 7},
		History: HistoryConfig{Limit: 4},
	}

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	back, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if back.Storage.Backend != cfg.Storage.Backend ||
		back.Storage.Dir != cfg.Storage.Dir ||
		back.Storage.PageSize != cfg.Storage.PageSize ||
		back.History.Limit != cfg.History.Limit {
		t.Errorf("round trip mismatch: %+v != %+v", back, cfg)
	}
}
