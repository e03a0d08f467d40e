package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationSource(t *testing.T) {
	embedded, err := migrationSource("")
	if err != nil {
		t.Fatalf("migrationSource(\"\") unexpected error: %v", err)
	}
	if _, err := embedded.Open("0001_init_schema_migrations.sql"); err != nil {
		t.Errorf("embedded set should contain the first migration: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "0001_x.sql"), []byte("SELECT 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	local, err := migrationSource(dir)
	if err != nil {
		t.Fatalf("migrationSource(dir) unexpected error: %v", err)
	}
	if _, err := local.Open("0001_x.sql"); err != nil {
		t.Errorf("directory source should expose its files: %v", err)
	}

	if _, err := migrationSource(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing directory should fail")
	}
}
