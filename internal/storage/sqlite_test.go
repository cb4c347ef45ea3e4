package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/starford/fabric-mcp/internal/apperr"
	"github.com/starford/fabric-mcp/internal/checksum"
)

func testSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "documents.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_WriteReadOverwrite(t *testing.T) {
	db := testSQLite(t)
	ctx := context.Background()

	if err := db.Write(ctx, "insights/memo.json", []byte("v1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := db.Write(ctx, "insights/memo.json", []byte("v2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := db.Read(ctx, "insights/memo.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("content = %q, want v2", got)
	}
	cs, err := db.Checksum(ctx, "insights/memo.json")
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if cs != checksum.Sum([]byte("v2")) {
		t.Errorf("checksum = %q", cs)
	}
}

func TestSQLite_Missing(t *testing.T) {
	db := testSQLite(t)
	ctx := context.Background()

	ok, err := db.Exists(ctx, "absent")
	if err != nil || ok {
		t.Errorf("Exists = %v, %v; want false, nil", ok, err)
	}
	if _, err := db.Read(ctx, "absent"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Read err = %v, want ErrNotFound", err)
	}
	cs, err := db.Checksum(ctx, "absent")
	if err != nil || cs != "" {
		t.Errorf("Checksum = %q, %v; want empty", cs, err)
	}
}
