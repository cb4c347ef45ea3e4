// Package testutil provides shared test helpers for document stores and logging.
package testutil

import (
	"log/slog"
	"testing"

	"github.com/starford/fabric-mcp/internal/storage"
)

// TestStore creates a filesystem document store in a temp directory.
func TestStore(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
