package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/fabric-mcp/internal/analytics"
	"github.com/starford/fabric-mcp/internal/fabric"
	"github.com/starford/fabric-mcp/internal/ledger"
	"github.com/starford/fabric-mcp/internal/mcpserver"
	"github.com/starford/fabric-mcp/internal/sse"
	"github.com/starford/fabric-mcp/internal/storage"
	"github.com/starford/fabric-mcp/internal/testutil"
)

func TestOpenStore_Backends(t *testing.T) {
	dir := t.TempDir()
	for _, cfg := range []StorageConfig{
		{Backend: BackendFS, FS: FSConfig{Root: filepath.Join(dir, "fs")}},
		{Backend: BackendSQLite, SQLite: SQLiteConfig{Path: filepath.Join(dir, "memo.db")}},
	} {
		t.Run(cfg.Backend, func(t *testing.T) {
			store, closeStore, err := openStore(cfg)
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			defer closeStore()

			ctx := context.Background()
			if err := store.Write(ctx, "insights/memo.json", []byte(`{}`)); err != nil {
				t.Fatalf("Write: %v", err)
			}
			ok, err := store.Exists(ctx, "insights/memo.json")
			if err != nil || !ok {
				t.Errorf("Exists = %v, %v", ok, err)
			}
		})
	}
}

func TestOpenStore_Unknown(t *testing.T) {
	if _, _, err := openStore(StorageConfig{Backend: "s3"}); err == nil {
		t.Error("unknown backend should fail")
	}
}

type nopBackend struct{}

func (nopBackend) ListTables(context.Context) ([]fabric.TableInfo, error) { return nil, nil }

func (nopBackend) ExecuteQuery(context.Context, string) (*fabric.QueryResult, error) {
	return &fabric.QueryResult{}, nil
}

func testRouter(t *testing.T, auth AuthConfig) (http.Handler, *ledger.Ledger) {
	t.Helper()
	cfg := validConfig()
	cfg.App.Transport = TransportHTTP
	cfg.Auth = auth

	logger := testutil.DiscardLogger()
	svc := analytics.NewService(nopBackend{}, time.Second, logger)
	broker := sse.NewBroker(time.Millisecond)
	t.Cleanup(broker.Close)
	store := testutil.TestStore(t)
	memo := ledger.New(store, ledger.WithLogger(logger), ledger.WithObserver(broker.PublishInsight))
	return newRouter(cfg, store, svc, memo, broker, mcpserver.New(svc, memo, logger)), memo
}

func TestRouter_Health(t *testing.T) {
	router, memo := testRouter(t, AuthConfig{Mode: AuthModeToken, Token: "tok"})
	memo.Append(context.Background(), "t", "c", "", nil)

	for _, path := range []string{"/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200 without auth", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["insights"] != float64(1) {
		t.Errorf("ready body = %v", body)
	}
}

func TestReadyHandler_ReportsStoredChecksum(t *testing.T) {
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "memo.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	broker := sse.NewBroker(time.Millisecond)
	defer broker.Close()
	memo := ledger.New(db, ledger.WithLogger(testutil.DiscardLogger()))
	memo.Load(context.Background())
	handler := readyHandler(db, ledger.DefaultKey, memo, broker)

	ready := func() map[string]any {
		t.Helper()
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("ready = %d, body = %s", w.Code, w.Body.String())
		}
		var body map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return body
	}

	if body := ready(); body["stored_version"] != "" || body["in_sync"] != true {
		t.Errorf("empty store body = %v", body)
	}

	memo.Append(context.Background(), "t", "c", "", nil)
	body := ready()
	if body["stored_version"] != memo.Version() || body["in_sync"] != true {
		t.Errorf("after append body = %v, version %s", body, memo.Version())
	}

	// Out-of-band write: the probe sees the divergence.
	if err := db.Write(context.Background(), ledger.DefaultKey, []byte(`{"insights":[]}`)); err != nil {
		t.Fatal(err)
	}
	if body := ready(); body["in_sync"] != false {
		t.Errorf("diverged body = %v", body)
	}
}

func TestReadyHandler_StoreError(t *testing.T) {
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "memo.db"))
	if err != nil {
		t.Fatal(err)
	}
	broker := sse.NewBroker(time.Millisecond)
	defer broker.Close()
	memo := ledger.New(db, ledger.WithLogger(testutil.DiscardLogger()))
	db.Close()

	w := httptest.NewRecorder()
	readyHandler(db, ledger.DefaultKey, memo, broker)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with closed store = %d, want 503", w.Code)
	}
}

func TestRouter_APIMountedWithAuth(t *testing.T) {
	router, _ := testRouter(t, AuthConfig{Mode: AuthModeToken, Token: "tok"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/insights", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/insights", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with token = %d, want 200", w.Code)
	}
}

func TestRouter_MCPEndpoint(t *testing.T) {
	router, _ := testRouter(t, AuthConfig{Mode: AuthModeToken, Token: "tok"})

	initialize := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initialize))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("mcp without token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(initialize))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("mcp initialize = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), mcpserver.ServerName) {
		t.Errorf("initialize body = %s", w.Body.String())
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("Run without config should fail")
	}
}
