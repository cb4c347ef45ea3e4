package internal

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Fabric.TenantID = "tenant"
	cfg.Fabric.ClientID = "client"
	cfg.Fabric.ClientSecret = "secret"
	cfg.Fabric.WorkspaceID = "ws"
	cfg.Fabric.LakehouseID = "lh"
	return cfg
}

func TestDefaultConfig_NeedsCredentials(t *testing.T) {
	err := NewDefaultConfig().Validate()
	if err == nil {
		t.Fatal("defaults without credentials should fail")
	}
	if !strings.HasPrefix(err.Error(), "fabric:") {
		t.Errorf("error = %v, want fabric section", err)
	}
}

func TestConfig_ValidWithCredentials(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfig_Transport(t *testing.T) {
	cfg := validConfig()
	cfg.App.Transport = "grpc"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown transport should fail")
	}

	cfg = validConfig()
	cfg.App.HTTP.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("port is ignored for stdio: %v", err)
	}
	cfg.App.Transport = TransportHTTP
	if err := cfg.Validate(); err == nil {
		t.Error("http transport without port should fail")
	}
}

func TestConfig_QueryTimeoutFloor(t *testing.T) {
	cfg := validConfig()
	cfg.Fabric.QueryTimeout = 10 * time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("sub-second query timeout should fail")
	}
}

func TestStorageConfig_Backends(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*StorageConfig)
		wantErr bool
	}{
		{"fs default", func(*StorageConfig) {}, false},
		{"fs empty root", func(c *StorageConfig) { c.FS.Root = "" }, true},
		{"sqlite", func(c *StorageConfig) { c.Backend = BackendSQLite }, false},
		{"sqlite no path", func(c *StorageConfig) { c.Backend = BackendSQLite; c.SQLite.Path = "" }, true},
		{"azblob incomplete", func(c *StorageConfig) { c.Backend = BackendAzBlob }, true},
		{"azblob", func(c *StorageConfig) {
			c.Backend = BackendAzBlob
			c.AzBlob = AzBlobConfig{AccountName: "acct", AccountKey: "a2V5", Container: "insights"}
		}, false},
		{"unknown backend", func(c *StorageConfig) { c.Backend = "s3" }, true},
		{"empty key", func(c *StorageConfig) { c.Key = "" }, false},
		{"zero timeout", func(c *StorageConfig) { c.Timeout = 0 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Storage
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestStorageConfig_DocumentKey(t *testing.T) {
	cases := []struct {
		backend string
		key     string
		want    string
	}{
		{BackendFS, "", "insights/company_insights.json"},
		{BackendSQLite, "", "insights/company_insights.json"},
		{BackendAzBlob, "", "company_insights.json"},
		{BackendAzBlob, "team/memo.json", "team/memo.json"},
		{BackendFS, "memo.json", "memo.json"},
	}
	for _, tc := range cases {
		cfg := StorageConfig{Backend: tc.backend, Key: tc.key}
		if got := cfg.DocumentKey(); got != tc.want {
			t.Errorf("DocumentKey(%s, %q) = %q, want %q", tc.backend, tc.key, got, tc.want)
		}
	}
}

func TestDefaultConfig_AzBlobContainer(t *testing.T) {
	if got := NewDefaultConfig().Storage.AzBlob.Container; got != "insights" {
		t.Errorf("container = %q, want insights", got)
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg = AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("empty token error = %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestFabricConfig_Credentials(t *testing.T) {
	creds := validConfig().Fabric.Credentials()
	if creds.TenantID != "tenant" || creds.ClientID != "client" || creds.ClientSecret != "secret" {
		t.Errorf("credentials = %+v", creds)
	}
}
