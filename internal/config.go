package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/fabric-mcp/internal/analytics"
	"github.com/starford/fabric-mcp/internal/fabric"
	"github.com/starford/fabric-mcp/internal/ledger"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
	BackendAzBlob = "azblob"
)

// Default Azure Blob location of the memo, shared with earlier deployments
// that write blob company_insights.json in container insights.
const (
	DefaultAzBlobContainer = "insights"
	DefaultAzBlobKey       = "company_insights.json"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Fabric  FabricConfig      `yaml:"fabric"`
	Storage StorageConfig     `yaml:"storage"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Fabric.Validate(); err != nil {
		return fmt.Errorf("fabric: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	Transport string     `yaml:"transport"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Transport, validation.Required, validation.In(TransportStdio, TransportHTTP)),
	); err != nil {
		return err
	}
	if c.Transport == TransportHTTP {
		return c.HTTP.Validate()
	}
	return nil
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// FabricConfig holds the service principal and the lakehouse to query.
type FabricConfig struct {
	TenantID     string        `yaml:"tenant_id"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	WorkspaceID  string        `yaml:"workspace_id"`
	LakehouseID  string        `yaml:"lakehouse_id"`
	BaseURL      string        `yaml:"base_url"`
	AuthorityURL string        `yaml:"authority_url"`
	Scope        string        `yaml:"scope"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
}

// Validate validates the Fabric configuration.
func (c *FabricConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TenantID, validation.Required),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ClientSecret, validation.Required),
		validation.Field(&c.WorkspaceID, validation.Required),
		validation.Field(&c.LakehouseID, validation.Required),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.AuthorityURL, validation.Required, is.URL),
		validation.Field(&c.Scope, validation.Required),
		validation.Field(&c.QueryTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.HTTPTimeout, validation.Min(time.Duration(0))),
	)
}

// Credentials returns the service principal credentials.
func (c *FabricConfig) Credentials() fabric.Credentials {
	return fabric.Credentials{
		TenantID:     c.TenantID,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
	}
}

// StorageConfig selects where the insights document lives.
type StorageConfig struct {
	Backend string        `yaml:"backend"`
	Key     string        `yaml:"key"`
	Timeout time.Duration `yaml:"timeout"`
	FS      FSConfig      `yaml:"fs"`
	SQLite  SQLiteConfig  `yaml:"sqlite"`
	AzBlob  AzBlobConfig  `yaml:"azblob"`
}

// Validate validates the storage configuration and the selected backend block.
func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFS, BackendSQLite, BackendAzBlob)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(100*time.Millisecond)),
	); err != nil {
		return err
	}
	switch c.Backend {
	case BackendSQLite:
		return c.SQLite.Validate()
	case BackendAzBlob:
		return c.AzBlob.Validate()
	default:
		return c.FS.Validate()
	}
}

// DocumentKey returns the configured key, or the backend's default when
// none is set. Azure Blob defaults to a top-level blob so memos written by
// earlier deployments are picked up.
func (c *StorageConfig) DocumentKey() string {
	if c.Key != "" {
		return c.Key
	}
	if c.Backend == BackendAzBlob {
		return DefaultAzBlobKey
	}
	return ledger.DefaultKey
}

// FSConfig holds the root directory of the filesystem store.
type FSConfig struct {
	Root string `yaml:"root"`
}

// Validate validates the filesystem configuration.
func (c *FSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AzBlobConfig holds Azure Blob Storage configuration. Endpoint is optional
// and defaults to the public account URL; set it for Azurite.
type AzBlobConfig struct {
	AccountName string `yaml:"account_name"`
	AccountKey  string `yaml:"account_key"`
	Container   string `yaml:"container"`
	Endpoint    string `yaml:"endpoint"`
}

// Validate validates the Azure Blob configuration.
func (c *AzBlobConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AccountName, validation.Required),
		validation.Field(&c.AccountKey, validation.Required),
		validation.Field(&c.Container, validation.Required, validation.Length(3, 63)),
		validation.Field(&c.Endpoint, is.URL),
	)
}

// AuthConfig holds authentication configuration for the HTTP transport.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
// Fabric credentials have no defaults.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			Transport: TransportStdio,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Fabric: FabricConfig{
			BaseURL:      fabric.DefaultBaseURL,
			AuthorityURL: fabric.DefaultAuthorityURL,
			Scope:        fabric.DefaultScope,
			QueryTimeout: analytics.DefaultQueryTimeout,
			HTTPTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendFS,
			Timeout: ledger.DefaultPersistTimeout,
			FS: FSConfig{
				Root: "./data",
			},
			SQLite: SQLiteConfig{
				Path: "./fabric-mcp.db",
			},
			AzBlob: AzBlobConfig{
				Container: DefaultAzBlobContainer,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
