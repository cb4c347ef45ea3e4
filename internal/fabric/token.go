package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/starford/fabric-mcp/internal/apperr"
)

const (
	// DefaultAuthorityURL is the Azure AD login host.
	DefaultAuthorityURL = "https://login.microsoftonline.com"
	// DefaultScope requests a token for the Fabric REST API.
	DefaultScope = "https://api.fabric.microsoft.com/.default"
	// RefreshMargin is how long before expiry a cached token is replaced.
	RefreshMargin = 60 * time.Second
)

// Credentials identify the service principal used against Azure AD.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// TokenCache obtains client-credentials tokens and reuses them until they
// are within RefreshMargin of expiry. Concurrent callers share one refresh.
type TokenCache struct {
	creds     Credentials
	authority string
	scope     string
	http      *http.Client
	now       func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache creates a cache. Empty authority or scope fall back to the
// defaults; a nil client uses http.DefaultClient.
func NewTokenCache(creds Credentials, authority, scope string, client *http.Client) *TokenCache {
	if authority == "" {
		authority = DefaultAuthorityURL
	}
	if scope == "" {
		scope = DefaultScope
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenCache{
		creds:     creds,
		authority: strings.TrimRight(authority, "/"),
		scope:     scope,
		http:      client,
		now:       time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Token returns a valid bearer token, fetching a new one when needed.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(RefreshMargin).Before(c.expiresAt) {
		return c.token, nil
	}

	tok, ttl, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = tok
	c.expiresAt = c.now().Add(ttl)
	return c.token, nil
}

// ExpiresAt returns the expiry of the cached token (zero when none).
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

func (c *TokenCache) fetch(ctx context.Context) (string, time.Duration, error) {
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.authority, url.PathEscape(c.creds.TenantID))
	form := url.Values{
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
		"scope":         {c.scope},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("fabric: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fabric: token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("fabric: read token response: %w", err)
	}

	var tr tokenResponse
	_ = json.Unmarshal(body, &tr)
	if resp.StatusCode != http.StatusOK {
		msg := tr.Description
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", 0, fmt.Errorf("fabric: token endpoint returned HTTP %d: %s: %w", resp.StatusCode, msg, apperr.ErrUpstream)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("fabric: token response has no access_token: %w", apperr.ErrUpstream)
	}
	return tr.AccessToken, time.Duration(tr.ExpiresIn) * time.Second, nil
}
