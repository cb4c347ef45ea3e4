package storage

import (
	"errors"
	"testing"

	"github.com/starford/fabric-mcp/internal/apperr"
)

func TestNewAzureBlob_RequiresCredentials(t *testing.T) {
	cases := []struct {
		name, account, key, container string
	}{
		{"no account", "", "a2V5", "insights"},
		{"no key", "acct", "", "insights"},
		{"no container", "acct", "a2V5", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAzureBlob(tc.account, tc.key, tc.container, "")
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestNewAzureBlob_EmulatorEndpoint(t *testing.T) {
	// Well-known Azurite development key.
	key := "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
	a, err := NewAzureBlob("devstoreaccount1", key, "insights", "http://127.0.0.1:10000/devstoreaccount1")
	if err != nil {
		t.Fatalf("NewAzureBlob: %v", err)
	}
	if a.container != "insights" {
		t.Errorf("container = %q", a.container)
	}
}
