// Package storage defines the durable document store behind the insights memo.
//
// Documents are addressed by a logical key (for example
// "insights/company_insights.json") and are only ever read and written whole.
package storage

import "context"

// Provider is the interface for whole-document persistence.
type Provider interface {
	// Exists reports whether a document is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Read returns the full document stored under key.
	// A missing document yields an error wrapping apperr.ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write replaces the document stored under key.
	Write(ctx context.Context, key string, content []byte) error
}

// Checksummer is implemented by stores that record a SHA-256 digest with
// every write. An absent document yields "".
type Checksummer interface {
	Checksum(ctx context.Context, key string) (string, error)
}
