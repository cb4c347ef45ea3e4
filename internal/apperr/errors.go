// Package apperr defines the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsafeQuery  = errors.New("only read-only queries are allowed")
	ErrTimeout      = errors.New("timeout")
	ErrUpstream     = errors.New("upstream error")
)
