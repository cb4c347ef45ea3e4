// Package models defines the domain types shared by the ledger and its surfaces.
package models

import "time"

// DefaultCategory is used when an insight is appended without a category.
const DefaultCategory = "general"

// Author marks every insight recorded through this server.
const Author = "MCP Analysis"

// Insight is one analytical note in the memo.
type Insight struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	Author    string    `json:"author"`
}

// Document is the persisted form of the memo: the whole ledger, written
// and read as a single blob.
type Document struct {
	Insights    []Insight  `json:"insights"`
	LastUpdated *time.Time `json:"last_updated"`
}

// Table describes one lakehouse table as returned to callers.
type Table struct {
	Name     string `json:"name"`
	Schema   string `json:"schema"`
	Type     string `json:"type"`
	RowCount any    `json:"row_count"`
}
