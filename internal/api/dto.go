package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fabric-mcp/internal/models"
)

// QueryRequest is the request body for running a query.
type QueryRequest struct {
	Query string `json:"query" example:"SELECT TOP 10 * FROM sales"`
}

// Validate validates the query request.
func (r *QueryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Query, validation.Required),
	)
}

// AppendInsightRequest is the request body for recording an insight.
// Title and content must be present but may be empty.
type AppendInsightRequest struct {
	Title    *string  `json:"title" example:"Q3 revenue dip"`
	Content  *string  `json:"content" example:"Revenue fell 4% quarter over quarter."`
	Category string   `json:"category,omitempty" example:"sales"`
	Tags     []string `json:"tags,omitempty" example:"q3,revenue"`
}

// Validate validates the append request.
func (r *AppendInsightRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.NotNil),
		validation.Field(&r.Content, validation.NotNil),
		validation.Field(&r.Category, validation.Length(0, 100)),
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, 100))),
	)
}

// InsightListResponse is the structured view of the memo.
type InsightListResponse struct {
	Insights    []models.Insight `json:"insights"`
	Total       int              `json:"total"`
	Categories  []string         `json:"categories"`
	LastUpdated *time.Time       `json:"last_updated"`
	Version     string           `json:"version,omitempty"`
}
