// Package analytics turns Fabric backend calls into the structured results
// handed to MCP and REST callers. It never returns errors: every failure is
// folded into a result with Success=false.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/fabric-mcp/internal/apperr"
	"github.com/starford/fabric-mcp/internal/fabric"
	"github.com/starford/fabric-mcp/internal/models"
	"github.com/starford/fabric-mcp/internal/queryguard"
)

// DefaultQueryTimeout bounds one query execution.
const DefaultQueryTimeout = 30 * time.Second

// Backend is the subset of the Fabric client the service needs.
type Backend interface {
	ListTables(ctx context.Context) ([]fabric.TableInfo, error)
	ExecuteQuery(ctx context.Context, query string) (*fabric.QueryResult, error)
}

// TablesResult is returned by ListTables.
type TablesResult struct {
	Success bool           `json:"success"`
	Tables  []models.Table `json:"tables"`
	Count   int            `json:"count"`
	Error   string         `json:"error,omitempty"`
	Kind    error          `json:"-"`
}

// QueryResult is returned by ReadQuery.
type QueryResult struct {
	Success    bool             `json:"success"`
	Columns    []string         `json:"columns"`
	Data       []map[string]any `json:"data"`
	RowCount   int              `json:"row_count"`
	Query      string           `json:"query,omitempty"`
	QueryID    string           `json:"query_id,omitempty"`
	ExecutedAt string           `json:"executed_at,omitempty"`
	Error      string           `json:"error,omitempty"`
	Kind       error            `json:"-"`
}

// Service runs read-only analytics against the backend.
type Service struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service. A non-positive timeout uses DefaultQueryTimeout.
func NewService(backend Backend, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, timeout: timeout, logger: logger, now: time.Now}
}

// ListTables lists lakehouse tables with display defaults filled in.
func (s *Service) ListTables(ctx context.Context) TablesResult {
	tables, err := s.backend.ListTables(ctx)
	if err != nil {
		s.logger.Warn("list tables failed", slog.String("error", err.Error()))
		return TablesResult{Success: false, Error: err.Error(), Kind: classify(err)}
	}

	out := make([]models.Table, 0, len(tables))
	for _, t := range tables {
		item := models.Table{
			Name:     t.Name,
			Schema:   t.Schema,
			Type:     t.Type,
			RowCount: "Unknown",
		}
		if item.Schema == "" {
			item.Schema = "dbo"
		}
		if item.Type == "" {
			item.Type = "TABLE"
		}
		if rc, ok := t.Properties["rowCount"]; ok && rc != nil {
			item.RowCount = rc
		}
		out = append(out, item)
	}
	return TablesResult{Success: true, Tables: out, Count: len(out)}
}

// ReadQuery screens query, runs it under the configured timeout and maps
// rows to column-keyed objects. A timeout yields no rows.
func (s *Service) ReadQuery(ctx context.Context, query string) QueryResult {
	if kw := queryguard.Match(query); kw != "" {
		s.logger.Warn("query rejected", slog.String("keyword", kw))
		return QueryResult{
			Success: false,
			Error:   fmt.Sprintf("%s: query contains %s", apperr.ErrUnsafeQuery, kw),
			Kind:    apperr.ErrUnsafeQuery,
		}
	}

	queryID := uuid.NewString()
	logger := s.logger.With(slog.String("query_id", queryID))

	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := s.now()
	res, err := s.backend.ExecuteQuery(qctx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(qctx.Err(), context.DeadlineExceeded) {
			logger.Warn("query timed out", slog.Duration("timeout", s.timeout))
			return QueryResult{
				Success: false,
				Error:   fmt.Sprintf("query timeout after %s", s.timeout),
				Kind:    apperr.ErrTimeout,
			}
		}
		logger.Warn("query failed", slog.String("error", err.Error()))
		return QueryResult{Success: false, Error: err.Error(), Kind: classify(err)}
	}

	columns := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		columns[i] = c.Name
	}
	data := make([]map[string]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		obj := make(map[string]any, len(columns))
		for i, name := range columns {
			if i < len(row) {
				obj[name] = row[i]
			} else {
				obj[name] = nil
			}
		}
		data = append(data, obj)
	}

	logger.Info("query executed",
		slog.Int("rows", len(data)),
		slog.Duration("elapsed", s.now().Sub(started)))

	return QueryResult{
		Success:    true,
		Columns:    columns,
		Data:       data,
		RowCount:   len(data),
		Query:      query,
		QueryID:    queryID,
		ExecutedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, apperr.ErrUnsafeQuery):
		return apperr.ErrUnsafeQuery
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.ErrTimeout
	default:
		return apperr.ErrUpstream
	}
}
