// Package mcpserver exposes Fabric analytics and the insights memo over the
// Model Context Protocol, on stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/fabric-mcp/internal/analytics"
	"github.com/starford/fabric-mcp/internal/ledger"
	"github.com/starford/fabric-mcp/internal/prompts"
)

// Server identity reported to MCP clients.
const (
	ServerName    = "fabric-mcp-server"
	ServerVersion = "1.0.0"
)

// Resource URIs.
const (
	MemoURI         = "memo://insights"
	MemoMarkdownURI = "memo://insights.md"
	UsageURI        = "fabric://usage"
)

// Server wraps the MCP server with the Fabric tools.
type Server struct {
	mcp       *server.MCPServer
	analytics *analytics.Service
	memo      *ledger.Ledger
	logger    *slog.Logger
}

// New creates a new MCP server with all tools, resources and prompts registered.
func New(svc *analytics.Service, memo *ledger.Ledger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{analytics: svc, memo: memo, logger: logger}

	s.mcp = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)

	s.mcp.AddTool(mcp.NewTool("list_tables",
		mcp.WithDescription("List all available tables in the Fabric lakehouse."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.listTables)

	s.mcp.AddTool(mcp.NewTool("read_query",
		mcp.WithDescription("Execute a read-only SQL query on Fabric data. "+
			"Queries containing data-mutating keywords are rejected."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query", mcp.Required(), mcp.Description("SELECT statement to run against the lakehouse SQL endpoint")),
	), s.readQuery)

	s.mcp.AddTool(mcp.NewTool("append_insight",
		mcp.WithDescription("Append a new insight to the company insights memo."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short title of the finding")),
		mcp.WithString("content", mcp.Required(), mcp.Description("The finding itself")),
		mcp.WithString("category", mcp.Description("Grouping label (default: general)")),
		mcp.WithArray("tags", mcp.Description("Optional labels"), mcp.Items(map[string]any{"type": "string"})),
	), s.appendInsight)

	s.mcp.AddResource(
		mcp.NewResource(MemoURI, "insights-memo",
			mcp.WithResourceDescription("Current insights memo with metadata."),
			mcp.WithMIMEType("application/json"),
		),
		s.readMemoResource,
	)
	s.mcp.AddResource(
		mcp.NewResource(MemoMarkdownURI, "insights-memo-markdown",
			mcp.WithResourceDescription("Current insights memo as a Markdown document."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMemoMarkdownResource,
	)
	s.mcp.AddResource(
		mcp.NewResource(UsageURI, "Usage Contract",
			mcp.WithResourceDescription("How to query Fabric data and record insights."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readUsageResource,
	)

	s.mcp.AddPrompt(mcp.NewPrompt("analyze-sales-data",
		mcp.WithPromptDescription("Comprehensive sales data analysis prompt."),
	), s.salesPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("generate-bi-report",
		mcp.WithPromptDescription("Generate a BI report based on current data."),
		mcp.WithArgument("report_type",
			mcp.ArgumentDescription("executive (default), operational, financial or marketing")),
		mcp.WithArgument("time_period",
			mcp.ArgumentDescription("Period to cover (default: last_month)")),
	), s.reportPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("custom-analysis",
		mcp.WithPromptDescription("Free-form analysis prompt built from parameters."),
		mcp.WithArgument("analysis_type", mcp.RequiredArgument(),
			mcp.ArgumentDescription("Kind of analysis, e.g. cohort or churn")),
		mcp.WithArgument("parameters",
			mcp.ArgumentDescription("One key=value pair per line")),
	), s.customPrompt)

	return s
}

// ServeStdio serves MCP frames on stdin/stdout until ctx is cancelled or
// stdin closes. Transport errors go to the server's logger.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// HTTPHandler returns the streamable-HTTP transport for this server.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// failure is the normalised error body of every tool.
type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// jsonResult renders v as the tool's text content and flags failed results.
func jsonResult(v any, isErr bool) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		out, _ = json.Marshal(failure{Error: fmt.Sprintf("encode result: %v", err)})
		isErr = true
	}
	res := mcp.NewToolResultText(string(out))
	res.IsError = isErr
	return res
}

func failed(msg string) *mcp.CallToolResult {
	return jsonResult(failure{Success: false, Error: msg}, true)
}

func (s *Server) listTables(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := s.analytics.ListTables(ctx)
	return jsonResult(res, !res.Success), nil
}

func (s *Server) readQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return failed(err.Error()), nil
	}
	res := s.analytics.ReadQuery(ctx, query)
	return jsonResult(res, !res.Success), nil
}

func (s *Server) appendInsight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return failed(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return failed(err.Error()), nil
	}
	category := req.GetString("category", "")
	tags := req.GetStringSlice("tags", nil)

	res := s.memo.Append(ctx, title, content, category, tags)
	return jsonResult(res, !res.Success), nil
}

// memoMetadata accompanies the rendered memo in the JSON resource.
type memoMetadata struct {
	TotalInsights int        `json:"total_insights"`
	Categories    []string   `json:"categories"`
	LastUpdated   *time.Time `json:"last_updated"`
	Version       string     `json:"version,omitempty"`
}

type memoResource struct {
	Content  string       `json:"content"`
	Metadata memoMetadata `json:"metadata"`
}

// MemoJSON returns the JSON body of the memo resource.
func (s *Server) MemoJSON() ([]byte, error) {
	doc := s.memo.Snapshot()
	return json.MarshalIndent(memoResource{
		Content: ledger.RenderDocument(doc),
		Metadata: memoMetadata{
			TotalInsights: len(doc.Insights),
			Categories:    s.memo.Categories(),
			LastUpdated:   doc.LastUpdated,
			Version:       s.memo.Version(),
		},
	}, "", "  ")
}

func (s *Server) readMemoResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	body, err := s.MemoJSON()
	if err != nil {
		return nil, fmt.Errorf("encode memo: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MemoURI,
			MIMEType: "application/json",
			Text:     string(body),
		},
	}, nil
}

func (s *Server) readMemoMarkdownResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MemoMarkdownURI,
			MIMEType: "text/markdown",
			Text:     s.memo.Render(),
		},
	}, nil
}

func (s *Server) readUsageResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      UsageURI,
			MIMEType: "text/markdown",
			Text:     UsageContract,
		},
	}, nil
}

func promptResult(description, text string) *mcp.GetPromptResult {
	return mcp.NewGetPromptResult(description, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	})
}

func (s *Server) salesPrompt(_ context.Context, _ mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return promptResult("Comprehensive sales data analysis", prompts.SalesAnalysis()), nil
}

func (s *Server) reportPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	reportType := req.Params.Arguments["report_type"]
	if !prompts.IsReportType(reportType) {
		reportType = prompts.ReportExecutive
	}
	period := req.Params.Arguments["time_period"]
	return promptResult(
		fmt.Sprintf("BI report: %s", reportType),
		prompts.BIReport(reportType, period),
	), nil
}

func (s *Server) customPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	analysisType := req.Params.Arguments["analysis_type"]
	if analysisType == "" {
		return nil, fmt.Errorf("analysis_type is required")
	}
	params := prompts.ParseParams(req.Params.Arguments["parameters"])
	return promptResult(
		fmt.Sprintf("Custom %s analysis", analysisType),
		prompts.Custom(analysisType, params),
	), nil
}
