package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/starford/fabric-mcp/internal/analytics"
	"github.com/starford/fabric-mcp/internal/ledger"
)

const maxBodySize = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	analytics *analytics.Service
	memo      *ledger.Ledger
}

// NewHandler creates a new Handler.
func NewHandler(svc *analytics.Service, memo *ledger.Ledger) *Handler {
	return &Handler{analytics: svc, memo: memo}
}

// validator is implemented by request DTOs.
type validator interface {
	Validate() error
}

// decode reads a JSON body into dst and validates it, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst validator) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := dst.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// ListTables handles GET /api/tables.
//
//	@Summary		List lakehouse tables
//	@Tags			fabric
//	@Produce		json
//	@Success		200	{object}	analytics.TablesResult
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tables [get]
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	res := h.analytics.ListTables(r.Context())
	if !res.Success {
		writeJSON(w, statusFor(res.Kind), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReadQuery handles POST /api/query.
//
//	@Summary		Run a read-only SQL query
//	@Tags			fabric
//	@Accept			json
//	@Produce		json
//	@Param			body	body		QueryRequest	true	"Query to run"
//	@Success		200		{object}	analytics.QueryResult
//	@Failure		400		{object}	errResponse
//	@Failure		504		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/query [post]
func (h *Handler) ReadQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decode(w, r, &req) {
		return
	}
	res := h.analytics.ReadQuery(r.Context(), req.Query)
	if !res.Success {
		writeJSON(w, statusFor(res.Kind), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListInsights handles GET /api/insights.
//
//	@Summary		List recorded insights
//	@Tags			insights
//	@Produce		json
//	@Success		200	{object}	InsightListResponse
//	@Security		BearerAuth
//	@Router			/insights [get]
func (h *Handler) ListInsights(w http.ResponseWriter, r *http.Request) {
	doc := h.memo.Snapshot()
	writeJSON(w, http.StatusOK, InsightListResponse{
		Insights:    doc.Insights,
		Total:       len(doc.Insights),
		Categories:  h.memo.Categories(),
		LastUpdated: doc.LastUpdated,
		Version:     h.memo.Version(),
	})
}

// AppendInsight handles POST /api/insights.
//
//	@Summary		Append an insight to the memo
//	@Tags			insights
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AppendInsightRequest	true	"Insight to record"
//	@Success		201		{object}	ledger.AppendResult
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	ledger.AppendResult
//	@Security		BearerAuth
//	@Router			/insights [post]
func (h *Handler) AppendInsight(w http.ResponseWriter, r *http.Request) {
	var req AppendInsightRequest
	if !decode(w, r, &req) {
		return
	}
	res := h.memo.Append(r.Context(), *req.Title, *req.Content, req.Category, req.Tags)
	if !res.Success {
		slog.Error("append insight failed", slog.String("error", res.Error))
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/insights#%d", res.InsightID))
	writeJSON(w, http.StatusCreated, res)
}

// Memo handles GET /api/memo.
//
//	@Summary		Render the memo as Markdown
//	@Tags			insights
//	@Produce		text/markdown
//	@Success		200	{string}	string
//	@Security		BearerAuth
//	@Router			/memo [get]
func (h *Handler) Memo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if v := h.memo.Version(); v != "" {
		w.Header().Set("ETag", `"`+v+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.memo.Render()))
}
