package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/fabric-mcp/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// errResponse mirrors the failure shape of the MCP tools.
type errResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Success: false, Error: msg}
}

// statusFor maps an error class to an HTTP status.
func statusFor(kind error) int {
	switch {
	case kind == nil:
		return http.StatusInternalServerError
	case errors.Is(kind, apperr.ErrUnsafeQuery), errors.Is(kind, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(kind, apperr.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(kind, apperr.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
