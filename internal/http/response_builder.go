package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"budgetbook/internal/core"
)

// JSONResponseBuilder assembles a JSON response: status, headers and payload.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Payload(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		http.Error(w, `{"error":"internal error","code":"internal"}`, http.StatusInternalServerError)
		return
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// Error codes carried in every error body.
const (
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation"
	CodeNotAuthenticated = "not_authenticated"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeStore            = "store_unavailable"
	CodeReloadFailed     = "reload_failed"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func ErrorResponse(status int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(status).Payload(errorBody{Error: message, Code: code})
}

// errorFor maps the ledger error taxonomy onto a response. Not-found is
// checked before the store failure that wraps it.
func errorFor(err error) *JSONResponseBuilder {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return ErrorResponse(reqErr.status, CodeBadRequest, reqErr.msg)
	}

	var ve *core.ValidationError
	switch {
	case errors.Is(err, core.ErrNotAuthenticated):
		return ErrorResponse(http.StatusUnauthorized, CodeNotAuthenticated, "sign in required")
	case errors.As(err, &ve):
		return NewJSONResponse().
			Status(http.StatusUnprocessableEntity).
			Payload(errorBody{Error: ve.Error(), Code: CodeValidation, Field: ve.Field})
	case errors.Is(err, core.ErrNotFound):
		return ErrorResponse(http.StatusNotFound, CodeNotFound, "not found")
	case errors.Is(err, core.ErrConflict):
		return ErrorResponse(http.StatusConflict, CodeConflict, "conflicting change, retry")
	case errors.Is(err, core.ErrStore):
		return ErrorResponse(http.StatusBadGateway, CodeStore, "ledger store unavailable")
	default:
		return ErrorResponse(http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
