package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"budgetbook/internal/core"
	"budgetbook/internal/services"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Payload(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header missing")
	}
	if w.Body.String() != "{\"n\":1}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilderEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Payload(make(chan int)).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestErrorFor(t *testing.T) {
	notFound := core.WrapStore("delete transaction", fmt.Errorf("transaction x: %w", core.ErrNotFound))

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", core.ErrInvalidAmount, http.StatusUnprocessableEntity, CodeValidation},
		{"wrapped validation", fmt.Errorf("add: %w", core.ErrEmptyCategory), http.StatusUnprocessableEntity, CodeValidation},
		{"not authenticated", core.ErrNotAuthenticated, http.StatusUnauthorized, CodeNotAuthenticated},
		{"not found inside store error", notFound, http.StatusNotFound, CodeNotFound},
		{"conflict", core.WrapStore("save budget", core.ErrConflict), http.StatusConflict, CodeConflict},
		{"store", core.WrapStore("reload", errors.New("connection refused")), http.StatusBadGateway, CodeStore},
		{"reload error", &services.ReloadError{Entity: "budget", Action: "created", Err: core.WrapStore("reload", errors.New("x"))}, http.StatusBadGateway, CodeStore},
		{"request", &requestError{status: http.StatusBadRequest, msg: "bad"}, http.StatusBadRequest, CodeBadRequest},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			errorFor(tt.err).Write(w)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestErrorForValidationNamesField(t *testing.T) {
	w := httptest.NewRecorder()
	errorFor(&core.ValidationError{Field: "month", Reason: "must be between 1 and 12"}).Write(w)

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Field != "month" {
		t.Errorf("field = %q, want month", body.Field)
	}
}
