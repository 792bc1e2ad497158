package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/receipts"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

func TestResponseBuilder_Write(t *testing.T) {
	rec := httptest.NewRecorder()
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/abc").
		JSON(map[string]string{"id": "abc"}).
		Write(rec)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/api/transactions/abc" {
		t.Errorf("Location = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["id"] != "abc" {
		t.Fatalf("body = %q, err = %v", rec.Body.String(), err)
	}
}

func TestResponseBuilder_NoBody(t *testing.T) {
	rec := httptest.NewRecorder()
	NewResponse().Status(http.StatusNoContent).Write(rec)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"wrapped validation", fmt.Errorf("draft: %w", core.ErrEmptyDescription), http.StatusUnprocessableEntity},
		{"bad request", badRequest{"Invalid JSON body"}, http.StatusBadRequest},
		{"not found", fmt.Errorf("update: %w", store.ErrNotFound), http.StatusNotFound},
		{"receipt not found", receipts.ErrNotFound, http.StatusNotFound},
		{"receipt too large", fmt.Errorf("upload receipt: %w", receipts.ErrTooLarge), http.StatusRequestEntityTooLarge},
		{"receipts disabled", services.ErrReceiptsDisabled, http.StatusUnprocessableEntity},
		{"store failure", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusFor_HidesInternalDetails(t *testing.T) {
	_, msg := statusFor(errors.New("pq: password authentication failed"))
	if msg != "Internal server error" {
		t.Fatalf("message = %q, want generic message", msg)
	}
}
