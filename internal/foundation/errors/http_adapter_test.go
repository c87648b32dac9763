package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: http.StatusOK},
		{name: "validation", err: ValidationError("bad url").Build(), expected: http.StatusBadRequest},
		{name: "not found", err: NotFoundError("missing").Build(), expected: http.StatusNotFound},
		{name: "filesystem", err: FileSystemError("read failed").Build(), expected: http.StatusInternalServerError},
		{name: "internal", err: InternalError("panic").Build(), expected: http.StatusInternalServerError},
		{name: "unclassified", err: &customHTTPError{msg: "unknown"}, expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.StatusCodeFor(tt.err); got != tt.expected {
				t.Errorf("StatusCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	w := httptest.NewRecorder()

	status := adapter.WriteErrorResponse(w, req, FileSystemError("stream failed").WithContext("path", "/index.html").Build())

	if status != http.StatusInternalServerError || w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d/%d, want 500", status, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}
	var response HTTPErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if response.Error != "stream failed" || response.Code != string(CategoryFileSystem) {
		t.Errorf("unexpected payload: %+v", response)
	}
	if response.Details["path"] != "/index.html" {
		t.Errorf("expected path detail, got %+v", response.Details)
	}
}

type customHTTPError struct {
	msg string
}

func (e *customHTTPError) Error() string {
	return e.msg
}
