package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "boqbuilder.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if !err.IsFatal() {
			t.Error("expected fatal severity")
		}
		file, ok := err.Context().GetString("file")
		if !ok || file != "boqbuilder.yaml" {
			t.Errorf("expected context file=boqbuilder.yaml, got %v", file)
		}
	})

	t.Run("Wrapped chain", func(t *testing.T) {
		sentinel := stderrors.New("no backend")
		ce := WrapError(sentinel, CategoryConversion, "conversion failed").Retryable().Build()
		wrapped := fmt.Errorf("stage converting: %w", ce)

		if !stderrors.Is(wrapped, sentinel) {
			t.Error("expected sentinel to be reachable through the chain")
		}
		if !HasCategory(wrapped, CategoryConversion) {
			t.Error("expected conversion category through fmt wrapping")
		}
		if GetRetryStrategy(wrapped) != RetryBackoff {
			t.Errorf("expected backoff retry, got %s", GetRetryStrategy(wrapped))
		}
	})

	t.Run("Unclassified defaults", func(t *testing.T) {
		plain := stderrors.New("plain")
		if GetCategory(plain) != CategoryInternal {
			t.Errorf("expected internal, got %s", GetCategory(plain))
		}
		if GetSeverity(plain) != SeverityError {
			t.Errorf("expected error severity, got %s", GetSeverity(plain))
		}
	})

	t.Run("WithContext copies", func(t *testing.T) {
		base := ParseError("unreadable").Build()
		derived := base.WithContext("path", "a.dxf")
		if _, ok := base.Context().Get("path"); ok {
			t.Error("base context must not be mutated")
		}
		if p, _ := derived.Context().GetString("path"); p != "a.dxf" {
			t.Errorf("expected path on derived error, got %q", p)
		}
	})
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *ClassifiedError
		category ErrorCategory
		retry    bool
	}{
		{"config", ConfigError("x").Build(), CategoryConfig, false},
		{"not found", NotFoundError("x").Build(), CategoryNotFound, false},
		{"conversion", ConversionError("x").Build(), CategoryConversion, true},
		{"parse", ParseError("x").Build(), CategoryParse, false},
		{"filesystem", FileSystemError("x").Build(), CategoryFileSystem, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Category() != tt.category {
				t.Errorf("expected %s, got %s", tt.category, tt.err.Category())
			}
			if tt.err.CanRetry() != tt.retry {
				t.Errorf("expected CanRetry=%v", tt.retry)
			}
		})
	}
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{stderrors.New("x"), 1},
		{ValidationError("x").Build(), 2},
		{NotFoundError("x").Build(), 3},
		{ConfigError("x").Build(), 7},
		{ConversionError("x").Build(), 11},
		{InternalError("x").Build(), 10},
	}
	for _, tt := range tests {
		if got := a.ExitCodeFor(tt.err); got != tt.want {
			t.Errorf("ExitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHTTPErrorAdapter(t *testing.T) {
	a := NewHTTPErrorAdapter(nil)

	if got := a.StatusCodeFor(NotFoundError("job missing").Build()); got != http.StatusNotFound {
		t.Errorf("expected 404, got %d", got)
	}
	if got := a.StatusCodeFor(ParseError("bad").Build()); got != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", got)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil)
	a.WriteErrorResponse(rec, req, ValidationError("unsupported file type").WithContext("ext", ".pdf").Build())

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body HTTPErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "validation" || body.Details["ext"] != ".pdf" {
		t.Errorf("unexpected payload: %+v", body)
	}
}
