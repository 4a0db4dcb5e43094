package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIndexNotFoundError(t *testing.T) {
	err := NewIndexNotFoundError("test-index")

	expectedMsg := "index named 'test-index' not found"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
	if !errors.Is(err, ErrIndexNotFound) {
		t.Error("Expected error to match ErrIndexNotFound sentinel")
	}
	if errors.Is(err, ErrDocumentNotFound) {
		t.Error("Error should not match ErrDocumentNotFound")
	}
}

func TestDocumentNotFoundError(t *testing.T) {
	err := NewDocumentNotFoundError("doc123")
	if err.Error() != "document with ID 'doc123' not found" {
		t.Errorf("unexpected message %q", err.Error())
	}

	err2 := NewDocumentNotFoundError("doc123", "test-index")
	if err2.Error() != "document with ID 'doc123' not found in index 'test-index'" {
		t.Errorf("unexpected message %q", err2.Error())
	}
	if !errors.Is(err2, ErrDocumentNotFound) {
		t.Error("Expected error to match ErrDocumentNotFound sentinel")
	}
}

func TestQuerySyntaxError(t *testing.T) {
	err := NewQuerySyntaxError(7, "expected '%s'", ")")
	if err.Error() != "query syntax error at position 7: expected ')'" {
		t.Errorf("unexpected message %q", err.Error())
	}

	noPos := NewQuerySyntaxError(-1, "unknown field 'foo'")
	if noPos.Error() != "query syntax error: unknown field 'foo'" {
		t.Errorf("unexpected message %q", noPos.Error())
	}
	if !errors.Is(noPos, ErrQuerySyntax) {
		t.Error("Expected error to match ErrQuerySyntax sentinel")
	}
}

func TestUpstreamErrorTimeout(t *testing.T) {
	err := NewUpstreamError("mistral", 0, context.DeadlineExceeded)
	if !err.Timeout {
		t.Error("Expected deadline exceeded to be flagged as timeout")
	}
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, context.DeadlineExceeded) {
		t.Error("Expected error to match both ErrUpstream and the wrapped cause")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"validation", NewValidationError("title", "must be a string"), KindValidation},
		{"wrapped validation", fmt.Errorf("document 3: %w", NewValidationError("title", "bad")), KindValidation},
		{"index not found", NewIndexNotFoundError("x"), KindNotFound},
		{"document not found", NewDocumentNotFoundError("d"), KindNotFound},
		{"conflict", NewIndexAlreadyExistsError("x"), KindConflict},
		{"syntax", NewQuerySyntaxError(0, "bad"), KindQuerySyntax},
		{"engine", NewEngineError("x", "commit", errors.New("disk full")), KindEngine},
		{"upstream", NewUpstreamError("mistral", 500, errors.New("boom")), KindUpstream},
		{"upstream cancelled", NewUpstreamError("mistral", 0, context.Canceled), KindCancelled},
		{"cancelled", ErrCancelled, KindCancelled},
		{"metadata", NewMetadataWarning("x", errors.New("badger closed")), KindMetadata},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}

	if !IsWarning(NewMetadataWarning("x", errors.New("closed"))) {
		t.Error("Expected metadata warning to be reported as warning")
	}
	if IsWarning(NewEngineError("x", "commit", errors.New("closed"))) {
		t.Error("Engine errors are not warnings")
	}
}
