package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestLabError_Error(t *testing.T) {
	err := New(ErrCategoryStorage, CodeUploadFailed, "upload failed")
	expected := "[STORAGE:UPLOAD_FAILED] upload failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestLabError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryConnection, CodeConnectFailed, "cassandra unreachable", cause)
	expected := "[CONNECTION:CONNECT_FAILED] cassandra unreachable: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestLabError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryLoad, CodeLoadFailed, "insert row 12", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestLabError_Is(t *testing.T) {
	err1 := NewInvalidConfiguration("total events must be positive")
	err2 := NewInvalidConfiguration("user pool must be positive")
	err3 := NewMalformedRecord("bad header", nil)

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("generate: %w", err1)
	if !errors.Is(wrapped, New(ErrCategoryValidation, CodeInvalidConfiguration, "")) {
		t.Error("Is should see through fmt wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryConnection, CodeConnectFailed, true},
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryValidation, CodeInvalidConfiguration, false},
		{ErrCategoryValidation, CodeMalformedRecord, false},
		{ErrCategoryQuery, CodeQueryFailed, false},
		{ErrCategoryLoad, CodeLoadFailed, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := NewQueryError("select failed", fmt.Errorf("timeout"))
	if GetCategory(err) != ErrCategoryQuery {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryQuery)
	}
	if GetCode(err) != CodeQueryFailed {
		t.Errorf("got %q, want %q", GetCode(err), CodeQueryFailed)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-LabError should return empty category")
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-LabError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewMalformedRecord("bad row", nil)
	detailed := err.WithDetails(map[string]interface{}{"line": 7})

	if detailed.Details["line"] != 7 {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	v := NewInvalidConfiguration("weights sum to %d", 0)
	if v.Category != ErrCategoryValidation || v.Code != CodeInvalidConfiguration || v.Message != "weights sum to 0" {
		t.Errorf("NewInvalidConfiguration mismatch: %+v", v)
	}

	c := NewConnectionError("redis", cause)
	if c.Category != ErrCategoryConnection || !c.Retryable || !errors.Is(c, cause) {
		t.Error("NewConnectionError mismatch")
	}

	s := NewStorageError(CodeObjectNotFound, "missing", cause)
	if s.Category != ErrCategoryStorage || s.Retryable {
		t.Error("NewStorageError mismatch")
	}

	l := NewLoadError("insert", cause)
	if l.Category != ErrCategoryLoad || l.Code != CodeLoadFailed {
		t.Error("NewLoadError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
