package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := NewError(KindBusiness, "GC-TEST-1000", "device already bound")
	if got := err.Error(); got != "device already bound" {
		t.Errorf("Error() = %q, want %q", got, "device already bound")
	}
}

func TestError_Is(t *testing.T) {
	err1 := NewError(KindBusiness, "GC-TEST-1000", "message 1")
	err2 := NewError(KindBusiness, "GC-TEST-1000", "message 2") // Same code, different message
	err3 := NewError(KindBusiness, "GC-TEST-1001", "message 1") // Different code

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-Error")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := ErrUnreachable.WithCause(cause)

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if errors.Unwrap(ErrUnreachable) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestError_WithMessage(t *testing.T) {
	original := ErrRequestFailed
	custom := original.WithMessage("device id already exists")

	if original.Message != "request failed" {
		t.Error("WithMessage should not modify original error")
	}
	if custom.Message != "device id already exists" {
		t.Errorf("Message = %q", custom.Message)
	}
	if custom.Code != original.Code || custom.Kind != original.Kind {
		t.Error("WithMessage should preserve code and kind")
	}

	// Empty message keeps the default text.
	if got := original.WithMessage("").Message; got != original.Message {
		t.Errorf("WithMessage(\"\") = %q, want %q", got, original.Message)
	}
}

func TestError_Chaining(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := ErrServerFault.WithStatus(502).WithMessage("bad gateway").WithCause(cause)

	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if err.Cause != cause {
		t.Error("Cause should be preserved")
	}
	if !errors.Is(err, ErrServerFault) {
		t.Error("errors.Is should work after chaining")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"session expired", ErrSessionExpired, KindUnauthorized},
		{"wrapped forbidden", fmt.Errorf("open view: %w", ErrPermissionDenied), KindForbidden},
		{"plain error", fmt.Errorf("boom"), KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}

	if !IsKind(fmt.Errorf("x: %w", ErrTimeout), KindTimeout) {
		t.Error("IsKind should see through wrapping")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"client error", ErrNotFound, "GC-REQ-4040"},
		{"wrapped client error", fmt.Errorf("wrapped: %w", ErrBadRequest), "GC-REQ-4000"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *Error
		code string
		kind Kind
	}{
		{ErrUnreachable, "GC-NET-0001", KindUnreachable},
		{ErrTimeout, "GC-NET-0002", KindTimeout},
		{ErrSessionExpired, "GC-AUTH-4010", KindUnauthorized},
		{ErrUnauthenticated, "GC-AUTH-4011", KindUnauthorized},
		{ErrNotLoggedIn, "GC-AUTH-4012", KindUnauthorized},
		{ErrNoRefreshToken, "GC-AUTH-4013", KindUnauthorized},
		{ErrPermissionDenied, "GC-AUTH-4030", KindForbidden},
		{ErrBadRequest, "GC-REQ-4000", KindBadRequest},
		{ErrNotFound, "GC-REQ-4040", KindNotFound},
		{ErrRequestFailed, "GC-REQ-4220", KindBusiness},
		{ErrMalformedResponse, "GC-REQ-5020", KindUnknown},
		{ErrServerFault, "GC-SYS-5000", KindServerFault},
		{ErrUnknown, "GC-SYS-9999", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Error code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Error kind = %q, want %q", tt.err.Kind, tt.kind)
			}
			if tt.err.Message == "" {
				t.Error("Error message should not be empty")
			}
		})
	}
}

func TestStatusError(t *testing.T) {
	err := StatusError(418, "")
	if err.Message != "request failed (status 418)" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Status != 418 {
		t.Errorf("Status = %d, want 418", err.Status)
	}

	if got := StatusError(409, "conflict").Message; got != "conflict" {
		t.Errorf("Message = %q, want %q", got, "conflict")
	}
}
