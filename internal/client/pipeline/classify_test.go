package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/dataglove/glovectl/internal/core/domain"
)

func TestClassifyReply(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    domain.Kind // empty means success
		message string
	}{
		{"success", 200, `{"code":200,"message":"ok","data":{"id":1}}`, "", ""},
		{"success created", 201, `{"code":200,"message":"ok"}`, "", ""},
		{"envelope unauthenticated", 200, `{"code":401,"message":"token expired"}`, domain.KindUnauthorized, "token expired"},
		{"envelope unauthenticated default", 200, `{"code":401}`, domain.KindUnauthorized, "session expired, please log in again"},
		{"envelope forbidden", 200, `{"code":403,"message":"admins only"}`, domain.KindForbidden, "admins only"},
		{"envelope forbidden default", 200, `{"code":403,"message":""}`, domain.KindForbidden, "no permission"},
		{"envelope business", 200, `{"code":500,"message":"device id exists"}`, domain.KindBusiness, "device id exists"},
		{"envelope business default", 200, `{"code":1001}`, domain.KindBusiness, "request failed"},
		{"2xx not an envelope", 200, `<html>`, domain.KindUnknown, "malformed response from server"},
		{"non-2xx with envelope", 401, `{"code":401,"message":"bad token"}`, domain.KindUnauthorized, "bad token"},
		{"non-2xx with business envelope", 409, `{"code":409,"message":"conflict"}`, domain.KindBusiness, "conflict"},
		{"400 with message", 400, `{"message":"username taken"}`, domain.KindBadRequest, "username taken"},
		{"400 without body", 400, ``, domain.KindBadRequest, "invalid request parameters"},
		{"401 bare", 401, ``, domain.KindUnauthorized, "unauthorized, please log in again"},
		{"403 bare", 403, ``, domain.KindForbidden, "no permission"},
		{"404 bare", 404, `not found`, domain.KindNotFound, "requested resource does not exist"},
		{"500 bare", 500, ``, domain.KindServerFault, "internal server error"},
		{"502 bare", 502, `<html>bad gateway</html>`, domain.KindServerFault, "internal server error"},
		{"418 with message", 418, `{"message":"teapot"}`, domain.KindUnknown, "teapot"},
		{"418 bare", 418, ``, domain.KindUnknown, "request failed (status 418)"},
		{"non-2xx with success envelope", 409, `{"code":200,"message":"odd"}`, domain.KindUnknown, "odd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := classifyReply(tt.status, []byte(tt.body))
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("classifyReply() error = %v, want success", err)
				}
				if env == nil || !env.Success() {
					t.Fatal("classifyReply() should return the success envelope")
				}
				return
			}

			if err == nil {
				t.Fatalf("classifyReply() = success, want %s", tt.kind)
			}
			if err.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", err.Kind, tt.kind)
			}
			if err.Message != tt.message {
				t.Errorf("Message = %q, want %q", err.Message, tt.message)
			}
			if err.Status != tt.status {
				t.Errorf("Status = %d, want %d", err.Status, tt.status)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind domain.Kind
	}{
		{"deadline", fmt.Errorf("do: %w", context.DeadlineExceeded), domain.KindTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, domain.KindTimeout},
		{"refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, domain.KindUnreachable},
		{"cancelled", fmt.Errorf("do: %w", context.Canceled), domain.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTransport(tt.err)
			if got.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.kind)
			}
			if !errors.Is(got, tt.err) && errors.Unwrap(got) != tt.err {
				t.Error("cause should be preserved")
			}
		})
	}
}
