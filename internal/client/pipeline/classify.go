package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/dataglove/glovectl/internal/core/domain"
)

// classifyReply maps a received reply to the decoded envelope or an error.
//
// The envelope code wins whenever the body carries one: a 2xx reply can
// still be a business failure, and a non-2xx reply with a failure envelope
// is treated exactly like its 2xx counterpart. Only replies without a
// usable envelope fall back to the HTTP status.
func classifyReply(status int, body []byte) (*domain.Envelope, *domain.Error) {
	env, ok := domain.ParseEnvelope(body)

	if status >= 200 && status < 300 {
		if !ok {
			return nil, domain.ErrMalformedResponse.WithStatus(status)
		}
		if env.Success() {
			return env, nil
		}
		return env, classifyEnvelope(env).WithStatus(status)
	}

	if ok && !env.Success() {
		return env, classifyEnvelope(env).WithStatus(status)
	}
	return nil, classifyStatus(status, body)
}

// classifyEnvelope maps a non-success envelope code to an error carrying
// the server message (or the default text when the server sent none).
func classifyEnvelope(env *domain.Envelope) *domain.Error {
	switch env.Code {
	case domain.CodeUnauthenticated:
		return domain.ErrSessionExpired.WithMessage(env.Message)
	case domain.CodeForbidden:
		return domain.ErrPermissionDenied.WithMessage(env.Message)
	default:
		return domain.ErrRequestFailed.WithMessage(env.Message)
	}
}

// classifyStatus maps an HTTP status without a usable envelope.
func classifyStatus(status int, body []byte) *domain.Error {
	switch {
	case status == http.StatusBadRequest:
		return domain.ErrBadRequest.WithMessage(serverMessage(body)).WithStatus(status)
	case status == http.StatusUnauthorized:
		return domain.ErrUnauthenticated.WithStatus(status)
	case status == http.StatusForbidden:
		return domain.ErrPermissionDenied.WithStatus(status)
	case status == http.StatusNotFound:
		return domain.ErrNotFound.WithStatus(status)
	case status >= 500 && status < 600:
		return domain.ErrServerFault.WithStatus(status)
	default:
		return domain.StatusError(status, serverMessage(body))
	}
}

// classifyTransport maps a failure to receive any reply.
func classifyTransport(err error) *domain.Error {
	if errors.Is(err, context.Canceled) {
		return domain.ErrUnknown.WithMessage("request cancelled").WithCause(err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.ErrTimeout.WithCause(err)
	}
	return domain.ErrUnreachable.WithCause(err)
}

// serverMessage returns the "message" field of a JSON body, if any.
func serverMessage(body []byte) string {
	var v struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	return v.Message
}
