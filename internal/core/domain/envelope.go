// Package domain defines the core domain models for glovectl.
package domain

import (
	"bytes"
	"encoding/json"
)

// Envelope codes. The code is authoritative regardless of HTTP status:
// a 200 transport reply can still carry a business failure.
const (
	CodeSuccess         = 200
	CodeUnauthenticated = 401
	CodeForbidden       = 403
)

// Envelope is the uniform reply wrapper of every JSON endpoint.
type Envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ParseEnvelope decodes body as an Envelope. It reports false when body is
// not a JSON object carrying a non-zero code.
func ParseEnvelope(body []byte) (*Envelope, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, false
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	if env.Code == 0 {
		return nil, false
	}
	return &env, true
}

// Success reports whether the envelope carries the success code.
func (e *Envelope) Success() bool {
	return e.Code == CodeSuccess
}

// Decode unmarshals the data field into out. A nil out, an absent data
// field or a JSON null leave out untouched.
func (e *Envelope) Decode(out any) error {
	if out == nil || len(e.Data) == 0 || bytes.Equal(e.Data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}
