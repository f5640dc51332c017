package pipeline

import (
	"net/url"

	"github.com/dataglove/glovectl/internal/core/domain"
)

// RequestOption adjusts a single call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	quiet      bool
	noExpiry   bool
	credential *domain.Credential
	query      url.Values
	label      string
}

// WithQuiet suppresses user notices for this call. Errors are still returned.
func WithQuiet() RequestOption {
	return func(o *requestOptions) {
		o.quiet = true
	}
}

// WithoutExpiryHandling keeps a 401 from invoking the ExpiryHandler.
// The logout call uses it so an expired session cannot recurse.
func WithoutExpiryHandling() RequestOption {
	return func(o *requestOptions) {
		o.noExpiry = true
	}
}

// WithCredential attaches c instead of the session credential.
func WithCredential(c domain.Credential) RequestOption {
	return func(o *requestOptions) {
		o.credential = &c
	}
}

// WithQuery adds query parameters to the call.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		if o.query == nil {
			o.query = url.Values{}
		}
		for k, vs := range q {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// WithLabel sets the text shown by the progress indication.
func WithLabel(label string) RequestOption {
	return func(o *requestOptions) {
		o.label = label
	}
}

func collect(opts []RequestOption) requestOptions {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CredentialOf returns the credential set by WithCredential, if any.
// Substitute Requesters use it to see which session a call belongs to.
func CredentialOf(opts ...RequestOption) domain.Credential {
	o := collect(opts)
	if o.credential == nil {
		return domain.Credential{}
	}
	return *o.credential
}
