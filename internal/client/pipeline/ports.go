package pipeline

import (
	"context"

	"github.com/dataglove/glovectl/internal/core/domain"
)

// Progress shows that work is in flight. Begin returns the function that
// ends the indication; it is always called exactly once.
type Progress interface {
	Begin(label string) (end func())
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(label string) func()

// Begin implements Progress.
func (f ProgressFunc) Begin(label string) func() { return f(label) }

type noProgress struct{}

func (noProgress) Begin(string) func() { return func() {} }

// ExpiryHandler is called when the service rejects a credential. rejected
// is the credential the failed call carried (zero for anonymous calls), so
// the handler can tell a stale rejection from one of the live session.
// Implementations must finish local teardown before returning.
type ExpiryHandler interface {
	SessionExpired(ctx context.Context, rejected domain.Credential)
}

// ExpiryHandlerFunc adapts a function to ExpiryHandler.
type ExpiryHandlerFunc func(ctx context.Context, rejected domain.Credential)

// SessionExpired implements ExpiryHandler.
func (f ExpiryHandlerFunc) SessionExpired(ctx context.Context, rejected domain.Credential) {
	f(ctx, rejected)
}

// CredentialSource supplies the credential attached to outgoing calls.
// *session.State satisfies it.
type CredentialSource interface {
	Credential() (domain.Credential, bool)
}
