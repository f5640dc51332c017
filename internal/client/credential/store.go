package credential

import (
	"context"
	"errors"

	"github.com/dataglove/glovectl/internal/core/domain"
)

// DefaultSlot is the slot name used when none is configured.
const DefaultSlot = "default"

// Common errors.
var (
	// ErrSealed is returned when a slot exists but cannot be opened with the
	// installed key (tampered, truncated or written by another install).
	ErrSealed = errors.New("credential: slot cannot be unsealed")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("credential: store closed")
)

// Store is the durable holder of at most one credential.
type Store interface {
	// Read returns the stored credential. ok is false when the slot is empty.
	Read(ctx context.Context) (cred domain.Credential, ok bool, err error)

	// Write replaces the slot content.
	Write(ctx context.Context, cred domain.Credential) error

	// Clear empties the slot. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}

// Watchable is implemented by stores that can report changes made by other
// processes. fn is called after every observed change until ctx ends.
type Watchable interface {
	Watch(ctx context.Context, fn func()) error
}
