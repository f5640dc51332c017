// Package session holds the process-wide authentication state.
//
// State is readable by anyone. It can be mutated only through the Writer
// returned by the first call to Claim, which the session controller takes
// at construction.
package session

import (
	"errors"
	"sync"

	"github.com/dataglove/glovectl/internal/core/domain"
)

// ErrWriterClaimed is returned when Claim is called a second time.
var ErrWriterClaimed = errors.New("session: writer already claimed")

// Snapshot is a consistent copy of the state at one point in time.
type Snapshot struct {
	Credential    domain.Credential
	HasCredential bool
	Identity      *domain.Identity
	Generation    uint64
}

// Authenticated reports whether the snapshot carries a credential.
func (s Snapshot) Authenticated() bool {
	return s.HasCredential
}

// State is the shared (credential, identity) pair.
//
// Invariant: an identity is present only while a credential is present.
type State struct {
	mu       sync.RWMutex
	cred     domain.Credential
	hasCred  bool
	identity *domain.Identity
	gen      uint64

	claimed bool

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// New returns an empty, unclaimed state.
func New() *State {
	return &State{subs: make(map[int]func(Snapshot))}
}

// Claim hands out the single Writer.
func (s *State) Claim() (*Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed {
		return nil, ErrWriterClaimed
	}
	s.claimed = true
	return &Writer{s: s}, nil
}

// Credential returns the current credential.
func (s *State) Credential() (domain.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.hasCred
}

// Identity returns a copy of the resolved identity.
func (s *State) Identity() (*domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil, false
	}
	return s.identity.Clone(), true
}

// IsAuthenticated reports whether a credential is present.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasCred
}

// HasRole reports whether the resolved identity holds label.
// It is false while the identity is unresolved.
func (s *State) HasRole(label string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.identity.Roles.Has(label)
}

// HasAnyRole reports whether the resolved identity holds any of labels.
func (s *State) HasAnyRole(labels ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.identity.Roles.HasAny(labels...)
}

// Generation returns a counter bumped on every credential change or reset.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Snapshot returns a consistent copy of the whole state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Credential:    s.cred,
		HasCredential: s.hasCred,
		Identity:      s.identity.Clone(),
		Generation:    s.gen,
	}
}

// Subscribe registers fn to be called after every change. Callbacks run
// synchronously on the mutating goroutine, outside the state lock.
func (s *State) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *State) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
