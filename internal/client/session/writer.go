package session

import "github.com/dataglove/glovectl/internal/core/domain"

// Writer is the only handle allowed to mutate a State.
type Writer struct {
	s *State
}

// Establish installs a new session. identity may be nil when it is not
// known yet.
func (w *Writer) Establish(cred domain.Credential, identity *domain.Identity) uint64 {
	s := w.s
	s.mu.Lock()
	s.cred = cred
	s.hasCred = true
	s.identity = identity.Clone()
	s.gen++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap.Generation
}

// SetCredential replaces the credential and keeps the identity. Used when
// a refresh renews the tokens of the same user.
func (w *Writer) SetCredential(cred domain.Credential) uint64 {
	s := w.s
	s.mu.Lock()
	s.cred = cred
	s.hasCred = true
	s.gen++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap.Generation
}

// SetIdentity applies identity only if the state is still at generation gen
// and a credential is present. It reports whether it applied.
func (w *Writer) SetIdentity(gen uint64, identity *domain.Identity) bool {
	s := w.s
	s.mu.Lock()
	if s.gen != gen || !s.hasCred {
		s.mu.Unlock()
		return false
	}
	s.identity = identity.Clone()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Reset clears credential and identity. It reports false, without
// notifying, when the state was already empty.
func (w *Writer) Reset() bool {
	s := w.s
	s.mu.Lock()
	if !s.hasCred && s.identity == nil {
		s.mu.Unlock()
		return false
	}
	s.cred = domain.Credential{}
	s.hasCred = false
	s.identity = nil
	s.gen++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}
