package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataglove/glovectl/internal/core/domain"
)

func newWriter(t *testing.T) (*State, *Writer) {
	t.Helper()
	s := New()
	w, err := s.Claim()
	require.NoError(t, err)
	return s, w
}

func TestClaim_SingleWriter(t *testing.T) {
	s := New()
	_, err := s.Claim()
	require.NoError(t, err)

	_, err = s.Claim()
	assert.ErrorIs(t, err, ErrWriterClaimed)
}

func TestEstablishAndReset(t *testing.T) {
	s, w := newWriter(t)

	assert.False(t, s.IsAuthenticated())
	_, ok := s.Identity()
	assert.False(t, ok)

	cred := domain.Credential{AccessToken: "a"}
	id := &domain.Identity{Username: "alice", Roles: domain.NewRoleSet("USER")}
	gen := w.Establish(cred, id)

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, gen, s.Generation())
	got, ok := s.Credential()
	require.True(t, ok)
	assert.Equal(t, cred, got)
	assert.True(t, s.HasRole("USER"))
	assert.False(t, s.HasRole("ADMIN"))
	assert.True(t, s.HasAnyRole("ADMIN", "USER"))

	assert.True(t, w.Reset())
	assert.False(t, s.IsAuthenticated())
	assert.False(t, s.HasRole("USER"))
	assert.Greater(t, s.Generation(), gen)

	before := s.Generation()
	assert.False(t, w.Reset(), "reset of an empty state reports false")
	assert.Equal(t, before, s.Generation(), "no-op reset keeps the generation")
}

func TestIdentity_IsACopy(t *testing.T) {
	s, w := newWriter(t)
	id := &domain.Identity{Username: "alice", Roles: domain.NewRoleSet("USER")}
	w.Establish(domain.Credential{AccessToken: "a"}, id)

	// Mutating the caller's value or a returned copy does not leak in.
	id.Roles["ADMIN"] = struct{}{}
	got, _ := s.Identity()
	got.Roles["OPERATOR"] = struct{}{}

	assert.False(t, s.HasRole("ADMIN"))
	assert.False(t, s.HasRole("OPERATOR"))
}

func TestSetIdentity_GenerationGuard(t *testing.T) {
	s, w := newWriter(t)
	gen := w.Establish(domain.Credential{AccessToken: "a"}, nil)

	admin := &domain.Identity{Username: "root", Roles: domain.NewRoleSet("ADMIN")}

	t.Run("stale generation", func(t *testing.T) {
		assert.False(t, w.SetIdentity(gen-1, admin))
		_, ok := s.Identity()
		assert.False(t, ok)
	})

	t.Run("current generation", func(t *testing.T) {
		assert.True(t, w.SetIdentity(gen, admin))
		assert.True(t, s.HasRole("ADMIN"))
	})

	t.Run("after reset", func(t *testing.T) {
		w.Reset()
		assert.False(t, w.SetIdentity(s.Generation(), admin), "identity never without credential")
		_, ok := s.Identity()
		assert.False(t, ok)
	})
}

func TestSetCredential_KeepsIdentity(t *testing.T) {
	s, w := newWriter(t)
	gen := w.Establish(domain.Credential{AccessToken: "a"}, &domain.Identity{Username: "alice"})

	next := w.SetCredential(domain.Credential{AccessToken: "b"})
	assert.Greater(t, next, gen)

	cred, _ := s.Credential()
	assert.Equal(t, "b", cred.AccessToken)
	id, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, "alice", id.Username)
}

func TestSubscribe(t *testing.T) {
	s, w := newWriter(t)

	var snaps []Snapshot
	cancel := s.Subscribe(func(snap Snapshot) { snaps = append(snaps, snap) })

	w.Establish(domain.Credential{AccessToken: "a"}, nil)
	w.Reset()
	w.Reset() // no-op, no notification

	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].Authenticated())
	assert.False(t, snaps[1].Authenticated())

	cancel()
	cancel()
	w.Establish(domain.Credential{AccessToken: "b"}, nil)
	assert.Len(t, snaps, 2, "cancelled subscriber is not called")
}

func TestSnapshot_Consistent(t *testing.T) {
	s, w := newWriter(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				w.Establish(domain.Credential{AccessToken: "a"}, &domain.Identity{Username: "alice"})
			} else {
				w.Reset()
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		snap := s.Snapshot()
		if snap.Identity != nil && !snap.HasCredential {
			t.Fatal("identity present without credential")
		}
	}
	close(stop)
	wg.Wait()
}
