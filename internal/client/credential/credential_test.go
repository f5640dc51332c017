package credential

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataglove/glovectl/internal/core/domain"
)

var testCred = domain.Credential{
	AccessToken:  "eyJhbGciOiJIUzI1NiJ9.e30.sig",
	RefreshToken: "refresh-1",
	TokenType:    "Bearer",
}

// storeContract runs the behaviour every backend must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Read(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store should be empty")

	require.NoError(t, s.Write(ctx, testCred))
	got, ok, err := s.Read(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testCred, got)

	next := domain.Credential{AccessToken: "second"}
	require.NoError(t, s.Write(ctx, next))
	got, ok, err = s.Read(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next, got, "write replaces the slot")

	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Read(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx), "clearing an empty slot is not an error")
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	storeContract(t, s)
	assert.Equal(t, 2, s.Writes())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "credential"))
	require.NoError(t, err)
	storeContract(t, s)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credential")
	ctx := context.Background()

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Write(ctx, testCred))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	keyInfo, err := os.Stat(path + ".key")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), keyInfo.Mode().Perm())

	// A second process opening the same slot sees the credential.
	second, err := NewFileStore(path)
	require.NoError(t, err)
	got, ok, err := second.Read(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testCred, got)
}

func TestFileStore_ContentIsSealed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credential")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), testCred))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), testCred.AccessToken)
	assert.NotContains(t, string(raw), testCred.RefreshToken)
	assert.Equal(t, "GLV1", string(raw[:4]))
}

func TestFileStore_TamperedSlotReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credential")
	ctx := context.Background()

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, testCred))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0600))

	_, ok, err := s.Read(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_WrongKeyOrSlot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credential")
	ctx := context.Background()

	key := make([]byte, keySize)
	s, err := NewFileStore(path, WithKey(key), WithSlot("alice"))
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, testCred))

	otherKey := make([]byte, keySize)
	otherKey[0] = 1
	wrongKey, err := NewFileStore(path, WithKey(otherKey), WithSlot("alice"))
	require.NoError(t, err)
	_, ok, err := wrongKey.Read(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "foreign key must not open the slot")

	wrongSlot, err := NewFileStore(path, WithKey(key), WithSlot("bob"))
	require.NoError(t, err)
	_, ok, err = wrongSlot.Read(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "slot name is bound to the payload")
}

func TestFileStore_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credential")

	s, err := NewFileStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 16)
	require.NoError(t, s.Watch(ctx, func() { changed <- struct{}{} }))

	// Another process writes the slot.
	other, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, other.Write(context.Background(), testCred))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("watch callback not called after write")
	}

	// Noise in the same directory is ignored.
	for len(changed) > 0 {
		<-changed
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated"), []byte("x"), 0600))
	select {
	case <-changed:
		t.Fatal("watch callback called for an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLoadOrCreateKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "key")

	k1, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, k1, keySize)

	k2, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "existing key is reused")

	require.NoError(t, os.WriteFile(path, []byte("short"), 0600))
	_, err = LoadOrCreateKey(path)
	assert.Error(t, err)
}

func TestSealer_CiphersInteroperate(t *testing.T) {
	key := make([]byte, keySize)
	for i := range key {
		key[i] = byte(i)
	}

	for _, id := range []cipherID{cipherAESGCM, cipherChaCha20} {
		t.Run(id.String(), func(t *testing.T) {
			writer := &sealer{master: key, cipher: id}
			sealed, err := writer.seal([]byte("payload"), "slot")
			require.NoError(t, err)

			// A reader preferring the other cipher still opens it.
			reader := &sealer{master: key, cipher: cipherChaCha20 + cipherAESGCM - id}
			plain, err := reader.open(sealed, "slot")
			require.NoError(t, err)
			assert.Equal(t, "payload", string(plain))
		})
	}

	s := &sealer{master: key, cipher: cipherAESGCM}
	_, err := s.open([]byte("junk"), "slot")
	assert.ErrorIs(t, err, ErrSealed)
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore(BadgerConfig{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	defer s.Close()

	storeContract(t, s)
}

func TestBadgerStore_EncryptedReopen(t *testing.T) {
	dir := t.TempDir()
	key := make([]byte, 32)
	ctx := context.Background()

	s, err := NewBadgerStore(BadgerConfig{Dir: dir, Slot: "work", Key: key}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, testCred))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "double close is a no-op")

	_, _, err = s.Read(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	reopened, err := NewBadgerStore(BadgerConfig{Dir: dir, Slot: "work", Key: key}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Read(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testCred, got)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		want    any
		wantErr bool
	}{
		{"default is file", Config{Path: filepath.Join(dir, "cred")}, &FileStore{}, false},
		{"badger", Config{Backend: "badger", Path: filepath.Join(dir, "db")}, &BadgerStore{}, false},
		{"memory", Config{Backend: "MEMORY"}, &MemoryStore{}, false},
		{"unknown", Config{Backend: "keyring"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, closeFn, err := Open(tt.cfg, nil)
			require.NotNil(t, closeFn)
			defer closeFn()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}
