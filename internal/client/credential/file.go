package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dataglove/glovectl/internal/core/domain"
	"github.com/dataglove/glovectl/internal/telemetry/logger"
)

// slotRecord is the plaintext stored inside a sealed slot.
type slotRecord struct {
	domain.Credential
	SavedAt time.Time `json:"saved_at"`
}

// FileStore keeps the credential in a single sealed file.
type FileStore struct {
	path    string
	keyFile string
	key     []byte
	slot    string
	logger  logger.Logger

	mu     sync.Mutex
	sealer *sealer
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithKeyFile sets where the master key lives. Defaults to path + ".key".
func WithKeyFile(path string) FileOption {
	return func(s *FileStore) {
		s.keyFile = path
	}
}

// WithKey supplies the master key directly instead of a key file.
func WithKey(key []byte) FileOption {
	return func(s *FileStore) {
		s.key = key
	}
}

// WithSlot sets the slot name bound into the sealed payload.
func WithSlot(slot string) FileOption {
	return func(s *FileStore) {
		if slot != "" {
			s.slot = slot
		}
	}
}

// WithFileLogger sets the logger.
func WithFileLogger(l logger.Logger) FileOption {
	return func(s *FileStore) {
		s.logger = l
	}
}

// NewFileStore creates a store backed by the file at path. The master key
// is loaded (or created) immediately so a broken key file fails fast.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("credential: file path is required")
	}

	s := &FileStore{
		path:   filepath.Clean(path),
		slot:   DefaultSlot,
		logger: logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.keyFile == "" {
		s.keyFile = s.path + ".key"
	}

	key := s.key
	if key == nil {
		var err error
		if key, err = LoadOrCreateKey(s.keyFile); err != nil {
			return nil, err
		}
	}
	sl, err := newSealer(key)
	if err != nil {
		return nil, err
	}
	s.sealer = sl

	return s, nil
}

// Path returns the slot file path.
func (s *FileStore) Path() string {
	return s.path
}

// Read implements Store. A slot that cannot be unsealed reads as empty.
func (s *FileStore) Read(ctx context.Context) (domain.Credential, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credential{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Credential{}, false, nil
		}
		return domain.Credential{}, false, fmt.Errorf("credential: read slot: %w", err)
	}

	plaintext, err := s.sealer.open(sealed, s.slot)
	if err != nil {
		s.logger.Error("credential slot unreadable, treating as empty",
			"path", s.path,
			"error", err,
		)
		return domain.Credential{}, false, nil
	}

	var rec slotRecord
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		s.logger.Error("credential slot payload corrupt, treating as empty",
			"path", s.path,
			"error", err,
		)
		return domain.Credential{}, false, nil
	}
	return rec.Credential, true, nil
}

// Write implements Store. The slot is replaced atomically.
func (s *FileStore) Write(ctx context.Context, cred domain.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	plaintext, err := json.Marshal(slotRecord{Credential: cred, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("credential: encode slot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := s.sealer.seal(plaintext, s.slot)
	if err != nil {
		return fmt.Errorf("credential: seal slot: %w", err)
	}

	if err := writeFileAtomic(s.path, sealed); err != nil {
		return fmt.Errorf("credential: write slot: %w", err)
	}
	s.logger.Debug("credential slot written", "path", s.path, "cipher", s.sealer.cipher.String())
	return nil
}

// Clear implements Store.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credential: clear slot: %w", err)
	}
	return nil
}

// Watch calls fn whenever the slot file is rewritten or removed, including
// by this process. It returns once the watch is installed; watching stops
// when ctx ends.
func (s *FileStore) Watch(ctx context.Context, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("credential: create watcher: %w", err)
	}

	// Watch the directory, not the file, so atomic renames are seen.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		w.Close()
		return fmt.Errorf("credential: create slot dir: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("credential: watch %s: %w", dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					s.logger.Debug("credential slot changed", "op", event.Op.String())
					fn()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("credential watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := tmp.Chmod(0600); err != nil {
		cleanup()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
