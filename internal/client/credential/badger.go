package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/dataglove/glovectl/internal/core/domain"
	"github.com/dataglove/glovectl/internal/telemetry/logger"
)

// badgerKeyPrefix namespaces credential slots inside the database.
const badgerKeyPrefix = "credential/"

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Dir is the database directory.
	Dir string
	// Slot selects the key inside the database.
	Slot string
	// Key, when set, enables Badger's at-rest encryption (16, 24 or 32 bytes).
	Key []byte
	// InMemory keeps the database in memory (tests).
	InMemory bool
}

// BadgerStore keeps the credential as one key of an embedded Badger database.
type BadgerStore struct {
	db     *badger.DB
	slot   string
	logger logger.Logger
	closed atomic.Bool
}

// NewBadgerStore opens (or creates) the database at cfg.Dir.
func NewBadgerStore(cfg BadgerConfig, l logger.Logger) (*BadgerStore, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("credential: badger dir is required")
	}
	if l == nil {
		l = logger.Default()
	}
	if cfg.Slot == "" {
		cfg.Slot = DefaultSlot
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithLogger(&badgerLogger{logger: l}).
		WithNumVersionsToKeep(1).
		WithSyncWrites(true)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	if len(cfg.Key) > 0 {
		// Badger requires a block/index cache when encryption is on.
		opts = opts.WithEncryptionKey(cfg.Key).WithIndexCacheSize(8 << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("credential: open badger: %w", err)
	}

	l.Debug("badger credential store opened", "dir", cfg.Dir, "slot", cfg.Slot)
	return &BadgerStore{db: db, slot: cfg.Slot, logger: l}, nil
}

func (s *BadgerStore) key() []byte {
	return []byte(badgerKeyPrefix + s.slot)
}

// Read implements Store.
func (s *BadgerStore) Read(ctx context.Context) (domain.Credential, bool, error) {
	if s.closed.Load() {
		return domain.Credential{}, false, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return domain.Credential{}, false, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key())
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Credential{}, false, nil
	}
	if err != nil {
		return domain.Credential{}, false, fmt.Errorf("credential: badger read: %w", err)
	}

	var rec slotRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		s.logger.Error("credential slot payload corrupt, treating as empty",
			"slot", s.slot,
			"error", err,
		)
		return domain.Credential{}, false, nil
	}
	return rec.Credential, true, nil
}

// Write implements Store.
func (s *BadgerStore) Write(ctx context.Context, cred domain.Credential) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(slotRecord{Credential: cred, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("credential: encode slot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(), value)
	})
}

// Clear implements Store.
func (s *BadgerStore) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key())
	})
}

// Close runs one value-log GC pass and closes the database.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.RunValueLogGC(0.5); err != nil &&
		!errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		s.logger.Debug("badger gc skipped", "error", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("credential: close badger: %w", err)
	}
	return nil
}

// badgerLogger adapts logger.Logger to Badger's Logger interface.
// Badger is chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	logger logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
