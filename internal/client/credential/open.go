package credential

import (
	"fmt"
	"strings"

	"github.com/dataglove/glovectl/internal/telemetry/logger"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Path is the slot file (file backend) or database directory (badger).
	Path    string
	KeyFile string
	Slot    string
}

// Open builds the store described by cfg. The returned close function is
// never nil.
func Open(cfg Config, l logger.Logger) (Store, func() error, error) {
	noop := func() error { return nil }
	if l == nil {
		l = logger.Default()
	}

	switch strings.ToLower(cfg.Backend) {
	case "", BackendFile:
		s, err := NewFileStore(cfg.Path,
			WithKeyFile(cfg.KeyFile),
			WithSlot(cfg.Slot),
			WithFileLogger(l),
		)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case BackendBadger:
		keyFile := cfg.KeyFile
		if keyFile == "" {
			keyFile = strings.TrimRight(cfg.Path, "/") + ".key"
		}
		key, err := LoadOrCreateKey(keyFile)
		if err != nil {
			return nil, noop, err
		}
		s, err := NewBadgerStore(BadgerConfig{Dir: cfg.Path, Slot: cfg.Slot, Key: key}, l)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case BackendMemory:
		return NewMemoryStore(), noop, nil

	default:
		return nil, noop, fmt.Errorf("credential: unknown backend %q (want file, badger or memory)", cfg.Backend)
	}
}
