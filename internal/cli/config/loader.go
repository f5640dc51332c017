package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dataglove/glovectl/internal/infra/confloader"
)

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = confloader.DefaultEnvPrefix

// Loaded is a loaded configuration and where it came from.
type Loaded struct {
	*Config
	// Path is the configuration file, which may not exist yet.
	Path string
	// Loader holds the merged keys and their sources, for display.
	Loader *confloader.Loader
}

// Load reads defaults, the file at path (default path when empty; a
// missing file is fine), GLOVECTL_* variables and finally flags, which
// are keyed like the file ("credential.backend").
func Load(path string, flags map[string]any) (*Loaded, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	l := confloader.NewLoader(confloader.WithEnvKeys(Keys...))
	if err := l.Defaults(Defaults()); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		if err := l.File(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := l.Env(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := l.Flags(flags); err != nil {
		return nil, fmt.Errorf("config: flags: %w", err)
	}

	cfg := &Config{}
	if err := l.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loaded{Config: cfg, Path: path, Loader: l}, nil
}
