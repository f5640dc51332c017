package confloader

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "GLOVECTL_"

// Sources a key can come from, lowest priority first.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Loader merges configuration layers. Each layer overrides the keys it
// sets; the loader remembers which layer set each key last.
type Loader struct {
	k         *koanf.Koanf
	origin    map[string]string
	envPrefix string
	envKeys   map[string]string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithEnvKeys declares dotted keys whose segments contain underscores, so
// GLOVECTL_CREDENTIAL_KEY_FILE maps to credential.key_file rather than
// credential.key.file.
func WithEnvKeys(keys ...string) Option {
	return func(l *Loader) {
		for _, key := range keys {
			l.envKeys[strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
		}
	}
}

// NewLoader returns an empty loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		origin:    make(map[string]string),
		envPrefix: DefaultEnvPrefix,
		envKeys:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Defaults loads built-in values. Keys may be dotted or nested.
func (l *Loader) Defaults(m map[string]any) error {
	return l.merge(SourceDefault, mapProvider(m), nil)
}

// File loads a YAML file. An empty path is skipped.
func (l *Loader) File(path string) error {
	if path == "" {
		return nil
	}
	if err := l.merge(SourceFile, file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// Env loads prefixed environment variables;
// GLOVECTL_SERVER=https://glove.example.com sets server.
func (l *Loader) Env() error {
	if err := l.merge(SourceEnv, env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// Flags loads command-line values keyed like the file.
func (l *Loader) Flags(m map[string]any) error {
	if len(m) == 0 {
		return nil
	}
	return l.merge(SourceFlag, mapProvider(m), nil)
}

func (l *Loader) merge(source string, p koanf.Provider, parser koanf.Parser) error {
	layer := koanf.New(".")
	if err := layer.Load(p, parser); err != nil {
		return err
	}
	for _, key := range layer.Keys() {
		l.origin[key] = source
	}
	return l.k.Merge(layer)
}

func (l *Loader) envKey(name string) string {
	name = strings.TrimPrefix(name, l.envPrefix)
	if key, ok := l.envKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(strings.ToLower(name), "_", ".")
}

// Decode unmarshals the merged configuration into target using koanf tags.
func (l *Loader) Decode(target any) error {
	return l.k.Unmarshal("", target)
}

// Value is one merged key.
type Value struct {
	Key    string
	Value  any
	Source string
}

// Values returns every merged key in key order.
func (l *Loader) Values() []Value {
	keys := l.k.Keys()
	out := make([]Value, 0, len(keys))
	for _, key := range keys {
		out = append(out, Value{Key: key, Value: l.k.Get(key), Source: l.origin[key]})
	}
	return out
}

// String returns the value of a key, or "" when unset.
func (l *Loader) String(key string) string {
	return l.k.String(key)
}
