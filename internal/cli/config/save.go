package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrUnknownKey is returned by Set for keys outside Keys.
var ErrUnknownKey = errors.New("config: unknown key")

// Set writes one key into the file at path, keeping every other key as it
// is. The file and its directory are created if needed.
func Set(path, key, value string) error {
	if !IsKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if path == "" {
		path = DefaultConfigPath()
	}

	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	setNested(doc, strings.Split(key, "."), parseScalar(value))
	return writeDocument(path, doc)
}

// EnsureClientID gives the installation a stable random ID the first time
// it runs. It reports whether a new ID was written.
func EnsureClientID(l *Loaded) (bool, error) {
	if l.ClientID != "" {
		return false, nil
	}
	id := uuid.NewString()
	if err := Set(l.Path, "client_id", id); err != nil {
		return false, err
	}
	l.ClientID = id
	return true, nil
}

func readDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return doc, nil
}

func writeDocument(path string, doc map[string]any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func setNested(doc map[string]any, parts []string, value any) {
	for _, p := range parts[:len(parts)-1] {
		child, ok := doc[p].(map[string]any)
		if !ok {
			child = map[string]any{}
			doc[p] = child
		}
		doc = child
	}
	doc[parts[len(parts)-1]] = value
}

// parseScalar lets YAML type the value, so "true" and "5" are written
// unquoted while durations and paths stay strings.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case bool, int, float64:
		return v
	default:
		return s
	}
}
