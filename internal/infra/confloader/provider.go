package confloader

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

// mapProvider loads a map. Dotted keys are expanded so flag values like
// {"credential.backend": "badger"} merge into nested sections.
type mapProvider map[string]any

// ReadBytes is unused; koanf calls Read when no parser is given.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("confloader: map provider has no raw form")
}

// Read returns the configuration map.
func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
