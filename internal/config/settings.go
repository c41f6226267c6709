package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/playpool/billiards/internal/physics"
)

// LoadSettings reads physics settings from a YAML file. Keys missing from the
// file keep their default values. An empty path returns the defaults.
func LoadSettings(path string) (physics.Settings, error) {
	s := physics.DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return physics.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings overlays YAML data onto the default settings and validates
// the result. Unknown keys are rejected.
func ParseSettings(data []byte) (physics.Settings, error) {
	s := physics.DefaultSettings()
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return physics.Settings{}, fmt.Errorf("%w: %v", physics.ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return physics.Settings{}, err
	}
	return s, nil
}
