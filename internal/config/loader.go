package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Load builds settings with layered precedence:
// 1. Defaults
// 2. The YAML file at path, when path is not empty
// 3. BOOKSTORE_* environment variables
func Load(path string) (*Settings, error) {
	settings := Default()

	if path != "" {
		if err := settings.mergeFile(path); err != nil {
			return nil, err
		}
		log.Debug().Str("path", path).Msg("loaded config file")
	}

	settings.applyEnv()

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

// mergeFile decodes the file over the current values, so keys missing from
// the file keep their defaults.
func (s *Settings) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
