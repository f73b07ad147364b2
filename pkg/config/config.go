// Package config reads YAML configuration files into a caller-supplied
// struct. ${VAR} references are expanded from the environment before
// decoding, and targets implementing Validator are checked afterwards.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration structs that can check
// themselves after decoding.
type Validator interface {
	Validate() error
}

// Load decodes filename over target. Fields absent from the file keep
// whatever value target already held, so callers pass a struct populated
// with defaults.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("config: parse %s: %w", filename, err)
	}
	return validate(target)
}

// LoadWithDefaults is Load for an optional file. When filename does not
// exist, fallback is tried instead; when neither exists (or fallback is
// empty), target keeps its preset values and is only validated.
func LoadWithDefaults[T any](filename, fallback string, target *T) error {
	for _, name := range []string{filename, fallback} {
		if name == "" {
			continue
		}
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return Load(name, target)
	}
	return validate(target)
}

func validate[T any](target *T) error {
	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config: invalid: %w", err)
		}
	}
	return nil
}
