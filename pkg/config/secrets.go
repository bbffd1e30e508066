package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Secrets is a flat name -> value credential store read from a YAML file.
type Secrets map[string]string

// LoadSecrets reads a secrets file. A missing file yields an empty store.
func LoadSecrets(path string) (Secrets, error) {
	if path == "" {
		return Secrets{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Secrets{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}
	s := Secrets{}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse secrets: %w", err)
	}
	return s, nil
}

// Resolve returns inline when set, then the secret named name, then the
// environment variable name.
func (s Secrets) Resolve(inline, name string) string {
	if inline != "" {
		return inline
	}
	if name == "" {
		return ""
	}
	if v := s[name]; v != "" {
		return v
	}
	return os.Getenv(name)
}
