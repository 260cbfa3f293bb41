package identity

import (
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v2"
)

// Identity is the durable agent identity persisted across restarts.
// It is created by the first successful registration and mutated only
// by the registration step.
type Identity struct {
	ID         string `yaml:"agent_id"`
	Name       string `yaml:"agent_name"`
	ConsoleURL string `yaml:"console_url"`
	Registered bool   `yaml:"registered"`
}

// Store persists the agent identity as a single YAML file.
// Deleting the file forces re-registration on the next start.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the identity file. It returns (nil, nil) when the file does
// not exist, which means the agent has never registered on this host.
func (s *Store) Load() (*Identity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read identity file %q: %w", s.path, err)
	}

	var id Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("failed to parse identity file %q: %w", s.path, err)
	}
	if id.Registered && id.ID == "" {
		return nil, fmt.Errorf("identity file %q is marked registered but has no agent id", s.path)
	}
	return &id, nil
}

// Save writes the identity atomically: the YAML is written to a temp
// file in the same directory and renamed over the target, so a crash
// mid-write never leaves a half-written identity behind.
func (s *Store) Save(id *Identity) error {
	data, err := yaml.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create identity directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".agent-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp identity file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write identity: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod identity file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close identity file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace identity file %q: %w", s.path, err)
	}
	return nil
}
