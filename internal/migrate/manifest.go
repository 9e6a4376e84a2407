package migrate

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML form of a migration list:
//
//	migrations:
//	  - version: 1
//	    description: create users
//	    sql: |
//	      CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);
type Manifest struct {
	Migrations []Migration `yaml:"migrations"`
}

// LoadFile reads a manifest from path.
func LoadFile(path string) ([]Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading migrations file: %w", err)
	}
	ms, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ms, nil
}

// Parse decodes and validates a manifest. Versions must be positive and
// unique; version 0 is reserved for the migrations table itself.
func Parse(data []byte) ([]Migration, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing migrations: %w", err)
	}

	seen := make(map[int]bool, len(m.Migrations))
	for i, mig := range m.Migrations {
		if mig.Version <= 0 {
			return nil, fmt.Errorf("migration #%d: version must be positive, got %d", i+1, mig.Version)
		}
		if seen[mig.Version] {
			return nil, fmt.Errorf("migration #%d: duplicate version %d", i+1, mig.Version)
		}
		if strings.TrimSpace(mig.SQL) == "" {
			return nil, fmt.Errorf("migration %d: sql is required", mig.Version)
		}
		seen[mig.Version] = true
	}
	return m.Migrations, nil
}
