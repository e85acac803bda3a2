// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials from a directory of plain-text files, the
// layout used by Docker and Kubernetes secret mounts. The file name is the
// secret name and the trimmed file contents are its value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/label-converter/internal/logging"
)

// RedisPassword names the file holding the password for the cache and rate
// limiter Redis.
const RedisPassword = "redis-password"

// Store is a set of loaded secrets.
type Store map[string]string

// Get returns the value of secret name, or "" when it is absent.
func (s Store) Get(name string) string {
	return s[name]
}

// Load reads every regular file in dir. A missing directory yields an empty
// Store. Dotfiles (including the ..data links of Kubernetes mounts) and
// empty values are skipped; an unreadable file is logged and skipped.
func Load(dir string) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	store := Store{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logging.Warn("skipping unreadable secret", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			store[name] = value
		}
	}
	return store, nil
}
