// Package appconfig holds the runtime settings an admin can change
// without restarting the process, persisted to a flat KEY=value file.
package appconfig

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"wolweb/internal/fsatomic"
)

// Recognized keys.
const (
	KeyAdminEnabled        = "ADMIN_ENABLED"
	KeyRegistrationEnabled = "REGISTRATION_ENABLED"
	KeyAPIProto            = "API_PROTO"
	KeyAPIHost             = "API_HOST"
	KeyAPIPort             = "API_PORT"
	KeyAPIKey              = "API_KEY"
	KeySSOClientID         = "SSO_CLIENT_ID"
	KeySSOClientSecret     = "SSO_CLIENT_SECRET"
)

func defaults() map[string]string {
	return map[string]string{
		KeyAdminEnabled:        "true",
		KeyRegistrationEnabled: "true",
		KeyAPIProto:            "http",
		KeyAPIHost:             "0.0.0.0",
		KeyAPIPort:             "8000",
		KeyAPIKey:              "",
		KeySSOClientID:         "",
		KeySSOClientSecret:     "",
	}
}

// Store is the process-wide settings store. It is created once at boot
// and passed by reference into the components that consult it.
type Store struct {
	path string
	mu   sync.RWMutex
	vals map[string]string
}

// Load reads the settings file at path, creating it with defaults when
// absent. Unknown keys are preserved; missing known keys are filled
// from the defaults.
func Load(path string) (*Store, error) {
	s := &Store{path: path, vals: defaults()}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("writing default settings: %w", err)
		}
		return s, nil
	case err != nil:
		return nil, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		s.vals[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return s, nil
}

// Get returns the value for key, or "" when unset.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vals[key]
}

// GetBool interprets the value as a boolean; unparsable values read as
// false.
func (s *Store) GetBool(key string) bool {
	v, err := strconv.ParseBool(strings.ToLower(s.Get(key)))
	return err == nil && v
}

// Set stores the value and persists the whole file immediately. There
// is no transactional batching: each admin mutation is one save.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = value
	return s.save()
}

// SetBool is Set with a canonical true/false rendering.
func (s *Store) SetBool(key string, value bool) error {
	return s.Set(key, strconv.FormatBool(value))
}

// WakeProxyURL assembles the base endpoint of the external wake proxy.
func (s *Store) WakeProxyURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("%s://%s:%s", s.vals[KeyAPIProto], s.vals[KeyAPIHost], s.vals[KeyAPIPort])
}

// save writes the file sorted by key. Callers hold s.mu; the file lock
// covers concurrent processes sharing the data dir.
func (s *Store) save() error {
	keys := make([]string, 0, len(s.vals))
	for k := range s.vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, s.vals[k])
	}
	return fsatomic.WithLock(s.path, func() error {
		return fsatomic.Save(s.path, []byte(b.String()), 0o600)
	})
}
