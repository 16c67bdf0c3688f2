package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/pipali/pipali/internal/logger"
)

// Store persists one SandboxConfig per user as a JSON file and hands out
// copies merged with the built-in defaults. It is the single owner of the
// active policy: nothing in the process keeps a mutable global config.
type Store struct {
	mu      sync.RWMutex
	baseDir string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Update is a partial settings write. Nil fields keep their current value.
type Update struct {
	Enabled           *bool     `json:"enabled,omitempty"`
	AllowedWritePaths *[]string `json:"allowed_write_paths,omitempty"`
	DeniedWritePaths  *[]string `json:"denied_write_paths,omitempty"`
	DeniedReadPaths   *[]string `json:"denied_read_paths,omitempty"`
	AllowedDomains    *[]string `json:"allowed_domains,omitempty"`
	AllowLocalBinding *bool     `json:"allow_local_binding,omitempty"`
}

// NewStore creates a store rooted at baseDir (created on demand).
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStoreDir returns the settings directory under the per-user app dir.
func DefaultStoreDir() string {
	return filepath.Join(AppDir(), "settings")
}

func (s *Store) userPath(userID string) string {
	// User IDs come from the host application; flatten anything that could
	// escape the settings directory.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(userID)
	return filepath.Join(s.baseDir, safe+".json")
}

// Load returns the user's config merged with built-in defaults. A missing
// file yields the pure defaults. Default list entries added after the file
// was written are unioned in.
func (s *Store) Load(userID string) (SandboxConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := DefaultSandboxConfig()

	data, err := os.ReadFile(s.userPath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read sandbox settings for %s: %w", userID, err)
	}

	// Unmarshal over the defaults so fields the host shell omitted keep
	// their built-in values instead of collapsing to zero values.
	persisted := DefaultSandboxConfig()
	if err := json.Unmarshal(data, &persisted); err != nil {
		return cfg, fmt.Errorf("failed to parse sandbox settings for %s: %w", userID, err)
	}

	defaults := DefaultSandboxConfig()
	persisted.AllowedWritePaths = unionPaths(persisted.AllowedWritePaths, defaults.AllowedWritePaths)
	persisted.DeniedWritePaths = unionPaths(persisted.DeniedWritePaths, defaults.DeniedWritePaths)
	persisted.DeniedReadPaths = unionPaths(persisted.DeniedReadPaths, defaults.DeniedReadPaths)
	if persisted.AllowedDomains == nil {
		persisted.AllowedDomains = []string{}
	}
	return persisted, nil
}

// EnsureExists writes the default config for the user if no settings file
// is present yet.
func (s *Store) EnsureExists(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.userPath(userID)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return s.writeLocked(path, DefaultSandboxConfig())
}

// Save applies a partial update on top of the user's current config and
// persists the result. It returns the new effective config so the caller
// can rebuild enforcement rules and trigger an adapter reload.
func (s *Store) Save(userID string, update Update) (SandboxConfig, error) {
	cfg, err := s.Load(userID)
	if err != nil {
		return cfg, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if update.Enabled != nil {
		cfg.Enabled = *update.Enabled
	}
	if update.AllowedWritePaths != nil {
		cfg.AllowedWritePaths = unionPaths(*update.AllowedWritePaths, DefaultSandboxConfig().AllowedWritePaths)
	}
	if update.DeniedWritePaths != nil {
		cfg.DeniedWritePaths = unionPaths(*update.DeniedWritePaths, DefaultSandboxConfig().DeniedWritePaths)
	}
	if update.DeniedReadPaths != nil {
		cfg.DeniedReadPaths = unionPaths(*update.DeniedReadPaths, DefaultSandboxConfig().DeniedReadPaths)
	}
	if update.AllowedDomains != nil {
		cfg.AllowedDomains = append([]string(nil), (*update.AllowedDomains)...)
	}
	if update.AllowLocalBinding != nil {
		cfg.AllowLocalBinding = *update.AllowLocalBinding
	}

	if err := s.writeLocked(s.userPath(userID), cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *Store) writeLocked(path string, cfg SandboxConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Watch starts an fsnotify watcher on the settings directory and invokes
// onChange with the affected user ID whenever a settings file is written by
// another process (the desktop shell edits these files directly). Call
// StopWatch to release the watcher.
func (s *Store) Watch(onChange func(userID string)) error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	if err := watcher.Add(s.baseDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				name := filepath.Base(event.Name)
				if !strings.HasSuffix(name, ".json") {
					continue
				}
				userID := strings.TrimSuffix(name, ".json")
				logger.Debug("settings changed on disk for user %s", userID)
				onChange(userID)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("settings watcher error: %v", err)
			case <-done:
				return
			}
		}
	}()

	return nil
}

// StopWatch stops the settings watcher if one is running.
func (s *Store) StopWatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		close(s.done)
		s.watcher.Close()
		s.watcher = nil
	}
}
