// Package sandbox wraps shell commands for OS-enforced execution and
// annotates failure output with violation diagnostics. macOS uses
// sandbox-exec with a generated Seatbelt profile; Linux uses a Landlock
// re-exec helper. Every other platform reports unsupported, and callers
// must fall back to confirmation-gated direct execution — never silently
// run unconfined.
package sandbox

import (
	"os"
	"sync"

	"github.com/pipali/pipali/internal/config"
	"github.com/pipali/pipali/internal/consts"
	"github.com/pipali/pipali/internal/logger"
)

// Adapter holds the active enforcement rules behind a lock so that
// reconfiguration is safe while commands are in flight: in-flight commands
// keep the rules snapshot they wrapped with, later commands see new rules.
type Adapter struct {
	mu          sync.RWMutex
	rules       config.EnforcementRules
	enabled     bool
	initialized bool
	helperPath  string
}

// New creates an adapter from the user's sandbox config.
func New(cfg config.SandboxConfig) *Adapter {
	// The scratch dir doubles as TMPDIR for sandboxed commands and as the
	// default allow-write root; it has to exist before the first command
	// needs it, or the write grant silently vanishes.
	if err := os.MkdirAll(consts.ScratchDir, 0755); err != nil {
		logger.Warn("sandbox: cannot create scratch dir %s: %v", consts.ScratchDir, err)
	}

	helper, err := os.Executable()
	if err != nil {
		logger.Warn("sandbox: cannot resolve own executable for helper re-exec: %v", err)
		helper = ""
	}

	a := &Adapter{helperPath: helper}
	a.Reload(cfg)
	a.initialized = true

	if a.Active() {
		logger.Info("sandbox: enforcement active (platform=%s)", platformName)
	} else {
		logger.Info("sandbox: enforcement inactive (enabled=%v, supported=%v)", a.enabled, PlatformSupported())
	}
	return a
}

// PlatformSupported reports whether this OS has a real enforcement
// primitive. Windows has none and always returns false.
func PlatformSupported() bool {
	return platformSupported
}

// Active reports whether wrapped execution is available right now.
func (a *Adapter) Active() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.initialized && a.enabled && platformSupported
}

// Reload swaps in rules derived from the given config. Safe to call while
// commands are executing.
func (a *Adapter) Reload(cfg config.SandboxConfig) {
	rules := config.BuildEnforcementRules(cfg)

	a.mu.Lock()
	a.enabled = cfg.Enabled
	a.rules = rules
	a.mu.Unlock()

	logger.Debug("sandbox: rules reloaded (%d allow-write, %d deny-write, %d deny-read)",
		len(rules.AllowWrite), len(rules.DenyWrite), len(rules.DenyRead))
}

// Shutdown deactivates the adapter. Subsequent Wrap calls return commands
// unchanged and Active reports false.
func (a *Adapter) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = false
	logger.Info("sandbox: adapter shut down")
}

// AllowedWriteLocations returns the currently allowed write roots, used to
// tell the agent where writes are permitted when a violation is reported.
func (a *Adapter) AllowedWriteLocations() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.rules.AllowWrite...)
}

// Wrap rewrites command for confined execution under the platform
// primitive. If wrapping itself fails the original command is returned
// with a logged failure — the adapter never crashes the agent — but the
// caller must treat an unwrapped return from an active sandbox as abnormal
// and still apply timeout and violation checks.
func (a *Adapter) Wrap(command string) string {
	if !a.Active() {
		return command
	}

	a.mu.RLock()
	rules := a.rules
	helper := a.helperPath
	a.mu.RUnlock()

	wrapped, err := wrapCommand(rules, helper, command)
	if err != nil {
		logger.Error("sandbox: failed to wrap command, running unwrapped: %v", err)
		return command
	}
	return wrapped
}
