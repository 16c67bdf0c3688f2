//go:build linux

package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/landlock-lsm/go-landlock/landlock"

	"github.com/pipali/pipali/internal/config"
	"github.com/pipali/pipali/internal/logger"
)

const (
	platformName      = "linux-landlock"
	platformSupported = true
)

// HelperFlag marks a re-exec of our own binary as the landlock helper.
// The helper applies the rule set to itself and then execs the shell, so
// the restriction covers the command and everything it spawns.
const HelperFlag = "sandbox-exec"

// helperRules is the wire form passed to the re-exec'd helper.
type helperRules struct {
	AllowWrite []string `json:"allow_write"`
	DenyRead   []string `json:"deny_read"`
}

// wrapCommand re-execs our own binary in helper mode. The rule set travels
// base64-encoded so it survives shell quoting untouched.
func wrapCommand(rules config.EnforcementRules, helper string, command string) (string, error) {
	if helper == "" {
		return "", fmt.Errorf("helper binary path unknown")
	}
	payload, err := json.Marshal(helperRules{
		AllowWrite: rules.AllowWrite,
		DenyRead:   rules.DenyRead,
	})
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(payload)
	return shellQuote(helper) + " " + HelperFlag + " --rules " + encoded + " -- " + shellQuote(command), nil
}

// RunHelper is the entry point for the re-exec'd helper process. It applies
// Landlock restrictions to itself and then replaces itself with the shell
// running the command. BestEffort keeps commands runnable on kernels
// without Landlock; enforcement there falls back to confirmation gating in
// the caller.
func RunHelper(encodedRules, command string) error {
	payload, err := base64.StdEncoding.DecodeString(encodedRules)
	if err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}
	var rules helperRules
	if err := json.Unmarshal(payload, &rules); err != nil {
		return fmt.Errorf("parse rules: %w", err)
	}

	paths := []landlock.Rule{
		landlock.RODirs(readableRoots(rules.DenyRead)...).IgnoreIfMissing(),
	}
	if len(rules.AllowWrite) > 0 {
		paths = append(paths, landlock.RWDirs(rules.AllowWrite...).IgnoreIfMissing())
	}
	if err := landlock.V5.BestEffort().RestrictPaths(paths...); err != nil {
		logger.Warn("sandbox helper: landlock restriction failed: %v", err)
	}

	shell := "/bin/sh"
	return syscall.Exec(shell, []string{shell, "-c", command}, os.Environ())
}

// readableRoots returns the directory roots granted read access. Landlock
// is allowlist-only, so deny-read under home is approximated by granting
// home's children individually and skipping the denied entries; denied
// subtrees nested deeper than one level below home lose precision here and
// remain covered by confirmation gating and the darwin profile.
func readableRoots(denyRead []string) []string {
	roots := []string{"/usr", "/bin", "/sbin", "/lib", "/lib64", "/etc", "/opt", "/tmp", "/proc", "/sys", "/dev", "/run", "/var"}

	home, err := os.UserHomeDir()
	if err != nil {
		return roots
	}
	denied := make(map[string]bool, len(denyRead))
	anyUnderHome := false
	for _, p := range denyRead {
		cleaned := filepath.Clean(p)
		denied[cleaned] = true
		if filepath.Dir(cleaned) == home {
			anyUnderHome = true
		}
	}
	if !anyUnderHome {
		return append(roots, home)
	}

	entries, err := os.ReadDir(home)
	if err != nil {
		return append(roots, home)
	}
	for _, e := range entries {
		child := filepath.Join(home, e.Name())
		if !denied[child] {
			roots = append(roots, child)
		}
	}
	return roots
}
