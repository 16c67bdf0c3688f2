// Package config owns the per-user sandbox policy: defaults, persistence,
// and the expansion of path patterns into enforcement rules.
package config

import (
	"os"
	"path/filepath"

	"github.com/pipali/pipali/internal/consts"
	"github.com/pipali/pipali/internal/pathmatch"
)

// SandboxConfig is the per-user sandbox policy. It is created with
// built-in defaults and mutated only through Store.Save, which re-derives
// the runtime enforcement rules.
type SandboxConfig struct {
	Enabled           bool     `json:"enabled"`
	AllowedWritePaths []string `json:"allowed_write_paths"`
	DeniedWritePaths  []string `json:"denied_write_paths"`
	DeniedReadPaths   []string `json:"denied_read_paths"`
	AllowedDomains    []string `json:"allowed_domains"`
	AllowLocalBinding bool     `json:"allow_local_binding"`
}

// EnforcementRules is the expanded, absolute-path form handed to the
// enforcement layer. Deny rules always take precedence over allow rules
// covering the same path.
type EnforcementRules struct {
	AllowWrite        []string
	DenyWrite         []string
	DenyRead          []string
	AllowedDomains    []string
	AllowLocalBinding bool
}

// DefaultSandboxConfig returns the built-in policy. The allow-write set is
// the fixed scratch directory plus the per-user application directory —
// deliberately not os.TempDir(), which on macOS is a symlink into /private
// and would make allow/deny matching unreliable.
func DefaultSandboxConfig() SandboxConfig {
	return SandboxConfig{
		Enabled: true,
		AllowedWritePaths: []string{
			consts.ScratchDir,
			"~/" + consts.AppDirName,
		},
		DeniedWritePaths: []string{
			"~/.ssh",
			"~/.gnupg",
			"~/.bashrc",
			"~/.bash_profile",
			"~/.zshrc",
			"~/.zprofile",
			"~/.profile",
			"~/.gitconfig",
			"**/.git/hooks",
		},
		DeniedReadPaths: []string{
			"~/.ssh",
			"~/.gnupg",
			"~/.aws",
			"~/.azure",
			"~/.config/gcloud",
			"~/.kube",
			"~/.npmrc",
			"~/.pypirc",
			"~/.netrc",
			"~/.docker/config.json",
			"**/.env",
			"**/.env.*",
			"**/.bash_history",
			"**/.zsh_history",
		},
		AllowedDomains:    []string{},
		AllowLocalBinding: false,
	}
}

// BuildEnforcementRules expands every `~`-prefixed pattern to an absolute
// path before handing it to the enforcement layer. Deny lists are passed
// through even when empty — they are never expanded-and-dropped.
func BuildEnforcementRules(cfg SandboxConfig) EnforcementRules {
	return EnforcementRules{
		AllowWrite:        pathmatch.ExpandAll(pathmatch.CompileAll(cfg.AllowedWritePaths)),
		DenyWrite:         pathmatch.ExpandAll(pathmatch.CompileAll(cfg.DeniedWritePaths)),
		DenyRead:          pathmatch.ExpandAll(pathmatch.CompileAll(cfg.DeniedReadPaths)),
		AllowedDomains:    append([]string(nil), cfg.AllowedDomains...),
		AllowLocalBinding: cfg.AllowLocalBinding,
	}
}

// AppDir returns the per-user application directory.
func AppDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return consts.ScratchDir
	}
	return filepath.Join(home, consts.AppDirName)
}

// unionPaths appends entries from defaults that are missing from current,
// preserving the user's ordering for entries they already have. New default
// entries added after a user's settings were saved are unioned in, never
// silently dropped.
func unionPaths(current, defaults []string) []string {
	seen := make(map[string]bool, len(current))
	out := make([]string, 0, len(current)+len(defaults))
	for _, p := range current {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, p := range defaults {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
