// Package pathmatch compiles the path patterns used by the sandbox policy
// into a small tagged type so matching never re-parses prefix strings.
package pathmatch

import (
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies how a pattern matches against a path.
type Kind int

const (
	// Absolute matches a path or any path beneath it (`/etc`)
	Absolute Kind = iota
	// HomeRelative matches beneath the user's home directory (`~/.ssh`)
	HomeRelative
	// AnywhereMatch matches a name at any depth (`**/.env`)
	AnywhereMatch
	// Basename matches a bare file or directory name (`id_rsa`)
	Basename
)

// String returns a human-readable name for the pattern kind.
func (k Kind) String() string {
	switch k {
	case Absolute:
		return "absolute"
	case HomeRelative:
		return "home-relative"
	case AnywhereMatch:
		return "anywhere"
	case Basename:
		return "basename"
	default:
		return "unknown"
	}
}

// Pattern is a compiled path pattern.
type Pattern struct {
	Kind Kind
	// Raw is the pattern as written in the config
	Raw string
	// target is the comparison value: an absolute path for Absolute and
	// HomeRelative, a name for AnywhereMatch and Basename.
	target string
}

// Compile parses a raw pattern string once, at config-load time.
func Compile(raw string) Pattern {
	switch {
	case strings.HasPrefix(raw, "~/") || raw == "~":
		return Pattern{Kind: HomeRelative, Raw: raw, target: ExpandHome(raw)}
	case strings.HasPrefix(raw, "/"):
		return Pattern{Kind: Absolute, Raw: raw, target: filepath.Clean(raw)}
	case strings.HasPrefix(raw, "**/"):
		return Pattern{Kind: AnywhereMatch, Raw: raw, target: strings.TrimPrefix(raw, "**/")}
	default:
		return Pattern{Kind: Basename, Raw: raw, target: raw}
	}
}

// CompileAll compiles a list of raw patterns.
func CompileAll(raws []string) []Pattern {
	patterns := make([]Pattern, 0, len(raws))
	for _, raw := range raws {
		if raw == "" {
			continue
		}
		patterns = append(patterns, Compile(raw))
	}
	return patterns
}

// Matches reports whether the given path matches the pattern. The path is
// home-expanded and cleaned before comparison, so callers may pass either
// form.
func (p Pattern) Matches(path string) bool {
	abs := ExpandHome(path)

	switch p.Kind {
	case Absolute, HomeRelative:
		return abs == p.target || strings.HasPrefix(abs, p.target+string(filepath.Separator))
	case AnywhereMatch, Basename:
		sep := string(filepath.Separator)
		if strings.Contains(p.target, "/") {
			// Multi-component targets like `.git/hooks` match as a
			// contiguous component sequence at any depth.
			needle := strings.ReplaceAll(p.target, "/", sep)
			return strings.HasSuffix(abs, sep+needle) ||
				strings.Contains(abs, sep+needle+sep)
		}
		for _, component := range strings.Split(abs, sep) {
			if component == p.target {
				return true
			}
			// `.env.production` matches an `.env.*` style tail only when the
			// pattern itself carries the wildcard suffix.
			if strings.HasSuffix(p.target, ".*") {
				base := strings.TrimSuffix(p.target, ".*")
				if component != base && strings.HasPrefix(component, base+".") {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// Expanded returns the pattern's absolute form where one exists. For
// AnywhereMatch and Basename patterns the raw pattern is returned unchanged,
// because they have no single filesystem location.
func (p Pattern) Expanded() string {
	switch p.Kind {
	case Absolute, HomeRelative:
		return p.target
	default:
		return p.Raw
	}
}

// ExpandAll returns the expanded forms of all patterns, for handing to the
// enforcement layer.
func ExpandAll(patterns []Pattern) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, p.Expanded())
	}
	return out
}

// ExpandHome resolves a leading `~` to the user's home directory and cleans
// the result. The expansion is idempotent: expanding an already-expanded
// path returns it unchanged.
func ExpandHome(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil && home != "" {
			if path == "~" {
				return filepath.Clean(home)
			}
			return filepath.Clean(filepath.Join(home, path[2:]))
		}
	}
	return filepath.Clean(filepath.FromSlash(path))
}
