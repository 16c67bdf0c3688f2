// Package sensitive classifies filesystem paths and URLs that an agent
// should never touch without explicit user consent. The classifiers are
// pure functions over static category tables; they hold no state and make
// no I/O or DNS calls.
package sensitive

import (
	"github.com/pipali/pipali/internal/pathmatch"
)

// pathCategory groups patterns that share one human-readable reason.
type pathCategory struct {
	reason   string
	patterns []pathmatch.Pattern
}

// Category order matters: the first match wins, so the most specific
// credential locations come before broad system directories.
var pathCategories = []pathCategory{
	{
		reason: "SSH or GPG private key material",
		patterns: pathmatch.CompileAll([]string{
			"~/.ssh",
			"~/.gnupg",
			"**/id_rsa",
			"**/id_ed25519",
			"**/id_ecdsa",
		}),
	},
	{
		reason: "cloud provider credentials",
		patterns: pathmatch.CompileAll([]string{
			"~/.aws",
			"~/.azure",
			"~/.config/gcloud",
			"~/.kube",
			"~/.terraform.d/credentials.tfrc.json",
		}),
	},
	{
		reason: "package manager credentials",
		patterns: pathmatch.CompileAll([]string{
			"~/.npmrc",
			"~/.pypirc",
			"~/.netrc",
			"~/.cargo/credentials",
			"~/.cargo/credentials.toml",
			"~/.docker/config.json",
			"~/.gem/credentials",
		}),
	},
	{
		reason: "environment file that may contain secrets",
		patterns: pathmatch.CompileAll([]string{
			"**/.env",
			"**/.env.*",
		}),
	},
	{
		reason: "system configuration or log directory",
		patterns: pathmatch.CompileAll([]string{
			"/etc",
			"/var/log",
			"/private/etc",
			"/private/var/log",
		}),
	},
	{
		reason: "shell history",
		patterns: pathmatch.CompileAll([]string{
			"**/.bash_history",
			"**/.zsh_history",
			"**/.sh_history",
			"**/.node_repl_history",
			"**/.python_history",
			"**/.psql_history",
			"**/.mysql_history",
		}),
	},
	{
		reason: "browser profile data",
		patterns: pathmatch.CompileAll([]string{
			"~/.mozilla/firefox",
			"~/.config/google-chrome",
			"~/.config/chromium",
			"~/Library/Application Support/Google/Chrome",
			"~/Library/Application Support/Firefox",
			"~/Library/Safari",
			"~/Library/Cookies",
		}),
	},
}

// PathReason returns the human-readable reason a path is considered
// sensitive, or ("", false) when it is not.
func PathReason(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	for _, cat := range pathCategories {
		for _, p := range cat.patterns {
			if p.Matches(path) {
				return cat.reason, true
			}
		}
	}
	return "", false
}

// IsSensitivePath reports whether a path falls into any sensitive category.
func IsSensitivePath(path string) bool {
	_, ok := PathReason(path)
	return ok
}
