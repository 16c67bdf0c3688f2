package sandbox

import (
	"path/filepath"
	"strings"

	"github.com/pipali/pipali/internal/config"
)

// BuildProfile renders a Seatbelt (SBPL) profile enforcing the given
// rules: reads allowed everywhere except deny-read subtrees, writes denied
// everywhere except allow-write subtrees, with deny-write re-asserted last
// so deny always wins over an overlapping allow. The builder is portable
// code so the profile output is testable on any platform; only the
// sandbox-exec invocation is darwin-specific.
func BuildProfile(rules config.EnforcementRules) string {
	var b strings.Builder

	b.WriteString("(version 1)\n")
	b.WriteString("(allow default)\n\n")

	b.WriteString("; File read: allow all, deny sensitive subtrees\n")
	for _, p := range rules.DenyRead {
		writeRule(&b, "deny file-read*", "subpath", canonicalizeDarwinPath(p))
	}
	b.WriteString("\n")

	b.WriteString("; File write: deny all, then allow specific roots\n")
	b.WriteString("(deny file-write*)\n")
	for _, p := range rules.AllowWrite {
		writeRule(&b, "allow file-write*", "subpath", canonicalizeDarwinPath(p))
	}
	b.WriteString("; Deny rules take precedence over any overlapping allow\n")
	for _, p := range rules.DenyWrite {
		writeRule(&b, "deny file-write*", "subpath", canonicalizeDarwinPath(p))
	}
	b.WriteString("\n")

	b.WriteString("; Device nodes required by shells and common tools\n")
	for _, dev := range []string{"/dev/null", "/dev/zero", "/dev/random", "/dev/urandom", "/dev/stdout", "/dev/stderr"} {
		writeRule(&b, "allow file-write*", "literal", dev)
	}
	b.WriteString("(allow file-write* (regex #\"^/dev/ttys[0-9]+$\"))\n\n")

	if rules.AllowLocalBinding {
		b.WriteString("; Local port binding permitted by policy\n")
		b.WriteString("(allow network-bind (local ip \"localhost:*\"))\n")
		b.WriteString("(allow network-inbound (local ip \"localhost:*\"))\n")
	} else {
		b.WriteString("; No inbound listeners\n")
		b.WriteString("(deny network-bind)\n")
		b.WriteString("(deny network-inbound)\n")
	}

	return b.String()
}

func writeRule(b *strings.Builder, action, filter, path string) {
	b.WriteString("(")
	b.WriteString(action)
	b.WriteString(" (")
	b.WriteString(filter)
	b.WriteString(" \"")
	b.WriteString(escapeSBPL(path))
	b.WriteString("\"))\n")
}

// escapeSBPL escapes a string for use inside an SBPL double-quoted
// literal. Null bytes are stripped outright to prevent profile injection.
func escapeSBPL(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// canonicalizeDarwinPath maps the well-known macOS symlinks /tmp and /var
// into /private so subpath rules match what the kernel sees.
func canonicalizeDarwinPath(p string) string {
	cleaned := filepath.Clean(p)
	if cleaned == "/tmp" || strings.HasPrefix(cleaned, "/tmp/") {
		return "/private" + cleaned
	}
	if cleaned == "/var" || strings.HasPrefix(cleaned, "/var/") {
		return "/private" + cleaned
	}
	return cleaned
}

// shellQuote returns a single-quoted, shell-safe form of s.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`!#&|;(){}[]<>?*~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
