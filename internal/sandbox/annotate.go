package sandbox

import "strings"

// denialPatterns are substrings that show up in stderr when a kernel
// sandbox blocks an operation. Matching is a heuristic: tools print these
// for ordinary permission errors too, so callers only consult it after a
// sandboxed command already failed.
var denialPatterns = []string{
	"operation not permitted",
	"permission denied",
	"read-only file system",
	"eperm",
	"deny(",
	"sandbox:",
}

// ContainsDenialPatterns reports whether output looks like a sandbox
// denial. Best effort only; a false negative means the user sees the raw
// failure without the violation hint.
func ContainsDenialPatterns(output string) bool {
	lowered := strings.ToLower(output)
	for _, p := range denialPatterns {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// AnnotateFailureOutput tags each stderr line that matches a denial
// pattern so the caller can tell sandbox refusals apart from the
// command's own errors.
func AnnotateFailureOutput(stderr string) string {
	if stderr == "" {
		return stderr
	}
	lines := strings.Split(stderr, "\n")
	changed := false
	for i, line := range lines {
		if line == "" {
			continue
		}
		if ContainsDenialPatterns(line) {
			lines[i] = line + "  [sandbox denial?]"
			changed = true
		}
	}
	if !changed {
		return stderr
	}
	return strings.Join(lines, "\n")
}

// DeniedPaths extracts absolute paths from Seatbelt-style denial lines,
// e.g. `deny(1) file-write-data /Users/me/.ssh/config`. Used for audit
// detail; returns nil when nothing parseable is present.
func DeniedPaths(output string) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(strings.ToLower(line), "deny(")
		if idx < 0 {
			continue
		}
		for _, field := range strings.Fields(line[idx:]) {
			if strings.HasPrefix(field, "/") && !seen[field] {
				seen[field] = true
				paths = append(paths, field)
			}
		}
	}
	return paths
}
