//go:build darwin

package sandbox

import (
	"os/exec"

	"github.com/pipali/pipali/internal/config"
)

const (
	platformName      = "darwin-seatbelt"
	platformSupported = true
)

// wrapCommand rewrites a shell command to run under sandbox-exec with a
// profile generated from the enforcement rules. The helper binary is not
// used on darwin; the kernel applies the profile directly.
func wrapCommand(rules config.EnforcementRules, _ string, command string) (string, error) {
	if _, err := exec.LookPath("sandbox-exec"); err != nil {
		return "", err
	}
	profile := BuildProfile(rules)
	return "sandbox-exec -p " + shellQuote(profile) + " /bin/sh -c " + shellQuote(command), nil
}
