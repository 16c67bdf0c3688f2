//go:build !darwin && !linux

package sandbox

import (
	"fmt"
	"runtime"

	"github.com/pipali/pipali/internal/config"
)

const (
	platformName      = "unsupported"
	platformSupported = false
)

// wrapCommand never succeeds here; callers fall back to direct execution
// with confirmation gating.
func wrapCommand(config.EnforcementRules, string, string) (string, error) {
	return "", fmt.Errorf("sandboxing not supported on %s", runtime.GOOS)
}
