package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/pipali/pipali/internal/logger"
)

// runInShell is the default spawner: native shell, own process group,
// hard kill of the whole group on timeout or cancellation. A leaked child
// keeps running with the user's privileges, so stopping the wait is never
// enough.
func runInShell(ctx context.Context, line, dir string, env []string, timeout time.Duration) spawnResult {
	cmd := nativeShellCommand(line)
	cmd.Dir = dir
	cmd.Env = env
	configureProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return spawnResult{exitCode: -1, err: err}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	timedOut := false
	for {
		select {
		case waitErr := <-done:
			exitCode := 0
			if waitErr != nil {
				var exitErr *exec.ExitError
				if errors.As(waitErr, &exitErr) {
					exitCode = exitErr.ExitCode()
				} else if timedOut {
					exitCode = -1
				} else {
					return spawnResult{
						stdout:   stdout.String(),
						stderr:   stderr.String(),
						exitCode: -1,
						err:      waitErr,
					}
				}
			}
			return spawnResult{
				stdout:   stdout.String(),
				stderr:   stderr.String(),
				exitCode: exitCode,
				timedOut: timedOut,
			}

		case <-timer.C:
			timedOut = true
			logger.Warn("shell: killing process group (pid=%d) after %s timeout", cmd.Process.Pid, timeout)
			killProcessTree(cmd)

		case <-ctx.Done():
			logger.Warn("shell: killing process group (pid=%d), context cancelled: %v", cmd.Process.Pid, ctx.Err())
			killProcessTree(cmd)
			<-done
			return spawnResult{
				stdout:   stdout.String(),
				stderr:   stderr.String(),
				exitCode: -1,
				err:      ctx.Err(),
			}
		}
	}
}
