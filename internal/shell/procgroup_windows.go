//go:build windows

package shell

import "os/exec"

func nativeShellCommand(line string) *exec.Cmd {
	return exec.Command("cmd", "/C", line)
}

// Process groups are handled differently on Windows; the command
// configuration is left untouched.
func configureProcessGroup(cmd *exec.Cmd) {
	_ = cmd
}

func killProcessTree(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
