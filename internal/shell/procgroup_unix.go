//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

func nativeShellCommand(line string) *exec.Cmd {
	return exec.Command("/bin/sh", "-c", line)
}

// configureProcessGroup puts the command in its own process group so a
// kill reaches the whole tree, not just the shell.
func configureProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func killProcessTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil && pgid > 0 {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	_ = cmd.Process.Kill()
}
