// Package pidfile guards against a second sidecar instance: two daemons
// would race on the settings files and double-serve the loopback port.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// File is an acquired PID file.
type File struct {
	path string
}

// Acquire writes the current PID to path. It fails when another live
// process already holds the file; a stale file left by a crashed process
// is taken over.
func Acquire(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create pidfile directory: %w", err)
	}

	if pid, err := readPID(path); err == nil && processAlive(pid) {
		return nil, fmt.Errorf("another instance is running (pid %d)", pid)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, fmt.Errorf("failed to write pidfile: %w", err)
	}
	return &File{path: path}, nil
}

// Release removes the PID file, but only while it still names this
// process; a newer instance's file is left alone.
func (f *File) Release() error {
	if pid, err := readPID(f.path); err == nil && pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pidfile: %w", err)
	}
	return nil
}

// Path returns the PID file path.
func (f *File) Path() string {
	return f.path
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in pidfile: %w", err)
	}
	return pid, nil
}

// processAlive probes with signal 0. On platforms where that is not
// meaningful the probe errs toward "alive", so a stale file needs manual
// cleanup rather than risking a double start.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
