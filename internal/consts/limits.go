package consts

import "time"

// Application identity
const (
	// AppName is used for config, state and scratch directory names
	AppName = "pipali"
	// AppDirName is the per-user application directory under $HOME
	AppDirName = ".pipali"
	// ScratchDir is the fixed shared scratch directory. Deliberately not
	// os.TempDir(): on macOS /tmp is a symlink into /private, which would
	// make allow/deny path matching unreliable.
	ScratchDir = "/tmp/pipali"
)

// Shell execution timeouts (milliseconds)
const (
	// MinCommandTimeoutMs is the lower clamp for a command timeout
	MinCommandTimeoutMs = 1000
	// MaxCommandTimeoutMs is the upper clamp for a command timeout
	MaxCommandTimeoutMs = 60000
	// DefaultCommandTimeoutMs is used when a request specifies no timeout
	DefaultCommandTimeoutMs = 30000
)

// Confirmation timeouts
const (
	// DefaultConfirmationTimeout bounds how long an execution waits for a
	// user decision before it is treated as denied
	DefaultConfirmationTimeout = 2 * time.Minute
)

// Buffer sizes for various operations
const (
	// BufferSize64KB is 64 kilobytes
	BufferSize64KB = 64 * 1024
	// BufferSize1MB is 1 megabyte
	BufferSize1MB = 1024 * 1024
)

// Sidecar defaults
const (
	// DefaultPort is the port the sidecar HTTP server listens on
	DefaultPort = 6464
	// DefaultHost is the loopback-only listen address
	DefaultHost = "127.0.0.1"
)
