package shell

import (
	"github.com/pipali/pipali/internal/consts"
)

// OperationType describes what a command claims to do with the filesystem.
// It travels into the confirmation request so the user sees why the
// command wants to run.
type OperationType string

const (
	OpReadOnly  OperationType = "read-only"
	OpWriteOnly OperationType = "write-only"
	OpReadWrite OperationType = "read-write"
)

// ExecutionMode selects confinement. Empty means "caller has no
// preference": sandbox when active, direct otherwise.
type ExecutionMode string

const (
	ModeUnspecified ExecutionMode = ""
	ModeSandbox     ExecutionMode = "sandbox"
	ModeDirect      ExecutionMode = "direct"
)

// Request is one shell command execution attempt. Immutable once
// constructed; a retry is a new request.
type Request struct {
	Justification string        `json:"justification"`
	Command       string        `json:"command"`
	OperationType OperationType `json:"operation_type"`
	ExecutionMode ExecutionMode `json:"execution_mode,omitempty"`
	Cwd           string        `json:"cwd,omitempty"`
	TimeoutMs     int           `json:"timeout_ms,omitempty"`
}

// EffectiveTimeoutMs clamps the requested timeout into the supported
// range. Zero (unset) gets the default before clamping.
func (r Request) EffectiveTimeoutMs() int {
	t := r.TimeoutMs
	if t == 0 {
		t = consts.DefaultCommandTimeoutMs
	}
	if t < consts.MinCommandTimeoutMs {
		t = consts.MinCommandTimeoutMs
	}
	if t > consts.MaxCommandTimeoutMs {
		t = consts.MaxCommandTimeoutMs
	}
	return t
}

// ToolResult is the shape handed back across the tool invocation
// boundary. Compiled is the combined human/agent-readable output.
type ToolResult struct {
	Query    string `json:"query,omitempty"`
	File     string `json:"file,omitempty"`
	URI      string `json:"uri,omitempty"`
	Compiled string `json:"compiled"`
}
