// Package shell runs agent-issued commands through a small state machine:
// validate, resolve the working directory, pick sandboxed or direct
// execution, gate direct execution behind user confirmation, spawn with a
// hard timeout, and normalize output into a single compiled string.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pipali/pipali/internal/consts"
	"github.com/pipali/pipali/internal/logger"
	"github.com/pipali/pipali/internal/pathmatch"
	"github.com/pipali/pipali/internal/sandbox"
)

// ErrEmptyCommand is returned for a request whose command is blank.
var ErrEmptyCommand = errors.New("empty command")

// CommandApproval is what the user gets asked about before a direct
// (unconfined) execution.
type CommandApproval struct {
	Command       string
	Justification string
	WorkingDir    string
	OperationType OperationType
}

// Decision is the outcome of a confirmation.
type Decision struct {
	Approved bool
	Reason   string
	Guidance string
}

// Confirmer gates direct execution behind explicit user approval.
type Confirmer interface {
	ConfirmCommand(ctx context.Context, contextKey string, approval CommandApproval) Decision
}

// ExecutionRecord summarizes a finished (or short-circuited) execution for
// the audit trail.
type ExecutionRecord struct {
	ContextKey string
	Command    string
	Mode       ExecutionMode
	ExitCode   int
	TimedOut   bool
	Violation  bool
	Denied     bool
	DurationMs int64
}

// Auditor persists execution records and detected sandbox denials.
// Implementations log their own failures; recording never blocks or
// fails an execution.
type Auditor interface {
	RecordExecution(rec ExecutionRecord)
	RecordViolation(contextKey, command string, deniedPaths []string)
}

type spawnResult struct {
	stdout   string
	stderr   string
	exitCode int
	timedOut bool
	err      error
}

type spawnFunc func(ctx context.Context, line, dir string, env []string, timeout time.Duration) spawnResult

// Engine executes shell command requests.
type Engine struct {
	adapter *sandbox.Adapter
	confirm Confirmer
	audit   Auditor
	spawn   spawnFunc
}

// NewEngine wires an engine. confirmer and auditor may be nil: a nil
// confirmer skips the confirmation gate (trusted embedding only), a nil
// auditor disables recording.
func NewEngine(adapter *sandbox.Adapter, confirmer Confirmer, auditor Auditor) *Engine {
	return &Engine{
		adapter: adapter,
		confirm: confirmer,
		audit:   auditor,
		spawn:   runInShell,
	}
}

// Result is the full outcome of one execution attempt.
type Result struct {
	Mode      ExecutionMode
	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	Violation bool
	Denied    bool
	Compiled  string
	Err       error
}

// Tool converts a result to the tool boundary shape.
func (r Result) Tool(query string) ToolResult {
	return ToolResult{Query: query, Compiled: r.Compiled}
}

// Execute runs one request to completion. Denials, timeouts and sandbox
// violations are normal results, not errors; Err is set only for
// validation and spawn failures.
func (e *Engine) Execute(ctx context.Context, contextKey string, req Request) Result {
	start := time.Now()

	command := strings.TrimSpace(req.Command)
	if command == "" {
		return e.finish(contextKey, req, start, Result{
			Err:      ErrEmptyCommand,
			ExitCode: -1,
			Compiled: "Error: empty command",
		})
	}

	dir, err := resolveWorkingDir(req.Cwd)
	if err != nil {
		return e.finish(contextKey, req, start, Result{
			Err:      err,
			ExitCode: -1,
			Compiled: fmt.Sprintf("Error: %v", err),
		})
	}

	mode := e.chooseMode(req.ExecutionMode)

	if mode == ModeDirect && e.confirm != nil {
		decision := e.confirm.ConfirmCommand(ctx, contextKey, CommandApproval{
			Command:       command,
			Justification: req.Justification,
			WorkingDir:    dir,
			OperationType: req.OperationType,
		})
		if !decision.Approved {
			reason := decision.Reason
			if reason == "" {
				reason = "denied by user"
			}
			logger.Info("shell: command cancelled before spawn (context=%s): %s", contextKey, reason)
			return e.finish(contextKey, req, start, Result{
				Mode:     mode,
				Denied:   true,
				Compiled: fmt.Sprintf("Command was cancelled: %s. No process was started.", reason),
			})
		}
	}

	line := command
	env := os.Environ()
	timeout := time.Duration(req.EffectiveTimeoutMs()) * time.Millisecond
	if mode == ModeSandbox {
		line = e.adapter.Wrap(command)
		env = append(env,
			"PIPALI_SANDBOX=1",
			"TMPDIR="+consts.ScratchDir,
		)
	}

	sp := e.spawn(ctx, line, dir, env, timeout)
	if sp.err != nil {
		logger.Error("shell: execution failed (context=%s): %v", contextKey, sp.err)
		return e.finish(contextKey, req, start, Result{
			Mode:     mode,
			Err:      sp.err,
			ExitCode: -1,
			Compiled: fmt.Sprintf("Error: failed to execute command: %v", sp.err),
		})
	}

	stdout := strings.TrimRight(sp.stdout, " \t\r\n")
	stderr := stripCosmeticLines(strings.TrimRight(sp.stderr, " \t\r\n"))

	violation := false
	if mode == ModeSandbox {
		// Classify from the pre-annotation text so the annotation step
		// cannot mask its own trigger.
		denial := sandbox.ContainsDenialPatterns(stderr)
		annotated := sandbox.AnnotateFailureOutput(stderr)
		violation = annotated != stderr || (sp.exitCode != 0 && denial)
		if violation && e.audit != nil {
			e.audit.RecordViolation(contextKey, command, sandbox.DeniedPaths(stderr))
		}
		stderr = annotated
	}

	res := Result{
		Mode:      mode,
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCode:  sp.exitCode,
		TimedOut:  sp.timedOut,
		Violation: violation,
	}
	res.Compiled = e.compile(res, timeout)
	return e.finish(contextKey, req, start, res)
}

func (e *Engine) finish(contextKey string, req Request, start time.Time, res Result) Result {
	if e.audit != nil {
		e.audit.RecordExecution(ExecutionRecord{
			ContextKey: contextKey,
			Command:    req.Command,
			Mode:       res.Mode,
			ExitCode:   res.ExitCode,
			TimedOut:   res.TimedOut,
			Violation:  res.Violation,
			Denied:     res.Denied,
			DurationMs: time.Since(start).Milliseconds(),
		})
	}
	return res
}

// chooseMode applies the mode selection rules: explicit direct always
// wins, explicit sandbox falls back to direct when inactive, unspecified
// defaults to sandbox when active.
func (e *Engine) chooseMode(requested ExecutionMode) ExecutionMode {
	active := e.adapter != nil && e.adapter.Active()
	switch requested {
	case ModeDirect:
		return ModeDirect
	case ModeSandbox:
		if active {
			return ModeSandbox
		}
		logger.Info("shell: sandbox requested but unavailable, falling back to direct execution")
		return ModeDirect
	default:
		if active {
			return ModeSandbox
		}
		return ModeDirect
	}
}

// resolveWorkingDir maps the request cwd onto a real directory: absolute
// used as-is, ~ expanded, relative resolved against home, empty defaults
// to home. Validated up front so the spawn cannot fail with an opaque
// chdir error.
func resolveWorkingDir(cwd string) (string, error) {
	var dir string
	switch {
	case cwd == "":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = home
	case strings.HasPrefix(cwd, "~"):
		dir = pathmatch.ExpandHome(cwd)
	case filepath.IsAbs(cwd):
		dir = filepath.Clean(cwd)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, cwd)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("working directory %q does not exist", dir)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working directory %q is not a directory", dir)
	}
	return dir, nil
}

// cosmeticStderrPrefixes are wrapper chatter with no bearing on the
// command itself. The list is deliberately fixed and tiny; anything not
// listed stays in the output.
var cosmeticStderrPrefixes = []string{
	"sandbox-exec: profile is deprecated",
	"/bin/sh: warning: setlocale",
}

func stripCosmeticLines(stderr string) string {
	if stderr == "" {
		return stderr
	}
	lines := strings.Split(stderr, "\n")
	kept := lines[:0]
	for _, line := range lines {
		cosmetic := false
		for _, prefix := range cosmeticStderrPrefixes {
			if strings.HasPrefix(line, prefix) {
				cosmetic = true
				break
			}
		}
		if !cosmetic {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// compile assembles the combined output: stdout, stderr block, timeout
// notice, exit code, violation notice naming where writes are allowed.
func (e *Engine) compile(res Result, timeout time.Duration) string {
	var b strings.Builder

	if res.Stdout != "" {
		b.WriteString(res.Stdout)
	}
	if res.Stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[stderr]\n")
		b.WriteString(res.Stderr)
	}
	if res.TimedOut {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Error: command timed out after %s and was terminated]", timeout)
	}
	if res.ExitCode != 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Exit code: %d]", res.ExitCode)
	}
	if res.Violation {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		allowed := "none configured"
		if e.adapter != nil {
			if locations := e.adapter.AllowedWriteLocations(); len(locations) > 0 {
				allowed = strings.Join(locations, ", ")
			}
		}
		fmt.Fprintf(&b, "[Sandbox violation: the sandbox rejected an access. Writes are allowed under: %s. Retry with execution_mode \"direct\" to run with user confirmation.]", allowed)
	}
	return b.String()
}
