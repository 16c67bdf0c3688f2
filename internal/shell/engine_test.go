package shell

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipali/pipali/internal/config"
	"github.com/pipali/pipali/internal/sandbox"
)

type spySpawner struct {
	calls  atomic.Int32
	line   string
	dir    string
	result spawnResult
}

func (s *spySpawner) spawn(_ context.Context, line, dir string, _ []string, _ time.Duration) spawnResult {
	s.calls.Add(1)
	s.line = line
	s.dir = dir
	return s.result
}

type fakeConfirmer struct {
	calls    atomic.Int32
	decision Decision
	lastSeen CommandApproval
}

func (f *fakeConfirmer) ConfirmCommand(_ context.Context, _ string, approval CommandApproval) Decision {
	f.calls.Add(1)
	f.lastSeen = approval
	return f.decision
}

type recordingAuditor struct {
	records    []ExecutionRecord
	violations [][]string
}

func (r *recordingAuditor) RecordExecution(rec ExecutionRecord) {
	r.records = append(r.records, rec)
}

func (r *recordingAuditor) RecordViolation(_, _ string, deniedPaths []string) {
	r.violations = append(r.violations, deniedPaths)
}

func inactiveAdapter() *sandbox.Adapter {
	cfg := config.DefaultSandboxConfig()
	cfg.Enabled = false
	return sandbox.New(cfg)
}

func TestEffectiveTimeoutClamp(t *testing.T) {
	assert.Equal(t, 1000, Request{TimeoutMs: 5}.EffectiveTimeoutMs())
	assert.Equal(t, 30000, Request{}.EffectiveTimeoutMs())
	assert.Equal(t, 60000, Request{TimeoutMs: 999999}.EffectiveTimeoutMs())
	assert.Equal(t, 4500, Request{TimeoutMs: 4500}.EffectiveTimeoutMs())
}

func TestExecuteEmptyCommand(t *testing.T) {
	spy := &spySpawner{}
	e := NewEngine(inactiveAdapter(), nil, nil)
	e.spawn = spy.spawn

	res := e.Execute(context.Background(), "conv-1", Request{Command: "   "})

	assert.ErrorIs(t, res.Err, ErrEmptyCommand)
	assert.Contains(t, res.Compiled, "empty command")
	assert.Equal(t, int32(0), spy.calls.Load())
}

func TestExecuteMissingWorkingDir(t *testing.T) {
	spy := &spySpawner{}
	e := NewEngine(inactiveAdapter(), nil, nil)
	e.spawn = spy.spawn

	res := e.Execute(context.Background(), "conv-1", Request{
		Command: "ls",
		Cwd:     "/definitely/not/a/real/dir",
	})

	require.Error(t, res.Err)
	assert.Contains(t, res.Compiled, "does not exist")
	assert.Equal(t, int32(0), spy.calls.Load())
}

func TestSandboxFallbackConfirmsOnce(t *testing.T) {
	spy := &spySpawner{result: spawnResult{stdout: "ok\n"}}
	confirmer := &fakeConfirmer{decision: Decision{Approved: true}}
	e := NewEngine(inactiveAdapter(), confirmer, nil)
	e.spawn = spy.spawn

	res := e.Execute(context.Background(), "conv-1", Request{
		Command:       "echo ok",
		ExecutionMode: ModeSandbox,
		Cwd:           t.TempDir(),
	})

	assert.Equal(t, ModeDirect, res.Mode)
	assert.Equal(t, int32(1), confirmer.calls.Load())
	assert.Equal(t, int32(1), spy.calls.Load())
	assert.Equal(t, "ok", res.Stdout)
	assert.Equal(t, "echo ok", spy.line)
}

func TestDenialShortCircuits(t *testing.T) {
	spy := &spySpawner{}
	confirmer := &fakeConfirmer{decision: Decision{Approved: false, Reason: "user rejected the write"}}
	auditor := &recordingAuditor{}
	e := NewEngine(inactiveAdapter(), confirmer, auditor)
	e.spawn = spy.spawn

	res := e.Execute(context.Background(), "conv-1", Request{
		Command:       "rm -rf build",
		OperationType: OpWriteOnly,
		ExecutionMode: ModeDirect,
		Cwd:           t.TempDir(),
	})

	assert.True(t, res.Denied)
	assert.Contains(t, res.Compiled, "user rejected the write")
	assert.NotContains(t, res.Compiled, "[stderr]")
	assert.Equal(t, int32(0), spy.calls.Load(), "no process may be spawned after denial")

	require.Len(t, auditor.records, 1)
	assert.True(t, auditor.records[0].Denied)
	assert.Equal(t, "rm -rf build", auditor.records[0].Command)
}

func TestConfirmationCarriesRequestDetails(t *testing.T) {
	dir := t.TempDir()
	spy := &spySpawner{result: spawnResult{}}
	confirmer := &fakeConfirmer{decision: Decision{Approved: true}}
	e := NewEngine(inactiveAdapter(), confirmer, nil)
	e.spawn = spy.spawn

	e.Execute(context.Background(), "conv-1", Request{
		Command:       "make install",
		Justification: "install the built binary",
		OperationType: OpReadWrite,
		ExecutionMode: ModeDirect,
		Cwd:           dir,
	})

	assert.Equal(t, "make install", confirmer.lastSeen.Command)
	assert.Equal(t, "install the built binary", confirmer.lastSeen.Justification)
	assert.Equal(t, OpReadWrite, confirmer.lastSeen.OperationType)
	assert.Equal(t, dir, confirmer.lastSeen.WorkingDir)
}

func TestCompiledOutputFormat(t *testing.T) {
	spy := &spySpawner{result: spawnResult{
		stdout:   "built 3 targets\n",
		stderr:   "warning: deprecated flag\n",
		exitCode: 2,
	}}
	e := NewEngine(inactiveAdapter(), nil, nil)
	e.spawn = spy.spawn

	res := e.Execute(context.Background(), "conv-1", Request{
		Command: "make",
		Cwd:     t.TempDir(),
	})

	wantOrder := []string{"built 3 targets", "[stderr]", "warning: deprecated flag", "[Exit code: 2]"}
	last := -1
	for _, part := range wantOrder {
		idx := strings.Index(res.Compiled, part)
		assert.Greater(t, idx, last, "expected %q after previous section", part)
		last = idx
	}
}

func TestTimeoutResult(t *testing.T) {
	spy := &spySpawner{result: spawnResult{exitCode: -1, timedOut: true}}
	e := NewEngine(inactiveAdapter(), nil, nil)
	e.spawn = spy.spawn

	res := e.Execute(context.Background(), "conv-1", Request{
		Command:   "sleep 600",
		Cwd:       t.TempDir(),
		TimeoutMs: 2000,
	})

	assert.True(t, res.TimedOut)
	assert.Contains(t, res.Compiled, "timed out after 2s")
}

func TestSandboxViolationClassification(t *testing.T) {
	if !sandbox.PlatformSupported() {
		t.Skip("no sandbox primitive on this platform")
	}
	spy := &spySpawner{result: spawnResult{
		stderr:   "touch: /etc/hosts: Operation not permitted\n",
		exitCode: 1,
	}}
	auditor := &recordingAuditor{}
	e := NewEngine(sandbox.New(config.DefaultSandboxConfig()), nil, auditor)
	e.spawn = spy.spawn

	res := e.Execute(context.Background(), "conv-1", Request{
		Command: "touch /etc/hosts",
		Cwd:     t.TempDir(),
	})

	assert.Equal(t, ModeSandbox, res.Mode)
	assert.NotEqual(t, "touch /etc/hosts", spy.line, "sandboxed command must be wrapped")
	assert.True(t, res.Violation)
	assert.Contains(t, res.Compiled, "[Sandbox violation:")
	assert.Contains(t, res.Compiled, "execution_mode \"direct\"")
	assert.Len(t, auditor.violations, 1)
}

func TestDirectModeSkipsWrap(t *testing.T) {
	if !sandbox.PlatformSupported() {
		t.Skip("no sandbox primitive on this platform")
	}
	spy := &spySpawner{result: spawnResult{stdout: "x"}}
	confirmer := &fakeConfirmer{decision: Decision{Approved: true}}
	e := NewEngine(sandbox.New(config.DefaultSandboxConfig()), confirmer, nil)
	e.spawn = spy.spawn

	res := e.Execute(context.Background(), "conv-1", Request{
		Command:       "cat notes.txt",
		ExecutionMode: ModeDirect,
		Cwd:           t.TempDir(),
	})

	assert.Equal(t, ModeDirect, res.Mode)
	assert.Equal(t, "cat notes.txt", spy.line)
	assert.Equal(t, int32(1), confirmer.calls.Load())
}

func TestCosmeticLineStripping(t *testing.T) {
	in := "sandbox-exec: profile is deprecated\nreal error here"
	assert.Equal(t, "real error here", stripCosmeticLines(in))
	assert.Equal(t, "Operation not permitted", stripCosmeticLines("Operation not permitted"))
}
