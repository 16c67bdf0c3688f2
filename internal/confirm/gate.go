package confirm

import (
	"context"
	"fmt"

	"github.com/pipali/pipali/internal/shell"
)

// CommandGate adapts the gateway to the execution engine's confirmation
// hook: every direct (unconfined) command becomes a pending request.
type CommandGate struct {
	gateway *Gateway
}

func NewCommandGate(g *Gateway) *CommandGate {
	return &CommandGate{gateway: g}
}

var _ shell.Confirmer = (*CommandGate)(nil)

// ConfirmCommand blocks until the user decides, the run stops, or the
// confirmation times out.
func (c *CommandGate) ConfirmCommand(ctx context.Context, contextKey string, approval shell.CommandApproval) shell.Decision {
	message := fmt.Sprintf("Run without sandbox in %s:\n\n  %s", approval.WorkingDir, approval.Command)
	if approval.Justification != "" {
		message += "\n\nReason: " + approval.Justification
	}

	outcome := c.gateway.Request(ctx, contextKey, Request{
		InputType:        "confirmation",
		Title:            "Allow command to run unsandboxed?",
		Message:          message,
		Operation:        "execute_command",
		OperationSubType: string(approval.OperationType),
		Context: Context{
			ToolName: "execute_shell_command",
			ToolArgs: map[string]string{
				"command": approval.Command,
				"cwd":     approval.WorkingDir,
			},
			RiskLevel: RiskHigh,
		},
		Options:         ApproveDenyOptions(),
		DefaultOptionID: "deny",
	})

	return shell.Decision{
		Approved: outcome.Approved,
		Reason:   outcome.DenialReason,
		Guidance: outcome.Guidance,
	}
}
