package confirm

import (
	"net/url"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/pipali/pipali/internal/logger"
	"github.com/pipali/pipali/internal/sensitive"
)

// FileContext builds confirmation context for a file operation. Any
// sensitive path among the affected files raises the risk level and names
// the reason.
func FileContext(toolName string, paths ...string) Context {
	ctx := Context{
		ToolName:      toolName,
		AffectedFiles: paths,
		RiskLevel:     RiskLow,
	}
	for _, p := range paths {
		if reason, ok := sensitive.PathReason(p); ok {
			ctx.RiskLevel = RiskHigh
			ctx.RiskReason = p + ": " + reason
			break
		}
	}
	return ctx
}

// URLContext builds confirmation context for a network operation.
// Internal endpoints are high risk. A URL that cannot be parsed is also
// high risk: classification could not run, so the decision fails closed
// and the user is asked.
func URLContext(toolName, raw string) Context {
	ctx := Context{
		ToolName:  toolName,
		ToolArgs:  map[string]string{"url": raw},
		RiskLevel: RiskLow,
	}

	if !parseableURL(raw) {
		ctx.RiskLevel = RiskHigh
		ctx.RiskReason = "URL could not be parsed; treating as requiring confirmation"
		return ctx
	}
	if reason, ok := sensitive.URLReason(raw); ok {
		ctx.RiskLevel = RiskHigh
		ctx.RiskReason = reason
	}
	return ctx
}

func parseableURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	return err == nil && u.Hostname() != ""
}

// AffectedFilesFromDiff extracts the touched file names from a unified
// diff so file-write confirmations can show what changes. Parse failures
// return nil; the confirmation still goes out, just without the list.
func AffectedFilesFromDiff(unified string) []string {
	if strings.TrimSpace(unified) == "" {
		return nil
	}
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(unified))
	if err != nil {
		logger.Debug("confirm: cannot parse diff for affected files: %v", err)
		return nil
	}

	var files []string
	seen := make(map[string]bool)
	for _, fd := range fileDiffs {
		name := strings.TrimPrefix(fd.NewName, "b/")
		if name == "/dev/null" || name == "" {
			name = strings.TrimPrefix(fd.OrigName, "a/")
		}
		if name != "" && name != "/dev/null" && !seen[name] {
			seen[name] = true
			files = append(files, name)
		}
	}
	return files
}
