package confirm

import "time"

// Risk levels attached to confirmation context. The UI renders high-risk
// requests more prominently; the gateway itself never auto-denies on risk.
const (
	RiskLow  = "low"
	RiskHigh = "high"
)

// Option is one choice presented to the user. Denies marks options whose
// selection counts as a refusal.
type Option struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Style  string `json:"style,omitempty"`
	Denies bool   `json:"denies,omitempty"`
}

// Context carries what the confirmation is about so the UI can render a
// meaningful prompt.
type Context struct {
	ToolName      string            `json:"tool_name,omitempty"`
	ToolArgs      map[string]string `json:"tool_args,omitempty"`
	AffectedFiles []string          `json:"affected_files,omitempty"`
	RiskLevel     string            `json:"risk_level,omitempty"`
	RiskReason    string            `json:"risk_reason,omitempty"`
}

// Request is one pending approval. ID is assigned by the gateway when
// empty. ContextKey ties the request to the conversation or automation
// run that issued it.
type Request struct {
	ID               string    `json:"id"`
	InputType        string    `json:"input_type"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	Operation        string    `json:"operation"`
	OperationSubType string    `json:"operation_sub_type,omitempty"`
	Context          Context   `json:"context"`
	Diff             string    `json:"diff,omitempty"`
	Options          []Option  `json:"options"`
	DefaultOptionID  string    `json:"default_option_id,omitempty"`
	TimeoutMs        int       `json:"timeout_ms,omitempty"`
	ContextKey       string    `json:"context_key"`
	CreatedAt        time.Time `json:"created_at"`
}

// Outcome is the resolution of a request as seen by the suspended caller.
type Outcome struct {
	Approved         bool
	SelectedOptionID string
	Guidance         string
	DenialReason     string
}

// Standard yes/no options for command and file-write confirmations.
func ApproveDenyOptions() []Option {
	return []Option{
		{ID: "approve", Label: "Allow", Style: "primary"},
		{ID: "deny", Label: "Deny", Style: "danger", Denies: true},
	}
}
