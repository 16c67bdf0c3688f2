package web

import "github.com/pipali/pipali/internal/confirm"

// MessageType discriminates frames on the confirmation channel.
type MessageType string

const (
	// Outbound: a new confirmation awaits a decision.
	MessageTypeConfirmation MessageType = "confirmation_request"
	// Inbound: the user picked an option.
	MessageTypeRespond MessageType = "confirmation_response"
	// Inbound: the user closed the prompt without deciding.
	MessageTypeDismiss MessageType = "confirmation_dismiss"
	// Outbound: a request left the pending registry.
	MessageTypeResolved MessageType = "confirmation_resolved"
	// Outbound: protocol-level error.
	MessageTypeError MessageType = "error"
)

// WebMessage is one JSON frame. Fields are populated per type.
type WebMessage struct {
	Type       MessageType      `json:"type"`
	RequestID  string           `json:"request_id,omitempty"`
	OptionID   string           `json:"option_id,omitempty"`
	Guidance   string           `json:"guidance,omitempty"`
	ContextKey string           `json:"context_key,omitempty"`
	Request    *confirm.Request `json:"request,omitempty"`
	Content    string           `json:"content,omitempty"`
}
