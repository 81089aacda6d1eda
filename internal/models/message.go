package models

import "time"

// Role identifies who authored a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem is only sent to providers as context, never stored in history.
	RoleSystem Role = "system"
)

// ActionNavigate is the only navigation action type the UI understands.
const ActionNavigate = "navigate"

// NavigationAction instructs the UI to redirect to an application feature.
type NavigationAction struct {
	Type   string    `json:"type"`
	Target FeatureID `json:"target"`
}

// Message is a single conversation turn.
type Message struct {
	ID               string            `json:"id"`
	Role             Role              `json:"role"`
	Content          string            `json:"content"`
	Timestamp        time.Time         `json:"timestamp"`
	NavigationAction *NavigationAction `json:"navigationAction,omitempty"`
}

// NavigateTo builds the navigation action for target.
func NavigateTo(target FeatureID) *NavigationAction {
	return &NavigationAction{Type: ActionNavigate, Target: target}
}
