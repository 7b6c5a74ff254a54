// Package events contains the event contract for WebSocket communication
// between the setup wizard backend and its renderers.
package events

import (
	"time"
)

// Event types broadcast over the wizard channel.
const (
	TypeSetupProgress  = "setup:progress"
	TypeSetupDetection = "setup:detection"
	TypeSetupComplete  = "setup:complete"
	TypeSetupError     = "setup:error"
)

// SetupEvent is the envelope for all wizard events. The payload shape depends
// on Type: setup:progress carries SetupProgress, setup:detection carries
// DetectionResult, setup:complete carries the committed Configuration.
type SetupEvent struct {
	Type      string      `json:"type"`
	UserID    string      `json:"user_id"`
	Step      int         `json:"step,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewSetupEvent builds an event stamped with the current time.
func NewSetupEvent(eventType, userID string, step int, payload interface{}) SetupEvent {
	return SetupEvent{
		Type:      eventType,
		UserID:    userID,
		Step:      step,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
