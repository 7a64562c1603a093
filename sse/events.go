package sse

// Event names written by Handler.
const (
	// EventConnected opens every stream and carries the subscription id.
	EventConnected = "connected"
	// EventError closes a stream that failed.
	EventError = "error"
	// EventComplete closes a stream that completed.
	EventComplete = "complete"
)

// ConnectedEvent is the payload of EventConnected.
type ConnectedEvent struct {
	Stream         string `json:"stream"`
	SubscriptionID string `json:"subscription_id"`
	RequestID      string `json:"request_id,omitempty"`
}
