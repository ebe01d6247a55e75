package bus

import "github.com/neuroassist/neuroassist/pkg/command"

type RequestKind string

const (
	RequestSubmit RequestKind = "submit"
	RequestCancel RequestKind = "cancel"
)

// Request is a command submission or cancellation from a remote client.
type Request struct {
	ClientID    string      `json:"client_id"`
	RequestID   string      `json:"request_id,omitempty"`
	Kind        RequestKind `json:"kind"`
	Command     string      `json:"command,omitempty"`
	ExecutionID string      `json:"execution_id,omitempty"`
}

type EventType string

const (
	EventAccepted EventType = "accepted"
	EventUpdate   EventType = "update"
	EventFinal    EventType = "final"
	EventError    EventType = "error"
)

// Event is delivered back to the client that sent the originating request.
type Event struct {
	ClientID    string             `json:"-"`
	RequestID   string             `json:"request_id,omitempty"`
	Type        EventType          `json:"type"`
	ExecutionID string             `json:"execution_id,omitempty"`
	Execution   *command.Execution `json:"execution,omitempty"`
	Step        *command.Step      `json:"step,omitempty"`
	Error       string             `json:"error,omitempty"`
}
