package domain

import "time"

// Invocation is one slash-command delivery from the chat platform
type Invocation struct {
	ID          string    `validate:"required"`
	ChannelID   string    `validate:"required"`
	RequesterID string    `validate:"required"`
	CommandName string    `validate:"required,startswith=/"`
	RawText     string    `validate:"max=4000"`
	ReceivedAt  time.Time `validate:"required"`
}

// Command is the decoded form of an invocation
// Exactly one of MeetingCreate and PrefixRegister
type Command interface {
	isCommand()
}

// MeetingCreate asks for a meeting starting now
type MeetingCreate struct {
	ChannelID   string
	RequesterID string
	Text        string
	At          time.Time
}

// PrefixRegister sets the channel's title prefix
type PrefixRegister struct {
	ChannelID   string
	RequesterID string
	Prefix      string
}

func (MeetingCreate) isCommand()  {}
func (PrefixRegister) isCommand() {}

// Visibility controls who sees a reply
type Visibility string

const (
	VisibilityEphemeral Visibility = "ephemeral"  // Only the invoking user
	VisibilityInChannel Visibility = "in_channel" // The whole channel
)

// InvocationState tracks an invocation through the router
type InvocationState string

const (
	StateReceived  InvocationState = "received"
	StateValidated InvocationState = "validated"
	StateExecuting InvocationState = "executing"
	StateSucceeded InvocationState = "succeeded"
	StateFailed    InvocationState = "failed"
)

// Reply is the router's terminal answer to an invocation
type Reply struct {
	Text       string          `json:"text"`
	Visibility Visibility      `json:"visibility"`
	Status     InvocationState `json:"status"`
}

// Succeeded reports whether the invocation finished successfully
func (r Reply) Succeeded() bool {
	return r.Status == StateSucceeded
}
