package protocol

import "fmt"

// State is a command exchange state.
type State string

const (
	StateIdle        State = "IDLE"
	StateStaging     State = "STAGING"
	StateAwaitingAck State = "AWAITING_ACK"
	StateMonitoring  State = "MONITORING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
	StateCancelled   State = "CANCELLED"
	StateTimedOut    State = "TIMED_OUT"
)

// StateTransition represents a valid state transition
type StateTransition struct {
	From State
	To   State
}

var validTransitions = map[StateTransition]bool{
	// Issue
	{StateIdle, StateStaging}: true,

	// Two-phase write
	{StateStaging, StateAwaitingAck}: true,
	{StateStaging, StateFailed}:      true,
	{StateStaging, StateCancelled}:   true,

	// Waiting for the app to pick the command up
	{StateAwaitingAck, StateMonitoring}: true,
	{StateAwaitingAck, StateTimedOut}:   true,
	{StateAwaitingAck, StateCancelled}:  true,

	// Status polling
	{StateMonitoring, StateCompleted}: true,
	{StateMonitoring, StateFailed}:    true,
	{StateMonitoring, StateCancelled}: true,
	{StateMonitoring, StateTimedOut}:  true,

	// Cleanup
	{StateCompleted, StateIdle}: true,
	{StateFailed, StateIdle}:    true,
	{StateCancelled, StateIdle}: true,
	{StateTimedOut, StateIdle}:  true,
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to State) error {
	if !validTransitions[StateTransition{From: from, To: to}] {
		return fmt.Errorf("invalid state transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal reports whether s ends a command exchange.
func IsTerminal(s State) bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}
