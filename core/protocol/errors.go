package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeout is matched by every TimeoutError.
	ErrTimeout = errors.New("device did not respond")

	// ErrCancelled is returned when the command was cancelled, locally or by the app.
	ErrCancelled = errors.New("command cancelled")

	// ErrBusy is returned by TryIssue while another command is in flight.
	ErrBusy = errors.New("device busy")
)

// DeviceError is a failure reported by the app through the status artifact.
type DeviceError struct {
	Command  string
	Code     int
	Messages []string
}

func (e *DeviceError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s failed on device (code %d)", e.Command, e.Code)
	}
	return fmt.Sprintf("%s failed on device (code %d): %s", e.Command, e.Code, strings.Join(e.Messages, "; "))
}

// TimeoutError reports a watchdog expiry.
type TimeoutError struct {
	Command string
	State   State
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no response from device in %s after %s", e.Command, e.State, e.After)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
