package pmu

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoDialer is returned when a Client is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order
	// to establish the serial link to the PMU.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotConnected is returned when a command is attempted before the
	// link has been opened with Connect. No bytes are written in that case.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyClosed is returned when an operation is attempted on a
	// Client that has already been closed.
	ErrAlreadyClosed = errors.New("client already closed")
)

// DeviceNotFoundError is returned when the serial device path does not exist.
// The pre-flight check runs before any OS-level open is attempted.
type DeviceNotFoundError struct {
	Device string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("device not found: %s", e.Device)
}

// TimeoutError is returned when the overall command timeout elapses without a
// terminator being observed. Timeout carries the configured value, not the
// idle window, so callers can tell which limit fired.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s", e.Timeout)
}

// ControllerError is returned when the cleaned reply carries an explicit
// failure marker emitted by the firmware. The protocol is plain text with no
// status envelope, so detection is by substring scan of the reply.
type ControllerError struct {
	Message string
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("controller error: %s", e.Message)
}

// InvalidCommandError is returned when a command cannot be built or sent,
// typically because a required argument is missing. It is raised before any
// byte reaches the device.
type InvalidCommandError struct {
	Command string
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command: %s", e.Command)
}
