package dynamixel

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrChannelOpen     = errors.New("channel open failed")
	ErrChannelClosed   = errors.New("channel is closed")
	ErrNotAttached     = errors.New("actuator is not attached to a bus")
	ErrAlreadyAttached = errors.New("actuator is already attached to a bus")
	ErrDuplicateID     = errors.New("duplicate actuator ID")
	ErrInvalidID       = errors.New("invalid actuator ID")
	ErrTimeout         = errors.New("communication timeout")
	ErrNoResponse      = errors.New("no response from actuator")
	ErrInvalidPacket   = errors.New("invalid packet format")
	ErrTooManyDevices  = errors.New("too many devices in one sync write")
	ErrValueRange      = errors.New("register value out of range")
)

// OpenError reports a channel that could not be established.
// It matches ErrChannelOpen with errors.Is.
type OpenError struct {
	Port    string
	BaudNum int
	Err     error
}

func (e *OpenError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("open channel: %v", e.Err)
	}
	return fmt.Sprintf("open channel %s (baud number %d): %v", e.Port, e.BaudNum, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) Is(target error) bool {
	return target == ErrChannelOpen
}

// CommError represents a communication-level error on a channel.
type CommError struct {
	Op  string // Operation that failed (e.g., "read", "write", "sync_write")
	Err error  // Underlying error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failed single-device read or write.
type TransportError struct {
	Op      string // "read", "write_word", "write_byte"
	ID      int
	Address byte
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("actuator %d %s at 0x%02X failed: %v", e.ID, e.Op, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BatchError reports the chunk of a bus-wide sync write that failed.
// Chunks before Chunk were already applied; chunks after it were not sent.
type BatchError struct {
	Op      string
	Address byte
	Chunk   int // zero-based index of the failing chunk
	Chunks  int
	IDs     []int // IDs carried by the failing chunk
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: sync write to 0x%02X failed on chunk %d of %d (ids %v): %v",
		e.Op, e.Address, e.Chunk+1, e.Chunks, e.IDs, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// AttachError reports which actuator of an AttachMany call was rejected.
type AttachError struct {
	Index int
	ID    int
	Err   error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach actuator %d (position %d): %v", e.ID, e.Index, e.Err)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsClosed returns true if the error was caused by using a closed channel.
func IsClosed(err error) bool {
	return errors.Is(err, ErrChannelClosed)
}

// GetTransportError extracts a TransportError from an error chain, if present.
func GetTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
