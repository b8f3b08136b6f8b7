package dynamixel

import (
	"context"
	"io"
	"time"
)

// Transport is the byte-level link a PortChannel speaks the protocol over.
type Transport interface {
	io.ReadWriteCloser

	// SetReadTimeout sets the read timeout duration.
	SetReadTimeout(timeout time.Duration) error

	// Flush discards any buffered input data.
	Flush() error
}

// Channel is an open link to the devices on one serial line. Every call
// blocks until the exchange completes or fails at the transport layer.
//
// Implementations need not be safe for concurrent use; a Bus issues one
// call at a time.
type Channel interface {
	ReadUint16(ctx context.Context, id int, address byte) (int, error)
	WriteUint16(ctx context.Context, id int, address byte, value int) error
	WriteUint8(ctx context.Context, id int, address byte, value int) error

	// SyncWriteUint16 writes values[i] to ids[i] at address in one packet.
	SyncWriteUint16(ctx context.Context, address byte, ids, values []int) error
	SyncWriteUint8(ctx context.Context, address byte, ids, values []int) error

	Close() error
}

// Opener opens a channel on port at the given baud number.
type Opener func(port string, baudNum int) (Channel, error)

// DefaultBaudNum selects 222.2 kbps.
const DefaultBaudNum = 8

// BaudRate returns the line rate for a baud number: 2 Mbps / (baudNum + 1).
func BaudRate(baudNum int) int {
	return 2000000 / (baudNum + 1)
}
