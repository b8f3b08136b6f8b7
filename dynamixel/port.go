package dynamixel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hipsterbrown/dynamixel-joints/transports"
)

// PortChannel is a Channel speaking protocol 1.0 over a byte Transport.
type PortChannel struct {
	transport Transport
	protocol  Protocol
	timeout   time.Duration
	maxSync   int

	mu          sync.Mutex
	lastCmdTime time.Time
	minCmdGap   time.Duration
	closed      bool
}

// PortConfig holds configuration for opening a PortChannel.
type PortConfig struct {
	// Transport is the underlying byte transport.
	// If nil, Port must be specified to open a serial connection.
	Transport Transport

	// Port is the serial port path (e.g., "/dev/ttyUSB0").
	// Ignored if Transport is provided.
	Port string

	// BaudNum selects the line rate, 2 Mbps / (BaudNum + 1).
	BaudNum int

	// Timeout for a status packet. Default is 100ms.
	Timeout time.Duration

	// MinCommandGap is the minimum time between packets. Default is 1ms.
	MinCommandGap time.Duration

	// MaxSyncDevices caps the devices of one sync write. Default is 20.
	MaxSyncDevices int
}

// NewPortChannel creates a channel with the given configuration.
func NewPortChannel(cfg PortConfig) (*PortChannel, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.MinCommandGap == 0 {
		cfg.MinCommandGap = time.Millisecond
	}
	if cfg.MaxSyncDevices == 0 {
		cfg.MaxSyncDevices = MaxSyncDevices
	}
	if cfg.BaudNum < 0 || cfg.BaudNum > 254 {
		return nil, fmt.Errorf("baud number %d out of range 0-254", cfg.BaudNum)
	}

	transport := cfg.Transport
	if transport == nil {
		if cfg.Port == "" {
			return nil, errors.New("either Transport or Port must be specified")
		}
		var err error
		transport, err = transports.OpenSerial(transports.SerialConfig{
			Port:     cfg.Port,
			BaudRate: BaudRate(cfg.BaudNum),
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}

	return &PortChannel{
		transport:   transport,
		timeout:     cfg.Timeout,
		maxSync:     cfg.MaxSyncDevices,
		minCmdGap:   cfg.MinCommandGap,
		lastCmdTime: time.Now(),
	}, nil
}

// OpenPort is the default Opener: a serial PortChannel with default timing.
func OpenPort(port string, baudNum int) (Channel, error) {
	return NewPortChannel(PortConfig{Port: port, BaudNum: baudNum})
}

// Close closes the channel and its transport.
func (c *PortChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	return c.transport.Close()
}

// ReadUint16 reads a two-byte register.
func (c *PortChannel) ReadUint16(ctx context.Context, id int, address byte) (int, error) {
	data, err := c.readRegister(ctx, id, address, 2)
	if err != nil {
		return 0, err
	}
	return int(c.protocol.DecodeWord(data)), nil
}

// WriteUint16 writes a two-byte register.
func (c *PortChannel) WriteUint16(ctx context.Context, id int, address byte, value int) error {
	data, err := encodeValue(value, 2)
	if err != nil {
		return err
	}
	return c.writeRegister(ctx, id, address, data)
}

// WriteUint8 writes a one-byte register.
func (c *PortChannel) WriteUint8(ctx context.Context, id int, address byte, value int) error {
	data, err := encodeValue(value, 1)
	if err != nil {
		return err
	}
	return c.writeRegister(ctx, id, address, data)
}

// SyncWriteUint16 writes two-byte values to several devices in one packet.
func (c *PortChannel) SyncWriteUint16(ctx context.Context, address byte, ids, values []int) error {
	return c.syncWrite(ctx, address, 2, ids, values)
}

// SyncWriteUint8 writes one-byte values to several devices in one packet.
func (c *PortChannel) SyncWriteUint8(ctx context.Context, address byte, ids, values []int) error {
	return c.syncWrite(ctx, address, 1, ids, values)
}

func (c *PortChannel) readRegister(ctx context.Context, id int, address byte, length int) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrChannelClosed
	}

	packet := c.protocol.ReadPacket(byte(id), address, byte(length))
	if err := c.sendPacketLocked(packet); err != nil {
		return nil, &CommError{Op: "read", Err: err}
	}

	resp, err := c.readStatusLocked(ctx, byte(id), length)
	if err != nil {
		return nil, err
	}
	if len(resp.Parameters) != length {
		return nil, fmt.Errorf("%w: %d data bytes, want %d", ErrInvalidPacket, len(resp.Parameters), length)
	}
	return resp.Parameters, nil
}

func (c *PortChannel) writeRegister(ctx context.Context, id int, address byte, data []byte) error {
	if err := validateID(id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}

	packet := c.protocol.WritePacket(byte(id), address, data)
	if err := c.sendPacketLocked(packet); err != nil {
		return &CommError{Op: "write", Err: err}
	}

	_, err := c.readStatusLocked(ctx, byte(id), 0)
	return err
}

func (c *PortChannel) syncWrite(ctx context.Context, address byte, size int, ids, values []int) error {
	if len(ids) != len(values) {
		return fmt.Errorf("sync write: %d ids but %d values", len(ids), len(values))
	}
	if len(ids) > c.maxSync {
		return fmt.Errorf("%w: %d devices, limit %d", ErrTooManyDevices, len(ids), c.maxSync)
	}

	byteIDs := make([]byte, len(ids))
	data := make([][]byte, len(ids))
	for i, id := range ids {
		if err := validateID(id); err != nil {
			return err
		}
		d, err := encodeValue(values[i], size)
		if err != nil {
			return fmt.Errorf("device %d: %w", id, err)
		}
		byteIDs[i] = byte(id)
		data[i] = d
	}

	packet, err := c.protocol.SyncWritePacket(address, byte(size), byteIDs, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.sendPacketLocked(packet); err != nil {
		return &CommError{Op: "sync_write", Err: err}
	}

	// Broadcast packets get no status reply.
	return nil
}

func (c *PortChannel) enforceCommandGap() {
	elapsed := time.Since(c.lastCmdTime)
	if elapsed < c.minCmdGap {
		time.Sleep(c.minCmdGap - elapsed)
	}
}

func (c *PortChannel) sendPacketLocked(packet []byte) error {
	c.enforceCommandGap()

	// Drop stale bytes from an earlier exchange.
	if err := c.transport.Flush(); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}

	n, err := c.transport.Write(packet)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(packet) {
		return fmt.Errorf("incomplete write: %d of %d bytes", n, len(packet))
	}

	c.lastCmdTime = time.Now()
	return nil
}

func (c *PortChannel) readStatusLocked(ctx context.Context, id byte, dataLen int) (Packet, error) {
	data, err := c.readRawBytesLocked(ctx, c.protocol.StatusLength(dataLen))
	if err != nil {
		return Packet{}, err
	}

	resp, _, err := c.protocol.Decode(data)
	if err != nil {
		return Packet{}, err
	}
	if resp.ID != id {
		return Packet{}, fmt.Errorf("%w: status from ID %d, want %d", ErrInvalidPacket, resp.ID, id)
	}
	if resp.Error.HasError() {
		return Packet{}, resp.Error
	}
	return resp, nil
}

func (c *PortChannel) readRawBytesLocked(ctx context.Context, expectedLen int) ([]byte, error) {
	buffer := make([]byte, expectedLen*2)
	totalRead := 0
	deadline := time.Now().Add(c.timeout)

	for totalRead < expectedLen {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if time.Now().After(deadline) {
			if totalRead == 0 {
				return nil, ErrNoResponse
			}
			return nil, fmt.Errorf("%w: read %d of %d expected bytes", ErrTimeout, totalRead, expectedLen)
		}

		remaining := max(time.Until(deadline), 10*time.Millisecond)
		if err := c.transport.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("set read timeout: %w", err)
		}

		n, err := c.transport.Read(buffer[totalRead:])
		if n > 0 {
			totalRead += n
			continue
		}
		// Timeouts surface as empty reads; keep waiting until the deadline.
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read error: %w", err)
		}
		time.Sleep(time.Millisecond)
	}

	return buffer[:totalRead], nil
}

func encodeValue(value, size int) ([]byte, error) {
	switch size {
	case 1:
		if value < 0 || value > 0xFF {
			return nil, fmt.Errorf("%w: %d does not fit one byte", ErrValueRange, value)
		}
		return []byte{byte(value)}, nil
	case 2:
		if value < 0 || value > 0xFFFF {
			return nil, fmt.Errorf("%w: %d does not fit two bytes", ErrValueRange, value)
		}
		return Protocol{}.EncodeWord(uint16(value)), nil
	default:
		return nil, fmt.Errorf("unsupported register size %d", size)
	}
}

func validateID(id int) error {
	if id < 0 || id > MaxID {
		return fmt.Errorf("%w: %d (valid range: 0-%d)", ErrInvalidID, id, MaxID)
	}
	return nil
}
