// Package dynamixel drives Dynamixel servo actuators multiplexed on shared
// half-duplex serial channels.
//
// A Bus owns one channel and the Actuators attached to it. Actuators convert
// between radians and register values and can be driven one at a time;
// the Bus issues synchronized writes across all of them, split into packets
// of at most MaxSyncDevices devices.
package dynamixel

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Instruction codes of protocol 1.0.
const (
	InstPing      byte = 0x01
	InstRead      byte = 0x02
	InstWrite     byte = 0x03
	InstRegWrite  byte = 0x04
	InstAction    byte = 0x05
	InstReset     byte = 0x06
	InstSyncWrite byte = 0x83
)

// Special ID values.
const (
	BroadcastID = 0xFE
	MaxID       = 0xFD
)

// MaxSyncDevices is the largest number of devices written by one sync write
// packet. Larger packets are rejected or truncated by the devices.
const MaxSyncDevices = 20

const (
	headerByte1 = 0xFF
	headerByte2 = 0xFF

	// header(2) + id(1) + length(1) + error(1) + checksum(1)
	statusOverhead = 6
)

var byteOrder = binary.LittleEndian

// StatusError holds the error flags of a status packet.
type StatusError byte

const (
	ErrInputVoltage StatusError = 1 << 0
	ErrAngleLimit   StatusError = 1 << 1
	ErrOverheat     StatusError = 1 << 2
	ErrRange        StatusError = 1 << 3
	ErrChecksum     StatusError = 1 << 4
	ErrOverload     StatusError = 1 << 5
	ErrInstruction  StatusError = 1 << 6
)

var statusNames = []struct {
	flag StatusError
	name string
}{
	{ErrInputVoltage, "input voltage"},
	{ErrAngleLimit, "angle limit"},
	{ErrOverheat, "overheat"},
	{ErrRange, "range"},
	{ErrChecksum, "checksum"},
	{ErrOverload, "overload"},
	{ErrInstruction, "instruction"},
}

func (e StatusError) Error() string {
	if e == 0 {
		return "no error"
	}

	var msgs []string
	for _, s := range statusNames {
		if e&s.flag != 0 {
			msgs = append(msgs, s.name)
		}
	}
	return fmt.Sprintf("actuator status error: %v", msgs)
}

// HasError returns true if any error flag is set.
func (e StatusError) HasError() bool {
	return e != 0
}

// Packet is a decoded protocol 1.0 packet.
type Packet struct {
	ID          byte
	Instruction byte
	Parameters  []byte
	Error       StatusError // Only valid for status packets
}

// Protocol encodes instruction packets and decodes status packets.
type Protocol struct{}

// EncodeWord converts a register word to its two wire bytes.
func (Protocol) EncodeWord(value uint16) []byte {
	buf := make([]byte, 2)
	byteOrder.PutUint16(buf, value)
	return buf
}

// DecodeWord converts two wire bytes to a register word.
func (Protocol) DecodeWord(data []byte) uint16 {
	if len(data) < 2 {
		return 0
	}
	return byteOrder.Uint16(data)
}

// Encode constructs a wire-format instruction packet.
func (p Protocol) Encode(pkt Packet) []byte {
	length := byte(len(pkt.Parameters) + 2) // params + instruction + checksum

	buf := make([]byte, 0, 6+len(pkt.Parameters))
	buf = append(buf, headerByte1, headerByte2, pkt.ID, length, pkt.Instruction)
	buf = append(buf, pkt.Parameters...)
	return append(buf, checksum(buf[2:]))
}

// Decode parses a status packet, skipping any bytes before the header.
// Returns the packet and number of bytes consumed.
func (p Protocol) Decode(data []byte) (Packet, int, error) {
	headerIdx := findHeader(data, 0)
	if headerIdx < 0 {
		return Packet{}, 0, fmt.Errorf("%w: header not found", ErrInvalidPacket)
	}

	data = data[headerIdx:]
	if len(data) < statusOverhead {
		return Packet{}, 0, fmt.Errorf("%w: packet too short", ErrInvalidPacket)
	}

	length := int(data[3])
	if length < 2 {
		return Packet{}, 0, fmt.Errorf("%w: bad length %d", ErrInvalidPacket, length)
	}

	totalLen := 4 + length
	if len(data) < totalLen {
		return Packet{}, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidPacket, totalLen, len(data))
	}

	want := checksum(data[2 : totalLen-1])
	if got := data[totalLen-1]; got != want {
		return Packet{}, 0, fmt.Errorf("%w: checksum 0x%02X, want 0x%02X", ErrInvalidPacket, got, want)
	}

	pkt := Packet{
		ID:    data[2],
		Error: StatusError(data[4]),
	}
	if n := length - 2; n > 0 {
		pkt.Parameters = make([]byte, n)
		copy(pkt.Parameters, data[5:5+n])
	}

	return pkt, headerIdx + totalLen, nil
}

// StatusLength returns the wire length of a status packet carrying n data bytes.
func (Protocol) StatusLength(n int) int {
	return statusOverhead + n
}

// PingPacket creates a ping instruction packet.
func (p Protocol) PingPacket(id byte) []byte {
	return p.Encode(Packet{ID: id, Instruction: InstPing})
}

// ReadPacket creates a read instruction packet.
func (p Protocol) ReadPacket(id, address, length byte) []byte {
	return p.Encode(Packet{
		ID:          id,
		Instruction: InstRead,
		Parameters:  []byte{address, length},
	})
}

// WritePacket creates a write instruction packet.
func (p Protocol) WritePacket(id, address byte, data []byte) []byte {
	params := make([]byte, 1+len(data))
	params[0] = address
	copy(params[1:], data)

	return p.Encode(Packet{
		ID:          id,
		Instruction: InstWrite,
		Parameters:  params,
	})
}

// SyncWritePacket creates a sync write packet writing data[i] to ids[i].
// Device order on the wire follows ids.
func (p Protocol) SyncWritePacket(address, dataLen byte, ids []byte, data [][]byte) ([]byte, error) {
	if len(ids) != len(data) {
		return nil, fmt.Errorf("sync write: %d ids but %d values", len(ids), len(data))
	}
	if len(ids) == 0 {
		return nil, errors.New("sync write: no devices")
	}

	// address(1) + dataLen(1) + [id(1) + data(n)]...
	params := make([]byte, 0, 2+len(ids)*(1+int(dataLen)))
	params = append(params, address, dataLen)
	for i, id := range ids {
		if len(data[i]) != int(dataLen) {
			return nil, fmt.Errorf("sync write: device %d has %d bytes, want %d", id, len(data[i]), dataLen)
		}
		params = append(params, id)
		params = append(params, data[i]...)
	}
	if len(params)+2 > 0xFF {
		return nil, fmt.Errorf("%w: packet length %d", ErrTooManyDevices, len(params)+2)
	}

	return p.Encode(Packet{
		ID:          BroadcastID,
		Instruction: InstSyncWrite,
		Parameters:  params,
	}), nil
}

func findHeader(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] == headerByte1 && data[i+1] == headerByte2 {
			return i
		}
	}
	return -1
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum
}
