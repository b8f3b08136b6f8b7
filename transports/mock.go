package transports

import (
	"io"
	"time"
)

// MockTransport is an in-memory Transport for tests.
//
// Every Write records the packet and, if Replies is non-empty, queues the
// next reply for reading. A nil reply leaves the line silent.
type MockTransport struct {
	ReadData  []byte
	ReadErr   error
	WriteData []byte   // All bytes written, concatenated
	Packets   [][]byte // Each Write call separately
	WriteErr  error
	Replies   [][]byte

	Closed      bool
	Flushes     int
	ReadTimeout time.Duration

	// ReadFunc allows custom read behavior for complex tests
	ReadFunc func(p []byte) (int, error)
}

func (m *MockTransport) Read(p []byte) (int, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(p)
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (m *MockTransport) Write(p []byte) (int, error) {
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.WriteData = append(m.WriteData, p...)
	m.Packets = append(m.Packets, append([]byte(nil), p...))

	if len(m.Replies) > 0 {
		m.ReadData = append(m.ReadData, m.Replies[0]...)
		m.Replies = m.Replies[1:]
	}
	return len(p), nil
}

func (m *MockTransport) Close() error {
	m.Closed = true
	return nil
}

func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.ReadTimeout = timeout
	return nil
}

// Flush counts calls but keeps ReadData, which tests preload before writing.
func (m *MockTransport) Flush() error {
	m.Flushes++
	return nil
}

// LastPacket returns the most recent Write, or nil.
func (m *MockTransport) LastPacket() []byte {
	if len(m.Packets) == 0 {
		return nil
	}
	return m.Packets[len(m.Packets)-1]
}
