// Package dxltest provides an in-memory channel for exercising buses and
// actuators without hardware.
package dxltest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrClosed is returned by a FakeChannel after Close.
var ErrClosed = errors.New("fake channel closed")

// Call records one channel operation.
type Call struct {
	Op      string // "read", "write_word", "write_byte", "sync_write_word", "sync_write_byte"
	ID      int    // single-device calls
	Address byte
	Value   int   // single-device writes
	IDs     []int // sync writes
	Values  []int // sync writes
}

// FakeChannel is a Channel backed by a register map. Writes update the map
// and reads are served from it, so a value written to one address can be
// preloaded at another to simulate a device reaching its goal.
type FakeChannel struct {
	mu sync.Mutex

	Calls     []Call
	Registers map[Key]int

	// ReadErrs fails every read of the given device.
	ReadErrs map[int]error

	// SyncErr, if set, is consulted before each sync write; a non-nil
	// result fails that call. n counts sync writes from zero.
	SyncErr func(n int, c Call) error

	// MaxSyncDevices rejects larger sync writes when positive.
	MaxSyncDevices int

	syncCalls  int
	CloseCalls int
}

// Key addresses one register of one device.
type Key struct {
	ID      int
	Address byte
}

// NewFakeChannel returns an empty FakeChannel.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{
		Registers: make(map[Key]int),
		ReadErrs:  make(map[int]error),
	}
}

// Set preloads a register value.
func (f *FakeChannel) Set(id int, address byte, value int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Registers[Key{id, address}] = value
}

// Get returns a register value and whether it was ever set.
func (f *FakeChannel) Get(id int, address byte) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Registers[Key{id, address}]
	return v, ok
}

// SyncCalls returns the recorded sync writes in order.
func (f *FakeChannel) SyncCalls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var calls []Call
	for _, c := range f.Calls {
		if strings.HasPrefix(c.Op, "sync_") {
			calls = append(calls, c)
		}
	}
	return calls
}

func (f *FakeChannel) ReadUint16(ctx context.Context, id int, address byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CloseCalls > 0 {
		return 0, ErrClosed
	}
	f.Calls = append(f.Calls, Call{Op: "read", ID: id, Address: address})
	if err := f.ReadErrs[id]; err != nil {
		return 0, err
	}
	return f.Registers[Key{id, address}], nil
}

func (f *FakeChannel) WriteUint16(ctx context.Context, id int, address byte, value int) error {
	return f.write("write_word", id, address, value)
}

func (f *FakeChannel) WriteUint8(ctx context.Context, id int, address byte, value int) error {
	return f.write("write_byte", id, address, value)
}

func (f *FakeChannel) SyncWriteUint16(ctx context.Context, address byte, ids, values []int) error {
	return f.syncWrite("sync_write_word", address, ids, values)
}

func (f *FakeChannel) SyncWriteUint8(ctx context.Context, address byte, ids, values []int) error {
	return f.syncWrite("sync_write_byte", address, ids, values)
}

func (f *FakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCalls++
	return nil
}

func (f *FakeChannel) write(op string, id int, address byte, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CloseCalls > 0 {
		return ErrClosed
	}
	f.Calls = append(f.Calls, Call{Op: op, ID: id, Address: address, Value: value})
	f.Registers[Key{id, address}] = value
	return nil
}

func (f *FakeChannel) syncWrite(op string, address byte, ids, values []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CloseCalls > 0 {
		return ErrClosed
	}
	if len(ids) != len(values) {
		return fmt.Errorf("%d ids but %d values", len(ids), len(values))
	}
	if f.MaxSyncDevices > 0 && len(ids) > f.MaxSyncDevices {
		return fmt.Errorf("%d devices exceed limit %d", len(ids), f.MaxSyncDevices)
	}

	c := Call{Op: op, Address: address, IDs: slices.Clone(ids), Values: slices.Clone(values)}
	n := f.syncCalls
	f.syncCalls++
	if f.SyncErr != nil {
		if err := f.SyncErr(n, c); err != nil {
			return err
		}
	}

	f.Calls = append(f.Calls, c)
	for i, id := range ids {
		f.Registers[Key{id, address}] = values[i]
	}
	return nil
}
