package dynamixel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Bus owns one channel and the actuators multiplexed on it. Bus-wide writes
// go out as sync write packets of at most MaxSyncDevices devices each, in
// attachment order.
//
// A Bus is not safe for concurrent use. Drive each bus from one goroutine;
// distinct buses share nothing and may run in parallel.
type Bus struct {
	channel Channel
	maxSync int
	logger  *slog.Logger
	port    string

	actuators []*Actuator
	ids       []int
	byID      map[int]*Actuator
	count     int

	closed bool
}

// BusConfig holds configuration for opening a Bus.
type BusConfig struct {
	// Channel is an already open channel. The bus takes ownership and
	// closes it. If nil, Port is opened with Opener.
	Channel Channel

	// Opener opens Port. Default opens a serial PortChannel.
	Opener Opener

	// Port is the serial port path (e.g., "/dev/ttyUSB0").
	Port string

	// BaudNum selects the line rate, 2 Mbps / (BaudNum + 1). Zero is
	// 2 Mbps; the usual setting is DefaultBaudNum.
	BaudNum int

	// MaxSyncDevices is the most devices per sync write. Default is 20.
	MaxSyncDevices int

	// Timeout and MinCommandGap configure the default serial opener.
	Timeout       time.Duration
	MinCommandGap time.Duration

	// Logger receives debug and warning records. Default discards.
	Logger *slog.Logger
}

// Open opens the bus channel. It does not retry; a failure returns an
// *OpenError matching ErrChannelOpen.
func Open(cfg BusConfig) (*Bus, error) {
	if cfg.MaxSyncDevices == 0 {
		cfg.MaxSyncDevices = MaxSyncDevices
	}
	if cfg.MaxSyncDevices < 0 {
		return nil, &OpenError{Port: cfg.Port, BaudNum: cfg.BaudNum,
			Err: fmt.Errorf("invalid sync write limit %d", cfg.MaxSyncDevices)}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	ch := cfg.Channel
	if ch == nil {
		if cfg.Port == "" {
			return nil, &OpenError{Err: errors.New("either Channel or Port must be specified")}
		}
		if cfg.BaudNum < 0 || cfg.BaudNum > 254 {
			return nil, &OpenError{Port: cfg.Port, BaudNum: cfg.BaudNum,
				Err: fmt.Errorf("baud number %d out of range 0-254", cfg.BaudNum)}
		}

		opener := cfg.Opener
		if opener == nil {
			opener = func(port string, baudNum int) (Channel, error) {
				return NewPortChannel(PortConfig{
					Port:           port,
					BaudNum:        baudNum,
					Timeout:        cfg.Timeout,
					MinCommandGap:  cfg.MinCommandGap,
					MaxSyncDevices: cfg.MaxSyncDevices,
				})
			}
		}

		var err error
		ch, err = opener(cfg.Port, cfg.BaudNum)
		if err != nil {
			return nil, &OpenError{Port: cfg.Port, BaudNum: cfg.BaudNum, Err: err}
		}
		cfg.Logger.Info("channel opened", "port", cfg.Port, "baud", BaudRate(cfg.BaudNum))
	}

	return &Bus{
		channel: ch,
		maxSync: cfg.MaxSyncDevices,
		logger:  cfg.Logger,
		port:    cfg.Port,
		byID:    make(map[int]*Actuator),
	}, nil
}

// Close releases the channel. Later calls return nil; every other
// operation fails with ErrChannelClosed.
func (b *Bus) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.logger.Info("channel closed", "port", b.port)
	return b.channel.Close()
}

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool { return b.closed }

// Channel returns the bus channel.
func (b *Bus) Channel() Channel { return b.channel }

// MaxSyncDevices returns the sync write device limit.
func (b *Bus) MaxSyncDevices() int { return b.maxSync }

// Count returns the number of attached actuators.
func (b *Bus) Count() int { return b.count }

// IDs returns the attached actuator IDs in attachment order.
func (b *Bus) IDs() []int {
	return append([]int(nil), b.ids...)
}

// Actuators returns the attached actuators in attachment order.
func (b *Bus) Actuators() []*Actuator {
	return append([]*Actuator(nil), b.actuators...)
}

// Actuator returns the attached actuator with the given ID, or nil.
func (b *Bus) Actuator(id int) *Actuator {
	return b.byID[id]
}

// Attach adds an actuator and hands it this bus's channel. A rejected
// actuator leaves the bus unchanged.
func (b *Bus) Attach(a *Actuator) error {
	if b.closed {
		return ErrChannelClosed
	}
	if a == nil {
		return errors.New("nil actuator")
	}
	if err := validateID(a.id); err != nil {
		return err
	}
	if _, dup := b.byID[a.id]; dup {
		return fmt.Errorf("%w: %d", ErrDuplicateID, a.id)
	}
	if a.bus != nil {
		return fmt.Errorf("%w: actuator %d", ErrAlreadyAttached, a.id)
	}

	a.bus = b
	b.actuators = append(b.actuators, a)
	b.ids = append(b.ids, a.id)
	b.byID[a.id] = a
	b.count++
	return nil
}

// AttachMany attaches actuators in order and stops at the first rejection.
// Actuators before the rejected one stay attached; the returned
// *AttachError names the position that failed.
func (b *Bus) AttachMany(actuators ...*Actuator) error {
	for i, a := range actuators {
		if err := b.Attach(a); err != nil {
			id := -1
			if a != nil {
				id = a.id
			}
			return &AttachError{Index: i, ID: id, Err: err}
		}
	}
	return nil
}

// SendGoalAngles writes every actuator's goal value to its goal position.
func (b *Bus) SendGoalAngles(ctx context.Context) error {
	values := make([]int, len(b.actuators))
	for i, a := range b.actuators {
		values[i] = a.goalValue
	}
	return b.syncWrite(ctx, "send goal angles", RegGoalPosition, values)
}

// SendMaxTorques writes every actuator's stored torque limit.
func (b *Bus) SendMaxTorques(ctx context.Context) error {
	values := make([]int, len(b.actuators))
	for i, a := range b.actuators {
		values[i] = a.maxTorque
	}
	return b.syncWrite(ctx, "send max torques", RegTorqueLimit, values)
}

// SendMaxTorquesValue sets every actuator's torque limit to v, clamped per
// model, then writes them.
func (b *Bus) SendMaxTorquesValue(ctx context.Context, v int) error {
	if b.closed {
		return ErrChannelClosed
	}
	for _, a := range b.actuators {
		a.SetMaxTorque(v)
	}
	return b.SendMaxTorques(ctx)
}

// EnableTorques turns on every actuator's motor output.
func (b *Bus) EnableTorques(ctx context.Context) error {
	return b.syncWrite(ctx, "enable torques", RegTorqueEnable, filled(b.count, 1))
}

// DisableTorques turns off every actuator's motor output.
func (b *Bus) DisableTorques(ctx context.Context) error {
	return b.syncWrite(ctx, "disable torques", RegTorqueEnable, filled(b.count, 0))
}

// ReceiveCurrentAngles reads each actuator's position one device at a time,
// in attachment order. The protocol has no synchronized read. A failed read
// is recorded in that actuator's result and the remaining actuators are
// still read.
func (b *Bus) ReceiveCurrentAngles(ctx context.Context) ReadResults {
	results := make(ReadResults, len(b.actuators))
	for i, a := range b.actuators {
		angle, err := a.ReadCurrentAngle(ctx)
		results[i] = ReadResult{ID: a.id, Err: err}
		if err != nil {
			b.logger.Warn("position read failed", "id", a.id, "err", err)
			continue
		}
		results[i].Angle = angle
		results[i].Value = a.currentValue
	}
	return results
}

// syncWrite sends values to the attached actuators in chunks of at most
// maxSync devices, strictly in order. The first failing chunk stops the
// write; earlier chunks have already taken effect.
func (b *Bus) syncWrite(ctx context.Context, op string, reg Register, values []int) error {
	if b.closed {
		return ErrChannelClosed
	}

	batches := chunk(b.ids, values, b.maxSync)
	for i, bt := range batches {
		var err error
		if reg.Size == 1 {
			err = b.channel.SyncWriteUint8(ctx, reg.Address, bt.ids, bt.values)
		} else {
			err = b.channel.SyncWriteUint16(ctx, reg.Address, bt.ids, bt.values)
		}
		if err != nil {
			return &BatchError{
				Op:      op,
				Address: reg.Address,
				Chunk:   i,
				Chunks:  len(batches),
				IDs:     append([]int(nil), bt.ids...),
				Err:     err,
			}
		}
		b.logger.Debug("sync write", "op", op, "address", reg.Address,
			"chunk", i+1, "chunks", len(batches), "devices", len(bt.ids))
	}
	return nil
}

// ReadResult is the outcome of reading one actuator's position.
type ReadResult struct {
	ID    int
	Angle float64 // radians; zero when Err is set
	Value int     // register value with the center offset removed
	Err   error
}

// ReadResults holds one result per actuator, in attachment order.
type ReadResults []ReadResult

// Err joins the errors of all failed reads, or returns nil.
func (r ReadResults) Err() error {
	var errs []error
	for _, res := range r {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Failed returns the results that carry an error.
func (r ReadResults) Failed() ReadResults {
	var failed ReadResults
	for _, res := range r {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}
