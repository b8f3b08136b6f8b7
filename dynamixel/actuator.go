package dynamixel

import "context"

// Actuator is one servo on a bus. It holds the commanded and the last
// observed position, converting between radians and register values.
//
// An Actuator is usable for I/O once attached to a Bus; it sends through
// that bus's channel but never owns or closes it.
type Actuator struct {
	id    int
	model *Model
	enc   Encoding
	bus   *Bus

	centerOffset int
	maxTorque    int
	torqueSet    bool

	goalAngle float64
	goalValue int

	currentAngle float64
	currentValue int
	hasReading   bool
}

// ActuatorOption configures an Actuator at construction.
type ActuatorOption func(*Actuator)

// WithModel sets the actuator model. The encoding follows the model unless
// WithEncoding is also given.
func WithModel(m *Model) ActuatorOption {
	return func(a *Actuator) {
		if m != nil {
			a.model = m
		}
	}
}

// WithEncoding overrides the model's angle encoding.
func WithEncoding(e Encoding) ActuatorOption {
	return func(a *Actuator) {
		a.enc = e
	}
}

// WithCenterOffset sets the register value of the mechanical zero.
func WithCenterOffset(offset int) ActuatorOption {
	return func(a *Actuator) {
		a.centerOffset = offset
	}
}

// WithMaxTorque sets the initial torque limit, clamped to the model range.
func WithMaxTorque(v int) ActuatorOption {
	return func(a *Actuator) {
		a.maxTorque = v
		a.torqueSet = true
	}
}

// NewActuator creates an unattached actuator. Without options it is an
// MX-28 with no center offset and the model's full torque.
func NewActuator(id int, opts ...ActuatorOption) *Actuator {
	a := &Actuator{id: id, model: DefaultModel}
	for _, opt := range opts {
		opt(a)
	}
	if a.enc.Scale == 0 {
		a.enc = EncodingFor(a.model)
	}
	if a.torqueSet {
		a.SetMaxTorque(a.maxTorque)
	} else {
		a.maxTorque = a.model.MaxTorque
	}
	a.goalValue = a.enc.Encode(0, a.centerOffset)
	return a
}

// ID returns the device address.
func (a *Actuator) ID() int { return a.id }

// Model returns the actuator model.
func (a *Actuator) Model() *Model { return a.model }

// Encoding returns the angle encoding in use.
func (a *Actuator) Encoding() Encoding { return a.enc }

// Attached reports whether the actuator belongs to a bus.
func (a *Actuator) Attached() bool { return a.bus != nil }

// CenterOffset returns the calibration offset.
func (a *Actuator) CenterOffset() int { return a.centerOffset }

// SetCenterOffset recalibrates the mechanical zero. Stored goal and current
// values keep the offset they were computed with.
func (a *Actuator) SetCenterOffset(offset int) {
	a.centerOffset = offset
}

// GoalAngle returns the commanded angle in radians.
func (a *Actuator) GoalAngle() float64 { return a.goalAngle }

// GoalValue returns the commanded register value.
func (a *Actuator) GoalValue() int { return a.goalValue }

// SetGoalAngle sets the commanded angle without sending it.
func (a *Actuator) SetGoalAngle(angle float64) {
	a.goalAngle = angle
	a.goalValue = a.enc.Encode(angle, a.centerOffset)
}

// SendGoalAngle writes the commanded position to this device alone.
func (a *Actuator) SendGoalAngle(ctx context.Context) error {
	return a.write(ctx, RegGoalPosition, a.goalValue)
}

// SendGoalAngleTo sets the commanded angle and writes it.
func (a *Actuator) SendGoalAngleTo(ctx context.Context, angle float64) error {
	a.SetGoalAngle(angle)
	return a.SendGoalAngle(ctx)
}

// ReadCurrentAngle reads the present position, stores it and returns it in
// radians. On error the previous reading is kept.
func (a *Actuator) ReadCurrentAngle(ctx context.Context) (float64, error) {
	ch, err := a.channel()
	if err != nil {
		return 0, err
	}

	raw, err := ch.ReadUint16(ctx, a.id, RegPresentPosition.Address)
	if err != nil {
		return 0, &TransportError{Op: "read", ID: a.id, Address: RegPresentPosition.Address, Err: err}
	}

	a.currentValue = raw - a.centerOffset
	a.currentAngle = a.enc.Decode(a.currentValue, 0)
	a.hasReading = true
	return a.currentAngle, nil
}

// Angle returns the last angle read without any I/O. ok is false until the
// first successful read; the angle is then 0 and is not a reading.
func (a *Actuator) Angle() (angle float64, ok bool) {
	return a.currentAngle, a.hasReading
}

// CurrentValue returns the last position read, with the center offset removed.
func (a *Actuator) CurrentValue() int { return a.currentValue }

// MaxTorque returns the stored torque limit.
func (a *Actuator) MaxTorque() int { return a.maxTorque }

// SetMaxTorque stores a torque limit clamped to [0, model.MaxTorque].
func (a *Actuator) SetMaxTorque(v int) {
	a.maxTorque = min(max(v, 0), a.model.MaxTorque)
}

// SendMaxTorque writes the stored torque limit to this device alone.
func (a *Actuator) SendMaxTorque(ctx context.Context) error {
	return a.write(ctx, RegTorqueLimit, a.maxTorque)
}

// SendMaxTorqueValue sets the torque limit and writes it.
func (a *Actuator) SendMaxTorqueValue(ctx context.Context, v int) error {
	a.SetMaxTorque(v)
	return a.SendMaxTorque(ctx)
}

// EnableTorque turns the motor output on.
func (a *Actuator) EnableTorque(ctx context.Context) error {
	return a.write(ctx, RegTorqueEnable, 1)
}

// DisableTorque turns the motor output off.
func (a *Actuator) DisableTorque(ctx context.Context) error {
	return a.write(ctx, RegTorqueEnable, 0)
}

func (a *Actuator) channel() (Channel, error) {
	if a.bus == nil {
		return nil, ErrNotAttached
	}
	if a.bus.closed {
		return nil, ErrChannelClosed
	}
	return a.bus.channel, nil
}

func (a *Actuator) write(ctx context.Context, reg Register, value int) error {
	ch, err := a.channel()
	if err != nil {
		return err
	}

	op := "write_word"
	if reg.Size == 1 {
		op = "write_byte"
		err = ch.WriteUint8(ctx, a.id, reg.Address, value)
	} else {
		err = ch.WriteUint16(ctx, a.id, reg.Address, value)
	}
	if err != nil {
		return &TransportError{Op: op, ID: a.id, Address: reg.Address, Err: err}
	}
	return nil
}
