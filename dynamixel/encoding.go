package dynamixel

import "math"

// Encoding maps angles in radians to position register values.
//
// Scale is the number of register steps per π radians. A 4096 step per
// turn device has Scale 2048, which is both the "π maps to 2048" and the
// "2π maps to 4096" convention. The center offset is supplied per call so
// one Encoding can serve every actuator of a model.
type Encoding struct {
	Scale float64
}

// NewEncoding returns the encoding for a device whose steps cover span radians.
func NewEncoding(steps int, span float64) Encoding {
	return Encoding{Scale: float64(steps) * math.Pi / span}
}

// FullTurn returns the encoding for a device with steps per full revolution.
func FullTurn(steps int) Encoding {
	return NewEncoding(steps, 2*math.Pi)
}

// EncodingFor returns the encoding of a model.
func EncodingFor(m *Model) Encoding {
	return NewEncoding(m.Resolution, m.Span)
}

// Encode converts an angle to a register value re-zeroed by offset.
func (e Encoding) Encode(angle float64, offset int) int {
	return int(math.Round(angle*e.Scale/math.Pi)) + offset
}

// Decode converts a register value back to an angle.
func (e Encoding) Decode(value, offset int) float64 {
	return math.Pi * float64(value-offset) / e.Scale
}

// Step returns the angle of one register step.
func (e Encoding) Step() float64 {
	return math.Pi / e.Scale
}
