package dynamixel

import (
	"math"
	"sort"
)

// Register is an entry of the protocol 1.0 control table.
type Register struct {
	Address  byte
	Size     int // 1 or 2 bytes
	ReadOnly bool
}

// Control table shared by the AX and MX series.
var (
	RegModelNumber  = Register{Address: 0x00, Size: 2, ReadOnly: true}
	RegID           = Register{Address: 0x03, Size: 1}
	RegBaudRate     = Register{Address: 0x04, Size: 1}
	RegMaxTorque    = Register{Address: 0x0E, Size: 2} // EEPROM default for TorqueLimit
	RegStatusReturn = Register{Address: 0x10, Size: 1}

	// RAM registers (volatile)
	RegTorqueEnable = Register{Address: 0x18, Size: 1}
	RegGoalPosition = Register{Address: 0x1E, Size: 2}
	RegMovingSpeed  = Register{Address: 0x20, Size: 2}
	RegTorqueLimit  = Register{Address: 0x22, Size: 2}

	// Feedback registers (read-only)
	RegPresentPosition = Register{Address: 0x24, Size: 2, ReadOnly: true}
	RegPresentSpeed    = Register{Address: 0x26, Size: 2, ReadOnly: true}
	RegPresentLoad     = Register{Address: 0x28, Size: 2, ReadOnly: true}
)

// Model describes the position and torque ranges of an actuator model.
type Model struct {
	Name        string
	Number      int     // Model number held in RegModelNumber
	Resolution  int     // Position steps covering Span
	Span        float64 // Travel in radians covered by Resolution steps
	MaxPosition int
	MaxTorque   int // Largest legal TorqueLimit value
}

// Predefined actuator models.
var (
	ModelAX12A = Model{
		Name:        "ax12a",
		Number:      12,
		Resolution:  1024,
		Span:        300 * math.Pi / 180,
		MaxPosition: 1023,
		MaxTorque:   1023,
	}

	ModelMX28 = Model{
		Name:        "mx28",
		Number:      29,
		Resolution:  4096,
		Span:        2 * math.Pi,
		MaxPosition: 4095,
		MaxTorque:   1023,
	}

	ModelMX64 = Model{
		Name:        "mx64",
		Number:      310,
		Resolution:  4096,
		Span:        2 * math.Pi,
		MaxPosition: 4095,
		MaxTorque:   1023,
	}

	ModelMX106 = Model{
		Name:        "mx106",
		Number:      320,
		Resolution:  4096,
		Span:        2 * math.Pi,
		MaxPosition: 4095,
		MaxTorque:   1023,
	}
)

// DefaultModel is used by actuators constructed without WithModel.
var DefaultModel = &ModelMX28

var modelRegistry = map[string]*Model{}

func init() {
	RegisterModel(&ModelAX12A)
	RegisterModel(&ModelMX28)
	RegisterModel(&ModelMX64)
	RegisterModel(&ModelMX106)
}

// RegisterModel adds a model to the registry, replacing any of the same name.
func RegisterModel(m *Model) {
	modelRegistry[m.Name] = m
}

// GetModel returns a model by name.
func GetModel(name string) (*Model, bool) {
	m, ok := modelRegistry[name]
	return m, ok
}

// GetModelByNumber returns the model whose RegModelNumber value is number.
func GetModelByNumber(number int) (*Model, bool) {
	for _, m := range modelRegistry {
		if m.Number == number {
			return m, true
		}
	}
	return nil, false
}

// ListModels returns all registered model names, sorted.
func ListModels() []string {
	names := make([]string, 0, len(modelRegistry))
	for name := range modelRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
