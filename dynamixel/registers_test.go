package dynamixel

import (
	"slices"
	"testing"
)

func TestGetModel(t *testing.T) {
	m, ok := GetModel("mx28")
	if !ok {
		t.Fatal("mx28 not registered")
	}
	if m.Resolution != 4096 || m.MaxTorque != 1023 {
		t.Errorf("mx28: got resolution %d, max torque %d", m.Resolution, m.MaxTorque)
	}

	if _, ok := GetModel("xl320"); ok {
		t.Error("unexpected model xl320")
	}
}

func TestGetModelByNumber(t *testing.T) {
	tests := []struct {
		number int
		name   string
	}{
		{12, "ax12a"},
		{29, "mx28"},
		{310, "mx64"},
		{320, "mx106"},
	}

	for _, tt := range tests {
		m, ok := GetModelByNumber(tt.number)
		if !ok {
			t.Errorf("model number %d not found", tt.number)
			continue
		}
		if m.Name != tt.name {
			t.Errorf("model number %d: got %s, want %s", tt.number, m.Name, tt.name)
		}
	}

	if _, ok := GetModelByNumber(9999); ok {
		t.Error("unexpected model for number 9999")
	}
}

func TestListModels(t *testing.T) {
	names := ListModels()
	for _, want := range []string{"ax12a", "mx106", "mx28", "mx64"} {
		if !slices.Contains(names, want) {
			t.Errorf("ListModels missing %s: %v", want, names)
		}
	}
	if !slices.IsSorted(names) {
		t.Errorf("ListModels not sorted: %v", names)
	}
}

func TestRegisterWidths(t *testing.T) {
	tests := []struct {
		name string
		reg  Register
		addr byte
		size int
	}{
		{"torque enable", RegTorqueEnable, 0x18, 1},
		{"goal position", RegGoalPosition, 0x1E, 2},
		{"torque limit", RegTorqueLimit, 0x22, 2},
		{"present position", RegPresentPosition, 0x24, 2},
	}

	for _, tt := range tests {
		if tt.reg.Address != tt.addr || tt.reg.Size != tt.size {
			t.Errorf("%s: got 0x%02X/%d, want 0x%02X/%d", tt.name, tt.reg.Address, tt.reg.Size, tt.addr, tt.size)
		}
	}
}
