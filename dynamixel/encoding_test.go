package dynamixel

import (
	"math"
	"testing"
)

func TestEncoding_Scale(t *testing.T) {
	tests := []struct {
		name string
		enc  Encoding
		want float64
	}{
		{"full turn 4096", FullTurn(4096), 2048},
		{"mx28", EncodingFor(&ModelMX28), 2048},
		{"half turn 2048", NewEncoding(2048, math.Pi), 2048},
		{"ax12a", EncodingFor(&ModelAX12A), 614.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.enc.Scale-tt.want) > 1e-9 {
				t.Errorf("Scale: got %v, want %v", tt.enc.Scale, tt.want)
			}
		})
	}
}

func TestEncoding_Encode(t *testing.T) {
	enc := FullTurn(4096)

	tests := []struct {
		angle  float64
		offset int
		want   int
	}{
		{0, 0, 0},
		{0, 2048, 2048},
		{math.Pi, 0, 2048},
		{-math.Pi / 2, 2048, 1024},
		{math.Pi / 2, 2048, 3072},
		{enc.Step() * 0.6, 0, 1}, // rounds to nearest
		{enc.Step() * 0.4, 0, 0},
	}

	for _, tt := range tests {
		if got := enc.Encode(tt.angle, tt.offset); got != tt.want {
			t.Errorf("Encode(%v, %d): got %d, want %d", tt.angle, tt.offset, got, tt.want)
		}
	}
}

func TestEncoding_Decode(t *testing.T) {
	enc := FullTurn(4096)

	if got := enc.Decode(2048, 2048); got != 0 {
		t.Errorf("Decode at offset: got %v, want 0", got)
	}
	if got := enc.Decode(3072, 2048); math.Abs(got-math.Pi/2) > 1e-12 {
		t.Errorf("Decode(3072, 2048): got %v, want π/2", got)
	}
	if got := enc.Decode(0, 0); got != 0 {
		t.Errorf("Decode(0, 0): got %v, want 0", got)
	}
}

func TestEncoding_RoundTrip(t *testing.T) {
	encodings := map[string]Encoding{
		"mx28":  EncodingFor(&ModelMX28),
		"ax12a": EncodingFor(&ModelAX12A),
	}
	offsets := []int{0, 512, 2048}

	for name, enc := range encodings {
		tolerance := enc.Step()/2 + 1e-12
		for _, offset := range offsets {
			for angle := -math.Pi; angle <= math.Pi; angle += 0.0137 {
				back := enc.Decode(enc.Encode(angle, offset), offset)
				if diff := math.Abs(back - angle); diff > tolerance {
					t.Fatalf("%s offset %d: angle %v came back as %v (diff %v > %v)",
						name, offset, angle, back, diff, tolerance)
				}
			}
		}
	}
}

func TestEncoding_Step(t *testing.T) {
	enc := FullTurn(4096)
	if got, want := enc.Step(), 2*math.Pi/4096; math.Abs(got-want) > 1e-15 {
		t.Errorf("Step: got %v, want %v", got, want)
	}
}
