package dynamixel

import (
	"slices"
	"testing"
)

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i + 1
	}
	return s
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{"empty", 0, 20, nil},
		{"single", 1, 20, []int{1}},
		{"under limit", 19, 20, []int{19}},
		{"exact limit", 20, 20, []int{20}},
		{"one over", 21, 20, []int{20, 1}},
		{"two full", 40, 20, []int{20, 20}},
		{"remainder", 45, 20, []int{20, 20, 5}},
		{"size one", 3, 1, []int{1, 1, 1}},
		{"zero size", 5, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := seq(tt.n)
			values := make([]int, tt.n)
			for i := range values {
				values[i] = ids[i] * 10
			}

			batches := chunk(ids, values, tt.size)

			var sizes []int
			var gotIDs []int
			for _, b := range batches {
				if len(b.ids) != len(b.values) {
					t.Fatalf("batch has %d ids and %d values", len(b.ids), len(b.values))
				}
				for i, id := range b.ids {
					if b.values[i] != id*10 {
						t.Errorf("value for id %d: got %d, want %d", id, b.values[i], id*10)
					}
				}
				sizes = append(sizes, len(b.ids))
				gotIDs = append(gotIDs, b.ids...)
			}

			if !slices.Equal(sizes, tt.sizes) {
				t.Errorf("batch sizes: got %v, want %v", sizes, tt.sizes)
			}
			if tt.size > 0 && !slices.Equal(gotIDs, ids) {
				t.Errorf("concatenated ids: got %v, want %v", gotIDs, ids)
			}
		})
	}
}

func TestChunkIsolation(t *testing.T) {
	ids := seq(4)
	values := []int{1, 2, 3, 4}

	batches := chunk(ids, values, 2)

	// Appending to one batch must not overwrite the next.
	_ = append(batches[0].ids, 99)
	if batches[1].ids[0] != 3 {
		t.Errorf("second batch changed: got %v", batches[1].ids)
	}
}

func TestFilled(t *testing.T) {
	if got := filled(3, 1); !slices.Equal(got, []int{1, 1, 1}) {
		t.Errorf("filled(3, 1): got %v", got)
	}
	if got := filled(0, 1); len(got) != 0 {
		t.Errorf("filled(0, 1): got %v", got)
	}
}
