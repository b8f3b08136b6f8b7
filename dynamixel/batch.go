package dynamixel

// batch is one sync write packet's worth of devices.
type batch struct {
	ids    []int
	values []int
}

// chunk splits parallel id/value slices into consecutive batches of at most
// size devices, preserving order. The batches share the input arrays.
func chunk(ids, values []int, size int) []batch {
	if len(ids) == 0 || size <= 0 {
		return nil
	}

	batches := make([]batch, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, batch{
			ids:    ids[start:end:end],
			values: values[start:end:end],
		})
	}
	return batches
}

// filled returns n copies of v.
func filled(n, v int) []int {
	values := make([]int, n)
	for i := range values {
		values[i] = v
	}
	return values
}
