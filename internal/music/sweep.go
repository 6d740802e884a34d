package music

// Sweep produces the interpolated intermediate values of a controller
// sweep, endpoints included. Values move linearly from one end to the
// other; a step count below two collapses to just the target value.
func Sweep(from, to uint8, steps int) []uint8 {
	if steps < 2 {
		return []uint8{to}
	}
	out := make([]uint8, steps)
	span := int(to) - int(from)
	for i := 0; i < steps; i++ {
		out[i] = uint8(int(from) + span*i/(steps-1))
	}
	return out
}
