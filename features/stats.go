package features

import "golang.org/x/exp/constraints"

type number interface {
	constraints.Integer | constraints.Float
}

type summary[T number] struct {
	Mean     float64
	Min, Max T
}

// summarize returns the zero summary for an empty slice.
func summarize[T number](values []T) (s summary[T]) {
	if len(values) == 0 {
		return s
	}
	s.Min, s.Max = values[0], values[0]
	var sum float64
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += float64(v)
	}
	s.Mean = sum / float64(len(values))
	// rounding in the sum can push the mean just outside [Min, Max]
	if lo := float64(s.Min); s.Mean < lo {
		s.Mean = lo
	}
	if hi := float64(s.Max); s.Mean > hi {
		s.Mean = hi
	}
	return s
}
