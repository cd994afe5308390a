package pe

import "math"

// EntropyCalculator accumulates a byte histogram; Sum returns the Shannon
// entropy in bits per byte, in [0, 8].
type EntropyCalculator struct {
	size        int
	frequencies [256]uint64
}

func (e *EntropyCalculator) Write(p []byte) (n int, err error) {
	e.size += len(p)
	for _, v := range p {
		e.frequencies[v]++
	}
	return len(p), err
}

func (e *EntropyCalculator) Sum() (entropy float64) {
	if e.size == 0 {
		return
	}

	for _, p := range e.frequencies {
		if p > 0 {
			freq := float64(p) / float64(e.size)
			entropy += freq * math.Log2(freq)
		}
	}
	if entropy == 0 {
		// Negating a zero sum would give -0.
		return 0
	}
	return -entropy
}

func Entropy(data []byte) float64 {
	var e EntropyCalculator
	_, _ = e.Write(data)
	return e.Sum()
}
