package pe

import (
	"bytes"
	"math"
	"testing"
)

func TestEntropy(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	tests := []struct {
		name string
		data []byte
		want float64
	}{
		{name: "empty", data: nil, want: 0},
		{name: "single byte", data: []byte{0x41}, want: 0},
		{name: "repeated byte", data: bytes.Repeat([]byte{0xcc}, 4096), want: 0},
		{name: "two values", data: []byte{0, 1, 0, 1}, want: 1},
		{name: "all byte values", data: all, want: 8},
		{name: "all byte values twice", data: append(all, all...), want: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Entropy(tt.data)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Entropy() = %v, want %v", got, tt.want)
			}
			if math.Signbit(got) {
				t.Errorf("Entropy() = %v, want a non-negative value", got)
			}
		})
	}
}

func TestEntropyCalculator_Streaming(t *testing.T) {
	data := []byte("The quick brown fox jumps over the lazy dog")

	var e EntropyCalculator
	for i := 0; i < len(data); i += 5 {
		end := i + 5
		if end > len(data) {
			end = len(data)
		}
		_, _ = e.Write(data[i:end])
	}

	if got, want := e.Sum(), Entropy(data); got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
	if got := e.Sum(); got < 0 || got > 8 {
		t.Errorf("Sum() = %v, out of [0, 8]", got)
	}
}
