package features

import "testing"

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		values []uint64
		want   summary[uint64]
	}{
		{name: "empty", values: nil, want: summary[uint64]{}},
		{name: "single", values: []uint64{7}, want: summary[uint64]{Mean: 7, Min: 7, Max: 7}},
		{name: "several", values: []uint64{0x200, 0x1000, 0x600}, want: summary[uint64]{Mean: 0x800, Min: 0x200, Max: 0x1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summarize(tt.values); got != tt.want {
				t.Errorf("summarize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSummarize_MeanWithinBounds(t *testing.T) {
	values := []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	s := summarize(values)
	if s.Mean < s.Min || s.Mean > s.Max {
		t.Errorf("summarize() = %+v, mean out of bounds", s)
	}
}
