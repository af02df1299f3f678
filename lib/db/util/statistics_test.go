package util

import (
	"math"
	"sync"
	"testing"
)

func TestSizeHistogramPercentile(t *testing.T) {
	h := NewSizeHistogram()
	if got := h.Median(); got != 0 {
		t.Errorf("empty histogram: expected 0, got %d", got)
	}

	for i := 1; i <= 100; i++ {
		h.AddSample(i)
	}

	tests := []struct {
		p    float64
		want int
	}{
		{0, 1},     // first bucket [1,2)
		{50, 63},   // 50th sample lies in [32,64)
		{100, 100}, // capped at the largest sample
		{150, 100}, // clamped to 100
	}
	for _, tt := range tests {
		if got := h.Percentile(tt.p); got != tt.want {
			t.Errorf("Percentile(%v) = %d, expected %d", tt.p, got, tt.want)
		}
	}
}

func TestSizeHistogramZeroAndNegative(t *testing.T) {
	h := NewSizeHistogram()
	h.AddSample(0)
	h.AddSample(-5)
	if got := h.Percentile(100); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestSizeHistogramConcurrent(t *testing.T) {
	h := NewSizeHistogram()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h.AddSample(1000)
			}
		}()
	}
	wg.Wait()

	if got := h.count.Load(); got != 8000 {
		t.Errorf("expected 8000 samples, got %d", got)
	}
	if got := h.Median(); got != 1000 {
		t.Errorf("expected median 1000, got %d", got)
	}
}

func TestLoadStats(t *testing.T) {
	tests := []struct {
		name    string
		loads   []uint64
		quality float64
	}{
		{"no workers", nil, 1},
		{"no work yet", []uint64{0, 0, 0}, 1},
		{"even", []uint64{10, 10, 10}, 1},
		{"one worker does everything", []uint64{0, 0, 30}, 0},
		{"skewed", []uint64{5, 15}, 0.25 + 5.0/15.0*0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewLoadStats(tt.loads)
			if math.Abs(s.Quality-tt.quality) > 1e-9 {
				t.Errorf("expected quality %.4f, got %.4f", tt.quality, s.Quality)
			}
		})
	}

	s := NewLoadStats([]uint64{5, 15})
	if s.Min != 5 || s.Max != 15 || s.Mean != 10 || s.CV != 0.5 {
		t.Errorf("unexpected stats: %+v", s)
	}
}
