// Package util
//
// This file implements the two summaries the server reports in INFO and in
// the store info: a size histogram (scan chunk sizes, sampled value sizes)
// and the load balance of the worker pool.
package util

import (
	"math"
	"math/bits"
	"sync/atomic"
)

// ----------------------------------------------------------------------------
// Worker load
// ----------------------------------------------------------------------------

// LoadStats summarizes how evenly work is spread over a set of workers
type LoadStats struct {
	Min  uint64  `json:"min"`
	Max  uint64  `json:"max"`
	Mean float64 `json:"mean"`
	CV   float64 `json:"cv"` // coefficient of variation

	// Quality is 1 for a perfectly even spread and approaches 0 when a
	// single worker gets all the work
	Quality float64 `json:"quality"`
}

// NewLoadStats computes the load summary of the given per-worker counters.
// An idle pool (no workers or no work yet) counts as perfectly balanced.
func NewLoadStats(loads []uint64) LoadStats {
	if len(loads) == 0 {
		return LoadStats{Quality: 1}
	}

	s := LoadStats{Min: loads[0], Max: loads[0]}
	var sum float64
	for _, l := range loads {
		s.Min = min(s.Min, l)
		s.Max = max(s.Max, l)
		sum += float64(l)
	}
	s.Mean = sum / float64(len(loads))
	if s.Max == 0 {
		s.Quality = 1
		return s
	}

	var squares float64
	for _, l := range loads {
		d := float64(l) - s.Mean
		squares += d * d
	}
	s.CV = math.Sqrt(squares/float64(len(loads))) / s.Mean

	// low variation and a small gap between the least and the most loaded
	// worker both count half
	s.Quality = (1-math.Min(1, s.CV))*0.5 + float64(s.Min)/float64(s.Max)*0.5
	return s
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// SizeHistogram counts sizes in power-of-two buckets: bucket 0 holds size 0,
// bucket i holds sizes in [2^(i-1), 2^i). Adding is lock free, so workers can
// record chunk sizes without contending.
type SizeHistogram struct {
	buckets [65]atomic.Int64
	count   atomic.Int64
	largest atomic.Int64
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{}
}

// AddSample records one size, negative sizes count as 0
func (h *SizeHistogram) AddSample(size int) {
	size = max(size, 0)
	h.buckets[bits.Len64(uint64(size))].Add(1)
	h.count.Add(1)
	for {
		cur := h.largest.Load()
		if int64(size) <= cur || h.largest.CompareAndSwap(cur, int64(size)) {
			return
		}
	}
}

// Percentile estimates the size below which p percent (0-100) of the
// samples lie. The estimate is the upper end of the matching bucket, capped
// at the largest recorded size. It returns 0 for an empty histogram.
func (h *SizeHistogram) Percentile(p float64) int {
	count := h.count.Load()
	if count == 0 {
		return 0
	}
	p = math.Min(math.Max(p, 0), 100)
	target := max(int64(math.Ceil(float64(count)*p/100)), 1)

	largest := int(h.largest.Load())
	var cumulative int64
	for i := range h.buckets {
		cumulative += h.buckets[i].Load()
		if cumulative < target {
			continue
		}
		if i == 0 {
			return 0
		}
		return min((1<<i)-1, largest)
	}
	return largest
}

// Median estimates the median size
func (h *SizeHistogram) Median() int { return h.Percentile(50) }
