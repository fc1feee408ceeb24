package criticality

import "slices"

// Histogram counts measurements per bucket.
type Histogram map[int]int

// Buckets returns the bucket keys in ascending order.
func (h Histogram) Buckets() []int {
	keys := make([]int, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Distinct returns the number of buckets.
func (h Histogram) Distinct() int { return len(h) }

// Total returns the number of counted measurements.
func (h Histogram) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}
	return n
}

// BinTemporal maps a temporal extent to its bucket. Bin sizes below 1 are
// treated as 1.
func BinTemporal(extent, binSize int) int {
	if binSize < 1 {
		binSize = 1
	}
	return extent / binSize
}

// SpatialHistogram counts spatial extents over measurements with a
// non-zero spatial extent.
func SpatialHistogram(ms []Measurement) Histogram {
	h := Histogram{}
	for _, m := range ms {
		if m.Spatial > 0 {
			h[m.Spatial]++
		}
	}
	return h
}

// TemporalHistogram counts binned temporal extents over measurements with a
// non-zero temporal extent.
func TemporalHistogram(ms []Measurement, binSize int) Histogram {
	h := Histogram{}
	for _, m := range ms {
		if m.Temporal > 0 {
			h[BinTemporal(m.Temporal, binSize)]++
		}
	}
	return h
}
