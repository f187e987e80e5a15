package querytime

import (
	"fmt"

	"github.com/chewxy/math32"
)

// BucketIndex maps a signed distance to a histogram bucket. Distances are normalized
// by the domain diagonal so [-diagonal, +diagonal] spans all bucketCount buckets.
// Distances beyond that range are clamped into the outermost buckets.
// ok is false for NaN distances which belong to no bucket.
func BucketIndex(distance, diagonal float32, bucketCount int) (bucket int, ok bool) {
	if math32.IsNaN(distance) {
		return 0, false
	}
	half := float32(bucketCount) / 2
	v := math32.Round((distance/diagonal + 1) * half)
	v = clampf(v, 0, float32(bucketCount-1))
	return int(v), true
}

// BucketDistance returns the normalized distance (fraction of the diagonal) that
// maps exactly onto bucket. It is the inverse of [BucketIndex] at bucket centers.
func BucketDistance(bucket, bucketCount int) float32 {
	return float32(bucket)/(float32(bucketCount)/2) - 1
}

// Histogram accumulates query latencies of a single backend per distance bucket.
// The zero value is not usable, create one with [NewHistogram].
type Histogram struct {
	acc   []float64
	count []uint32
}

// NewHistogram returns an empty histogram with bucketCount buckets.
func NewHistogram(bucketCount int) *Histogram {
	if bucketCount < 1 {
		panic("histogram requires at least one bucket")
	}
	return &Histogram{
		acc:   make([]float64, bucketCount),
		count: make([]uint32, bucketCount),
	}
}

// Len returns the number of buckets.
func (h *Histogram) Len() int { return len(h.acc) }

// Record adds a sample of elapsedMicros to bucket.
func (h *Histogram) Record(bucket int, elapsedMicros float32) {
	h.acc[bucket] += float64(elapsedMicros)
	h.count[bucket]++
}

// Total returns the accumulated microseconds of bucket.
func (h *Histogram) Total(bucket int) float64 { return h.acc[bucket] }

// Count returns the number of samples recorded in bucket.
func (h *Histogram) Count(bucket int) int { return int(h.count[bucket]) }

// Samples returns the number of samples recorded across all buckets.
func (h *Histogram) Samples() (n int) {
	for _, c := range h.count {
		n += int(c)
	}
	return n
}

// Mean returns the mean latency of bucket in microseconds or NaN if the bucket
// has no samples. NaN must be read as "no data".
func (h *Histogram) Mean(bucket int) float32 {
	if h.count[bucket] == 0 {
		return math32.NaN()
	}
	return float32(h.acc[bucket] / float64(h.count[bucket]))
}

// BucketStat is a reporting row of a [Histogram].
type BucketStat struct {
	Bucket int
	// Distance is the normalized distance at the bucket center as a fraction of the diagonal.
	Distance float32
	Count    int
	// Mean latency in microseconds, NaN when Count is zero.
	Mean float32
}

// String formats the row the way the querytime tool logs it, distance as a percentage.
func (b BucketStat) String() string {
	if b.Count == 0 {
		return fmt.Sprintf("%+.0f%%: no data", 100*b.Distance)
	}
	return fmt.Sprintf("%+.0f%%: %.3gµs (n=%d)", 100*b.Distance, b.Mean, b.Count)
}

// Buckets returns a row per bucket, including empty ones.
func (h *Histogram) Buckets() []BucketStat {
	stats := make([]BucketStat, h.Len())
	for i := range stats {
		stats[i] = BucketStat{
			Bucket:   i,
			Distance: BucketDistance(i, h.Len()),
			Count:    h.Count(i),
			Mean:     h.Mean(i),
		}
	}
	return stats
}
