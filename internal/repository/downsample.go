package repository

import (
	"math"

	"homelab-metrics/internal/domain"
)

// Downsample reduces time-ordered points to at most target points. Inputs
// already within target are returned as-is. Otherwise the points are split
// into consecutive buckets of ceil(len/target); each bucket becomes one point
// carrying the mean cpu and ram (rounded to one decimal) and the timestamp
// of its middle sample.
func Downsample(points []domain.Point, target int) []domain.Point {
	if target <= 0 || len(points) <= target {
		return points
	}

	bucketSize := (len(points) + target - 1) / target
	out := make([]domain.Point, 0, (len(points)+bucketSize-1)/bucketSize)

	for i := 0; i < len(points); i += bucketSize {
		bucket := points[i:min(i+bucketSize, len(points))]

		out = append(out, domain.Point{
			Timestamp:  bucket[len(bucket)/2].Timestamp,
			CPUPercent: roundTenth(bucketMean(bucket, func(p domain.Point) float64 { return p.CPUPercent })),
			RAMPercent: roundTenth(bucketMean(bucket, func(p domain.Point) float64 { return p.RAMPercent })),
		})
	}
	return out
}

// bucketMean averages one field of the bucket. When the plain sum overflows
// the mean is taken over pre-divided values, which stays finite for any
// finite input.
func bucketMean(bucket []domain.Point, field func(domain.Point) float64) float64 {
	n := float64(len(bucket))

	var sum float64
	for _, p := range bucket {
		sum += field(p)
	}
	if !math.IsInf(sum, 0) {
		return sum / n
	}

	var mean float64
	for _, p := range bucket {
		mean += field(p) / n
	}
	return mean
}

// roundTenth rounds to one decimal with halves going up. Magnitudes past
// 2^53 carry no fractional part and are returned unchanged.
func roundTenth(f float64) float64 {
	if math.Abs(f) >= 1<<53 {
		return f
	}
	return math.Floor(f*10+0.5) / 10
}
