package repository

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homelab-metrics/internal/domain"
)

func seriesOf(n int, cpu func(i int) float64, ram func(i int) float64) []domain.Point {
	points := make([]domain.Point, n)
	for i := range points {
		points[i] = domain.Point{Timestamp: int64(1000 + i*25000), CPUPercent: cpu(i), RAMPercent: ram(i)}
	}
	return points
}

func TestDownsample_SmallInputUnchanged(t *testing.T) {
	points := seriesOf(120, func(i int) float64 { return float64(i) + 0.37 }, func(i int) float64 { return 12.345 })

	out := Downsample(points, 120)
	assert.Equal(t, points, out, "no averaging or rounding below the target")

	assert.Empty(t, Downsample(nil, 120))
	assert.Equal(t, points, Downsample(points, 0))
}

func TestDownsample_BucketMeans(t *testing.T) {
	points := seriesOf(10, func(i int) float64 { return float64(i) }, func(i int) float64 { return float64(100 - i) })

	// bucket size ceil(10/4) = 3, buckets [0..2] [3..5] [6..8] [9]
	out := Downsample(points, 4)
	require.Len(t, out, 4)

	assert.Equal(t, []domain.Point{
		{Timestamp: points[1].Timestamp, CPUPercent: 1, RAMPercent: 99},
		{Timestamp: points[4].Timestamp, CPUPercent: 4, RAMPercent: 96},
		{Timestamp: points[7].Timestamp, CPUPercent: 7, RAMPercent: 93},
		{Timestamp: points[9].Timestamp, CPUPercent: 9, RAMPercent: 91},
	}, out)
}

func TestDownsample_Rounding(t *testing.T) {
	tests := []struct {
		name string
		cpu  []float64
		want float64
	}{
		{name: "half rounds up", cpu: []float64{1, 2}, want: 1.5},
		{name: "two thirds", cpu: []float64{0, 1, 1}, want: 0.7},
		{name: "one third", cpu: []float64{2, 2, 3}, want: 2.3},
		{name: "already one decimal", cpu: []float64{12.5, 12.5}, want: 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := seriesOf(len(tt.cpu)*2, func(i int) float64 { return tt.cpu[i%len(tt.cpu)] }, func(int) float64 { return 0 })

			out := Downsample(points, 2)
			require.Len(t, out, 2)
			assert.Equal(t, tt.want, out[0].CPUPercent)
			assert.Equal(t, tt.want, out[1].CPUPercent)
		})
	}
}

func TestDownsample_CountBoundAndOrder(t *testing.T) {
	for _, target := range []int{120, 144, 168} {
		for n := target + 1; n <= 3000; n += 37 {
			points := seriesOf(n, func(i int) float64 { return float64(i % 97) }, func(i int) float64 { return float64(i % 13) })

			out := Downsample(points, target)
			require.LessOrEqual(t, len(out), target, "n=%d target=%d", n, target)

			bucketSize := int(math.Ceil(float64(n) / float64(target)))
			require.Len(t, out, (n+bucketSize-1)/bucketSize, "n=%d target=%d", n, target)

			for i := 1; i < len(out); i++ {
				require.Less(t, out[i-1].Timestamp, out[i].Timestamp)
			}
		}
	}
}

func TestRoundTenth(t *testing.T) {
	assert.Equal(t, 0.0, roundTenth(0.04))
	assert.Equal(t, 0.1, roundTenth(0.06))
	assert.Equal(t, 99.9, roundTenth(99.94))
	assert.Equal(t, 100.0, roundTenth(99.96))
	assert.Equal(t, math.MaxFloat64, roundTenth(math.MaxFloat64))
	assert.Equal(t, -1e300, roundTenth(-1e300))
}

func TestDownsample_LargeValuesStayFinite(t *testing.T) {
	points := []domain.Point{
		{Timestamp: 1000, CPUPercent: math.MaxFloat64, RAMPercent: 1e308},
		{Timestamp: 2000, CPUPercent: math.MaxFloat64, RAMPercent: 1e308},
		{Timestamp: 3000, CPUPercent: 1, RAMPercent: 1},
		{Timestamp: 4000, CPUPercent: 1, RAMPercent: 1},
	}

	out := Downsample(points, 1)
	require.Len(t, out, 1)
	assert.False(t, math.IsInf(out[0].CPUPercent, 0))
	assert.False(t, math.IsInf(out[0].RAMPercent, 0))
	assert.InEpsilon(t, math.MaxFloat64/2, out[0].CPUPercent, 1e-9)
	assert.InEpsilon(t, 5e307, out[0].RAMPercent, 1e-9)
	assert.Equal(t, int64(3000), out[0].Timestamp)
}
