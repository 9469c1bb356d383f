// Package statistics turns usage series into cumulative statistic batches.
package statistics

import (
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

// Accumulate converts chronological bucket values into a running-sum series.
// The first point carries a reset marker equal to its own start so the store
// never subtracts a baseline from a previous batch.
func Accumulate(buckets []models.Bucket) []models.StatisticPoint {
	return accumulateValues(buckets, func(b models.Bucket) float64 { return b.Litres })
}

func accumulateValues(buckets []models.Bucket, value func(models.Bucket) float64) []models.StatisticPoint {
	if len(buckets) == 0 {
		return nil
	}

	points := make([]models.StatisticPoint, 0, len(buckets))
	var sum float64
	for i, b := range buckets {
		v := value(b)
		sum += v
		p := models.StatisticPoint{Start: b.Start, State: v, Sum: sum}
		if i == 0 {
			reset := b.Start
			p.LastReset = &reset
		}
		points = append(points, p)
	}
	return points
}
