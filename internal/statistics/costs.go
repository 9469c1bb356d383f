package statistics

import (
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

const daysPerYear = 365.0

// Cost computes the cost breakdown for litres used over days.
func Cost(litres float64, days int, rates models.Rates) models.CostBreakdown {
	kilolitres := litres / 1000
	c := models.CostBreakdown{
		Consumption: kilolitres * rates.ConsumptionRate,
		Wastewater:  kilolitres * rates.WastewaterRatio * rates.WastewaterRate,
		LineCharge:  rates.AnnualLineCharge * float64(days) / daysPerYear,
	}
	c.Total = c.Consumption + c.Wastewater + c.LineCharge
	return c
}

// CostSeries holds the three independently accumulated cost series. A nil
// series was not emitted because its rate is zero.
type CostSeries struct {
	Total       []models.StatisticPoint
	Consumption []models.StatisticPoint
	Wastewater  []models.StatisticPoint
}

// DeriveCosts accumulates per-bucket costs. Each bucket's Days field is the
// day count used to pro-rate the annual line charge.
func DeriveCosts(buckets []models.Bucket, rates models.Rates) CostSeries {
	var out CostSeries
	if len(buckets) == 0 {
		return out
	}

	costOf := func(b models.Bucket) models.CostBreakdown {
		return Cost(b.Litres, max(b.Days, 1), rates)
	}

	if !rates.Zero() {
		out.Total = accumulateValues(buckets, func(b models.Bucket) float64 { return costOf(b).Total })
	}
	if rates.ConsumptionRate != 0 {
		out.Consumption = accumulateValues(buckets, func(b models.Bucket) float64 { return costOf(b).Consumption })
	}
	if rates.WastewaterRate != 0 {
		out.Wastewater = accumulateValues(buckets, func(b models.Bucket) float64 { return costOf(b).Wastewater })
	}
	return out
}
