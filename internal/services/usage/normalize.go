package usage

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

// Normalize groups a decoded payload into chronological calendar buckets.
//
// Half-hourly records are truncated to the hour in UTC, daily records to the
// day in loc.
// TODO: decide whether hourly buckets should also use loc; both rules are kept
// until the provider confirms which zone its half-hourly slots are in.
func Normalize(p Payload, loc *time.Location) models.UsageSeries {
	series := models.UsageSeries{
		Endpoint:    p.Endpoint,
		Granularity: p.Endpoint.Granularity(),
	}

	switch {
	case p.Periods != nil:
		series.Buckets = periodBuckets(p.Periods.Periods, loc)
	case p.Records != nil:
		key := hourKey
		if series.Granularity == models.GranularityDay {
			key = func(t time.Time) time.Time { return dayKey(t, loc) }
		}
		series.Buckets = recordBuckets(p.Records.Records, key)
	}
	return series
}

func hourKey(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

func dayKey(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func recordBuckets(records []models.UsageRecord, key func(time.Time) time.Time) []models.Bucket {
	if len(records) == 0 {
		return nil
	}

	totals := make(map[int64]*models.Bucket)
	for _, r := range records {
		start := key(r.Timestamp)
		b, ok := totals[start.Unix()]
		if !ok {
			b = &models.Bucket{Start: start, Days: 1}
			totals[start.Unix()] = b
		}
		b.Litres += r.Litres
	}

	keys := lo.Keys(totals)
	slices.Sort(keys)
	return lo.Map(keys, func(k int64, _ int) models.Bucket { return *totals[k] })
}

// periodBuckets sorts billing periods by end date and keys each by the local
// day it ends on. Periods ending on the same day are merged.
func periodBuckets(periods []BillingPeriod, loc *time.Location) []models.Bucket {
	if len(periods) == 0 {
		return nil
	}

	sorted := slices.Clone(periods)
	slices.SortStableFunc(sorted, func(a, b BillingPeriod) int { return a.To.Compare(b.To) })

	buckets := make([]models.Bucket, 0, len(sorted))
	for _, p := range sorted {
		start := dayKey(p.To, loc)
		if n := len(buckets); n > 0 && buckets[n-1].Start.Equal(start) {
			buckets[n-1].Litres += p.Litres
			buckets[n-1].Days = max(buckets[n-1].Days, p.Days())
			continue
		}
		buckets = append(buckets, models.Bucket{Start: start, Litres: p.Litres, Days: p.Days()})
	}
	return buckets
}

// LatestPeriod returns the billing period with the latest end date.
func (p *PeriodPayload) LatestPeriod() (BillingPeriod, bool) {
	if p == nil || len(p.Periods) == 0 {
		return BillingPeriod{}, false
	}
	return lo.MaxBy(p.Periods, func(a, b BillingPeriod) bool { return a.To.After(b.To) }), true
}
