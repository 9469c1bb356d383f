package models

import (
	"strings"
	"time"
)

// UsageRecord is a single raw reading as returned by the provider.
type UsageRecord struct {
	Timestamp time.Time
	Litres    float64
}

// Bucket is one calendar-aligned interval of a usage series.
// Days is the number of days the bucket covers for line-charge pro-rating.
type Bucket struct {
	Start  time.Time
	Litres float64
	Days   int
}

// UsageSeries is an ordered list of buckets of a single granularity.
type UsageSeries struct {
	Endpoint    EndpointKind
	Granularity Granularity
	Buckets     []Bucket
}

// Empty reports whether the series has no buckets.
func (s UsageSeries) Empty() bool {
	return len(s.Buckets) == 0
}

// Latest returns the most recent bucket.
func (s UsageSeries) Latest() (Bucket, bool) {
	if len(s.Buckets) == 0 {
		return Bucket{}, false
	}
	return s.Buckets[len(s.Buckets)-1], true
}

// StatisticPoint is one point of a cumulative statistic series.
// Sum is the running total of State over the batch; LastReset is only set on
// the first point of a batch.
type StatisticPoint struct {
	Start     time.Time  `json:"start"`
	LastReset *time.Time `json:"lastReset,omitempty"`
	State     float64    `json:"state"`
	Sum       float64    `json:"sum"`
}

// StatisticMetadata describes a named external statistic.
type StatisticMetadata struct {
	StatisticID string `json:"statisticId"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	Source      string `json:"source"`
	HasSum      bool   `json:"hasSum"`
	HasMean     bool   `json:"hasMean"`
}

// StatisticBatch pairs metadata with the points of one export call.
type StatisticBatch struct {
	Metadata StatisticMetadata
	Points   []StatisticPoint
}

// Last returns the last point of the batch.
func (b StatisticBatch) Last() (StatisticPoint, bool) {
	if len(b.Points) == 0 {
		return StatisticPoint{}, false
	}
	return b.Points[len(b.Points)-1], true
}

// Rates holds the tariff configuration. Rates are NZD per 1000 litres.
type Rates struct {
	ConsumptionRate  float64 `json:"consumptionRate" yaml:"consumption_rate"`
	WastewaterRate   float64 `json:"wastewaterRate" yaml:"wastewater_rate"`
	WastewaterRatio  float64 `json:"wastewaterRatio" yaml:"wastewater_ratio"`
	AnnualLineCharge float64 `json:"annualLineCharge" yaml:"annual_line_charge"`
}

// Default tariff values.
const (
	DefaultConsumptionRate  = 2.296
	DefaultWastewaterRate   = 3.994
	DefaultWastewaterRatio  = 0.785
	DefaultAnnualLineCharge = 0.0
)

// DefaultRates returns the default tariff.
func DefaultRates() Rates {
	return Rates{
		ConsumptionRate:  DefaultConsumptionRate,
		WastewaterRate:   DefaultWastewaterRate,
		WastewaterRatio:  DefaultWastewaterRatio,
		AnnualLineCharge: DefaultAnnualLineCharge,
	}
}

// Zero reports whether no cost component can be non-zero.
func (r Rates) Zero() bool {
	return r.ConsumptionRate == 0 && r.WastewaterRate == 0 && r.AnnualLineCharge == 0
}

// CostBreakdown is the derived cost of a quantity of water over a number of days.
type CostBreakdown struct {
	Consumption float64 `json:"consumption"`
	Wastewater  float64 `json:"wastewater"`
	LineCharge  float64 `json:"lineCharge"`
	Total       float64 `json:"total"`
}

// UsageState is the presentation state recomputed on every fetch.
type UsageState struct {
	UpdatedAt  time.Time         `json:"updatedAt"`
	Attributes map[string]string `json:"attributes"`
	Endpoint   EndpointKind      `json:"endpoint"`
	State      float64           `json:"state"`
	HasState   bool              `json:"hasState"`
}

// Timestamp layouts accepted from the provider, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a provider timestamp. Values without a zone are
// interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
