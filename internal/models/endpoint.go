// Package models defines data structures and domain types.
package models

import (
	"fmt"
	"strings"
)

// EndpointKind names one of the usage report granularities served by the
// customer API. It is used verbatim as the last path segment of the usage URL.
type EndpointKind string

const (
	// EndpointHalfHourly returns smart-meter readings in half-hour slots.
	EndpointHalfHourly EndpointKind = "halfhourly"
	// EndpointDailyWithStats returns daily readings plus a statistics envelope.
	EndpointDailyWithStats EndpointKind = "dailywithstats"
	// EndpointMonthly returns billing periods for smart-meter accounts.
	EndpointMonthly EndpointKind = "monthly"
	// EndpointMechanicalMonthly returns billing periods for mechanical meters.
	EndpointMechanicalMonthly EndpointKind = "mechanicalmonthly"
)

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = EndpointMechanicalMonthly

// EndpointKinds lists every supported endpoint in display order.
var EndpointKinds = []EndpointKind{
	EndpointMechanicalMonthly,
	EndpointDailyWithStats,
	EndpointMonthly,
	EndpointHalfHourly,
}

// Granularity is the calendar bucket an endpoint's readings are grouped into.
type Granularity int

const (
	// GranularityHour buckets readings by UTC hour.
	GranularityHour Granularity = iota
	// GranularityDay buckets readings by local civil day.
	GranularityDay
	// GranularityBillingPeriod uses provider-defined billing periods.
	GranularityBillingPeriod
)

// String returns the display name for a granularity.
func (g Granularity) String() string {
	switch g {
	case GranularityHour:
		return "hour"
	case GranularityDay:
		return "day"
	case GranularityBillingPeriod:
		return "billing period"
	default:
		return "unknown"
	}
}

// ParseEndpointKind validates s against the closed set of endpoint kinds.
func ParseEndpointKind(s string) (EndpointKind, error) {
	kind := EndpointKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unsupported endpoint %q", ErrValidation, s)
	}
	return kind, nil
}

// Valid reports whether k is a supported endpoint kind.
func (k EndpointKind) Valid() bool {
	switch k {
	case EndpointHalfHourly, EndpointDailyWithStats, EndpointMonthly, EndpointMechanicalMonthly:
		return true
	default:
		return false
	}
}

// Granularity returns the bucket granularity of the endpoint's payload.
func (k EndpointKind) Granularity() Granularity {
	switch k {
	case EndpointHalfHourly:
		return GranularityHour
	case EndpointDailyWithStats:
		return GranularityDay
	default:
		return GranularityBillingPeriod
	}
}

// IsBillingPeriod reports whether the endpoint returns billing-period objects
// rather than usage records.
func (k EndpointKind) IsBillingPeriod() bool {
	return k.Granularity() == GranularityBillingPeriod
}

// DisplayName returns the human readable name used in statistic names.
func (k EndpointKind) DisplayName() string {
	switch k {
	case EndpointMechanicalMonthly:
		return "Water"
	case EndpointDailyWithStats:
		return "Daily"
	case EndpointMonthly:
		return "Monthly"
	case EndpointHalfHourly:
		return "Half-hourly"
	default:
		return string(k)
	}
}

func (k EndpointKind) String() string {
	return string(k)
}
