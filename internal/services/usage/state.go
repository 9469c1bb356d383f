package usage

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/statistics"
)

// Attribute keys of the presentation state.
const (
	AttrEndpoint          = "endpoint"
	AttrGranularity       = "granularity"
	AttrLastPeriodStart   = "last_period_start"
	AttrLastPeriodLitres  = "last_period_litres"
	AttrPeriodDays        = "period_days"
	AttrYesterdayLitres   = "yesterday_litres"
	AttrBillingFrom       = "billing_period_from"
	AttrBillingTo         = "billing_period_to"
	AttrConsumptionRate   = "consumption_rate"
	AttrWastewaterRate    = "wastewater_rate"
	AttrWastewaterRatio   = "wastewater_ratio"
	AttrAnnualLineCharge  = "annual_line_charge"
	AttrCostConsumption   = "current_cost_consumption"
	AttrCostWastewater    = "current_cost_wastewater"
	AttrCostLineCharge    = "current_cost_line_charge"
	AttrCostTotal         = "current_cost_total"
	AttrSkippedRecords    = "skipped_records"
	AttrBucketCount       = "bucket_count"
	AttrTotalLitresWindow = "window_total_litres"
)

// BuildState derives the scalar state and flat attribute map shown to the
// user. It is recomputed from scratch on every fetch.
func BuildState(series models.UsageSeries, p Payload, rates models.Rates, now time.Time, loc *time.Location) models.UsageState {
	attrs := map[string]string{
		AttrEndpoint:         string(series.Endpoint),
		AttrGranularity:      series.Granularity.String(),
		AttrConsumptionRate:  formatFloat(rates.ConsumptionRate),
		AttrWastewaterRate:   formatFloat(rates.WastewaterRate),
		AttrWastewaterRatio:  formatFloat(rates.WastewaterRatio),
		AttrAnnualLineCharge: formatFloat(rates.AnnualLineCharge),
		AttrBucketCount:      strconv.Itoa(len(series.Buckets)),
	}
	state := models.UsageState{
		Endpoint:   series.Endpoint,
		UpdatedAt:  now,
		Attributes: attrs,
	}

	var window float64
	for _, b := range series.Buckets {
		window += b.Litres
	}
	attrs[AttrTotalLitresWindow] = formatFloat(window)

	if latest, ok := series.Latest(); ok {
		state.State = latest.Litres
		state.HasState = true
		attrs[AttrLastPeriodStart] = latest.Start.Format(time.RFC3339)
		attrs[AttrLastPeriodLitres] = formatFloat(latest.Litres)
		attrs[AttrPeriodDays] = strconv.Itoa(latest.Days)

		cost := statistics.Cost(latest.Litres, max(latest.Days, 1), rates)
		attrs[AttrCostConsumption] = formatMoney(cost.Consumption)
		attrs[AttrCostWastewater] = formatMoney(cost.Wastewater)
		attrs[AttrCostLineCharge] = formatMoney(cost.LineCharge)
		attrs[AttrCostTotal] = formatMoney(cost.Total)
	}

	if series.Granularity == models.GranularityDay {
		yesterday := dayKey(now, loc).AddDate(0, 0, -1)
		var litres float64
		for _, b := range series.Buckets {
			if b.Start.Equal(yesterday) {
				litres = b.Litres
			}
		}
		attrs[AttrYesterdayLitres] = formatFloat(litres)
	}

	switch {
	case p.Records != nil:
		attrs[AttrSkippedRecords] = strconv.Itoa(p.Records.Skipped)
		flatten("statistics", p.Records.Statistics, attrs)
	case p.Periods != nil:
		attrs[AttrSkippedRecords] = strconv.Itoa(p.Periods.Skipped)
		if latest, ok := p.Periods.LatestPeriod(); ok {
			if !latest.From.IsZero() {
				attrs[AttrBillingFrom] = latest.From.Format(time.DateOnly)
			}
			attrs[AttrBillingTo] = latest.To.Format(time.DateOnly)
			flatten("statistics", latest.Statistics, attrs)
			flatten("efficiency", latest.Efficiency, attrs)
			flatten("account", latest.Account, attrs)
		}
	}

	return state
}

// flatten copies every scalar leaf of raw into attrs under dotted keys.
func flatten(prefix string, raw json.RawMessage, attrs map[string]string) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return
	}
	flattenResult(prefix, gjson.ParseBytes(raw), attrs)
}

func flattenResult(prefix string, res gjson.Result, attrs map[string]string) {
	switch {
	case res.IsObject() || res.IsArray():
		index := 0
		res.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if res.IsArray() {
				name = strconv.Itoa(index)
				index++
			}
			flattenResult(prefix+"."+name, value, attrs)
			return true
		})
	case res.Type == gjson.Null:
		attrs[prefix] = ""
	default:
		attrs[prefix] = res.String()
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
