package usage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/j-veylop/watercare-dashboard-tui/internal/logger"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

// Payload is a decoded usage response. Exactly one of Records and Periods is
// set, chosen by the endpoint kind.
type Payload struct {
	Records  *RecordPayload
	Periods  *PeriodPayload
	Endpoint models.EndpointKind
}

// RecordPayload is the usage-record shape of the halfhourly and
// dailywithstats endpoints.
type RecordPayload struct {
	// Statistics is the raw statistics object of the daily envelope, if any.
	Statistics json.RawMessage
	Records    []models.UsageRecord
	Skipped    int
}

// PeriodPayload is the billing-period shape of the monthly endpoints.
type PeriodPayload struct {
	Periods []BillingPeriod
	Skipped int
}

// BillingPeriod is one provider-defined usage period.
type BillingPeriod struct {
	From       time.Time
	To         time.Time
	Statistics json.RawMessage
	Efficiency json.RawMessage
	Account    json.RawMessage
	Litres     float64
}

// Days returns the length of the period in whole days, at least one.
func (p BillingPeriod) Days() int {
	if p.From.IsZero() || !p.To.After(p.From) {
		return 1
	}
	days := int(p.To.Sub(p.From).Round(24*time.Hour) / (24 * time.Hour))
	return max(days, 1)
}

type usageEnvelope struct {
	Usage      []json.RawMessage `json:"usage"`
	Statistics json.RawMessage   `json:"statistics"`
}

type usageRecordJSON struct {
	Litres    *float64 `json:"litres"`
	Timestamp string   `json:"timestamp"`
}

type billingPeriodJSON struct {
	WaterUsage *float64        `json:"waterUsage"`
	From       string          `json:"billingPeriodFromDate"`
	To         string          `json:"billingPeriodToDate"`
	Statistics json.RawMessage `json:"statistics"`
	Efficiency json.RawMessage `json:"efficiency"`
	Account    json.RawMessage `json:"account"`
}

// Decode parses a raw response into the payload variant of its endpoint.
// Individual malformed entries are skipped with a warning; a body that is not
// the expected shape at all is a ParseError.
func Decode(raw *RawPayload, loc *time.Location) (Payload, error) {
	p := Payload{Endpoint: raw.Endpoint}
	body := bytes.TrimSpace(raw.Body)

	if raw.Endpoint.IsBillingPeriod() {
		periods, err := decodePeriods(body, loc)
		if err != nil {
			return Payload{}, err
		}
		p.Periods = periods
		return p, nil
	}

	records, err := decodeRecords(body)
	if err != nil {
		return Payload{}, err
	}
	p.Records = records
	return p, nil
}

func decodeRecords(body []byte) (*RecordPayload, error) {
	out := &RecordPayload{}
	if len(body) == 0 {
		return out, nil
	}

	var items []json.RawMessage
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: usage list: %v", models.ErrParse, err)
		}
	case '{':
		var env usageEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("%w: usage envelope: %v", models.ErrParse, err)
		}
		items = env.Usage
		out.Statistics = env.Statistics
	default:
		return nil, fmt.Errorf("%w: usage payload is neither a list nor an object", models.ErrParse)
	}

	for i, item := range items {
		var rec usageRecordJSON
		if err := json.Unmarshal(item, &rec); err != nil {
			logger.Warn("skipping malformed usage record", "index", i, "error", err)
			out.Skipped++
			continue
		}
		ts, ok := models.ParseTimestamp(rec.Timestamp, time.UTC)
		if !ok {
			logger.Warn("skipping usage record with invalid timestamp", "index", i, "timestamp", rec.Timestamp)
			out.Skipped++
			continue
		}
		// A record without litres still counts, as a zero reading.
		var litres float64
		if rec.Litres != nil {
			litres = *rec.Litres
		}
		out.Records = append(out.Records, models.UsageRecord{Timestamp: ts.UTC(), Litres: litres})
	}
	return out, nil
}

func decodePeriods(body []byte, loc *time.Location) (*PeriodPayload, error) {
	out := &PeriodPayload{}
	if len(body) == 0 {
		return out, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: billing periods: %v", models.ErrParse, err)
	}

	for i, item := range items {
		var raw billingPeriodJSON
		if err := json.Unmarshal(item, &raw); err != nil {
			logger.Warn("skipping malformed billing period", "index", i, "error", err)
			out.Skipped++
			continue
		}
		to, ok := models.ParseTimestamp(raw.To, loc)
		if !ok || raw.WaterUsage == nil {
			logger.Warn("skipping incomplete billing period", "index", i, "to", raw.To)
			out.Skipped++
			continue
		}
		from, _ := models.ParseTimestamp(raw.From, loc)

		out.Periods = append(out.Periods, BillingPeriod{
			From:       from,
			To:         to,
			Litres:     *raw.WaterUsage,
			Statistics: raw.Statistics,
			Efficiency: raw.Efficiency,
			Account:    raw.Account,
		})
	}
	return out, nil
}
