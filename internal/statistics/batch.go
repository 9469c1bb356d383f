package statistics

import (
	"context"
	"fmt"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

// Source is the statistic source name and id prefix.
const Source = "watercare"

// Units of the emitted statistics.
const (
	UnitLitres = "L"
	UnitNZD    = "NZD"
)

// Type identifies one of the statistics emitted per endpoint.
type Type string

// Statistic types.
const (
	TypeConsumption     Type = "consumption"
	TypeCost            Type = "cost"
	TypeConsumptionCost Type = "consumption_cost"
	TypeWastewaterCost  Type = "wastewater_cost"
)

// DisplayName returns the human readable name of the statistic type.
func (t Type) DisplayName() string {
	switch t {
	case TypeConsumption:
		return "Consumption"
	case TypeCost:
		return "Cost"
	case TypeConsumptionCost:
		return "Consumption Cost"
	case TypeWastewaterCost:
		return "Wastewater Cost"
	default:
		return string(t)
	}
}

// Unit returns the unit of measurement of the statistic type.
func (t Type) Unit() string {
	if t == TypeConsumption {
		return UnitLitres
	}
	return UnitNZD
}

// StatisticID returns the stable identifier for an endpoint's statistic.
func StatisticID(endpoint models.EndpointKind, t Type) string {
	return fmt.Sprintf("%s:%s_%s", Source, endpoint, t)
}

// Metadata builds the metadata for an endpoint's statistic.
func Metadata(endpoint models.EndpointKind, t Type) models.StatisticMetadata {
	return models.StatisticMetadata{
		StatisticID: StatisticID(endpoint, t),
		Name:        fmt.Sprintf("Watercare %s %s", endpoint.DisplayName(), t.DisplayName()),
		Unit:        t.Unit(),
		Source:      Source,
		HasSum:      true,
		HasMean:     false,
	}
}

// BuildBatches produces the metadata and points of every statistic emitted
// for a series. An empty series yields no batches.
func BuildBatches(series models.UsageSeries, rates models.Rates) []models.StatisticBatch {
	if series.Empty() {
		return nil
	}

	batches := []models.StatisticBatch{{
		Metadata: Metadata(series.Endpoint, TypeConsumption),
		Points:   Accumulate(series.Buckets),
	}}

	costs := DeriveCosts(series.Buckets, rates)
	for _, c := range []struct {
		t      Type
		points []models.StatisticPoint
	}{
		{TypeCost, costs.Total},
		{TypeConsumptionCost, costs.Consumption},
		{TypeWastewaterCost, costs.Wastewater},
	} {
		if len(c.points) == 0 {
			continue
		}
		batches = append(batches, models.StatisticBatch{
			Metadata: Metadata(series.Endpoint, c.t),
			Points:   c.points,
		})
	}
	return batches
}

// Importer receives statistic export calls. Each call carries a complete
// window and replaces any stored points at the same timestamps.
type Importer interface {
	ImportStatistics(ctx context.Context, meta models.StatisticMetadata, points []models.StatisticPoint) error
}

// ImportAll sends every non-empty batch to the importer.
func ImportAll(ctx context.Context, imp Importer, batches []models.StatisticBatch) (int, error) {
	var total int
	for _, b := range batches {
		if len(b.Points) == 0 {
			continue
		}
		if err := imp.ImportStatistics(ctx, b.Metadata, b.Points); err != nil {
			return total, fmt.Errorf("import %s: %w", b.Metadata.StatisticID, err)
		}
		total += len(b.Points)
	}
	return total, nil
}
