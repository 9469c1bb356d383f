// Package export renders stored statistics as downloadable usage statements.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/j-veylop/watercare-dashboard-tui/internal/metrics"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/statistics"
)

// Format is a statement file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

const (
	summarySheet = "summary"
	pointsSheet  = "points"
	stampLayout  = "2006-01-02 15:04"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want xlsx or pdf)", s)
	}
}

// Summary holds the headline figures of a statement.
type Summary struct {
	From  time.Time
	To    time.Time
	Total float64
	Peak  float64
	Count int
}

// Summarize computes the statement headline for points.
func Summarize(points []models.StatisticPoint) Summary {
	if len(points) == 0 {
		return Summary{}
	}
	states := lo.Map(points, func(p models.StatisticPoint, _ int) float64 { return p.State })
	return Summary{
		From:  points[0].Start,
		To:    points[len(points)-1].Start,
		Total: lo.Sum(states),
		Peak:  lo.Max(states),
		Count: len(points),
	}
}

// Write renders the statement in format f to w.
func Write(w io.Writer, f Format, meta models.StatisticMetadata, points []models.StatisticPoint) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatXLSX:
		data, err = BuildStatementXLSX(meta, points)
	case FormatPDF:
		data, err = BuildStatementPDF(meta, points)
	default:
		err = fmt.Errorf("unsupported export format %q", f)
	}
	if err == nil {
		_, err = w.Write(data)
	}
	metrics.ObserveExport(string(f), err)
	return err
}

// formatValue renders v in the statistic unit.
func formatValue(unit string, v float64) string {
	if unit == statistics.UnitNZD {
		return fmt.Sprintf("$%.2f", v)
	}
	return fmt.Sprintf("%.0f %s", v, unit)
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(stampLayout)
}

// BuildStatementPDF renders a statement PDF with a summary block and one table
// row per point.
func BuildStatementPDF(meta models.StatisticMetadata, points []models.StatisticPoint) ([]byte, error) {
	s := Summarize(points)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(meta.Name, false)
	pdf.SetCreator("watercare-dashboard-tui", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "Watercare Usage Statement")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	for _, line := range []string{
		fmt.Sprintf("Statistic: %s (%s)", meta.Name, meta.StatisticID),
		fmt.Sprintf("Period: %s to %s", formatStamp(s.From), formatStamp(s.To)),
		fmt.Sprintf("Points: %d", s.Count),
		fmt.Sprintf("Total: %s", formatValue(meta.Unit, s.Total)),
		fmt.Sprintf("Peak: %s", formatValue(meta.Unit, s.Peak)),
		fmt.Sprintf("Generated: %s", time.Now().Format(time.RFC3339)),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Start", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Value ("+meta.Unit+")", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Running total", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, p := range points {
		pdf.CellFormat(50, 6, formatStamp(p.Start), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, formatValue(meta.Unit, p.State), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, formatValue(meta.Unit, p.Sum), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildStatementXLSX renders a workbook with a summary sheet and a points
// sheet. Values are written as numbers so they stay usable in formulas.
func BuildStatementXLSX(meta models.StatisticMetadata, points []models.StatisticPoint) ([]byte, error) {
	s := Summarize(points)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(pointsSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Watercare Usage Statement"},
		{},
		{"Statistic", meta.StatisticID},
		{"Name", meta.Name},
		{"Unit", meta.Unit},
		{"From", formatStamp(s.From)},
		{"To", formatStamp(s.To)},
		{"Points", s.Count},
		{"Total", s.Total},
		{"Peak", s.Peak},
	}
	for i, row := range summary {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetCellStyle(summarySheet, "A1", "A1", bold)
	_ = f.SetColWidth(summarySheet, "A", "B", 28)

	header := []any{"Start", "Value (" + meta.Unit + ")", "Running total"}
	if err := f.SetSheetRow(pointsSheet, "A1", &header); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(pointsSheet, "A1", "C1", bold)
	for i, p := range points {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{formatStamp(p.Start), p.State, p.Sum}
		if err := f.SetSheetRow(pointsSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(pointsSheet, "A", "C", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
