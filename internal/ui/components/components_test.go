package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

func TestNewSpinner(t *testing.T) {
	s := NewSpinner("Loading")
	if s.label != "Loading" {
		t.Error("Spinner label mismatch")
	}
}

func TestSpinner_Methods(t *testing.T) {
	s := NewSpinner("Init")

	s.SetLabel("Fetching usage")
	if s.Label() != "Fetching usage" {
		t.Errorf("Label = %s, want Fetching usage", s.Label())
	}

	if s.View() == "" {
		t.Error("View returned empty")
	}

	if !strings.Contains(s.ViewWithLabel(), "Fetching usage") {
		t.Error("ViewWithLabel should include the label")
	}

	if s.Init() == nil {
		t.Error("Init should return command")
	}

	_, cmd := s.Update(spinner.TickMsg{})
	if cmd == nil {
		t.Error("Update should return command for tick")
	}
}

func TestRenderSpinnerCentered(t *testing.T) {
	s := NewSpinner("Loading...")
	view := RenderSpinnerCentered(s, 20, 5)
	if view == "" {
		t.Error("RenderSpinnerCentered returned empty")
	}
}

func TestRenderLineChart(t *testing.T) {
	s := RenderLineChart([]float64{120, 340, 80, 410}, 20, 5, "Litres")
	if !strings.Contains(ansi.Strip(s), "Litres") {
		t.Error("RenderLineChart should include caption")
	}

	empty := RenderLineChart(nil, 20, 5, "Litres")
	if !strings.Contains(empty, "No data") {
		t.Error("empty chart should say no data")
	}
}

func TestRenderUsageChart(t *testing.T) {
	litres := []float64{100, 200, 150}
	cumulative := []float64{100, 300, 450}
	s := RenderUsageChart(litres, cumulative, 20, 5, "Usage")
	if s == "" {
		t.Error("RenderUsageChart returned empty")
	}

	// Unequal lengths are padded rather than rejected.
	if RenderUsageChart(litres, cumulative[:1], 20, 5, "") == "" {
		t.Error("RenderUsageChart should pad shorter series")
	}

	if !strings.Contains(RenderUsageChart(nil, nil, 20, 5, ""), "No data") {
		t.Error("empty chart should say no data")
	}
}

func TestRenderBarChart(t *testing.T) {
	s := RenderBarChart([]float64{10, 20}, []string{"Mon", "Tue"}, 40)
	plain := ansi.Strip(s)
	if !strings.Contains(plain, "Mon") || !strings.Contains(plain, "20") {
		t.Errorf("RenderBarChart missing label or value: %q", plain)
	}
	if RenderBarChart(nil, nil, 40) != "" {
		t.Error("empty bar chart should render nothing")
	}
}

func TestRenderHourlyHeatmap(t *testing.T) {
	for _, n := range []int{24, 48, 5} {
		data := make([]float64, n)
		data[0] = 10
		s := ansi.Strip(RenderHourlyHeatmap(data))
		if !strings.HasPrefix(s, "00 ") || !strings.HasSuffix(s, " 23") {
			t.Errorf("heatmap with %d buckets framed wrong: %q", n, s)
		}
	}
}

func TestRenderWeeklyPattern(t *testing.T) {
	s := RenderWeeklyPattern([]float64{1, 2, 3, 4, 5, 6, 7}, nil)
	if !strings.Contains(s, "Sun") || !strings.Contains(s, "Sat █") {
		t.Errorf("unexpected weekly pattern: %q", s)
	}
}

func TestRenderSparkline(t *testing.T) {
	s := RenderSparkline([]float64{0, 5, 10}, 10)
	if s != "▁▄█" {
		t.Errorf("RenderSparkline = %q", s)
	}
	if RenderSparkline([]float64{1}, 0) != "" {
		t.Error("zero width should render nothing")
	}
}

func TestRenderThresholdSparkline(t *testing.T) {
	s := ansi.Strip(RenderThresholdSparkline([]float64{0, 5, 10}, 10, 8))
	if s != "▁▄█" {
		t.Errorf("RenderThresholdSparkline = %q", s)
	}
}

func TestRenderLegend(t *testing.T) {
	items := []LegendItem{
		{Label: "Litres", Color: lipgloss.Color("45")},
		{Label: "Cumulative", Color: lipgloss.Color("214")},
	}
	s := RenderLegend(items)
	if !strings.Contains(s, "Litres") || !strings.Contains(s, "Cumulative") {
		t.Error("RenderLegend missing labels")
	}
}

func TestFraction(t *testing.T) {
	tests := []struct {
		name              string
		litres, threshold float64
		want              float64
	}{
		{"disabled", 500, 0, 0},
		{"negative", -3, 100, 0},
		{"half", 50, 100, 0.5},
		{"capped", 250, 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fraction(tt.litres, tt.threshold); got != tt.want {
				t.Errorf("Fraction(%v, %v) = %v, want %v", tt.litres, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestUsageGauge_View(t *testing.T) {
	g := NewUsageGauge(30)

	withBar := ansi.Strip(g.View("Yesterday", 420, 500, 80))
	if !strings.Contains(withBar, "420 L") || !strings.Contains(withBar, "/ 500 L") {
		t.Errorf("gauge view = %q", withBar)
	}

	noBar := ansi.Strip(g.View("Yesterday", 420, 0, 80))
	if strings.Contains(noBar, "/") {
		t.Errorf("gauge without threshold should not show a limit: %q", noBar)
	}
}

func TestRenderShareBar(t *testing.T) {
	colors := []lipgloss.Color{"45", "214"}
	s := ansi.Strip(RenderShareBar([]float64{3, 1}, colors, 20))
	if n := len([]rune(s)); n != 20 {
		t.Errorf("share bar width = %d, want 20", n)
	}
	if RenderShareBar([]float64{0, 0}, colors, 20) != "" {
		t.Error("zero total should render nothing")
	}
}
