package history

import (
	"time"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

// Summary aggregates the points of one statistic over the selected range.
type Summary struct {
	First    time.Time
	Last     time.Time
	PeakAt   time.Time
	States   []float64
	Sums     []float64
	Total    float64
	Average  float64
	Peak     float64
	Count    int
	SubDaily bool
	Daily    bool

	// HourProfile is the average bucket value per local hour. Only set for
	// sub-daily series.
	HourProfile []float64
	// WeekdayProfile is the average daily total per local weekday, Sunday
	// first. Only set for daily or finer series.
	WeekdayProfile []float64
	PeakHour       int
	PeakWeekday    time.Weekday
}

// HasData reports whether any point was summarized.
func (s Summary) HasData() bool {
	return s.Count > 0
}

// Summarize computes totals and usage profiles. Points must be ordered by start.
func Summarize(points []models.StatisticPoint, loc *time.Location) Summary {
	var s Summary
	if len(points) == 0 {
		return s
	}
	if loc == nil {
		loc = time.Local
	}

	s.Count = len(points)
	s.First = points[0].Start
	s.Last = points[len(points)-1].Start
	s.States = make([]float64, len(points))
	s.Sums = make([]float64, len(points))

	minGap := time.Duration(0)
	for i, p := range points {
		s.States[i] = p.State
		s.Sums[i] = p.Sum
		s.Total += p.State
		if i == 0 || p.State > s.Peak {
			s.Peak = p.State
			s.PeakAt = p.Start
		}
		if i > 0 {
			gap := p.Start.Sub(points[i-1].Start)
			if gap > 0 && (minGap == 0 || gap < minGap) {
				minGap = gap
			}
		}
	}
	s.Average = s.Total / float64(s.Count)

	if minGap > 0 {
		s.SubDaily = minGap < 24*time.Hour
		// DST days are 23 or 25 hours long.
		s.Daily = minGap <= 25*time.Hour
	}

	if s.SubDaily {
		s.HourProfile, s.PeakHour = hourProfile(points, loc)
	}
	if s.Daily {
		s.WeekdayProfile, s.PeakWeekday = weekdayProfile(points, loc)
	}
	return s
}

func hourProfile(points []models.StatisticPoint, loc *time.Location) ([]float64, int) {
	sums := make([]float64, 24)
	counts := make([]int, 24)
	for _, p := range points {
		h := p.Start.In(loc).Hour()
		sums[h] += p.State
		counts[h]++
	}
	peak := 0
	for h := range sums {
		if counts[h] > 0 {
			sums[h] /= float64(counts[h])
		}
		if sums[h] > sums[peak] {
			peak = h
		}
	}
	return sums, peak
}

func weekdayProfile(points []models.StatisticPoint, loc *time.Location) ([]float64, time.Weekday) {
	type day struct {
		y    int
		m    time.Month
		d    int
		week time.Weekday
	}
	totals := make(map[day]float64)
	for _, p := range points {
		t := p.Start.In(loc)
		totals[day{t.Year(), t.Month(), t.Day(), t.Weekday()}] += p.State
	}

	sums := make([]float64, 7)
	counts := make([]int, 7)
	for k, v := range totals {
		sums[k.week] += v
		counts[k.week]++
	}
	peak := time.Sunday
	for d := range sums {
		if counts[d] > 0 {
			sums[d] /= float64(counts[d])
		}
		if sums[d] > sums[peak] {
			peak = time.Weekday(d)
		}
	}
	return sums, peak
}
