// Package stats derives summaries and monthly series from a snapshot of
// charging records. Nothing here is cached; every call recomputes from the
// records it is given.
package stats

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/runnerr0/chargebook/internal/storage"
)

// DefaultWindow is the number of months in a series when none is requested.
const DefaultWindow = 6

// MaxWindow bounds the number of months in one series.
const MaxWindow = 120

// PeriodLayout formats a bucket's period key.
const PeriodLayout = "2006-01"

// Summary holds whole-history totals.
type Summary struct {
	TotalCost     float64 `json:"totalCost"`
	TotalEnergy   float64 `json:"totalEnergy"`
	AvgCostPerKWh float64 `json:"avgCostPerKwh"`
	SessionCount  int     `json:"sessionCount"`
}

// MonthlyBucket aggregates one calendar month.
type MonthlyBucket struct {
	Period      string  `json:"periodKey"`
	Label       string  `json:"label"`
	TotalCost   float64 `json:"totalCost"`
	TotalEnergy float64 `json:"totalEnergy"`
	Sessions    int     `json:"sessions"`
}

// Summarize totals cost and energy over records. The average is zero when
// there is no energy. Non-finite inputs count as zero, so every field of the
// result is finite.
func Summarize(records []storage.ChargingRecord) Summary {
	cost, energy := decimal.Zero, decimal.Zero
	for _, r := range records {
		cost = cost.Add(amount(r.Cost))
		energy = energy.Add(amount(r.EnergyKWh))
	}

	s := Summary{
		TotalCost:    toFloat(cost),
		TotalEnergy:  toFloat(energy),
		SessionCount: len(records),
	}
	if energy.IsPositive() {
		s.AvgCostPerKWh = toFloat(cost.Div(energy))
	}
	return s
}

// Engine builds monthly series in a fixed time zone and language.
type Engine struct {
	Location *time.Location
	Labels   Labeler
}

// NewEngine returns an engine labeling months for locale and bucketing dates
// in loc. A nil loc means UTC.
func NewEngine(locale string, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{Location: loc, Labels: NewLabeler(locale)}
}

// MonthlySeries returns exactly window buckets, oldest first, for the
// calendar months ending with the one containing ref. Records dated outside
// those months are ignored. A window of zero or less means DefaultWindow;
// one above MaxWindow is clamped to it.
func (e *Engine) MonthlySeries(records []storage.ChargingRecord, ref time.Time, window int) []MonthlyBucket {
	if window <= 0 {
		window = DefaultWindow
	}
	window = min(window, MaxWindow)
	loc := e.location()

	ref = ref.In(loc)
	year, month := ref.Year(), ref.Month()

	buckets := make([]MonthlyBucket, window)
	index := make(map[string]int, window)
	for i := range buckets {
		// time.Date normalizes month underflow into earlier years.
		start := time.Date(year, month-time.Month(window-1-i), 1, 0, 0, 0, 0, loc)
		period := start.Format(PeriodLayout)
		buckets[i] = MonthlyBucket{Period: period, Label: e.Labels.Short(start.Month())}
		index[period] = i
	}

	costs := make([]decimal.Decimal, window)
	energies := make([]decimal.Decimal, window)
	for _, r := range records {
		i, ok := index[r.Date.In(loc).Format(PeriodLayout)]
		if !ok {
			continue
		}
		costs[i] = costs[i].Add(amount(r.Cost))
		energies[i] = energies[i].Add(amount(r.EnergyKWh))
		buckets[i].Sessions++
	}
	for i := range buckets {
		buckets[i].TotalCost = toFloat(costs[i])
		buckets[i].TotalEnergy = toFloat(energies[i])
	}
	return buckets
}

// PeriodOf returns the period key t falls in for this engine.
func (e *Engine) PeriodOf(t time.Time) string {
	return t.In(e.location()).Format(PeriodLayout)
}

func (e *Engine) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// LatestNonEmptyBuckets keeps the buckets with a positive cost, newest first.
func LatestNonEmptyBuckets(series []MonthlyBucket) []MonthlyBucket {
	out := make([]MonthlyBucket, 0, len(series))
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].TotalCost > 0 {
			out = append(out, series[i])
		}
	}
	return out
}

func amount(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func toFloat(d decimal.Decimal) float64 {
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
