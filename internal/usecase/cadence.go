package usecase

import (
	"math"
	"sort"
	"strings"
	"time"

	"subscription-radar/internal/domain/model"
)

// cadenceWindow maps a band of median inter-charge gaps (in days) onto a
// discrete cadence. Windows are checked smallest-first; the first match wins.
type cadenceWindow struct {
	cadence  model.Cadence
	min, max float64
	days     int
}

var cadenceWindows = []cadenceWindow{
	{cadence: model.CadenceWeekly, min: 5, max: 9, days: 7},
	{cadence: model.CadenceBiweekly, min: 12, max: 18, days: 14},
	{cadence: model.CadenceMonthly, min: 25, max: 35, days: 30},
	{cadence: model.CadenceQuarterly, min: 80, max: 100, days: 90},
	{cadence: model.CadenceYearly, min: 330, max: 400, days: 365},
}

func matchCadence(medianDays float64) (cadenceWindow, bool) {
	for _, w := range cadenceWindows {
		if medianDays >= w.min && medianDays <= w.max {
			return w, true
		}
	}
	return cadenceWindow{}, false
}

// normalizeMerchant lowercases the label, collapses internal whitespace runs
// and trims. An empty result means the transaction cannot be grouped.
func normalizeMerchant(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// median returns the middle value; even-length inputs average the central pair.
func median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// daysBetween counts whole days from a to b; both are expected at UTC midnight.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}
