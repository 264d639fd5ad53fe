package kpi

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tinytelemetry/callstat/internal/model"
)

// Derive converts finalized accumulators into a sorted, zero-filled report.
// Only hours that saw at least one event appear.
func Derive(set *Set) *model.Report {
	hours := set.Hours()
	accs := make([]*Accumulator, 0, len(hours))
	for _, h := range hours {
		if acc, ok := set.Get(h); ok {
			accs = append(accs, acc)
		}
	}

	names := make(map[string]struct{})
	for _, acc := range accs {
		for name := range acc.Counters {
			names[name] = struct{}{}
		}
	}
	metrics := OrderMetrics(names)

	rows := make([]model.HourRow, 0, len(accs))
	for _, acc := range accs {
		rows = append(rows, DeriveRow(acc, names))
	}

	return &model.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now(),
		Metrics:     metrics,
		Rows:        rows,
	}
}

// DeriveRow computes one report row. Every name in counters is present in the
// result, zero when the hour never saw it.
func DeriveRow(acc *Accumulator, counters map[string]struct{}) model.HourRow {
	metrics := make(map[string]float64, len(counters)+len(DerivedMetrics))
	for name := range counters {
		metrics[name] = float64(acc.Counters[name])
	}
	for name, v := range acc.Counters {
		metrics[name] = float64(v)
	}

	successful := acc.Counters[MetricSuccessfulCalls]
	totalTime := acc.Counters[MetricTotalCallTime]
	attempts := acc.Counters[MetricInviteALeg]

	metrics[MetricMaxCC] = float64(acc.MaxConcurrent())
	metrics[MetricACD] = ACD(totalTime, successful)
	metrics[MetricASR] = ASR(successful, attempts)
	metrics[MetricCAPS] = CAPS(attempts)
	metrics[MetricErlang] = Erlang(totalTime)

	return model.HourRow{
		Hour:    acc.Hour,
		Label:   HourLabel(acc.Hour),
		Metrics: metrics,
	}
}

// ACD is the rounded mean call duration; 0 without successful calls.
func ACD(totalCallTime, successful int64) float64 {
	if successful <= 0 {
		return 0
	}
	return math.RoundToEven(float64(totalCallTime) / float64(successful))
}

// ASR is the rounded percentage of A-leg attempts that completed; 0 without
// attempts.
func ASR(successful, attempts int64) float64 {
	if attempts <= 0 {
		return 0
	}
	return math.RoundToEven(float64(successful) / float64(attempts) * 100)
}

// CAPS is the mean number of call attempts per second over the hour.
func CAPS(attempts int64) float64 {
	return float64(attempts) / HourSeconds
}

// Erlang is the offered traffic of the hour in Erlangs.
func Erlang(totalCallTime int64) float64 {
	return float64(totalCallTime) / HourSeconds
}

// HourLabel formats an hour bucket as "HH:00".
func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}
