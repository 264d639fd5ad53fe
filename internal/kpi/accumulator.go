package kpi

import "github.com/tinytelemetry/callstat/internal/model"

// Accumulator holds the mutable state of one hour bucket.
// It is not safe for concurrent use; Set serializes access.
type Accumulator struct {
	Hour      int
	Counters  map[string]int64
	Durations []uint64
	Timeline  [HourSeconds]int64
}

// NewAccumulator creates an empty accumulator for hour.
func NewAccumulator(hour int) *Accumulator {
	return &Accumulator{
		Hour:     hour,
		Counters: make(map[string]int64),
	}
}

// Absorb applies one event. Events are not de-duplicated: absorbing the same
// event twice counts it twice.
func (a *Accumulator) Absorb(ev model.Event) {
	switch ev.Kind {
	case model.EventInviteLeg:
		if ev.Leg == model.LegB {
			a.Counters[MetricInviteBLeg]++
		} else {
			a.Counters[MetricInviteALeg]++
		}
	case model.EventSIPMethod:
		a.Counters[MethodMetric(ev.Direction, ev.Method)]++
	case model.EventDialogFailed:
		a.Counters[MetricFailedCalls]++
	case model.EventDialogEnded:
		a.absorbEnded(ev.StartTime, ev.Duration)
	}
}

func (a *Accumulator) absorbEnded(start, duration uint64) {
	a.Counters[MetricSuccessfulCalls]++
	a.Counters[MetricTotalCallTime] += int64(duration)
	a.Counters[MetricZDC]++
	if cur, ok := a.Counters[MetricLongestCall]; !ok || int64(duration) > cur {
		a.Counters[MetricLongestCall] = int64(duration)
	}
	a.Durations = append(a.Durations, duration)

	lo, hi := TimelineSpan(start, duration)
	for t := lo; t <= hi; t++ {
		a.Timeline[t]++
	}
}

// TimelineSpan returns the inclusive second range a call occupies within its
// hour: start mod 3600 through (start+duration) mod 3600. A call that wraps
// past the end of the hour gives hi < lo, an empty span.
func TimelineSpan(start, duration uint64) (lo, hi int) {
	lo = int(start % HourSeconds)
	hi = int((start + duration) % HourSeconds)
	return lo, hi
}

// Merge folds other into a: counters sum, durations concatenate and
// timelines add element-wise. Longest Call takes the maximum.
func (a *Accumulator) Merge(other *Accumulator) {
	for name, v := range other.Counters {
		if name == MetricLongestCall {
			if cur, ok := a.Counters[name]; !ok || v > cur {
				a.Counters[name] = v
			}
			continue
		}
		a.Counters[name] += v
	}
	a.Durations = append(a.Durations, other.Durations...)
	for t := range a.Timeline {
		a.Timeline[t] += other.Timeline[t]
	}
}

// MaxConcurrent returns the peak of the concurrency timeline.
func (a *Accumulator) MaxConcurrent() int64 {
	var peak int64
	for _, v := range a.Timeline {
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Clone returns a deep copy of the accumulator.
func (a *Accumulator) Clone() *Accumulator {
	c := NewAccumulator(a.Hour)
	for k, v := range a.Counters {
		c.Counters[k] = v
	}
	c.Durations = append([]uint64(nil), a.Durations...)
	c.Timeline = a.Timeline
	return c
}
