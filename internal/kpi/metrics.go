package kpi

import (
	"sort"
	"strings"

	"github.com/tinytelemetry/callstat/internal/model"
)

// Counter and KPI names as they appear in reports.
const (
	MetricInviteALeg      = "INVITE A-leg"
	MetricInviteBLeg      = "INVITE B-leg"
	MetricFailedCalls     = "Failed calls"
	MetricSuccessfulCalls = "Successful calls"
	MetricTotalCallTime   = "Total call time"
	MetricLongestCall     = "Longest Call"
	// MetricZDC is labelled "Zero Duration Calls" by operators but counts
	// every ended dialog, whatever its duration.
	MetricZDC = "ZDC"

	MetricMaxCC  = "Max CC"
	MetricACD    = "ACD"
	MetricASR    = "ASR"
	MetricCAPS   = "CAPS"
	MetricErlang = "Erlang"
)

// HourSeconds is the width of one bucket and of its concurrency timeline.
const HourSeconds = 3600

var leadingCounters = []string{MetricInviteALeg, MetricInviteBLeg}

var trailingCounters = []string{
	MetricFailedCalls,
	MetricSuccessfulCalls,
	MetricTotalCallTime,
	MetricLongestCall,
	MetricZDC,
}

// DerivedMetrics lists the KPIs computed from counters, in report order.
var DerivedMetrics = []string{MetricMaxCC, MetricACD, MetricASR, MetricCAPS, MetricErlang}

// MethodMetric returns the counter name for a SIP method in one direction.
func MethodMetric(direction model.Direction, method string) string {
	return method + " " + string(direction)
}

// isMethodMetric reports whether name is a "<METHOD> request|reply" counter.
func isMethodMetric(name string) bool {
	return strings.HasSuffix(name, " "+string(model.DirectionRequest)) ||
		strings.HasSuffix(name, " "+string(model.DirectionReply))
}

// OrderMetrics returns counter names in report order followed by the derived
// KPIs. Known counters keep a fixed position, method counters are sorted, and
// anything else goes last in lexical order.
func OrderMetrics(counters map[string]struct{}) []string {
	ordered := make([]string, 0, len(counters)+len(DerivedMetrics))
	seen := make(map[string]bool, len(counters))

	for _, name := range leadingCounters {
		if _, ok := counters[name]; ok {
			ordered = append(ordered, name)
			seen[name] = true
		}
	}

	var methods, other []string
	for name := range counters {
		if seen[name] || isKnownTrailing(name) {
			continue
		}
		if isMethodMetric(name) {
			methods = append(methods, name)
		} else {
			other = append(other, name)
		}
	}
	sort.Strings(methods)
	sort.Strings(other)
	ordered = append(ordered, methods...)

	for _, name := range trailingCounters {
		if _, ok := counters[name]; ok {
			ordered = append(ordered, name)
		}
	}
	ordered = append(ordered, other...)
	return append(ordered, DerivedMetrics...)
}

func isKnownTrailing(name string) bool {
	for _, t := range trailingCounters {
		if t == name {
			return true
		}
	}
	return false
}
