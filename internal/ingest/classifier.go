package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tinytelemetry/callstat/internal/logparse"
	"github.com/tinytelemetry/callstat/internal/model"
	"github.com/tinytelemetry/callstat/internal/timestamp"
)

// ErrMalformedTimestamp is returned for lines that match a pattern but carry
// no usable timestamp. It wraps timestamp.ErrTimestampParse.
var ErrMalformedTimestamp = errors.New("ingest: malformed timestamp")

// Outcome describes why Classify did or did not produce an event.
type Outcome int

const (
	OutcomeUnmatched Outcome = iota
	OutcomeEvent
	OutcomeDebug
)

// Only the phrases are case-insensitive. The method is the first
// case-sensitive M= field, so R-URI or Call-ID text never stands in for it.
var (
	bLegPattern          = regexp.MustCompile(`(?i)new request on proxy for the B[ -]LEG of the call`)
	requestMethodPattern = regexp.MustCompile(`(?i:new request on proxy).*?\bM=(\w+)`)
	replyMethodPattern   = regexp.MustCompile(`(?i:new reply on proxy).*?\bM=(\w+)`)
	dialogFailedPattern  = regexp.MustCompile(`dialog:failed.*callid: (\S+)`)
	dialogEndPattern     = regexp.MustCompile(`dialog:end.*callid: (\S+)\s.*start_time: (\d+) duration: (\d+)`)
)

// HourResolver maps a raw line to its hour bucket.
type HourResolver interface {
	Hour(line string) (int, error)
}

// Classifier turns raw proxy lines into typed events.
// Rules are tried in a fixed order and the first match wins, so an A-leg
// INVITE is never also counted as a generic INVITE request.
type Classifier struct {
	hours HourResolver
}

// NewClassifier creates a Classifier. A nil resolver uses the current year.
func NewClassifier(hours HourResolver) *Classifier {
	if hours == nil {
		hours = timestamp.NewParser()
	}
	return &Classifier{hours: hours}
}

// Classify maps one line to at most one event.
func (c *Classifier) Classify(line string) (model.Event, Outcome, error) {
	if logparse.IsDebug(line) {
		return model.Event{}, OutcomeDebug, nil
	}

	ev, ok := match(line)
	if !ok {
		return model.Event{}, OutcomeUnmatched, nil
	}

	hour, err := c.hours.Hour(line)
	if err != nil {
		return model.Event{}, OutcomeUnmatched, fmt.Errorf("%w: %w", ErrMalformedTimestamp, err)
	}
	ev.Hour = hour
	return ev, OutcomeEvent, nil
}

func match(line string) (model.Event, bool) {
	if m := requestMethodPattern.FindStringSubmatch(line); m != nil {
		if m[1] == "INVITE" {
			if bLegPattern.MatchString(line) {
				return model.Event{Kind: model.EventInviteLeg, Leg: model.LegB}, true
			}
			return model.Event{Kind: model.EventInviteLeg, Leg: model.LegA}, true
		}
		return model.Event{Kind: model.EventSIPMethod, Direction: model.DirectionRequest, Method: m[1]}, true
	}
	if m := replyMethodPattern.FindStringSubmatch(line); m != nil {
		return model.Event{Kind: model.EventSIPMethod, Direction: model.DirectionReply, Method: m[1]}, true
	}
	if m := dialogFailedPattern.FindStringSubmatch(line); m != nil {
		return model.Event{Kind: model.EventDialogFailed, CallID: m[1]}, true
	}
	if m := dialogEndPattern.FindStringSubmatch(line); m != nil {
		// 63-bit bounds keep start+duration and int64 counters from overflowing.
		start, err := strconv.ParseUint(m[2], 10, 63)
		if err != nil {
			return model.Event{}, false
		}
		duration, err := strconv.ParseUint(m[3], 10, 63)
		if err != nil {
			return model.Event{}, false
		}
		return model.Event{Kind: model.EventDialogEnded, CallID: m[1], StartTime: start, Duration: duration}, true
	}
	return model.Event{}, false
}
