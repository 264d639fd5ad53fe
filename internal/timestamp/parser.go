package timestamp

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrTimestampParse is returned when a line carries no usable timestamp.
var ErrTimestampParse = errors.New("timestamp: no parseable timestamp")

// syslogPattern matches "Mon DD HH:MM:SS.ffffff " as written by the proxy.
// The day may be space padded ("Jan  1").
var syslogPattern = regexp.MustCompile(`(\w{3}) {1,2}(\d{1,2}) (\d{2}:\d{2}:\d{2})\.\d{6}(?:\s|$)`)

const layout = "2006 Jan 2 15:04:05"

// Parser resolves year-less proxy timestamps.
// Logs carry no year, so one is supplied: either fixed or taken from the clock.
type Parser struct {
	year int
	now  func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithYear pins the year used for every timestamp. Zero keeps the clock year.
func WithYear(year int) Option {
	return func(p *Parser) { p.year = year }
}

// WithClock replaces time.Now as the source of the current year.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// NewParser creates a Parser. Without options the current calendar year is used.
func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Year returns the year that will be applied to parsed timestamps.
func (p *Parser) Year() int {
	if p.year > 0 {
		return p.year
	}
	return p.now().Year()
}

// ParseTime returns the wall-clock time written on the line. The fields are
// kept as written in a UTC value, so no zone rule (such as a DST gap) can
// shift them.
func (p *Parser) ParseTime(line string) (time.Time, error) {
	m := syslogPattern.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, ErrTimestampParse
	}
	return p.build(m[1], m[2], m[3])
}

// Hour returns the hour of day (0-23) of the line's timestamp.
func (p *Parser) Hour(line string) (int, error) {
	ts, err := p.ParseTime(line)
	if err != nil {
		return 0, err
	}
	return ts.Hour(), nil
}

func (p *Parser) build(month, day, clock string) (time.Time, error) {
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q", ErrTimestampParse, day)
	}
	value := fmt.Sprintf("%d %s %d %s", p.Year(), month, d, clock)
	ts, err := time.ParseInLocation(layout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrTimestampParse, err)
	}
	return ts, nil
}
