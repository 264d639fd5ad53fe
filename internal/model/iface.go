package model

// EventSink absorbs classified events.
type EventSink interface {
	Absorb(ev Event)
}

// ReportReader provides read access to a finished report.
type ReportReader interface {
	Report() *Report
}

// ReportWriter persists or publishes a finished report.
type ReportWriter interface {
	WriteReport(report *Report) error
}
