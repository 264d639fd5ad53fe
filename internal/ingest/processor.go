package ingest

import (
	"errors"
	"log"
	"sync/atomic"

	"github.com/tinytelemetry/callstat/internal/model"
)

// maxLoggedMalformed caps per-source malformed timestamp log lines.
const maxLoggedMalformed = 5

// Processor handles line classification and routing of events to a sink.
type Processor struct {
	classifier *Classifier
	sink       model.EventSink
	sourceName string

	lines          atomic.Int64
	events         atomic.Int64
	debugSkipped   atomic.Int64
	unclassifiable atomic.Int64
}

// NewProcessor creates a new line processor feeding sink.
func NewProcessor(classifier *Classifier, sink model.EventSink, sourceName string) *Processor {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &Processor{
		classifier: classifier,
		sink:       sink,
		sourceName: sourceName,
	}
}

// ProcessResult holds the result of processing a log line.
type ProcessResult struct {
	Event   model.Event
	Outcome Outcome
	Err     error
}

// ProcessEnvelope classifies one line and forwards any event to the sink.
// A malformed timestamp is counted and logged but never stops the stream.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) *ProcessResult {
	p.lines.Add(1)

	ev, outcome, err := p.classifier.Classify(env.Line)
	if err != nil {
		n := p.unclassifiable.Add(1)
		if errors.Is(err, ErrMalformedTimestamp) && n <= maxLoggedMalformed {
			source := env.Source
			if source == "" {
				source = p.sourceName
			}
			log.Printf("ingest: %s: skipping line: %v", source, err)
		}
		return &ProcessResult{Outcome: outcome, Err: err}
	}

	switch outcome {
	case OutcomeDebug:
		p.debugSkipped.Add(1)
	case OutcomeEvent:
		p.events.Add(1)
		if p.sink != nil {
			p.sink.Absorb(ev)
		}
	}
	return &ProcessResult{Event: ev, Outcome: outcome}
}

// Summary returns the per-source statistics gathered so far.
func (p *Processor) Summary() model.SourceSummary {
	return model.SourceSummary{
		Name:           p.sourceName,
		Lines:          p.lines.Load(),
		Events:         p.events.Load(),
		DebugSkipped:   p.debugSkipped.Load(),
		Unclassifiable: p.unclassifiable.Load(),
	}
}
