package ingest

import "github.com/tinytelemetry/callstat/internal/model"

// EnvelopeProcessor consumes source-tagged lines and emits events to a sink.
type EnvelopeProcessor interface {
	ProcessEnvelope(model.IngestEnvelope) *ProcessResult
	Summary() model.SourceSummary
}

// NewEnvelopeProcessor creates the classifier-backed processor implementation.
func NewEnvelopeProcessor(classifier *Classifier, sink model.EventSink, sourceName string) EnvelopeProcessor {
	return NewProcessor(classifier, sink, sourceName)
}
