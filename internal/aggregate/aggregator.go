package aggregate

import (
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/callstat/internal/ingest"
	"github.com/tinytelemetry/callstat/internal/kpi"
	"github.com/tinytelemetry/callstat/internal/logsource"
	"github.com/tinytelemetry/callstat/internal/model"
)

// Opener turns a source name into a running LogSource.
type Opener func(ctx context.Context, name string) (logsource.LogSource, error)

// Config controls an aggregation run.
type Config struct {
	// Workers bounds how many sources are read at once.
	Workers int
	// Classifier is shared by all passes. Nil uses the current year.
	Classifier *ingest.Classifier
	// OnSourceError is called once for every skipped source.
	OnSourceError func(name string, err error)
}

// Aggregator runs one pass per source and merges the per-source hour sets
// into a single run-wide set.
type Aggregator struct {
	cfg  Config
	open Opener
	set  *kpi.Set

	mu       sync.Mutex
	progress []logsource.ProgressSource
	finished int64
}

// New creates an aggregator that opens sources with open.
func New(cfg Config, open Opener) *Aggregator {
	if cfg.Workers <= 0 {
		cfg.Workers = model.DefaultWorkers
	}
	if cfg.Classifier == nil {
		cfg.Classifier = ingest.NewClassifier(nil)
	}
	return &Aggregator{
		cfg:  cfg,
		open: open,
		set:  kpi.NewSet(),
	}
}

// Run reads every named source and merges the successful ones. Source
// failures never abort the run; they are reported through the summaries.
// The returned error is non-nil only when ctx was cancelled, in which case
// the set holds whatever was merged before cancellation.
func (a *Aggregator) Run(ctx context.Context, names []string) (*kpi.Set, []model.SourceSummary, error) {
	summaries := make([]model.SourceSummary, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, name := range names {
		if gctx.Err() != nil {
			summaries[i] = model.SourceSummary{Name: name, Error: gctx.Err().Error()}
			continue
		}
		g.Go(func() error {
			summaries[i] = a.runSource(gctx, name)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return a.set, summaries, err
	}
	return a.set, summaries, nil
}

func (a *Aggregator) runSource(ctx context.Context, name string) model.SourceSummary {
	src, err := a.open(ctx, name)
	if err != nil {
		a.fail(name, err)
		return model.SourceSummary{Name: name, Error: err.Error()}
	}
	defer src.Stop()
	a.track(src)
	defer a.untrack(src)

	delta := kpi.NewSet()
	proc := ingest.NewEnvelopeProcessor(a.cfg.Classifier, delta, src.Name())
	if typed, ok := src.(interface{ MIME() string }); ok {
		log.Printf("aggregate: processing %s (%s)", src.Name(), typed.MIME())
	} else {
		log.Printf("aggregate: processing %s", src.Name())
	}

	for env := range src.Lines() {
		proc.ProcessEnvelope(env)
	}

	summary := proc.Summary()
	summary.Name = name
	if err := src.Err(); err != nil {
		if !errors.Is(err, context.Canceled) {
			a.fail(name, err)
		}
		summary.Error = err.Error()
		return summary
	}

	a.set.Merge(delta)
	log.Printf("aggregate: %s: %d lines, %d events over %d hours, %d debug skipped, %d unclassifiable",
		name, summary.Lines, summary.Events, delta.Len(), summary.DebugSkipped, summary.Unclassifiable)
	return summary
}

func (a *Aggregator) fail(name string, err error) {
	log.Printf("aggregate: skipping source %s: %v", name, err)
	if a.cfg.OnSourceError != nil {
		a.cfg.OnSourceError(name, err)
	}
}

func (a *Aggregator) track(src logsource.LogSource) {
	ps, ok := src.(logsource.ProgressSource)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.progress = append(a.progress, ps)
}

func (a *Aggregator) untrack(src logsource.LogSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, ps := range a.progress {
		if ps == src {
			a.finished += ps.BytesRead()
			a.progress = append(a.progress[:i], a.progress[i+1:]...)
			return
		}
	}
}

// BytesRead reports raw bytes consumed across all file sources so far.
func (a *Aggregator) BytesRead() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := a.finished
	for _, ps := range a.progress {
		total += ps.BytesRead()
	}
	return total
}

