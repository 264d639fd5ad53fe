package logsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/tinytelemetry/callstat/internal/model"
)

// StdinSource reads log lines from stdin. Piped gzip data is decompressed.
type StdinSource struct {
	ch     chan model.IngestEnvelope
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// NewStdinSource creates a StdinSource that reads from stdin in a background goroutine.
func NewStdinSource(ctx context.Context, conf ...Config) *StdinSource {
	return newStdinSourceWithReader(ctx, os.Stdin, conf...)
}

func newStdinSourceWithReader(ctx context.Context, r io.Reader, conf ...Config) *StdinSource {
	cfg := Config{}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.IngestEnvelope, cfg.BufferSize),
		cancel: cancel,
	}
	go s.read(ctx, r, cfg.MaxLineSize)
	return s
}

func (s *StdinSource) read(ctx context.Context, r io.Reader, maxLineSize int) {
	defer close(s.ch)

	// Use a single goroutine for blocking reads with a results channel to
	// detect context cancellation without spawning a goroutine per line.
	type scanResult struct {
		line string
		ok   bool
	}
	results := make(chan scanResult)
	go func() {
		defer close(results)

		dec, err := decodeStream(bufio.NewReaderSize(r, readBufferSize))
		if err != nil {
			s.setErr(err)
			return
		}
		defer func() { _ = dec.close() }()

		scanner := bufio.NewScanner(dec.reader)
		scanner.Buffer(make([]byte, 0, readBufferSize), maxLineSize)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			select {
			case results <- scanResult{line: line, ok: true}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				log.Printf("logsource: stdin line exceeded max size (%d bytes), stopping stdin source", maxLineSize)
			}
			s.setErr(fmt.Errorf("logsource: stdin: read: %w", err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		case res, ok := <-results:
			if !ok || !res.ok {
				return
			}
			select {
			case s.ch <- model.IngestEnvelope{Source: s.Name(), Line: res.line}:
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			}
		}
	}
}

func (s *StdinSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err returns the first read error. It is only final once Lines() is closed.
func (s *StdinSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *StdinSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *StdinSource) Stop()                              { s.cancel() }
func (s *StdinSource) Name() string                       { return "stdin" }
