package logsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/callstat/internal/model"
)

const readBufferSize = 64 * 1024

// Config holds tunable parameters shared by file and stdin sources.
type Config struct {
	BufferSize  int
	MaxLineSize int
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = model.DefaultSourceBuffer
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = model.DefaultMaxLineSize
	}
	return c
}

// FileSource reads one plain or gzip-compressed log file, line by line.
// The file handle is released when the read goroutine exits, on every path.
type FileSource struct {
	path string
	size int64
	mime string

	ch     chan model.IngestEnvelope
	cancel context.CancelFunc
	read   atomic.Int64

	mu  sync.Mutex
	err error
}

// OpenFile opens path, detects its type and starts streaming lines.
// Open and type failures are reported synchronously and wrap
// ErrSourceUnavailable or ErrUnsupportedSourceType.
func OpenFile(ctx context.Context, path string, conf ...Config) (*FileSource, error) {
	cfg := Config{}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	cfg = cfg.withDefaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, path)
	}

	s := &FileSource{
		path: path,
		size: st.Size(),
		ch:   make(chan model.IngestEnvelope, cfg.BufferSize),
	}

	br := bufio.NewReaderSize(&countingReader{r: f, n: &s.read}, readBufferSize)
	dec, err := decodeStream(br)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.mime = dec.mime

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(ctx, f, dec, cfg.MaxLineSize)
	return s, nil
}

func (s *FileSource) run(ctx context.Context, f *os.File, dec *decoded, maxLineSize int) {
	defer close(s.ch)
	defer func() {
		if err := dec.close(); err != nil {
			log.Printf("logsource: %s: close decoder: %v", s.path, err)
		}
		if err := f.Close(); err != nil {
			log.Printf("logsource: %s: close: %v", s.path, err)
		}
	}()

	scanner := bufio.NewScanner(dec.reader)
	scanner.Buffer(make([]byte, 0, readBufferSize), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case s.ch <- model.IngestEnvelope{Source: s.path, Line: line}:
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			s.setErr(fmt.Errorf("logsource: %s: line exceeded max size (%d bytes): %w", s.path, maxLineSize, err))
			return
		}
		s.setErr(fmt.Errorf("logsource: %s: read: %w", s.path, err))
	}
}

func (s *FileSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err returns the first read error. It is only final once Lines() is closed.
func (s *FileSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *FileSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *FileSource) Stop()                              { s.cancel() }
func (s *FileSource) Name() string                       { return s.path }
func (s *FileSource) MIME() string                       { return s.mime }
func (s *FileSource) Size() int64                        { return s.size }
func (s *FileSource) BytesRead() int64                   { return s.read.Load() }
