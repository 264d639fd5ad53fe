package logsource

import "github.com/tinytelemetry/callstat/internal/model"

// LogSource is a unified interface for all log input sources (file, stdin).
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of log lines
	Stop()                              // graceful shutdown
	Name() string                       // file path or "stdin"
	Err() error                         // read error, valid once Lines() is closed
}

// ProgressSource is a LogSource that can report how far it has read.
type ProgressSource interface {
	LogSource
	Size() int64      // total bytes on disk, 0 when unknown
	BytesRead() int64 // raw (possibly compressed) bytes consumed so far
}
