package model

import "time"

// Shared defaults used by the CLI and the library packages.
const (
	DefaultFormat       = "plain"
	DefaultMaxLineSize  = 1024 * 1024 // 1MB
	DefaultSourceBuffer = 4096
	DefaultWorkers      = 4
	DefaultProgressTick = 100 * time.Millisecond
)
