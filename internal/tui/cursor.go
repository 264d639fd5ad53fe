package tui

import (
	"io"
	"sync"

	"github.com/muesli/termenv"
)

// HideCursor hides the cursor on w and returns a restore func. The restore
// func may be called from several exit paths; only the first call writes.
func HideCursor(w io.Writer) (restore func()) {
	out := termenv.NewOutput(w)
	out.HideCursor()

	var once sync.Once
	return func() {
		once.Do(out.ShowCursor)
	}
}
