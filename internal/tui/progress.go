package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tinytelemetry/callstat/internal/model"
)

var progressLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

// Progress redraws a single-line byte progress bar until stopped.
type Progress struct {
	out   *termenv.Output
	bar   progress.Model
	total int64
	read  func() int64
	tick  time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewProgress creates a bar over total bytes; read reports bytes consumed so far.
func NewProgress(w io.Writer, total int64, read func() int64) *Progress {
	return &Progress{
		out:   termenv.NewOutput(w),
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		total: total,
		read:  read,
		tick:  model.DefaultProgressTick,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start begins redrawing in the background.
func (p *Progress) Start() {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.tick)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				p.draw()
				fmt.Fprintln(p.out)
				return
			case <-ticker.C:
				p.draw()
			}
		}
	}()
}

// Stop draws the final state and waits for the redraw loop to exit.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		<-p.done
	})
}

func (p *Progress) draw() {
	p.out.ClearLine()
	fmt.Fprint(p.out, "\r"+p.View())
}

// View renders the current bar and byte counts.
func (p *Progress) View() string {
	read := p.read()
	return p.bar.ViewAs(Fraction(read, p.total)) + " " +
		progressLabel.Render(fmt.Sprintf("%s / %s", HumanBytes(read), HumanBytes(p.total)))
}

// Fraction clamps read/total into [0, 1]. An unknown total reads as 0.
func Fraction(read, total int64) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(read) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

// HumanBytes formats n with a binary unit suffix.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
