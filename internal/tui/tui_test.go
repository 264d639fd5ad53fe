package tui

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestHideCursorRestoresOnce(t *testing.T) {
	var buf bytes.Buffer
	restore := HideCursor(&buf)

	if !strings.Contains(buf.String(), "\x1b[?25l") {
		t.Fatalf("expected hide sequence, got %q", buf.String())
	}

	restore()
	restore()
	if n := strings.Count(buf.String(), "\x1b[?25h"); n != 1 {
		t.Fatalf("show sequence written %d times, want 1", n)
	}
}

func TestFraction(t *testing.T) {
	tests := []struct {
		read, total int64
		want        float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 10, 0},
		{5, 10, 0.5},
		{20, 10, 1},
	}
	for _, tt := range tests {
		if got := Fraction(tt.read, tt.total); got != tt.want {
			t.Errorf("Fraction(%d, %d) = %v, want %v", tt.read, tt.total, got, tt.want)
		}
	}
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		1 << 20: "1.0 MiB",
		5 << 30: "5.0 GiB",
	}
	for in, want := range tests {
		if got := HumanBytes(in); got != want {
			t.Errorf("HumanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestProgressStartStop(t *testing.T) {
	var buf bytes.Buffer
	var read atomic.Int64
	read.Store(512)

	p := NewProgress(&buf, 1024, read.Load)
	p.tick = time.Millisecond
	p.Start()
	time.Sleep(5 * time.Millisecond)
	read.Store(1024)
	p.Stop()
	p.Stop()

	out := buf.String()
	if !strings.Contains(out, "1.0 KiB / 1.0 KiB") {
		t.Fatalf("final frame missing totals: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("expected trailing newline, got %q", out)
	}
}
