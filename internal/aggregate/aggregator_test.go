package aggregate

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/callstat/internal/ingest"
	"github.com/tinytelemetry/callstat/internal/kpi"
	"github.com/tinytelemetry/callstat/internal/logsource"
	"github.com/tinytelemetry/callstat/internal/model"
	"github.com/tinytelemetry/callstat/internal/timestamp"
)

func fileOpener(ctx context.Context, name string) (logsource.LogSource, error) {
	return logsource.OpenFile(ctx, name)
}

func testConfig() Config {
	return Config{
		Workers:    2,
		Classifier: ingest.NewClassifier(timestamp.NewParser(timestamp.WithYear(2024))),
	}
}

func writeLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

const (
	inviteA = "Jan 01 10:00:00.000000 proxy[1]: INFO: New request on proxy - M=INVITE"
	callA   = "Jan 01 10:00:30.000000 proxy[1]: NOTICE: dialog:end event callid: a1 x start_time: 36000 duration: 30"
	callB   = "Jan 01 10:00:40.000000 proxy[1]: NOTICE: dialog:end event callid: b1 x start_time: 36010 duration: 30"
	debug   = "Jan 01 10:00:00.000000 proxy[1]: DEBUG: New request on proxy - M=INVITE"
)

func TestRun_TwoSourcesOverlap(t *testing.T) {
	dir := t.TempDir()
	a := writeLog(t, dir, "a.log", inviteA, callA)
	b := writeLog(t, dir, "b.log", inviteA, callB, debug)

	agg := New(testConfig(), fileOpener)
	set, summaries, err := agg.Run(context.Background(), []string{a, b})
	require.NoError(t, err)

	acc, ok := set.Get(10)
	require.True(t, ok)
	assert.Equal(t, int64(2), acc.MaxConcurrent())
	assert.Equal(t, int64(2), acc.Counters[kpi.MetricInviteALeg])
	assert.Equal(t, int64(2), acc.Counters[kpi.MetricSuccessfulCalls])
	assert.Equal(t, int64(60), acc.Counters[kpi.MetricTotalCallTime])

	require.Len(t, summaries, 2)
	assert.Equal(t, a, summaries[0].Name)
	assert.Equal(t, int64(2), summaries[0].Events)
	assert.Equal(t, b, summaries[1].Name)
	assert.Equal(t, int64(3), summaries[1].Lines)
	assert.Equal(t, int64(1), summaries[1].DebugSkipped)
	assert.Empty(t, summaries[1].Error)
}

func TestRun_MissingSourceSkipped(t *testing.T) {
	dir := t.TempDir()
	good := writeLog(t, dir, "good.log", inviteA)
	missing := filepath.Join(dir, "missing.log")

	var mu sync.Mutex
	var reported []string
	cfg := testConfig()
	cfg.OnSourceError = func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.True(t, errors.Is(err, logsource.ErrSourceUnavailable))
		reported = append(reported, name)
	}

	set, summaries, err := New(cfg, fileOpener).Run(context.Background(), []string{missing, good})
	require.NoError(t, err)

	assert.Equal(t, []string{missing}, reported)
	require.Len(t, summaries, 2)
	assert.NotEmpty(t, summaries[0].Error)
	assert.Empty(t, summaries[1].Error)

	acc, ok := set.Get(10)
	require.True(t, ok)
	assert.Equal(t, int64(1), acc.Counters[kpi.MetricInviteALeg])
}

func TestRun_OrderIndependent(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeLog(t, dir, "1.log", inviteA, callA),
		writeLog(t, dir, "2.log", callB),
		writeLog(t, dir, "3.log", "Jan 01 11:00:00.000000 proxy[1]: INFO: New reply on proxy - M=BYE"),
	}
	reversed := []string{paths[2], paths[1], paths[0]}

	forward, _, err := New(testConfig(), fileOpener).Run(context.Background(), paths)
	require.NoError(t, err)
	backward, _, err := New(testConfig(), fileOpener).Run(context.Background(), reversed)
	require.NoError(t, err)

	assert.Equal(t, forward.Snapshot(), backward.Snapshot())
}

// failingSource emits its lines and then reports a read error.
type failingSource struct {
	ch chan model.IngestEnvelope
}

func newFailingSource(lines ...string) *failingSource {
	ch := make(chan model.IngestEnvelope, len(lines))
	for _, l := range lines {
		ch <- model.IngestEnvelope{Source: "broken", Line: l}
	}
	close(ch)
	return &failingSource{ch: ch}
}

func (s *failingSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *failingSource) Stop()                              {}
func (s *failingSource) Name() string                       { return "broken" }
func (s *failingSource) Err() error                         { return errors.New("read: unexpected EOF") }

func TestRun_MidReadFailureContributesNothing(t *testing.T) {
	dir := t.TempDir()
	good := writeLog(t, dir, "good.log", inviteA)

	open := func(ctx context.Context, name string) (logsource.LogSource, error) {
		if name == "broken" {
			return newFailingSource(inviteA, inviteA, callA), nil
		}
		return logsource.OpenFile(ctx, name)
	}

	var failures int
	cfg := testConfig()
	cfg.Workers = 1
	cfg.OnSourceError = func(string, error) { failures++ }

	set, summaries, err := New(cfg, open).Run(context.Background(), []string{"broken", good})
	require.NoError(t, err)

	assert.Equal(t, 1, failures)
	assert.Equal(t, int64(3), summaries[0].Lines)
	assert.Contains(t, summaries[0].Error, "unexpected EOF")

	acc, ok := set.Get(10)
	require.True(t, ok)
	assert.Equal(t, int64(1), acc.Counters[kpi.MetricInviteALeg])
	assert.Zero(t, acc.Counters[kpi.MetricSuccessfulCalls])
}

func TestRun_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "a.log", inviteA)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set, summaries, err := New(testConfig(), fileOpener).Run(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, summaries, 1)
	assert.NotEmpty(t, summaries[0].Error)
	assert.Zero(t, set.Len())
}

func TestBytesRead(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "a.log", inviteA, callA)
	info, err := os.Stat(path)
	require.NoError(t, err)

	agg := New(testConfig(), fileOpener)
	_, _, err = agg.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, info.Size(), agg.BytesRead())
}

func TestRun_LogsSourceTypeAndHours(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	dir := t.TempDir()
	path := writeLog(t, dir, "a.log", inviteA, callA)

	_, _, err := New(testConfig(), fileOpener).Run(context.Background(), []string{path})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "processing "+path+" (text/plain")
	assert.Contains(t, out, "over 1 hours")
}
