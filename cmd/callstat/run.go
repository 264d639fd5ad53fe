package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/tinytelemetry/callstat/internal/aggregate"
	"github.com/tinytelemetry/callstat/internal/duckdb"
	"github.com/tinytelemetry/callstat/internal/httpserver"
	"github.com/tinytelemetry/callstat/internal/ingest"
	"github.com/tinytelemetry/callstat/internal/kpi"
	"github.com/tinytelemetry/callstat/internal/logsource"
	"github.com/tinytelemetry/callstat/internal/model"
	"github.com/tinytelemetry/callstat/internal/report"
	"github.com/tinytelemetry/callstat/internal/timestamp"
	"github.com/tinytelemetry/callstat/internal/tui"
)

// reportHolder publishes the finished report to the HTTP API.
type reportHolder struct {
	p atomic.Pointer[model.Report]
}

func (h *reportHolder) Report() *model.Report { return h.p.Load() }

func (h *reportHolder) WriteReport(r *model.Report) error {
	h.p.Store(r)
	return nil
}

// runReport reads every source, derives the hourly KPIs and writes them out.
func runReport(cfg appConfig, sources []string, stdout, stderr io.Writer) int {
	cleanupLogger := configureRuntimeLogger(cfg.LogFile)
	defer cleanupLogger()

	renderer, err := report.New(report.Options{Format: cfg.Format, Transpose: cfg.Transpose})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restoreCursor := func() {}
	showProgress := progressEnabled(cfg.Progress, stderr)
	if showProgress {
		restoreCursor = tui.HideCursor(stderr)
	}
	defer restoreCursor()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		fmt.Fprintln(stderr, "\nShutting down... (press Ctrl+C again to force)")
		cancel()

		<-sigCh
		restoreCursor()
		fmt.Fprintln(stderr, "\nForce exit.")
		os.Exit(exitInterrupted)
	}()

	var parserOpts []timestamp.Option
	if cfg.Year > 0 {
		parserOpts = append(parserOpts, timestamp.WithYear(cfg.Year))
	}
	parser := timestamp.NewParser(parserOpts...)
	log.Printf("callstat: %d sources, year %d, %d workers", len(sources), parser.Year(), cfg.Workers)

	plugins := buildInputPlugins(InputPluginConfig{
		Source: logsource.Config{MaxLineSize: cfg.MaxLineSize},
	})

	agg := aggregate.New(aggregate.Config{
		Workers:    cfg.Workers,
		Classifier: ingest.NewClassifier(parser),
		OnSourceError: func(name string, err error) {
			fmt.Fprintf(stderr, "ERROR: %s: %v\n", name, sourceReason(err))
		},
	}, newOpener(plugins))

	var bar *tui.Progress
	if showProgress {
		bar = tui.NewProgress(stderr, totalSize(sources), agg.BytesRead)
		bar.Start()
	}

	set, summaries, runErr := agg.Run(ctx, sources)
	if bar != nil {
		bar.Stop()
	}
	restoreCursor()
	interrupted := errors.Is(runErr, context.Canceled)

	rep := kpi.Derive(set)
	rep.Sources = summaries

	if err := report.Write(cfg.Output, stdout, rep, renderer); err != nil {
		fmt.Fprintf(stderr, "Error writing report: %v\n", err)
		return exitError
	}

	if cfg.DuckDBPath != "" {
		if err := exportDuckDB(cfg, rep); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
	}

	printRunSummary(stderr, cfg, rep)

	if interrupted {
		return exitInterrupted
	}
	if allFailed(summaries) {
		return exitError
	}

	if cfg.ServeAddr != "" {
		if err := serveReport(ctx, cfg.ServeAddr, rep, stderr); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
	}
	return exitOK
}

func exportDuckDB(cfg appConfig, rep *model.Report) error {
	store, err := duckdb.NewStore(cfg.DuckDBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	var w model.ReportWriter = store
	if err := w.WriteReport(rep); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	log.Printf("callstat: stored report %s in %s", rep.RunID, cfg.DuckDBPath)
	return nil
}

// serveStored serves the report last exported to the DuckDB store without
// reading any source.
func serveStored(cfg appConfig, stderr io.Writer) int {
	cleanupLogger := configureRuntimeLogger(cfg.LogFile)
	defer cleanupLogger()

	rep, err := loadStoredReport(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serveReport(ctx, cfg.ServeAddr, rep, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

func loadStoredReport(cfg appConfig) (*model.Report, error) {
	store, err := duckdb.NewStore(cfg.DuckDBPath, cfg.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.QueryTimeout)
		defer cancel()
	}
	rep, err := store.LoadReport(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored report: %w", err)
	}
	if rep == nil {
		return nil, fmt.Errorf("no stored report in %s", cfg.DuckDBPath)
	}
	log.Printf("callstat: loaded report %s from %s", rep.RunID, cfg.DuckDBPath)
	return rep, nil
}

// serveReport publishes rep on addr until ctx is cancelled.
func serveReport(ctx context.Context, addr string, rep *model.Report, stderr io.Writer) error {
	holder := &reportHolder{}
	if err := holder.WriteReport(rep); err != nil {
		return err
	}

	srv := httpserver.NewServer(addr, holder)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer srv.Stop()

	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	fmt.Fprintf(stderr, "Serving report on %s %s\n",
		cyan.Render("http://"+srv.Addr()+"/api/report"), dim.Render("(Ctrl+C to stop)"))

	<-ctx.Done()
	return nil
}

func progressEnabled(mode string, w io.Writer) bool {
	switch mode {
	case progressAlways:
		return true
	case progressNever:
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// sourceReason trims sentinel prefixes to a short user-facing reason.
func sourceReason(err error) string {
	switch {
	case errors.Is(err, logsource.ErrSourceUnavailable):
		return "cannot open: " + strings.TrimPrefix(err.Error(), logsource.ErrSourceUnavailable.Error()+": ")
	case errors.Is(err, logsource.ErrUnsupportedSourceType):
		return "unsupported file type: " + strings.TrimPrefix(err.Error(), logsource.ErrUnsupportedSourceType.Error()+": ")
	default:
		return err.Error()
	}
}

func allFailed(summaries []model.SourceSummary) bool {
	for _, s := range summaries {
		if s.Error == "" {
			return false
		}
	}
	return len(summaries) > 0
}

func configureRuntimeLogger(logPath string) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if logPath == "" {
		log.SetOutput(io.Discard)
		return func() {}
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}
}

func printRunSummary(w io.Writer, cfg appConfig, rep *model.Report) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	cross := red.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, bold.Render("    Sources"))
	lines = append(lines, "")
	for _, s := range rep.Sources {
		if s.Error != "" {
			lines = append(lines, fmt.Sprintf("    %s  %-24s %s", cross, shortenPath(s.Name), red.Render("skipped")))
			continue
		}
		lines = append(lines, fmt.Sprintf("    %s  %-24s %s", check, shortenPath(s.Name),
			dim.Render(fmt.Sprintf("%d lines, %d events, %d debug, %d unclassifiable",
				s.Lines, s.Events, s.DebugSkipped, s.Unclassifiable))))
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Hours          %s", check, cyan.Render(fmt.Sprint(len(rep.Rows)))))
	if cfg.Output != "" && cfg.Output != "-" {
		lines = append(lines, fmt.Sprintf("    %s  Report         %s", check, dim.Render(shortenPath(cfg.Output))))
	}
	if cfg.DuckDBPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  DuckDB         %s", check, dim.Render(shortenPath(cfg.DuckDBPath))))
	}
	lines = append(lines, fmt.Sprintf("    %s  Run            %s", check, dim.Render(rep.RunID)))
	lines = append(lines, "")

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
