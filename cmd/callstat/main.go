package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// Exit statuses.
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitInterrupted = 130
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cliFlags holds command-line values. Only flags the user set override config.
type cliFlags struct {
	configPath  string
	showVersion bool

	format      string
	output      string
	transpose   bool
	year        int
	workers     int
	progress    string
	maxLineSize int
	duckdbPath  string
	serveAddr   string
	logFile     string
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *cliFlags) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("callstat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "config file (default is $HOME/.config/callstat/config.yml)")
	fs.BoolVar(&f.showVersion, "version", false, "print version information")
	fs.StringVar(&f.format, "format", defaultFormat, "output format: plain, table, json or yaml")
	fs.StringVar(&f.output, "output", "", "write the report to this file instead of stdout")
	fs.BoolVar(&f.transpose, "transpose", false, "print metrics as rows and hours as columns")
	fs.IntVar(&f.year, "year", 0, "calendar year of the log timestamps (default current year)")
	fs.IntVar(&f.workers, "workers", defaultWorkers, "number of sources read concurrently")
	fs.StringVar(&f.progress, "progress", defaultProgress, "progress bar: auto, always or never")
	fs.IntVar(&f.maxLineSize, "max-line-size", defaultMaxLineSize, "maximum log line size in bytes")
	fs.StringVar(&f.duckdbPath, "duckdb", "", "also store the report in this DuckDB file")
	fs.StringVar(&f.serveAddr, "serve", "", "serve the report over HTTP on this address after the run")
	fs.StringVar(&f.logFile, "log-file", "", "diagnostic log file (default $HOME/.local/state/callstat/callstat.log)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: callstat [flags] <logfile|-> [logfile ...]\n")
		fmt.Fprintf(stderr, "       callstat -duckdb <file> -serve <addr>\n\n")
		fmt.Fprintf(stderr, "Reads SIP proxy logs (plain or gzip, \"-\" for stdin) and prints hourly call KPIs.\n\n")
		fs.PrintDefaults()
	}
	return fs, f
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cfg *appConfig, fs *flag.FlagSet, f *cliFlags) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "format":
			cfg.Format = f.format
		case "output":
			cfg.Output = f.output
		case "transpose":
			cfg.Transpose = f.transpose
		case "year":
			cfg.Year = f.year
		case "workers":
			cfg.Workers = f.workers
		case "progress":
			cfg.Progress = f.progress
		case "max-line-size":
			cfg.MaxLineSize = f.maxLineSize
		case "duckdb":
			cfg.DuckDBPath = f.duckdbPath
		case "serve":
			cfg.ServeAddr = f.serveAddr
		case "log-file":
			cfg.LogFile = f.logFile
		}
	})
}

func run(args []string, stdout, stderr io.Writer) int {
	fs, f := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if f.showVersion {
		fmt.Fprintf(stdout, "callstat - SIP proxy call statistics\n")
		fmt.Fprintf(stdout, "  Version:    %s\n", version)
		fmt.Fprintf(stdout, "  Commit:     %s\n", commit)
		fmt.Fprintf(stdout, "  Built:      %s\n", buildTime)
		fmt.Fprintf(stdout, "  Go version: %s\n", goVersion)
		return exitOK
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitError
	}
	applyFlags(&cfg, fs, f)

	sources, err := validateSources(fs.Args(), cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fs.Usage()
		return exitUsage
	}

	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if len(sources) == 0 {
		return serveStored(cfg, stderr)
	}
	return runReport(cfg, sources, stdout, stderr)
}

// validateSources rejects repeated stdin and an empty source list. No sources
// is allowed only when both a DuckDB store and a serve address are set, which
// serves the stored report.
func validateSources(args []string, cfg appConfig) ([]string, error) {
	if len(args) == 0 {
		if cfg.DuckDBPath != "" && cfg.ServeAddr != "" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: no log sources given", errUsage)
	}
	stdin := 0
	for _, a := range args {
		if a == stdinArg {
			stdin++
		}
	}
	if stdin > 1 {
		return nil, fmt.Errorf("%w: stdin (%q) can only be read once", errUsage, stdinArg)
	}
	return args, nil
}
