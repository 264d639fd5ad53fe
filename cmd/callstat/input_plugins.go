package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/tinytelemetry/callstat/internal/aggregate"
	"github.com/tinytelemetry/callstat/internal/logsource"
)

// stdinArg selects stdin as a source.
const stdinArg = "-"

// InputSourcePlugin is a small plugin primitive for wiring log inputs.
type InputSourcePlugin interface {
	Name() string
	Accepts(arg string) bool
	Build(ctx context.Context, arg string) (logsource.LogSource, error)
}

// InputPluginConfig defines runtime input settings shared by all plugins.
type InputPluginConfig struct {
	Source logsource.Config
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	return []InputSourcePlugin{
		stdinInputPlugin{conf: cfg.Source},
		fileInputPlugin{conf: cfg.Source},
	}
}

// newOpener dispatches each source argument to the first plugin accepting it.
func newOpener(plugins []InputSourcePlugin) aggregate.Opener {
	return func(ctx context.Context, arg string) (logsource.LogSource, error) {
		for _, p := range plugins {
			if p.Accepts(arg) {
				log.Printf("input: opening %s with %s plugin", arg, p.Name())
				return p.Build(ctx, arg)
			}
		}
		return nil, fmt.Errorf("%w: no input plugin for %q", logsource.ErrUnsupportedSourceType, arg)
	}
}

type fileInputPlugin struct {
	conf logsource.Config
}

func (p fileInputPlugin) Name() string { return "file" }

func (p fileInputPlugin) Accepts(arg string) bool { return arg != stdinArg }

func (p fileInputPlugin) Build(ctx context.Context, arg string) (logsource.LogSource, error) {
	return logsource.OpenFile(ctx, arg, p.conf)
}

type stdinInputPlugin struct {
	conf logsource.Config
}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Accepts(arg string) bool { return arg == stdinArg }

func (p stdinInputPlugin) Build(ctx context.Context, _ string) (logsource.LogSource, error) {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		log.Printf("input: reading stdin from a terminal, end input with Ctrl+D")
	}
	return logsource.NewStdinSource(ctx, p.conf), nil
}

// totalSize sums the on-disk size of file sources. Missing files count as 0.
func totalSize(args []string) int64 {
	var total int64
	for _, a := range args {
		if a == stdinArg {
			continue
		}
		if st, err := os.Stat(a); err == nil && !st.IsDir() {
			total += st.Size()
		}
	}
	return total
}
