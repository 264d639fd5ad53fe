package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig_Settings(t *testing.T) {
	resetCallstatEnv(t)
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name         string
		configYAML   string
		env          map[string]string
		wantErr      bool
		errSubstring string
		assert       func(t *testing.T, cfg appConfig)
	}{
		{
			name:       "defaults",
			configYAML: `transpose: false`,
			assert: func(t *testing.T, cfg appConfig) {
				t.Helper()
				if cfg.Format != "plain" || cfg.Workers != defaultWorkers || cfg.Progress != "auto" {
					t.Fatalf("unexpected defaults: %+v", cfg)
				}
				if cfg.MaxLineSize != defaultMaxLineSize {
					t.Fatalf("max-line-size = %d", cfg.MaxLineSize)
				}
				if !strings.HasSuffix(cfg.LogFile, filepath.Join(".local", "state", "callstat", "callstat.log")) {
					t.Fatalf("log-file = %q", cfg.LogFile)
				}
			},
		},
		{
			name: "file values",
			configYAML: `
format: json
transpose: true
year: 2023
workers: 8
duckdb-path: ~/reports/calls.duckdb
serve-addr: 127.0.0.1:8080
`,
			assert: func(t *testing.T, cfg appConfig) {
				t.Helper()
				if cfg.Format != "json" || !cfg.Transpose || cfg.Year != 2023 || cfg.Workers != 8 {
					t.Fatalf("unexpected config: %+v", cfg)
				}
				if strings.HasPrefix(cfg.DuckDBPath, "~") {
					t.Fatalf("duckdb-path not expanded: %q", cfg.DuckDBPath)
				}
				if cfg.ServeAddr != "127.0.0.1:8080" {
					t.Fatalf("serve-addr = %q", cfg.ServeAddr)
				}
			},
		},
		{
			name:       "env overrides file",
			configYAML: `workers: 8`,
			env:        map[string]string{"CALLSTAT_WORKERS": "3", "CALLSTAT_MAX_LINE_SIZE": "2048"},
			assert: func(t *testing.T, cfg appConfig) {
				t.Helper()
				if cfg.Workers != 3 || cfg.MaxLineSize != 2048 {
					t.Fatalf("workers=%d max-line-size=%d", cfg.Workers, cfg.MaxLineSize)
				}
			},
		},
		{
			name:         "invalid format rejected",
			configYAML:   `format: xml`,
			wantErr:      true,
			errSubstring: "invalid format",
		},
		{
			name:         "invalid workers rejected",
			configYAML:   `workers: 0`,
			wantErr:      true,
			errSubstring: "invalid workers",
		},
		{
			name:         "invalid progress rejected",
			configYAML:   `progress: sometimes`,
			wantErr:      true,
			errSubstring: "invalid progress mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			configPath := writeTempConfig(t, tt.configYAML)
			cfg, err := loadConfig(configPath)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errSubstring != "" && !strings.Contains(err.Error(), tt.errSubstring) {
					t.Fatalf("error = %q, want substring %q", err.Error(), tt.errSubstring)
				}
				return
			}

			if err != nil {
				t.Fatalf("loadConfig returned error: %v", err)
			}
			if cfg.ConfigPath != configPath {
				t.Fatalf("ConfigPath = %q, want %q", cfg.ConfigPath, configPath)
			}
			if tt.assert != nil {
				tt.assert(t, cfg)
			}
		})
	}
}

func TestLoadConfig_MissingDefaultFile(t *testing.T) {
	resetCallstatEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Format != defaultFormat {
		t.Fatalf("Format = %q, want %q", cfg.Format, defaultFormat)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func resetCallstatEnv(t *testing.T) {
	t.Helper()

	original := make(map[string]string)
	existed := make(map[string]bool)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "CALLSTAT_") {
			continue
		}
		original[key] = value
		existed[key] = true
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}

	t.Cleanup(func() {
		for key := range existed {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("cleanup unset %s: %v", key, err)
			}
		}
		for key, value := range original {
			if err := os.Setenv(key, value); err != nil {
				t.Fatalf("cleanup restore %s: %v", key, err)
			}
		}
	})
}
