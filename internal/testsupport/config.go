package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"jobgraph/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Server.Host = "127.0.0.1:0"
	cfgVal.Server.RequestTimeout = 5
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Output.PublicBaseURL = "https://files.example.test/output"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithServerHost points the config at host (host:port).
func WithServerHost(host string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.Host = host
	}
}

// WithJob adds a dispatcher job to the test config.
func WithJob(job config.DispatchJob) ConfigOption {
	return func(b *configBuilder) {
		if job.Name == "" {
			job.Name = job.EntryPoint
		}
		if job.OutputType == "" {
			job.OutputType = "DigitalDocument"
		}
		b.cfg.Dispatcher.Jobs = append(b.cfg.Dispatcher.Jobs, job)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		StubBinaries(b.t, b.baseDir, "#!/bin/sh\nexit 0\n", names...)
	}
}

// StubBinaries writes executables with the given script body into
// dir/bin and prepends that directory to PATH for the rest of the test.
func StubBinaries(t testing.TB, dir, script string, names ...string) string {
	t.Helper()

	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	for _, name := range names {
		target := filepath.Join(binDir, name)
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return binDir
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DownloadDir)
}
