package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"jobgraph/internal/config"
	"jobgraph/internal/testsupport"
)

type cliTestEnv struct {
	store      *testsupport.FakeStore
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	store := testsupport.NewFakeStore(t)
	cfg := store.Config(t)
	cfg.Logging.Level = "error"
	cfg.Requester.PollInterval = 1
	cfg.Requester.PollMaxInterval = 1
	cfg.Requester.Deadline = 5

	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{store: store, cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// handleRegistration answers every document the registrar sends.
func (env *cliTestEnv) handleRegistration() {
	var counter atomic.Int64
	create := func(req testsupport.StoreRequest) testsupport.StoreReply {
		id := fmt.Sprintf("%s-%d", strings.TrimPrefix(req.Operation, "Create"), counter.Add(1))
		return testsupport.StoreReply{Data: map[string]any{"identifier": id}}
	}
	link := func(testsupport.StoreRequest) testsupport.StoreReply {
		return testsupport.StoreReply{Data: map[string]any{"from": []any{}, "to": []any{}}}
	}
	for _, op := range []string{"CreateEntryPoint", "CreateControlAction", "CreateProperty", "CreatePropertyValueSpecification"} {
		env.store.Handle(op, create)
	}
	for _, op := range []string{"MergeEntryPointPotentialAction", "MergeControlActionObject"} {
		env.store.Handle(op, link)
	}
}

func (env *cliTestEnv) writeDefinition(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(env.baseDir, "definition.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write definition: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	full := append([]string{}, args...)
	if configPath != "" {
		full = append(full, "--config", configPath)
	}
	cmd.SetArgs(full)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, out, substr string) {
	t.Helper()
	if !strings.Contains(out, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, out)
	}
}
