package main

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"

	"jobgraph/internal/job"
	"jobgraph/internal/preflight"
	"jobgraph/internal/requester"
	"jobgraph/internal/services"
	"jobgraph/internal/testsupport"
)

const cliDefinition = `
name = "transcribe"
description = "Audio to MIDI"

[entry_point]
action_platform = "python"
content_type = "audio/mpeg"

[[property]]
name = "input"
allowed_types = ["AudioObject"]

[[value]]
name = "output"

[[value]]
name = "beams"
type = "integer"
optional = true
`

func registerTemplate(t *testing.T, env *cliTestEnv) {
	t.Helper()

	env.handleRegistration()
	out, _, err := runCLI(t, []string{"register", env.writeDefinition(t, cliDefinition)}, env.configPath)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	requireContains(t, out, "Registered template transcribe")
}

func TestConfigInitWritesSample(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "fresh", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Dispatcher jobs: 0")
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# request/response endpoint: "+env.cfg.HTTPEndpoint())
	requireContains(t, out, "# subscription endpoint: "+env.cfg.WebsocketEndpoint())
	requireContains(t, out, "ws_path")
}

func TestConfigValidateReportsInvalidFile(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Requester.Deadline = 0
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "requester.deadline") {
		t.Fatalf("expected deadline validation error, got %v", err)
	}
}

func TestRegisterAndListTemplates(t *testing.T) {
	env := setupCLITestEnv(t)
	registerTemplate(t, env)

	out, _, err := runCLI(t, []string{"templates"}, env.configPath)
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	requireContains(t, out, "transcribe")
	requireContains(t, out, "EntryPoint-1")

	out, _, err = runCLI(t, []string{"templates", "show", "EntryPoint-1"}, env.configPath)
	if err != nil {
		t.Fatalf("templates show: %v", err)
	}
	requireContains(t, out, "AudioObject")
	requireContains(t, out, "beams")

	before := len(env.store.Documents())
	out, _, err = runCLI(t, []string{"register", env.writeDefinition(t, cliDefinition)}, env.configPath)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	requireContains(t, out, "already registered")
	if after := len(env.store.Documents()); after != before {
		t.Fatalf("second register sent %d documents", after-before)
	}
}

func TestTemplatesEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"templates"}, env.configPath)
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	requireContains(t, out, "No templates registered")
}

func TestRequestMissingValueSendsNothing(t *testing.T) {
	env := setupCLITestEnv(t)
	registerTemplate(t, env)

	_, _, err := runCLI(t, []string{"request", "transcribe", "--node", "input=a1:AudioObject"}, env.configPath)
	if !errors.Is(err, services.ErrMissingRequiredValue) {
		t.Fatalf("expected ErrMissingRequiredValue, got %v", err)
	}
	if docs := env.store.DocumentsFor("RequestControlAction"); len(docs) != 0 {
		t.Fatalf("request reached the store: %v", docs)
	}
}

func TestRequestUnregisteredTemplate(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"request", "missing"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected unregistered template error, got %v", err)
	}
}

func TestRequestWaitsForCompletion(t *testing.T) {
	env := setupCLITestEnv(t)
	registerTemplate(t, env)
	env.store.Handle("RequestControlAction", func(testsupport.StoreRequest) testsupport.StoreReply {
		return testsupport.StoreReply{Data: map[string]any{"identifier": "ca-9", "actionStatus": "PotentialActionStatus"}}
	})
	env.store.Handle("ControlAction", func(testsupport.StoreRequest) testsupport.StoreReply {
		return testsupport.StoreReply{Data: []any{map[string]any{
			"identifier":   "ca-9",
			"actionStatus": "CompletedActionStatus",
			"result": []any{map[string]any{
				"__typename": "DigitalDocument", "identifier": "doc-1",
				"contentUrl": "https://files.example.test/output/ca-9/out.mid",
			}},
		}}}
	})

	out, _, err := runCLI(t, []string{
		"request", "transcribe",
		"--node", "input=a1:AudioObject",
		"--value", "output=song",
		"--value", "beams=4",
	}, env.configPath)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	requireContains(t, out, "Requested job ca-9")
	requireContains(t, out, "Completed")
	requireContains(t, out, "doc-1")
	requireContains(t, out, "https://files.example.test/output/ca-9/out.mid")

	docs := env.store.DocumentsFor("RequestControlAction")
	if len(docs) != 1 {
		t.Fatalf("expected one request, got %d", len(docs))
	}
	requireContains(t, docs[0], `value: "4", valueDataType: INTEGER`)
}

func TestRequestNoWaitSkipsPolling(t *testing.T) {
	env := setupCLITestEnv(t)
	registerTemplate(t, env)
	env.store.Handle("RequestControlAction", func(testsupport.StoreRequest) testsupport.StoreReply {
		return testsupport.StoreReply{Data: map[string]any{"identifier": "ca-3"}}
	})

	out, _, err := runCLI(t, []string{
		"request", "transcribe", "--no-wait",
		"--node", "input=a1",
		"--value", "output=song",
	}, env.configPath)
	if err != nil {
		t.Fatalf("request --no-wait: %v", err)
	}
	requireContains(t, out, "Requested job ca-3")
	if reads := env.store.DocumentsFor("ControlAction"); len(reads) != 0 {
		t.Fatalf("unexpected status reads: %d", len(reads))
	}
}

func TestRequestRejectsBadIntegerValue(t *testing.T) {
	env := setupCLITestEnv(t)
	registerTemplate(t, env)

	_, _, err := runCLI(t, []string{
		"request", "transcribe",
		"--node", "input=a1",
		"--value", "output=song",
		"--value", "beams=many",
	}, env.configPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestStatusShowsFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.store.Handle("ControlAction", func(testsupport.StoreRequest) testsupport.StoreReply {
		return testsupport.StoreReply{Data: []any{map[string]any{
			"identifier":   "ca-7",
			"actionStatus": "FailedActionStatus",
			"error":        "transcribe failed (model not found)",
			"result":       []any{},
		}}}
	})

	out, _, err := runCLI(t, []string{"status", "ca-7"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "ca-7")
	requireContains(t, out, "Failed")
	requireContains(t, out, "model not found")
}

func TestParseNodeBindings(t *testing.T) {
	bindings, err := parseNodeBindings([]string{"input=a1:AudioObject", "ref = d2 "})
	if err != nil {
		t.Fatalf("parseNodeBindings: %v", err)
	}
	want := []job.NodeBinding{
		{Slot: "input", NodeID: "a1", NodeType: job.ArtifactAudioObject},
		{Slot: "ref", NodeID: "d2"},
	}
	if len(bindings) != len(want) {
		t.Fatalf("bindings = %+v", bindings)
	}
	for i := range want {
		if bindings[i] != want[i] {
			t.Fatalf("binding %d = %+v, want %+v", i, bindings[i], want[i])
		}
	}

	if _, err := parseNodeBindings([]string{"input"}); err == nil {
		t.Fatal("expected error for binding without identifier")
	}
	if _, err := parseNodeBindings([]string{"input=a1:Spreadsheet"}); !errors.Is(err, services.ErrUnsupportedValue) {
		t.Fatalf("expected ErrUnsupportedValue, got %v", err)
	}
}

func TestParseValueBindings(t *testing.T) {
	tmpl := job.Template{
		Name: "transcribe",
		Values: []job.ValueSlot{
			{Name: "output", Type: job.ValueString, Required: true},
			{Name: "ratio", Type: job.ValueFloat},
		},
	}

	bindings, err := parseValueBindings(tmpl, []string{"output=", "ratio=0.5"})
	if err != nil {
		t.Fatalf("parseValueBindings: %v", err)
	}
	if len(bindings) != 2 || bindings[0].Value != "" || bindings[1].Type != job.ValueFloat {
		t.Fatalf("bindings = %+v", bindings)
	}

	if _, err := parseValueBindings(tmpl, []string{"unknown=1"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown slot, got %v", err)
	}
	if _, err := parseValueBindings(tmpl, []string{"ratio=half"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad float, got %v", err)
	}
}

func TestRenderResultPlain(t *testing.T) {
	out := renderResult(requester.Result{
		InstanceID: "ca-1",
		Status:     job.StatusUnknown,
		RawStatus:  "PausedActionStatus",
	}, false)
	requireContains(t, out, "ca-1")
	requireContains(t, out, "PausedActionStatus")
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("plain render contains escape codes: %q", out)
	}
}

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Store", statusOK, "reachable", false)
	requireContains(t, line, "Store:")
	requireContains(t, line, "[OK] reachable")

	text.EnableColors()
	colored := renderStatusLine("Store", statusError, "", true)
	if !strings.Contains(colored, "\x1b[") || !strings.Contains(colored, "[ERROR]") {
		t.Fatalf("colored line = %q", colored)
	}
	if shouldColorize(io.Discard) {
		t.Fatal("non-file writer must not be colorized")
	}
}

func TestRenderChecksSummarizesFailures(t *testing.T) {
	lines := renderChecks([]preflight.Result{
		{Name: "Download directory", Passed: true, Detail: "/tmp/dl"},
		{Name: "Job transcribe", Passed: false, Detail: "binary not found"},
	}, false)
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	requireContains(t, lines[0], "2 checks, 1 failed")
	requireContains(t, lines[2], "[ERROR] binary not found")
}
