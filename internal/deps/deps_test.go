package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Placeholder", Command: "{tool}"},
		{Name: "Empty", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	for _, missing := range results[1:] {
		if missing.Available {
			t.Fatalf("expected %s to be unavailable", missing.Name)
		}
		if missing.Detail == "" {
			t.Fatalf("expected detail message for %s", missing.Name)
		}
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
}

func TestCommandRequirement(t *testing.T) {
	req := CommandRequirement("transcribe", "  whisper --in {input} --out {output_path}")
	if req.Command != "whisper" || req.Name != "transcribe" {
		t.Fatalf("unexpected requirement %#v", req)
	}
	if empty := CommandRequirement("none", ""); empty.Command != "" {
		t.Fatalf("expected empty command, got %q", empty.Command)
	}
}
