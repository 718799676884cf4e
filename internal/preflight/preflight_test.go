package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jobgraph/internal/config"
	"jobgraph/internal/logging"
	"jobgraph/internal/testsupport"
	"jobgraph/internal/transport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckStore_OK(t *testing.T) {
	store := testsupport.NewFakeStore(t)
	store.Handle("__typename", func(testsupport.StoreRequest) testsupport.StoreReply {
		return testsupport.StoreReply{Data: "Query"}
	})
	cfg := store.Config(t)

	result := CheckStore(context.Background(), cfg.HTTPEndpoint(), transport.New(cfg, logging.NewNop()))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckStore_RemoteError(t *testing.T) {
	store := testsupport.NewFakeStore(t)
	cfg := store.Config(t)

	result := CheckStore(context.Background(), cfg.HTTPEndpoint(), transport.New(cfg, logging.NewNop()))
	if result.Passed {
		t.Fatal("expected failure when the store rejects the query")
	}
	if !strings.Contains(result.Detail, "no handler") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckStore_Unreachable(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithServerHost("127.0.0.1:1"))

	result := CheckStore(context.Background(), cfg.HTTPEndpoint(), transport.New(cfg, logging.NewNop()))
	if result.Passed {
		t.Fatal("expected failure for unreachable store")
	}
}

func TestCheckSubscriptions(t *testing.T) {
	store := testsupport.NewFakeStore(t)
	cfg := store.Config(t)
	dialer := transport.NewDialer(cfg, logging.NewNop())

	if result := CheckSubscriptions(context.Background(), cfg.WebsocketEndpoint(), dialer); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	store.SetFirstFrame("connection_error")
	if result := CheckSubscriptions(context.Background(), cfg.WebsocketEndpoint(), dialer); result.Passed {
		t.Fatal("expected failure without acknowledgement")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, nil, nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_DirectoriesOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	results := RunAll(context.Background(), cfg, nil, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesJobBinaries(t *testing.T) {
	store := testsupport.NewFakeStore(t)
	store.Handle("__typename", func(testsupport.StoreRequest) testsupport.StoreReply {
		return testsupport.StoreReply{Data: "Query"}
	})
	cfg := store.Config(t,
		testsupport.WithStubbedBinaries("transcribe"),
		testsupport.WithJob(config.DispatchJob{Name: "present", EntryPoint: "ep-1", Command: "transcribe {input}"}),
		testsupport.WithJob(config.DispatchJob{Name: "absent", EntryPoint: "ep-2", Command: "clearly-not-present-binary"}),
	)

	results := RunAll(context.Background(), cfg, transport.New(cfg, logging.NewNop()), transport.NewDialer(cfg, logging.NewNop()))
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Job absent" {
		t.Fatalf("expected only the absent job to fail, got %+v", failed)
	}
	if len(results) != 8 {
		t.Fatalf("expected 8 results, got %d", len(results))
	}
}
