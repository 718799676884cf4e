package dispatcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"

	"jobgraph/internal/config"
	"jobgraph/internal/dispatcher"
	"jobgraph/internal/logging"
	"jobgraph/internal/testsupport"
	"jobgraph/internal/transport"
)

// timeline records the order of side effects across the fake store, the
// artifact server and the executor.
type timeline struct {
	mu     sync.Mutex
	events []string
}

func (tl *timeline) add(event string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.events = append(tl.events, event)
}

func (tl *timeline) list() []string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]string(nil), tl.events...)
}

func (tl *timeline) statuses() []string {
	var out []string
	for _, e := range tl.list() {
		if s, ok := strings.CutPrefix(e, "status:"); ok {
			out = append(out, s)
		}
	}
	return out
}

var (
	statusPattern = regexp.MustCompile(`actionStatus: (\w+)`)
	errorPattern  = regexp.MustCompile(`error: "([^"]*)"`)
)

type fixture struct {
	store    *testsupport.FakeStore
	cfg      *config.Config
	client   *transport.Client
	dialer   *transport.Dialer
	timeline *timeline
	content  *httptest.Server
	errText  string
	// rejectStatus makes the store answer writes of this status with an
	// errors list.
	rejectStatus string

	mu       sync.Mutex
	instance map[string]any
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	f := &fixture{timeline: &timeline{}}
	f.content = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.timeline.add("download:" + r.URL.Path)
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	t.Cleanup(f.content.Close)

	f.store = testsupport.NewFakeStore(t)
	jobOpt := testsupport.WithJob(config.DispatchJob{
		Name:         "transcribe",
		EntryPoint:   "ep-1",
		Command:      "transcribe --in {input} --out {output_path} --name {output}",
		OutputSlot:   "output",
		OutputFormat: "audio/midi",
		OutputType:   "DigitalDocument",
	})
	f.cfg = f.store.Config(t, append([]testsupport.ConfigOption{jobOpt}, opts...)...)
	f.cfg.Dispatcher.CommandTimeout = 10
	f.client = transport.New(f.cfg, logging.NewNop())
	f.dialer = transport.NewDialer(f.cfg, logging.NewNop())
	f.setInstance("ca-1", "PotentialActionStatus", f.content.URL+"/a.mp3", "song.mid")

	f.store.Handle("ControlAction", func(req testsupport.StoreRequest) testsupport.StoreReply {
		if strings.Contains(req.Document, "wasDerivedFrom") {
			f.timeline.add("query:instance")
			f.mu.Lock()
			defer f.mu.Unlock()
			return testsupport.StoreReply{Data: []any{f.instance}}
		}
		f.timeline.add("query:template")
		return testsupport.StoreReply{Data: []any{map[string]any{
			"identifier": "tmpl-1",
			"name":       "transcribe",
			"object": []any{
				map[string]any{"__typename": "Property", "identifier": "p1", "title": "input", "rangeIncludes": []string{"AudioObject"}},
				map[string]any{"__typename": "PropertyValueSpecification", "identifier": "v1", "title": "output", "valueRequired": true},
			},
		}}}
	})
	f.store.Handle("UpdateControlAction", func(req testsupport.StoreRequest) testsupport.StoreReply {
		status := ""
		if m := statusPattern.FindStringSubmatch(req.Document); m != nil {
			status = m[1]
		}
		if m := errorPattern.FindStringSubmatch(req.Document); m != nil {
			f.mu.Lock()
			f.errText = m[1]
			f.mu.Unlock()
		}
		f.timeline.add("status:" + status)
		f.mu.Lock()
		reject := f.rejectStatus != "" && f.rejectStatus == status
		f.mu.Unlock()
		if reject {
			return testsupport.StoreReply{Errors: []string{"status write rejected"}}
		}
		return testsupport.StoreReply{Data: map[string]any{"identifier": "ca-1", "actionStatus": status}}
	})
	f.store.Handle("CreateDigitalDocument", func(req testsupport.StoreRequest) testsupport.StoreReply {
		f.timeline.add("create:artifact")
		return testsupport.StoreReply{Data: map[string]any{"identifier": "doc-1"}}
	})
	f.store.Handle("MergeControlActionResult", func(req testsupport.StoreRequest) testsupport.StoreReply {
		f.timeline.add("link:result")
		return testsupport.StoreReply{Data: map[string]any{"from": []any{}, "to": []any{}}}
	})
	return f
}

// setInstance replaces the job instance served by the fake store. An empty
// source leaves the node input unbound.
func (f *fixture) setInstance(id, status, source, outputName string) {
	object := []any{
		map[string]any{"__typename": "PropertyValue", "identifier": "pv2", "name": "output", "value": outputName},
	}
	if source != "" {
		object = append(object, map[string]any{
			"__typename": "PropertyValue", "identifier": "pv1", "name": "input",
			"nodeValue": map[string]any{"__typename": "AudioObject", "identifier": "a1", "source": source},
		})
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instance = map[string]any{
		"identifier":     id,
		"actionStatus":   status,
		"wasDerivedFrom": []any{map[string]any{"identifier": "tmpl-1"}},
		"object":         object,
		"result":         []any{},
	}
}

func (f *fixture) lastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errText
}

func (f *fixture) worker(t *testing.T, exec dispatcher.Executor) *dispatcher.Worker {
	t.Helper()
	w, err := dispatcher.NewWorker(f.cfg, f.cfg.Dispatcher.Jobs[0], f.client, f.dialer, logging.NewNop(),
		dispatcher.WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	return w
}

// fileExecutor simulates the processing command: it reads the --in file
// and writes the --out file.
type fileExecutor struct {
	timeline *timeline
	mu       sync.Mutex
	binary   string
	args     []string
	input    string
	err      error
	panicMsg string
	noOutput bool
}

func (e *fileExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	e.timeline.add("execute:" + binary)
	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.binary = binary
	e.args = append([]string(nil), args...)
	if e.err != nil {
		onOutput("fatal: model not found")
		return e.err
	}
	in, out := argAfter(args, "--in"), argAfter(args, "--out")
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	e.input = string(data)
	if e.noOutput {
		return nil
	}
	return os.WriteFile(out, []byte("midi"), 0o644)
}

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

var errCommand = errors.New("exit status 3")
