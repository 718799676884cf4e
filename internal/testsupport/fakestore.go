package testsupport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"jobgraph/internal/config"
)

// StoreRequest is one document received by the fake store.
type StoreRequest struct {
	Operation string
	Document  string
}

// StoreReply is what a handler answers with. Data is placed under
// data.<Operation> unless RawBody is set.
type StoreReply struct {
	Status  int
	Data    any
	Errors  []string
	RawBody string
}

// StoreHandler answers one operation.
type StoreHandler func(req StoreRequest) StoreReply

// FakeStore is an in-process remote store. The request/response endpoint
// routes documents to handlers by operation name; the duplex endpoint
// performs the graphql-ws handshake and forwards Publish calls to every
// started subscription.
type FakeStore struct {
	t      testing.TB
	Server *httptest.Server

	mu        sync.Mutex
	handlers  map[string]StoreHandler
	documents []StoreRequest
	subs      map[*fakeSub]struct{}
	starts    []string
	started   chan string
	first     string
}

type fakeSub struct {
	mu   sync.Mutex
	ws   *websocket.Conn
	id   string
	name string
}

// NewFakeStore starts a fake store and closes it when the test ends.
func NewFakeStore(t testing.TB) *FakeStore {
	t.Helper()

	s := &FakeStore{
		t:        t,
		handlers: make(map[string]StoreHandler),
		subs:     make(map[*fakeSub]struct{}),
		started:  make(chan string, 64),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", s.serveHTTP)
	mux.HandleFunc("/subscriptions", s.serveWS)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(func() {
		s.DropConnections()
		s.Server.Close()
	})
	return s
}

// Config returns a test config pointing at the fake store.
func (s *FakeStore) Config(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	host := strings.TrimPrefix(s.Server.URL, "http://")
	cfg := NewConfig(t, append([]ConfigOption{WithServerHost(host)}, opts...)...)
	cfg.Server.HTTPPath = "/graphql"
	cfg.Server.WebsocketPath = "/subscriptions"
	return cfg
}

// SetFirstFrame makes the handshake answer connection_init with frameType
// instead of connection_ack.
func (s *FakeStore) SetFirstFrame(frameType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.first = frameType
}

// Handle registers h for operation.
func (s *FakeStore) Handle(operation string, h StoreHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[operation] = h
}

// Documents returns every request received so far, in order.
func (s *FakeStore) Documents() []StoreRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoreRequest(nil), s.documents...)
}

// DocumentsFor returns the documents received for operation.
func (s *FakeStore) DocumentsFor(operation string) []string {
	var out []string
	for _, req := range s.Documents() {
		if req.Operation == operation {
			out = append(out, req.Document)
		}
	}
	return out
}

// Operations returns the operation names received so far, in order.
func (s *FakeStore) Operations() []string {
	var out []string
	for _, req := range s.Documents() {
		out = append(out, req.Operation)
	}
	return out
}

func (s *FakeStore) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := StoreRequest{Operation: OperationName(body.Query), Document: body.Query}

	s.mu.Lock()
	s.documents = append(s.documents, req)
	h := s.handlers[req.Operation]
	s.mu.Unlock()

	reply := StoreReply{Errors: []string{"no handler for " + req.Operation}}
	if h != nil {
		reply = h(req)
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if reply.RawBody != "" {
		_, _ = w.Write([]byte(reply.RawBody))
		return
	}
	out := map[string]any{}
	if reply.Data != nil {
		out["data"] = map[string]any{req.Operation: reply.Data}
	}
	if len(reply.Errors) > 0 {
		errs := make([]map[string]string, 0, len(reply.Errors))
		for _, msg := range reply.Errors {
			errs = append(errs, map[string]string{"message": msg})
		}
		out["errors"] = errs
	}
	_ = json.NewEncoder(w).Encode(out)
}

type wsFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	Subprotocols: []string{"graphql-ws"},
	CheckOrigin:  func(*http.Request) bool { return true },
}

func (s *FakeStore) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sub := &fakeSub{ws: ws}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	first := s.first
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		ws.Close()
	}()

	var init wsFrame
	if err := ws.ReadJSON(&init); err != nil || init.Type != "connection_init" {
		return
	}
	if first == "" {
		first = "connection_ack"
	}
	if err := sub.write(wsFrame{Type: first}); err != nil {
		return
	}
	for {
		var frame wsFrame
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Type {
		case "start":
			var payload struct {
				Query string `json:"query"`
			}
			_ = json.Unmarshal(frame.Payload, &payload)
			sub.mu.Lock()
			sub.id = frame.ID
			sub.name = OperationName(payload.Query)
			sub.mu.Unlock()
			s.mu.Lock()
			s.starts = append(s.starts, payload.Query)
			s.mu.Unlock()
			s.started <- payload.Query
		case "stop", "connection_terminate":
			return
		}
	}
}

func (f *fakeSub) write(frame wsFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ws.WriteJSON(frame)
}

// WaitSubscribed blocks until a start frame arrives and returns its document.
func (s *FakeStore) WaitSubscribed(t testing.TB, timeout time.Duration) string {
	t.Helper()

	select {
	case doc := <-s.started:
		return doc
	case <-time.After(timeout):
		t.Fatalf("no subscription started within %s", timeout)
		return ""
	}
}

// Subscriptions returns the documents of every start frame received.
func (s *FakeStore) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.starts...)
}

// SubscriptionIDs returns the correlation ids of the open subscriptions.
func (s *FakeStore) SubscriptionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for sub := range s.subs {
		sub.mu.Lock()
		if sub.id != "" {
			ids = append(ids, sub.id)
		}
		sub.mu.Unlock()
	}
	return ids
}

// Publish pushes payload as data.<name> to every started subscription and
// returns how many received it.
func (s *FakeStore) Publish(payload any) int {
	s.mu.Lock()
	subs := make([]*fakeSub, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	sent := 0
	for _, sub := range subs {
		sub.mu.Lock()
		id, name := sub.id, sub.name
		sub.mu.Unlock()
		if id == "" {
			continue
		}
		data, err := json.Marshal(map[string]any{"data": map[string]any{name: payload}})
		if err != nil {
			s.t.Errorf("encode publish payload: %v", err)
			return sent
		}
		if err := sub.write(wsFrame{Type: "data", ID: id, Payload: data}); err == nil {
			sent++
		}
	}
	return sent
}

// SendRaw writes frame to every open connection, started or not.
func (s *FakeStore) SendRaw(frameType, id string, payload any) {
	s.mu.Lock()
	subs := make([]*fakeSub, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	for _, sub := range subs {
		_ = sub.write(wsFrame{Type: frameType, ID: id, Payload: raw})
	}
}

// DropConnections closes every open duplex connection.
func (s *FakeStore) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.ws.Close()
	}
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			t.Fatalf("condition not met within %s", timeout)
		case <-ticker.C:
		}
	}
}

// OperationName extracts the operation name from a document such as
// "mutation { CreateThing(...) { ... } }".
func OperationName(document string) string {
	_, rest, ok := strings.Cut(document, "{")
	if !ok {
		return ""
	}
	rest = strings.TrimSpace(rest)
	end := strings.IndexAny(rest, "( {\n")
	if end < 0 {
		return rest
	}
	return rest[:end]
}

// WebsocketURL returns the duplex endpoint URL of the fake store.
func (s *FakeStore) WebsocketURL() string {
	u, _ := url.Parse(s.Server.URL)
	u.Scheme = "ws"
	u.Path = "/subscriptions"
	return u.String()
}
