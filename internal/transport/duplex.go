package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"jobgraph/internal/config"
	"jobgraph/internal/logging"
	"jobgraph/internal/ops"
	"jobgraph/internal/services"
)

// Subprotocol is negotiated when the duplex channel is opened.
const Subprotocol = "graphql-ws"

// Frame types of the duplex protocol.
const (
	FrameConnectionInit      = "connection_init"
	FrameConnectionAck       = "connection_ack"
	FrameConnectionError     = "connection_error"
	FrameConnectionTerminate = "connection_terminate"
	FrameKeepAlive           = "ka"
	FrameStart               = "start"
	FrameStop                = "stop"
	FrameData                = "data"
	FrameError               = "error"
	FrameComplete            = "complete"
)

// ErrSubscriptionComplete is returned by Next once the server ends the
// subscription.
var ErrSubscriptionComplete = errors.New("subscription complete")

// Frame is one JSON message on the duplex channel.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is one pushed subscription result.
type Event struct {
	ID   string
	Name string
	Data json.RawMessage
}

// Dialer opens duplex channels to the store.
type Dialer struct {
	endpoint     string
	header       http.Header
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	logger       *slog.Logger
}

// DialOption customizes a Dialer.
type DialOption func(*Dialer)

// WithWebsocketEndpoint overrides the endpoint derived from configuration.
func WithWebsocketEndpoint(endpoint string) DialOption {
	return func(d *Dialer) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			d.endpoint = endpoint
		}
	}
}

// WithHeader adds a header to the opening handshake.
func WithHeader(key, value string) DialOption {
	return func(d *Dialer) {
		d.header.Add(key, value)
	}
}

// NewDialer builds a Dialer for the duplex endpoint described by cfg.
func NewDialer(cfg *config.Config, logger *slog.Logger, opts ...DialOption) *Dialer {
	d := &Dialer{
		header:       http.Header{},
		writeTimeout: 10 * time.Second,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 30 * time.Second,
			Subprotocols:     []string{Subprotocol},
		},
		logger: logging.NewComponentLogger(logger, "duplex"),
	}
	if cfg != nil {
		d.endpoint = cfg.WebsocketEndpoint()
		if timeout := cfg.RequestTimeout(); timeout > 0 {
			d.dialer.HandshakeTimeout = timeout
			d.writeTimeout = timeout
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Endpoint returns the websocket URL.
func (d *Dialer) Endpoint() string {
	return d.endpoint
}

// Dial opens the channel and sends the init frame. The caller must call
// AwaitAck before starting a subscription.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, d.endpoint, d.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "duplex", "dial", d.endpoint, err)
	}
	if ws.Subprotocol() != Subprotocol {
		ws.Close()
		return nil, services.Wrap(services.ErrProtocolViolation, "duplex", "dial",
			fmt.Sprintf("server negotiated sub-protocol %q", ws.Subprotocol()), nil)
	}
	conn := &Conn{ws: ws, writeTimeout: d.writeTimeout, logger: d.logger}
	if err := conn.write(Frame{Type: FrameConnectionInit, Payload: json.RawMessage(`{}`)}); err != nil {
		ws.Close()
		return nil, services.Wrap(services.ErrTransient, "duplex", "send init", d.endpoint, err)
	}
	return conn, nil
}

// Conn is an open duplex channel carrying at most one subscription. It is
// not safe for concurrent use.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	logger       *slog.Logger

	acked bool
	id    string
	name  string
}

// AwaitAck reads the server's reply to the init frame. Anything other than
// an ack is a protocol violation and the channel is closed.
func (c *Conn) AwaitAck(ctx context.Context) error {
	frame, err := c.read(ctx)
	if err != nil {
		return err
	}
	if frame.Type != FrameConnectionAck {
		c.ws.Close()
		return services.Wrap(services.ErrProtocolViolation, "duplex", "await ack",
			fmt.Sprintf("received %q before connection_ack", frame.Type), nil)
	}
	c.acked = true
	return nil
}

// Start sends a start frame for op and returns its correlation id.
func (c *Conn) Start(op ops.Operation) (string, error) {
	if !c.acked {
		return "", services.Wrap(services.ErrProtocolViolation, "duplex", "start", "channel not acknowledged", nil)
	}
	if c.id != "" {
		return "", services.Wrap(services.ErrProtocolViolation, "duplex", "start", "subscription already started", nil)
	}
	document, err := op.Document()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(map[string]string{"query": document})
	if err != nil {
		return "", fmt.Errorf("encode start payload: %w", err)
	}
	id := uuid.NewString()
	if err := c.write(Frame{Type: FrameStart, ID: id, Payload: payload}); err != nil {
		return "", services.Wrap(services.ErrTransient, "duplex", "start", op.Name, err)
	}
	c.id = id
	c.name = op.Name
	return id, nil
}

// Next blocks until the subscription pushes an event. Keep-alive frames and
// frames for other ids are skipped. An error frame yields *OperationError;
// a complete frame yields ErrSubscriptionComplete.
func (c *Conn) Next(ctx context.Context) (Event, error) {
	if c.id == "" {
		return Event{}, services.Wrap(services.ErrProtocolViolation, "duplex", "next", "no subscription started", nil)
	}
	for {
		frame, err := c.read(ctx)
		if err != nil {
			return Event{}, err
		}
		switch frame.Type {
		case FrameKeepAlive:
			continue
		case FrameConnectionError:
			return Event{}, services.Wrap(services.ErrProtocolViolation, "duplex", "next",
				"connection_error: "+string(frame.Payload), nil)
		}
		if frame.ID != c.id {
			c.logger.Debug("skipping frame for other subscription",
				logging.String("frame_type", frame.Type),
				logging.String("frame_id", frame.ID),
			)
			continue
		}
		switch frame.Type {
		case FrameData:
			return c.decodeData(frame)
		case FrameError:
			return Event{}, &OperationError{Operation: c.name, Errors: decodeErrors(frame.Payload)}
		case FrameComplete:
			return Event{}, ErrSubscriptionComplete
		default:
			c.logger.Debug("ignoring frame", logging.String("frame_type", frame.Type))
		}
	}
}

func (c *Conn) decodeData(frame Frame) (Event, error) {
	var result Response
	if err := json.Unmarshal(frame.Payload, &result); err != nil {
		return Event{}, services.Wrap(services.ErrProtocolViolation, "duplex", "decode event", c.name, err)
	}
	if len(result.Errors) > 0 {
		return Event{}, &OperationError{Operation: c.name, Errors: result.Errors}
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(result.Data, &data); err != nil {
		return Event{}, services.Wrap(services.ErrProtocolViolation, "duplex", "decode event", c.name, err)
	}
	payload, ok := data[c.name]
	if !ok {
		return Event{}, services.Wrap(services.ErrProtocolViolation, "duplex", "decode event",
			fmt.Sprintf("payload has no %s", c.name), nil)
	}
	return Event{ID: frame.ID, Name: c.name, Data: payload}, nil
}

// Close stops the subscription and closes the channel. It is safe to call
// more than once.
func (c *Conn) Close() error {
	if c.id != "" {
		_ = c.write(Frame{Type: FrameStop, ID: c.id})
	}
	_ = c.write(Frame{Type: FrameConnectionTerminate})
	return c.ws.Close()
}

func (c *Conn) write(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) read(ctx context.Context) (Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		c.ws.Close()
	})
	defer stop()

	_, message, err := c.ws.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Frame{}, ctxErr
		}
		return Frame{}, services.Wrap(services.ErrTransient, "duplex", "read", "channel lost", err)
	}
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		return Frame{}, services.Wrap(services.ErrProtocolViolation, "duplex", "read", "frame is not JSON", err)
	}
	return frame, nil
}

func decodeErrors(payload json.RawMessage) []RemoteError {
	var list []RemoteError
	if err := json.Unmarshal(payload, &list); err == nil {
		return list
	}
	var single RemoteError
	if err := json.Unmarshal(payload, &single); err == nil && single.Message != "" {
		return []RemoteError{single}
	}
	return []RemoteError{{Message: string(payload)}}
}
