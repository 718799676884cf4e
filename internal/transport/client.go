package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"jobgraph/internal/config"
	"jobgraph/internal/logging"
	"jobgraph/internal/ops"
	"jobgraph/internal/services"
)

// HTTPDoer describes the HTTP client used for request/response calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a decoded reply. Either Data or Errors is normally set.
type Response struct {
	Data       json.RawMessage `json:"data"`
	Errors     []RemoteError   `json:"errors"`
	StatusCode int             `json:"-"`
}

// Client sends operation documents to the request/response endpoint.
type Client struct {
	endpoint string
	timeout  time.Duration
	client   HTTPDoer
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

// WithEndpoint overrides the endpoint derived from configuration.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// New builds a Client for the endpoint described by cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		client: http.DefaultClient,
		logger: logging.NewComponentLogger(logger, "transport"),
	}
	if cfg != nil {
		c.endpoint = cfg.HTTPEndpoint()
		c.timeout = cfg.RequestTimeout()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL documents are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Do posts one document and decodes the reply. A non-success status is
// logged together with the document, but the decoded body is still returned;
// callers inspect Errors themselves.
func (c *Client) Do(ctx context.Context, document string) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	body, err := json.Marshal(map[string]string{"query": document})
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transport", "post", c.endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transport", "read reply", c.endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "remote store returned non-success status", "remote_http_status",
			logging.Int("status_code", resp.StatusCode),
			logging.String("document", document),
			logging.String("body", string(raw)),
			logging.String(logging.FieldErrorHint, "inspect the document and the store logs"),
			logging.String(logging.FieldImpact, "reply may carry an errors list instead of data"),
		)
	}

	var reply Response
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, services.Wrap(services.ErrProtocolViolation, "transport", "decode reply",
			fmt.Sprintf("status %d", resp.StatusCode), err)
	}
	reply.StatusCode = resp.StatusCode
	return &reply, nil
}

// Execute renders op, sends it and decodes data into out when out is not
// nil. A reply carrying an errors list yields *OperationError.
func (c *Client) Execute(ctx context.Context, op ops.Operation, out any) error {
	document, err := op.Document()
	if err != nil {
		return err
	}
	reply, err := c.Do(ctx, document)
	if err != nil {
		return fmt.Errorf("%s: %w", op.Name, err)
	}
	if len(reply.Errors) > 0 {
		return &OperationError{Operation: op.Name, Errors: reply.Errors}
	}
	if out == nil {
		return nil
	}
	return ops.DecodeField(reply.Data, op.Name, out)
}
