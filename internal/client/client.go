// Package client talks to the external restaurant REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tabble/internal/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionHeader carries the backend session id on every request
const SessionHeader = "X-Session-ID"

// Options configure a Client
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	SessionID string
}

// Client handles requests to the restaurant API
type Client struct {
	httpClient *http.Client
	baseURL    string
	sessionID  string
	log        *zap.Logger
	monitor    *monitoring.Monitor
	collector  *monitoring.Collector
}

// New creates a new API client. A session id is generated when none is given.
func New(opts Options, log *zap.Logger, monitor *monitoring.Monitor, collector *monitoring.Collector) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		sessionID:  opts.SessionID,
		log:        log,
		monitor:    monitor,
		collector:  collector,
	}
}

// SessionID returns the backend session id sent with every request
func (c *Client) SessionID() string {
	return c.sessionID
}

// CheckHealth checks if the API is up and running
func (c *Client) CheckHealth(ctx context.Context) error {
	return c.do(ctx, "check_health", http.MethodGet, "/health", nil, nil, nil)
}

type errorBody struct {
	Detail interface{} `json:"detail"`
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		if c.monitor != nil {
			c.monitor.RecordDuration("api."+op, elapsed)
		}
		if c.collector != nil {
			c.collector.ObserveAPIRequest(op, err, elapsed)
		}
		if err != nil {
			c.log.Debug("api request failed",
				zap.String("op", op),
				zap.String("path", path),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
		}
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(SessionHeader, c.sessionID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Kind:       kindForStatus(resp.StatusCode),
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     detailFrom(data),
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindDecode, Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// detailFrom extracts the "detail" field of an error body, which is either a
// string or a list of validation problems.
func detailFrom(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Detail == nil {
		return strings.TrimSpace(string(data))
	}
	if s, ok := body.Detail.(string); ok {
		return s
	}
	encoded, _ := json.Marshal(body.Detail)
	return string(encoded)
}
