// Package billingapi is the HTTP transport for the remote billing API.
package billingapi

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	contentTypeXML = "application/xml; charset=utf-8"
	maxErrorBody   = 4 << 10
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Client wraps interactions with the billing API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *Metrics
}

// NewClient constructs a new client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics *Metrics
	if opts.Registerer != nil {
		metrics = NewMetrics(opts.Registerer)
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
	}
}

// Ping checks if the remote billing API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("billing api returned status %d", resp.StatusCode)
	}
	return nil
}

// Perform sends one request. write, when set, produces the XML body after the
// XML declaration. read, when set, consumes a successful response body.
// Any status outside 2xx is returned as a *StatusError.
func (c *Client) Perform(ctx context.Context, method, path string, write func(*xml.Encoder) error, read func(*xml.Decoder) error) (int, error) {
	var body io.Reader
	if write != nil {
		buf := &bytes.Buffer{}
		buf.WriteString(xml.Header)
		enc := xml.NewEncoder(buf)
		if err := write(enc); err != nil {
			return 0, fmt.Errorf("billingapi: encode %s %s: %w", method, path, err)
		}
		if err := enc.Flush(); err != nil {
			return 0, fmt.Errorf("billingapi: encode %s %s: %w", method, path, err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeXML)
	}
	req.Header.Set("Accept", "application/xml")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(method, "error", time.Since(start))
		return 0, fmt.Errorf("billingapi: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.metrics.observe(method, strconv.Itoa(resp.StatusCode), time.Since(start))
	c.logger.Debug("billing api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}

	if read == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := read(xml.NewDecoder(resp.Body)); err != nil {
		return resp.StatusCode, fmt.Errorf("billingapi: decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, nil
}
