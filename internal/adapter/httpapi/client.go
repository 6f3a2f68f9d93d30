// Package httpapi is the small JSON-over-HTTP client shared by the service adapters.
// It classifies failures into domain.TransportError and domain.UnexpectedShapeError.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pscheid92/statusfeed/internal/domain"
)

const (
	maxBodyBytes = 4 << 20
	userAgent    = "statusfeed/1.0"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client performs GET requests on behalf of one named adapter.
type Client struct {
	adapter string
	http    *http.Client
}

func NewClient(adapter string, timeout time.Duration) *Client {
	return &Client{
		adapter: adapter,
		http:    &http.Client{Timeout: timeout},
	}
}

// GetJSON fetches url and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	body, err := c.get(ctx, url, headers)
	if err != nil {
		return err
	}
	return c.Decode(body, out)
}

// Decode unmarshals body into out, reporting malformed JSON as an unexpected shape.
func (c *Client) Decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.UnexpectedShapeError{Adapter: c.adapter, Reason: "malformed JSON", Err: err}
	}
	return nil
}

// Shape builds an UnexpectedShapeError for this adapter.
func (c *Client) Shape(format string, args ...any) error {
	return &domain.UnexpectedShapeError{Adapter: c.adapter, Reason: fmt.Sprintf(format, args...)}
}

// Transport builds a TransportError for this adapter.
func (c *Client) Transport(status int, err error) error {
	return &domain.TransportError{Adapter: c.adapter, StatusCode: status, Err: err}
}

func (c *Client) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, c.Transport(0, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.Transport(0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.Transport(resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.Transport(resp.StatusCode, fmt.Errorf("unexpected status: %s", snippet(body)))
	}

	return body, nil
}

func snippet(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > 200 {
		return string(body[:200]) + "..."
	}
	return string(body)
}

// FlexInt decodes an integer that upstream APIs send either as a JSON number or a quoted string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = FlexInt(n)
	return nil
}
