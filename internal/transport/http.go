// Package transport is the raw document-fetch capability injected into the
// fetch orchestration. Its errors distinguish transport failures (no
// response obtained) from application failures (an error response), which
// drives the compressed-to-plain log fallback.
package transport

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Getter fetches a document by URL.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Error is a failed fetch, annotated with the request URL for diagnostics.
// StatusCode is zero when no response was received.
type Error struct {
	URL        string
	StatusCode int
	Response   bool
	Err        error
}

func (e *Error) Error() string {
	if e.Response {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ReceivedResponse reports whether any response came back. False means the
// failure happened below the application layer.
func (e *Error) ReceivedResponse() bool { return e.Response }

// IsTransportFailure reports whether err is a fetch failure for which no
// response was received at all.
func IsTransportFailure(err error) bool {
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	return !te.ReceivedResponse()
}

// ErrorURL extracts the originating request URL from a fetch error, or ""
// when err carries none.
func ErrorURL(err error) string {
	var te *Error
	if !errors.As(err, &te) {
		return ""
	}
	return te.URL
}

// Client implements Getter over net/http. Documents whose body carries the
// gzip magic are decompressed transparently, so a .gz log served without
// Content-Encoding still decodes.
type Client struct {
	hc *http.Client
}

// NewClient wraps hc; a nil hc gets a client with a sane default timeout.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{hc: hc}
}

func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &Error{
			URL:        url,
			StatusCode: resp.StatusCode,
			Response:   true,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Response: true, Err: err}
	}
	return maybeGunzip(url, body)
}

var gzipMagic = []byte{0x1f, 0x8b}

func maybeGunzip(url string, body []byte) ([]byte, error) {
	if !bytes.HasPrefix(body, gzipMagic) {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{URL: url, Response: true, Err: fmt.Errorf("gunzip: %w", err)}
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &Error{URL: url, Response: true, Err: fmt.Errorf("gunzip: %w", err)}
	}
	return out, nil
}

// GetJSON fetches a document and unmarshals it. Decode failures count as
// application failures: a response was obtained, it just wasn't usable.
func GetJSON(ctx context.Context, g Getter, url string, v any) error {
	body, err := g.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{URL: url, Response: true, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
