// Package github provides the release and CRD sources backed by GitHub:
// the releases API for version discovery, release assets for the
// controller bundle, and raw repository content for the companion
// CRD set. Every method performs a single request and never retries.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps how much of a response body is read. Release
// bundles are a few hundred KiB; anything far larger is treated as a
// broken response rather than buffered.
const maxBodyBytes = 32 << 20

// errBodyTooLarge is returned when a response exceeds maxBodyBytes.
var errBodyTooLarge = errors.New("response body too large")

// statusError carries a non-2xx HTTP status.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return "unexpected response status " + e.status
}

// get issues one GET request and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, url string, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// statusCode extracts the HTTP status code from err, or zero.
func statusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}
