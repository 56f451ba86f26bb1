package lastfm

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// envelope is the root <lfm> element of every response.
type envelope struct {
	XMLName xml.Name `xml:"lfm"`
	Status  string   `xml:"status,attr"`
	Inner   []byte   `xml:",innerxml"`
}

type apiError struct {
	Code    int    `xml:"code,attr"`
	Message string `xml:",chardata"`
}

const statusFailed = "failed"

// call performs a signed POST to the API and returns the inner XML of a
// successful response. Network errors, 5xx responses and temporary API
// errors are retried with exponential backoff up to maxAttempts.
func (c *Client) call(ctx context.Context, method string, params map[string]string, requiresAuth bool) ([]byte, error) {
	form := url.Values{}
	signed := make(map[string]string, len(params)+3)
	for k, v := range params {
		signed[k] = v
	}
	signed["method"] = method
	signed["api_key"] = c.apiKey

	if requiresAuth {
		sk := c.GetSessionKey()
		if sk == "" {
			return nil, ErrNoSessionKey
		}
		signed["sk"] = sk
	}

	for k, v := range signed {
		form.Set(k, v)
	}
	form.Set("api_sig", calculateSignature(signed, c.apiSecret))
	body := form.Encode()

	backoff := c.retryBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.logDebugf("lastfm: calling %s (attempt %d/%d)", method, attempt, c.maxAttempts)

		inner, err := c.do(ctx, body)
		if err == nil {
			c.logDebugf("lastfm: %s succeeded", method)
			return inner, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retryable(err) || attempt == c.maxAttempts {
			break
		}

		c.logDebugf("lastfm: %s failed, retrying in %s: %v", method, backoff, err)
		if !sleep(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff)
	}
	return nil, lastErr
}

// do performs one HTTP round trip.
func (c *Client) do(ctx context.Context, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if xmlErr := xml.Unmarshal(data, &env); xmlErr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &HTTPError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("failed to parse XML response: %w", xmlErr)
	}

	if env.Status == statusFailed {
		var apiErr apiError
		if err := xml.Unmarshal(env.Inner, &apiErr); err != nil {
			return nil, fmt.Errorf("failed to parse error response: %w", err)
		}
		return nil, &Error{Code: apiErr.Code, Message: strings.TrimSpace(apiErr.Message)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}
	return env.Inner, nil
}

// IsNetworkError reports whether err came from the network rather than
// from the API.
func IsNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return IsNetworkError(err)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// nextBackoff doubles the pause, capped at 30 seconds.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}

// wrapInner gives inner XML a root so it can be unmarshalled.
func wrapInner(inner []byte) []byte {
	out := make([]byte, 0, len(inner)+13)
	out = append(out, "<root>"...)
	out = append(out, inner...)
	return append(out, "</root>"...)
}
