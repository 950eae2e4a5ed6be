package marketplace

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

	"golang.org/x/time/rate"

	"github.com/catalogsync/backend/internal/domain/channel"
)

// maxResponseSize caps remote response bodies (10MB)
const maxResponseSize = 10 * 1024 * 1024

// apiClient is the transport shared by every adapter: one token bucket per
// adapter instance sized from the tenant's rate limit policy, a per-call
// timeout, and bounded exponential retry on transient failures. Every
// failure leaving this client is classified into the channel error
// taxonomy; raw transport errors never escape.
type apiClient struct {
	system  channel.SystemCode
	http    *http.Client
	limiter *rate.Limiter
	policy  channel.RateLimitPolicy
}

func newAPIClient(system channel.SystemCode, policy channel.RateLimitPolicy) *apiClient {
	if policy.RequestsPerMinute <= 0 {
		policy = channel.DefaultRateLimitPolicy()
	}
	return &apiClient{
		system:  system,
		http:    &http.Client{Timeout: policy.CallTimeout},
		limiter: rate.NewLimiter(rate.Limit(float64(policy.RequestsPerMinute)/60.0), policy.Burst),
		policy:  policy,
	}
}

// doJSON performs one JSON request with rate limiting and retry. A nil body
// sends no payload; a nil out discards the response body.
func (c *apiClient) doJSON(ctx context.Context, method, url string, headers map[string]string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", channel.ErrInvalidResponse, err)
		}
	}

	backoff := c.policy.BackoffBase
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.doOnce(ctx, method, url, headers, payload, out)
		if err == nil {
			return nil
		}
		if !channel.IsTransient(err) {
			return err
		}
		lastErr = err
		if attempt == c.policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

// doForm posts a urlencoded form, used by OAuth token endpoints. Transient
// failures retry on the next Authenticate call rather than here; a token
// exchange is cheap and the caller already sits inside a retry loop.
func (c *apiClient) doForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	callCtx := ctx
	if c.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.policy.CallTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", channel.ErrInvalidResponse, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &channel.TransientError{System: c.system, Detail: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &channel.TransientError{System: c.system, StatusCode: resp.StatusCode, Detail: "read response: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// token endpoints answer 400 for bad credentials
		if resp.StatusCode == 400 {
			return &channel.AuthError{System: c.system, Detail: truncate(string(data), 500)}
		}
		return channel.ClassifyHTTPStatus(c.system, resp.StatusCode, truncate(string(data), 500))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", channel.ErrInvalidResponse, err)
	}
	return nil
}

func (c *apiClient) doOnce(ctx context.Context, method, url string, headers map[string]string, payload []byte, out interface{}) error {
	callCtx := ctx
	if c.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.policy.CallTimeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", channel.ErrInvalidResponse, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// timeouts and connection resets are retryable
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &channel.TransientError{System: c.system, Detail: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &channel.TransientError{System: c.system, StatusCode: resp.StatusCode, Detail: "read response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return channel.ClassifyHTTPStatus(c.system, resp.StatusCode, truncate(string(data), 500))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", channel.ErrInvalidResponse, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
