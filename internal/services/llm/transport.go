package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse keeps only what a JSON-mode reply carries.
type chatCompletionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// statusError is a non-2xx reply. RetryAfter is zero when the server sent
// no usable Retry-After header.
type statusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.Code, e.Body)
}

func (e *statusError) transient() bool {
	return e.Code == http.StatusRequestTimeout ||
		e.Code == http.StatusTooManyRequests ||
		e.Code >= http.StatusInternalServerError
}

// emptyReplyError is a 2xx reply without usable content. Models under load
// do this intermittently, so it is retried.
type emptyReplyError struct {
	Op           string
	FinishReason string
	Snippet      string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, response_snippet=%s)", e.Op, e.FinishReason, e.Snippet)
}

// backoff bounds the retry loop around a single completion.
type backoff struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	sleep     func(time.Duration)
}

func (b backoff) budget() int {
	if b.attempts < 1 {
		return 1
	}
	return b.attempts
}

// delay is the wait before attempt n+1, doubling from baseDelay and never
// exceeding maxDelay.
func (b backoff) delay(n int) time.Duration {
	if b.baseDelay <= 0 {
		return 0
	}
	d := b.baseDelay
	for i := 1; i < n && d < b.maxDelay; i++ {
		d *= 2
	}
	return b.clamp(d)
}

func (b backoff) clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if b.maxDelay > 0 && d > b.maxDelay {
		return b.maxDelay
	}
	return d
}

func (b backoff) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	if b.sleep != nil {
		b.sleep(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryAfter reports whether err is worth another attempt and how long to
// wait first. A server-supplied Retry-After wins over the backoff schedule.
func (b backoff) retryAfter(err error, n int) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var empty *emptyReplyError
	if errors.As(err, &empty) {
		return b.delay(n), true
	}
	var status *statusError
	if errors.As(err, &status) {
		if !status.transient() {
			return 0, false
		}
		if status.RetryAfter > 0 {
			return b.clamp(status.RetryAfter), true
		}
		return b.delay(n), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return b.delay(n), true
	}
	return 0, false
}

func (c *Client) completionContentWithRetry(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: encode body: %w", op, err)
	}
	budget := c.retry.budget()
	var lastErr error
	for n := 1; n <= budget; n++ {
		content, err := c.complete(ctx, encoded, op)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if n == budget {
			break
		}
		d, ok := c.retry.retryAfter(err, n)
		if !ok {
			return "", err
		}
		if err := c.retry.wait(ctx, d); err != nil {
			return "", err
		}
	}
	if budget == 1 {
		return "", lastErr
	}
	return "", fmt.Errorf("%s: failed after %d attempts: %w", op, budget, lastErr)
}

// complete performs one POST and returns the first choice's trimmed content.
func (c *Client) complete(ctx context.Context, body []byte, op string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return "", &statusError{Code: resp.StatusCode, Body: clip(string(raw)), RetryAfter: wait}
	}
	var reply chatCompletionResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("llm request: decode response: %w", err)
	}
	if reply.Error != nil {
		return "", fmt.Errorf("llm request: api error: %s", strings.TrimSpace(reply.Error.Message))
	}
	if len(reply.Choices) == 0 {
		return "", &emptyReplyError{Op: op, Snippet: clip(string(raw))}
	}
	first := reply.Choices[0]
	content := strings.TrimSpace(first.Message.Content)
	if content == "" {
		return "", &emptyReplyError{Op: op, FinishReason: first.FinishReason, Snippet: clip(string(raw))}
	}
	return content, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date relative to now.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	when, err := http.ParseTime(value)
	if err != nil || !when.After(now) {
		return 0, false
	}
	return when.Sub(now), true
}
