package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"captioner/internal/api"
)

const (
	defaultTimeout = 30 * time.Second
	uploadField    = "video_file"
)

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("daemon returned %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client issues requests against one daemon.
type Client struct {
	baseURL string
	token   string
	http    HTTPDoer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New returns a client for baseURL, e.g. "http://127.0.0.1:7491".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURLFromBind turns a listen address into a URL a local client can dial.
// Wildcard hosts are replaced with the loopback address.
func BaseURLFromBind(bind string) string {
	bind = strings.TrimSpace(bind)
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return strings.TrimRight(bind, "/")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var resp api.DaemonStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload streams the file at path to the daemon and returns the media id.
func (c *Client) Upload(ctx context.Context, path string) (*api.UploadResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile(uploadField, filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/media", pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp api.UploadResponse
	if err := c.send(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ingest extracts audio and recognizes speech for an uploaded media file.
func (c *Client) Ingest(ctx context.Context, mediaID string) (*api.IngestResponse, error) {
	var resp api.IngestResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/media/"+url.PathEscape(mediaID)+"/ingest", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transcript fetches the stored transcript for mediaID.
func (c *Client) Transcript(ctx context.Context, mediaID string) (*api.Transcript, error) {
	var resp api.Transcript
	if err := c.doJSON(ctx, http.MethodGet, "/api/transcripts/"+url.PathEscape(mediaID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReplaceSegments swaps the whole segment sequence of a transcript.
func (c *Client) ReplaceSegments(ctx context.Context, mediaID string, segments []api.Segment) (*api.Transcript, error) {
	if segments == nil {
		segments = []api.Segment{}
	}
	var resp api.Transcript
	path := "/api/transcripts/" + url.PathEscape(mediaID) + "/segments"
	if err := c.doJSON(ctx, http.MethodPut, path, api.ReplaceSegmentsRequest{Segments: segments}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Translate asks the daemon to translate a transcript word by word.
func (c *Client) Translate(ctx context.Context, mediaID string, req api.TranslateRequest) (*api.TranslateResponse, error) {
	var resp api.TranslateResponse
	path := "/api/transcripts/" + url.PathEscape(mediaID) + "/translate"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitRender queues a render and returns the accepted job.
func (c *Client) SubmitRender(ctx context.Context, req api.RenderRequest) (*api.Job, error) {
	var resp api.Job
	if err := c.doJSON(ctx, http.MethodPost, "/api/renders", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Poll returns the current status of a render job.
func (c *Client) Poll(ctx context.Context, jobID string) (*api.JobStatus, error) {
	var resp api.JobStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/renders/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitFunc observes each poll while waiting; it may be nil.
type WaitFunc func(status *api.JobStatus)

// Wait polls a job every interval until it reaches a terminal state or ctx
// ends. When ctx ends first the last observed status (nil if none) is
// returned with ctx.Err(), even if the cancellation hit an in-flight poll.
func (c *Client) Wait(ctx context.Context, jobID string, interval time.Duration, observe WaitFunc) (*api.JobStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last *api.JobStatus
	for {
		status, err := c.Poll(ctx, jobID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, ctxErr
			}
			return last, err
		}
		last = status
		if observe != nil {
			observe(status)
		}
		if api.Terminal(status.State) {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ListOptions filters ListRenders.
type ListOptions struct {
	States  []string
	MediaID string
	Limit   int
}

// ListRenders returns jobs newest first.
func (c *Client) ListRenders(ctx context.Context, opts ListOptions) ([]api.Job, error) {
	query := url.Values{}
	if len(opts.States) > 0 {
		query.Set("state", strings.Join(opts.States, ","))
	}
	if strings.TrimSpace(opts.MediaID) != "" {
		query.Set("media_id", strings.TrimSpace(opts.MediaID))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/api/renders"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp api.JobListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// DownloadResult writes the rendered file of a succeeded job to w and
// returns the file name the daemon suggested.
func (c *Client) DownloadResult(ctx context.Context, jobID string, w io.Writer) (string, int64, error) {
	return c.download(ctx, "/api/renders/"+url.PathEscape(jobID)+"/result", w)
}

// DownloadOutput writes a named output file to w.
func (c *Client) DownloadOutput(ctx context.Context, name string, w io.Writer) (string, int64, error) {
	return c.download(ctx, "/api/outputs/"+url.PathEscape(name), w)
}

func (c *Client) download(ctx context.Context, path string, w io.Writer) (string, int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", 0, decodeError(resp)
	}
	name := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return name, n, fmt.Errorf("copy response body: %w", err)
	}
	return name, n, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, dest)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, errors.New("daemon address is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body api.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Kind = body.Kind
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
