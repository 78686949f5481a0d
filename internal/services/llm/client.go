package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"captioner/internal/config"
)

const (
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Config holds the endpoint and credentials for an OpenAI-compatible
// chat completion API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// FromSettings converts the [llm] config section.
func FromSettings(s config.LLM) Config {
	return Config{
		APIKey:         s.APIKey,
		BaseURL:        s.BaseURL,
		Model:          s.Model,
		Referer:        s.Referer,
		Title:          s.Title,
		TimeoutSeconds: s.TimeoutSeconds,
	}
}

// Client sends JSON-mode chat completions with bounded retries.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      backoff
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets the attempt budget per request. Values below
// one mean a single attempt.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff sets the exponential backoff bounds.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.baseDelay = baseDelay
		c.retry.maxDelay = maxDelay
	}
}

// WithSleeper swaps the retry sleep, for tests.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleep = sleeper }
}

// NewClient builds a client from cfg. Blank BaseURL targets OpenRouter.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	client := &Client{
		cfg:   cfg,
		retry: backoff{
			attempts:  defaultRetryAttempts,
			baseDelay: defaultRetryBaseDelay,
			maxDelay:  defaultRetryMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		timeout := defaultHTTPTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

func (c *Client) jsonRequest(systemPrompt, userPrompt string) chatCompletionRequest {
	return chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}
}

// CompleteJSON sends a JSON-mode completion and returns the model's raw
// content.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case systemPrompt == "":
		return "", errors.New("llm complete: system prompt required")
	case userPrompt == "":
		return "", errors.New("llm complete: user prompt required")
	case !c.Configured():
		return "", errors.New("llm complete: api key required")
	}
	return c.completionContentWithRetry(ctx, c.jsonRequest(systemPrompt, userPrompt), "llm complete")
}

type wordsPayload struct {
	Target string   `json:"target_language"`
	Words  []string `json:"words"`
}

type translationsPayload struct {
	Translations []string `json:"translations"`
}

// TranslateWords translates each word into targetLanguage (a display name
// such as "Spanish"). The result has the same length and order as words;
// a response of any other length is an error.
func (c *Client) TranslateWords(ctx context.Context, words []string, targetLanguage string) ([]string, error) {
	if len(words) == 0 {
		return []string{}, nil
	}
	targetLanguage = strings.TrimSpace(targetLanguage)
	if targetLanguage == "" {
		return nil, errors.New("llm translate: target language required")
	}
	body, err := json.Marshal(wordsPayload{Target: targetLanguage, Words: words})
	if err != nil {
		return nil, fmt.Errorf("llm translate: encode words: %w", err)
	}
	content, err := c.CompleteJSON(ctx, WordTranslationPrompt, string(body))
	if err != nil {
		return nil, err
	}
	var parsed translationsPayload
	if err := decodeJSONContent(content, &parsed); err != nil {
		return nil, fmt.Errorf("llm translate: parse payload: %w", err)
	}
	if len(parsed.Translations) != len(words) {
		return nil, fmt.Errorf("llm translate: got %d translations for %d words", len(parsed.Translations), len(words))
	}
	out := make([]string, len(parsed.Translations))
	for i, word := range parsed.Translations {
		out[i] = strings.TrimSpace(word)
	}
	return out, nil
}

// TranslateWord translates a single token.
func (c *Client) TranslateWord(ctx context.Context, word, targetLanguage string) (string, error) {
	out, err := c.TranslateWords(ctx, []string{word}, targetLanguage)
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// HealthCheck asks the model for a fixed JSON reply to prove the key and
// model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return errors.New("llm health: api key required")
	}
	req := c.jsonRequest("You must respond with JSON only.", `Respond with {"ok":true}`)
	content, err := c.completionContentWithRetry(ctx, req, "llm health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := decodeJSONContent(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}
