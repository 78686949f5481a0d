// Package llm provides an OpenAI-compatible chat client (OpenRouter by
// default) used for caption translation.
//
// CompleteJSON sends a system/user prompt pair and returns the model's JSON
// content. TranslateWords builds on it to translate a list of caption tokens
// one for one. HealthCheck verifies the API key and model.
//
// Transient failures (HTTP 408, 429 and 5xx, empty replies, network
// timeouts) are retried with exponential backoff, base 1s and max 10s over
// up to 5 attempts by default. A Retry-After header overrides the backoff.
// Context cancellation aborts retries immediately.
package llm
