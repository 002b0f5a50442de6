// Package llm provides a chat-completions client that asks a model to write
// Manim scene source.
//
// # Scene Requests
//
// GenerateScene sends SceneInstruction as the system message and the user's
// prompt verbatim. The returned text is untrusted: callers run it through
// scene.Normalize before persisting it.
//
// # Configuration
//
// Requires api_key; model defaults to gpt-4, temperature to 0.7 and base_url
// to the OpenAI chat-completions endpoint. Any OpenAI-compatible endpoint
// works.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions and
// network timeouts with exponential backoff (base 1s, max 10s, 3 attempts by
// default). Context cancellation aborts retries immediately.
//
// # Quota
//
// HTTP 402, HTTP 429 carrying insufficient_quota, an insufficient_quota error
// body, and completions containing QuotaSignal all surface as
// ErrQuotaExhausted. Quota errors are never retried so callers can switch to
// the quota fallback scene at once.
package llm
