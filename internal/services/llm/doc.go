// Package llm provides a chat client for OpenAI-compatible completion APIs
// (DeepSeek by default).
//
// The analyze stage uses it as the primary provider: a system prompt plus
// the document text go out, a JSON object with summary, tags, and language
// comes back. Archive summaries use the plain-text Complete call.
//
// # Retry Behaviour
//
// The client retries HTTP 408/429/5xx responses, empty completions, and
// network timeouts with exponential backoff (base 1s, max 10s, 3 attempts by
// default). Context cancellation aborts retries immediately. Final errors are
// tagged with services markers: 4xx responses as ErrExternalTool, timeouts as
// ErrTimeout, everything retryable as ErrTransient.
//
// # JSON Decoding
//
// DecodeLLMJSON tolerates code fences and prose around the JSON object,
// which models still emit despite response_format.
package llm
