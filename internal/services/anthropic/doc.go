// Package anthropic talks to the Anthropic Messages API. It is the fallback
// summarization provider behind the OpenAI-compatible client in package llm.
package anthropic
