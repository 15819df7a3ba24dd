// Package llm provides a minimal OpenAI-compatible chat completion client
// used for both vision classification and tie-break judging. Requests are
// always issued at temperature zero with a JSON-only response format so that
// retries and re-invocations are deterministic.
package llm
