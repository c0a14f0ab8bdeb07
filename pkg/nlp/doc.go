// Package nlp provides language model clients for chat and streamed generation.
//
// Two providers are supported:
//   - OpenAIClient: OpenAI and any OpenAI-compatible API (Groq, vLLM, Ollama)
//   - GenAIClient: Google's Gemini models through google.golang.org/genai
//
// # Client Wrappers
//
//   - RetryClient: exponential backoff; streams are only retried before the
//     first chunk has been forwarded
//   - CircuitBreakerClient: gobreaker based, alerts when the breaker opens
//
// # Usage
//
//	client, err := nlp.NewClientFromConfig(ctx, "report", cfg.NLP.Models["report"],
//		cfg.NLP.MaxRetries, cfg.CircuitBreaker, alerter, logger)
//
//	err = client.Stream(ctx, messages, func(chunk string) error {
//		fmt.Print(chunk)
//		return nil
//	})
//
// # Error Handling
//
// The package defines specific error types for common failure modes:
//   - RateLimitError: API rate limit exceeded
//   - RefusalError: Model refused to generate content
//   - EmptyResponseError: Model returned empty response
//
// These errors support errors.Is() for type checking.
package nlp
