// Package gateway is the single choke point for calls to the external
// generative text service.
//
// Every Call issues exactly one request: no retries, no batching, no caching.
// Caching is layered above by package cache. When a caller declares it expects
// structured output, the gateway strips common wrapping (code fences, leading
// prose) and parses the text; a parse failure is not an error, the Response
// simply carries HasParsed=false and the caller falls back to Text.
//
// Two providers are available: MessagesClient speaks an Anthropic-style
// Messages HTTP API and GeminiClient uses the Google GenAI SDK.
package gateway
