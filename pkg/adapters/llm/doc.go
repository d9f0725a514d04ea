// Package llm contains generation.Backend implementations for the supported model providers:
// OpenAI (and OpenAI compatible endpoints such as DeepSeek), Google Gemini and a local Ollama server.
package llm
