// Package ai talks to chat-completion providers. Every provider is exposed
// through Completer so callers never see wire formats.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// ErrIncompleteStream is returned when a stream closes before the provider
// signals the end of the reply.
var ErrIncompleteStream = errors.New("stream ended before completion")

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call. Messages exclude the system prompt.
type Request struct {
	SystemPrompt string
	Messages     []ChatMessage
	Temperature  float64
	MaxTokens    int
}

// Usage is token accounting as reported by the provider. Zero when the
// provider reports nothing.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Completion struct {
	Text  string
	Usage Usage
}

// DeltaFunc receives streamed text fragments in order. Returning an error
// aborts the stream.
type DeltaFunc func(delta string) error

// Completer is implemented by every provider client.
type Completer interface {
	// Complete returns the whole answer in one response.
	Complete(ctx context.Context, req Request) (Completion, error)
	// Stream emits fragments to onDelta as they arrive and returns the
	// concatenated text once the provider signals completion.
	Stream(ctx context.Context, req Request, onDelta DeltaFunc) (Completion, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// New builds the Completer named by cfg.Provider: "openai" (any
// OpenAI-compatible endpoint), "ollama" or "gemini".
func New(cfg Config) (Completer, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("completion model required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai", "openai-compat":
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "ollama":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "gemini":
		return NewGeminiClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}

func providerError(provider string, status int, message string) error {
	message = strings.TrimSpace(message)
	if len(message) > 300 {
		message = message[:300]
	}
	if message == "" {
		return fmt.Errorf("%s api error [%d]", provider, status)
	}
	return fmt.Errorf("%s api error [%d]: %s", provider, status, message)
}
