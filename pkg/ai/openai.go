package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint. Works
// with OpenAI itself and with vLLM, LiteLLM, OpenRouter and similar gateways.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient builds a client. baseURL includes the /v1 prefix; apiKey
// may be empty for local gateways.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Completion, error) {
	resp, err := c.post(ctx, c.buildRequest(req, false))
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	var out oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Completion{}, fmt.Errorf("openai decode: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message == nil || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return Completion{}, ErrEmptyCompletion
	}
	return Completion{
		Text:  out.Choices[0].Message.Content,
		Usage: out.Usage.usage(),
	}, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, req Request, onDelta DeltaFunc) (Completion, error) {
	resp, err := c.post(ctx, c.buildRequest(req, true))
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	var (
		text     strings.Builder
		usage    Usage
		finished bool
	)
	err = scanSSE(ctx, resp.Body, func(data string) error {
		if data == "[DONE]" {
			return errStreamDone
		}
		var chunk oaiChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("openai decode chunk: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("openai stream error: %s", chunk.Error.Message)
		}
		if chunk.Usage != nil {
			usage = chunk.Usage.usage()
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason != "" {
				finished = true
			}
			if choice.Delta == nil || choice.Delta.Content == "" {
				continue
			}
			text.WriteString(choice.Delta.Content)
			if err := onDelta(choice.Delta.Content); err != nil {
				return err
			}
		}
		return nil
	})
	// Some gateways close after finish_reason without sending [DONE].
	if errors.Is(err, ErrIncompleteStream) && finished {
		err = nil
	}
	if err != nil {
		return Completion{}, err
	}
	if strings.TrimSpace(text.String()) == "" {
		return Completion{}, ErrEmptyCompletion
	}
	return Completion{Text: text.String(), Usage: usage}, nil
}

func (c *OpenAIClient) buildRequest(req Request, stream bool) oaiChatRequest {
	messages := make([]ChatMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)
	out := oaiChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if stream {
		out.StreamOptions = &oaiStreamOptions{IncludeUsage: true}
	}
	return out
}

func (c *OpenAIClient) post(ctx context.Context, payload oaiChatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if payload.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		var errResp oaiErrorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error.Message != "" {
			return nil, providerError("openai", resp.StatusCode, errResp.Error.Message)
		}
		return nil, providerError("openai", resp.StatusCode, string(raw))
	}
	return resp, nil
}

type oaiStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type oaiChatRequest struct {
	Model         string            `json:"model"`
	Messages      []ChatMessage     `json:"messages"`
	Temperature   float64           `json:"temperature"`
	MaxTokens     int               `json:"max_tokens,omitempty"`
	Stream        bool              `json:"stream,omitempty"`
	StreamOptions *oaiStreamOptions `json:"stream_options,omitempty"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *oaiUsage) usage() Usage {
	if u == nil {
		return Usage{}
	}
	return Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

type oaiChatResponse struct {
	Choices []struct {
		Message      *ChatMessage `json:"message,omitempty"`
		Delta        *ChatMessage `json:"delta,omitempty"`
		FinishReason string       `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *oaiUsage       `json:"usage,omitempty"`
	Error *oaiStreamError `json:"error,omitempty"`
}

type oaiStreamError struct {
	Message string `json:"message"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
