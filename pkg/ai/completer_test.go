package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		cfg     Config
		want    string
		wantErr bool
	}{
		{cfg: Config{Model: "gpt-4o"}, want: "*ai.OpenAIClient"},
		{cfg: Config{Provider: "ollama", Model: "llama3"}, want: "*ai.OllamaClient"},
		{cfg: Config{Provider: "gemini", Model: "gemini-2.0-flash", APIKey: "k"}, want: "*ai.GeminiClient"},
		{cfg: Config{Provider: "gemini", Model: "gemini-2.0-flash"}, wantErr: true},
		{cfg: Config{Provider: "openai"}, wantErr: true},
		{cfg: Config{Provider: "bard", Model: "x"}, wantErr: true},
	}
	for _, tc := range tests {
		got, err := New(tc.cfg)
		if tc.wantErr {
			if err == nil {
				t.Errorf("New(%+v) expected error", tc.cfg)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%+v): %v", tc.cfg, err)
		}
		if typ := fmt.Sprintf("%T", got); typ != tc.want {
			t.Errorf("New(%+v) = %s, want %s", tc.cfg, typ, tc.want)
		}
	}
}

func TestOpenAIComplete(t *testing.T) {
	var got oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"overview\":\"ok\"}"}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1/", "sk-test", "gpt-4-turbo", time.Second)
	out, err := c.Complete(context.Background(), Request{
		SystemPrompt: "sys",
		Messages:     []ChatMessage{{Role: "user", Content: "doc"}},
		Temperature:  0.3,
		MaxTokens:    3000,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Text != `{"overview":"ok"}` || out.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected completion %+v", out)
	}
	if got.Model != "gpt-4-turbo" || got.Temperature != 0.3 || got.MaxTokens != 3000 || got.Stream {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "doc" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestOpenAIStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req oaiChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream || req.StreamOptions == nil || !req.StreamOptions.IncludeUsage {
			t.Errorf("stream request not flagged: %+v", req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range []string{
			`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
			`data: {"choices":[{"delta":{"content":"Are you "}}]}`,
			`: keep-alive`,
			`data: {"choices":[{"delta":{"content":"sure?"}}]}`,
			`data: {"choices":[],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`,
			`data: [DONE]`,
		} {
			_, _ = io.WriteString(w, line+"\n\n")
		}
	}))
	defer srv.Close()

	var deltas []string
	c := NewOpenAIClient(srv.URL, "", "m", time.Second)
	out, err := c.Stream(context.Background(), Request{Messages: []ChatMessage{{Role: "user", Content: "hi"}}}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if strings.Join(deltas, "|") != "Are you |sure?" {
		t.Fatalf("deltas = %q", deltas)
	}
	if out.Text != "Are you sure?" || out.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected completion %+v", out)
	}
}

func TestOpenAIStreamAbortsOnCallbackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n")
	}))
	defer srv.Close()

	stop := errors.New("client went away")
	calls := 0
	_, err := NewOpenAIClient(srv.URL, "", "m", time.Second).Stream(context.Background(), Request{}, func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited","type":"requests"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL, "", "m", time.Second).Complete(context.Background(), Request{})
	if err == nil || !strings.Contains(err.Error(), "rate limited") || !strings.Contains(err.Error(), "429") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestOpenAIEmptyStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL, "", "m", time.Second).Stream(context.Background(), Request{}, func(string) error { return nil })
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestOpenAIStreamEndings(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		want    string
		wantErr string
	}{
		{
			name:    "closed without done",
			lines:   []string{`data: {"choices":[{"delta":{"content":"Half a rep"}}]}`},
			wantErr: ErrIncompleteStream.Error(),
		},
		{
			name: "error chunk",
			lines: []string{
				`data: {"choices":[{"delta":{"content":"Partial"}}]}`,
				`data: {"error":{"message":"overloaded"}}`,
				`data: [DONE]`,
			},
			wantErr: "overloaded",
		},
		{
			name:    "malformed chunk",
			lines:   []string{`data: {"choices":[{"delta":`, `data: [DONE]`},
			wantErr: "decode chunk",
		},
		{
			name: "finish reason without done",
			lines: []string{
				`data: {"choices":[{"delta":{"content":"Whole reply."}}]}`,
				`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			},
			want: "Whole reply.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for _, line := range tc.lines {
					_, _ = io.WriteString(w, line+"\n\n")
				}
			}))
			defer srv.Close()

			out, err := NewOpenAIClient(srv.URL, "", "m", time.Second).Stream(context.Background(), Request{}, func(string) error { return nil })
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want %q (text %q)", err, tc.wantErr, out.Text)
				}
				return
			}
			if err != nil {
				t.Fatalf("stream: %v", err)
			}
			if out.Text != tc.want {
				t.Fatalf("text = %q, want %q", out.Text, tc.want)
			}
		})
	}
}

func TestStreamHonoursContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := NewOpenAIClient(srv.URL, "", "m", 5*time.Second).Stream(ctx, Request{}, func(string) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOllamaStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream || req.Options.Temperature != 0.7 || req.Options.NumPredict != 1500 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"Why "},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"now?"},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":12,"eval_count":3}`+"\n")
	}))
	defer srv.Close()

	var b strings.Builder
	out, err := NewOllamaClient(srv.URL, "llama3", time.Second).Stream(context.Background(), Request{
		SystemPrompt: "sys",
		Temperature:  0.7,
		MaxTokens:    1500,
	}, func(d string) error {
		b.WriteString(d)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if out.Text != "Why now?" || b.String() != out.Text || out.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected completion %+v", out)
	}
}

func TestOllamaStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":"model not loaded"}`+"\n")
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "llama3", time.Second).Stream(context.Background(), Request{}, func(string) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestOllamaStreamWithoutDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"Half"},"done":false}`+"\n")
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "llama3", time.Second).Stream(context.Background(), Request{}, func(string) error { return nil })
	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("expected ErrIncompleteStream, got %v", err)
	}
}

func TestGeminiStreamEndings(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "no finish reason",
			body:    "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Prove \"}]}}]}\n\n",
			wantErr: ErrIncompleteStream,
		},
		{
			name:    "error chunk",
			body:    "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Prove \"}]}}]}\n\ndata: {\"error\":{\"code\":503,\"message\":\"model overloaded\"}}\n\n",
			wantMsg: "model overloaded",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c, err := NewGeminiClient(srv.URL, "k", "gemini-2.0-flash", time.Second)
			if err != nil {
				t.Fatalf("new gemini: %v", err)
			}
			_, err = c.Stream(context.Background(), Request{}, func(string) error { return nil })
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantMsg != "" && (err == nil || !strings.Contains(err.Error(), tc.wantMsg)) {
				t.Fatalf("err = %v, want %q", err, tc.wantMsg)
			}
		})
	}
}

func TestGeminiStreamMapsRoles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:streamGenerateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("alt") != "sse" || r.URL.Query().Get("key") != "k" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		var req geminiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "sys" {
			t.Errorf("system instruction missing: %+v", req.SystemInstruction)
		}
		if len(req.Contents) != 3 || req.Contents[1].Role != "model" {
			t.Errorf("unexpected contents %+v", req.Contents)
		}
		_, _ = io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Prove \"}]}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"it.\"}]},\"finishReason\":\"STOP\"}],\"usageMetadata\":{\"promptTokenCount\":4,\"candidatesTokenCount\":2,\"totalTokenCount\":6}}\n\n")
	}))
	defer srv.Close()

	c, err := NewGeminiClient(srv.URL, "k", "models/gemini-2.0-flash", time.Second)
	if err != nil {
		t.Fatalf("new gemini: %v", err)
	}
	out, err := c.Stream(context.Background(), Request{
		SystemPrompt: "sys",
		Messages: []ChatMessage{
			{Role: "user", Content: "idea"},
			{Role: "assistant", Content: "doubt"},
			{Role: "user", Content: "defense"},
		},
	}, func(string) error { return nil })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if out.Text != "Prove it." || out.Usage.TotalTokens != 6 {
		t.Fatalf("unexpected completion %+v", out)
	}
}

func TestGeminiErrorDoesNotLeakKey(t *testing.T) {
	c, err := NewGeminiClient("http://127.0.0.1:1", "secret-key", "m", time.Second)
	if err != nil {
		t.Fatalf("new gemini: %v", err)
	}
	_, err = c.Complete(context.Background(), Request{})
	if err == nil {
		t.Fatalf("expected dial error")
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Fatalf("error leaks api key: %v", err)
	}
}
