package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// 正常系: リクエスト形式とレスポンス解析を検証
func TestOpenAIClient_Chat(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody chatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello from model"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 34}
		}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.Client(), testLogger(), OpenAIConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL + "/v1",
		DefaultModel: "gpt-4o-mini",
		MaxTokens:    2048,
	})

	completion, err := client.Chat(context.Background(), "gpt-4o", "こんにちは")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q, want /v1/chat/completions", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
	if gotBody.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", gotBody.Model)
	}
	if gotBody.MaxTokens != 2048 {
		t.Errorf("max_tokens = %d, want 2048", gotBody.MaxTokens)
	}
	if gotBody.Temperature != defaultTemperature {
		t.Errorf("temperature = %v, want %v", gotBody.Temperature, defaultTemperature)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != "user" || gotBody.Messages[0].Content != "こんにちは" {
		t.Errorf("unexpected messages: %+v", gotBody.Messages)
	}

	if completion.Text != "hello from model" {
		t.Errorf("Text = %q, want %q", completion.Text, "hello from model")
	}
	if completion.PromptTokens != 12 || completion.CompletionTokens != 34 {
		t.Errorf("tokens = (%d, %d), want (12, 34)", completion.PromptTokens, completion.CompletionTokens)
	}
}

// モデル未指定時にデフォルトモデルが使われることを検証
func TestOpenAIClient_Chat_DefaultModel(t *testing.T) {
	var gotBody chatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}], "usage": {"prompt_tokens": 1, "completion_tokens": 1}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.Client(), testLogger(), OpenAIConfig{
		BaseURL:      server.URL,
		DefaultModel: "gpt-4o-mini",
	})

	if _, err := client.Chat(context.Background(), "", "hi"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want default gpt-4o-mini", gotBody.Model)
	}
}

// プロバイダーのエラーレスポンスがエラーとして返ることを検証
func TestOpenAIClient_Chat_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit exceeded", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.Client(), testLogger(), OpenAIConfig{
		BaseURL:      server.URL,
		DefaultModel: "gpt-4o-mini",
	})

	_, err := client.Chat(context.Background(), "", "hi")
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("error should carry provider message, got %v", err)
	}
}

// choicesが空のレスポンスがエラーになることを検証
func TestOpenAIClient_Chat_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [], "usage": {"prompt_tokens": 1, "completion_tokens": 0}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.Client(), testLogger(), OpenAIConfig{BaseURL: server.URL})

	if _, err := client.Chat(context.Background(), "gpt-4o", "hi"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

// コンテキストキャンセルが伝播することを検証
func TestOpenAIClient_Chat_ContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.Client(), testLogger(), OpenAIConfig{BaseURL: server.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Chat(ctx, "gpt-4o", "hi"); err == nil {
		t.Fatal("expected error after context timeout")
	}
}

// モデル一覧が固定カタログを返すことを検証
func TestOpenAIClient_Models(t *testing.T) {
	client := NewOpenAIClient(http.DefaultClient, testLogger(), OpenAIConfig{DefaultModel: "gpt-4o-mini"})

	models := client.Models()
	if len(models) != 5 {
		t.Fatalf("len(Models()) = %d, want 5", len(models))
	}
	if models[0] != "gpt-4o" {
		t.Errorf("Models()[0] = %q, want gpt-4o", models[0])
	}
	if client.DefaultModel() != "gpt-4o-mini" {
		t.Errorf("DefaultModel() = %q, want gpt-4o-mini", client.DefaultModel())
	}

	// 返却スライスの変更が内部状態に影響しないこと
	models[0] = "mutated"
	if client.Models()[0] != "gpt-4o" {
		t.Error("Models() should return a copy")
	}
}
