package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// openAIModels はOpenAIプロバイダーで選択可能なモデルの一覧。
// デプロイごとの静的な設定であり、プロバイダーへの問い合わせは行わない。
var openAIModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-4",
	"gpt-3.5-turbo",
}

// OpenAIConfig はOpenAI互換クライアントの設定。
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // 例: "https://api.openai.com/v1"
	DefaultModel string
	MaxTokens    int
}

// OpenAIClient はOpenAI互換のchat completions APIのクライアント。
type OpenAIClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     OpenAIConfig
}

// NewOpenAIClient はOpenAIClientの新しいインスタンスを生成する。
func NewOpenAIClient(httpClient *http.Client, logger *slog.Logger, config OpenAIConfig) *OpenAIClient {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &OpenAIClient{
		httpClient: httpClient,
		logger:     logger,
		config:     config,
	}
}

// chatCompletionRequest はchat completions APIのリクエストボディ。
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// chatMessage は会話メッセージ。
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse はchat completions APIのレスポンスボディ。
type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat は1プロンプトのチャット補完を同期的に実行する。
func (c *OpenAIClient) Chat(ctx context.Context, model, prompt string) (*Completion, error) {
	if model == "" {
		model = c.config.DefaultModel
	}

	reqBody := chatCompletionRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.config.MaxTokens,
		Temperature: defaultTemperature,
	}

	url := c.config.BaseURL + "/chat/completions"
	return doChatRequest(ctx, c.httpClient, c.logger, url, reqBody, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	})
}

// Models はサポートするモデル識別子の一覧を返す。
func (c *OpenAIClient) Models() []string {
	models := make([]string, len(openAIModels))
	copy(models, openAIModels)
	return models
}

// DefaultModel はモデル未指定時に使用するモデル識別子を返す。
func (c *OpenAIClient) DefaultModel() string {
	return c.config.DefaultModel
}

// doChatRequest はchat completions APIへのHTTP呼び出しを実行する。
// OpenAIとAzure OpenAIで共通のリクエスト/レスポンス形式を処理する。
func doChatRequest(
	ctx context.Context,
	httpClient *http.Client,
	logger *slog.Logger,
	url string,
	reqBody chatCompletionRequest,
	setAuth func(*http.Request),
) (*Completion, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		logger.Error("LLM provider call failed",
			slog.String("model", reqBody.Model),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		logger.Error("LLM provider returned error",
			slog.String("model", reqBody.Model),
			slog.Int("http_status", resp.StatusCode),
			slog.String("provider_error", msg),
		)
		return nil, fmt.Errorf("provider error: %s", msg)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("provider response contains no choices")
	}

	return &Completion{
		Text:             parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// compile-time interface check
var _ Provider = (*OpenAIClient)(nil)
