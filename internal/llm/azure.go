package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// AzureOpenAIConfig はAzure OpenAIクライアントの設定。
type AzureOpenAIConfig struct {
	APIKey     string
	Endpoint   string // 例: "https://example.openai.azure.com"
	Deployment string // デプロイメント名（モデル名の代わりに使用される）
	APIVersion string
	MaxTokens  int
}

// AzureOpenAIClient はAzure OpenAIのchat completions APIのクライアント。
// Azureではモデル名ではなくデプロイメント名でエンドポイントが決まるため、
// Chatのmodel引数は無視され、常に設定されたデプロイメントが使用される。
type AzureOpenAIClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     AzureOpenAIConfig
}

// NewAzureOpenAIClient はAzureOpenAIClientの新しいインスタンスを生成する。
func NewAzureOpenAIClient(httpClient *http.Client, logger *slog.Logger, config AzureOpenAIConfig) *AzureOpenAIClient {
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")
	return &AzureOpenAIClient{
		httpClient: httpClient,
		logger:     logger,
		config:     config,
	}
}

// Chat は1プロンプトのチャット補完を同期的に実行する。
func (c *AzureOpenAIClient) Chat(ctx context.Context, model, prompt string) (*Completion, error) {
	reqBody := chatCompletionRequest{
		// Azureはリクエストボディのmodelではなくパスのデプロイメント名を使用する
		Model:       c.config.Deployment,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.config.MaxTokens,
		Temperature: defaultTemperature,
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.config.Endpoint,
		url.PathEscape(c.config.Deployment),
		url.QueryEscape(c.config.APIVersion),
	)

	return doChatRequest(ctx, c.httpClient, c.logger, endpoint, reqBody, func(req *http.Request) {
		req.Header.Set("api-key", c.config.APIKey)
	})
}

// Models はサポートするモデル識別子の一覧を返す。
// Azureでは設定された単一のデプロイメントのみが選択可能。
func (c *AzureOpenAIClient) Models() []string {
	return []string{c.config.Deployment}
}

// DefaultModel はモデル未指定時に使用するモデル識別子を返す。
func (c *AzureOpenAIClient) DefaultModel() string {
	return c.config.Deployment
}

// compile-time interface check
var _ Provider = (*AzureOpenAIClient)(nil)
