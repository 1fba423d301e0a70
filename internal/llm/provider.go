// Package llm は外部LLMプロバイダーへのチャット補完呼び出しを提供する。
// OpenAI互換APIとAzure OpenAIの2つのプロバイダー実装を含む。
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/aiportal/internal/config"
	"github.com/hitoshi/aiportal/internal/security"
)

// Completion はプロバイダーからのチャット補完結果を表す。
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Provider はLLMプロバイダーのインターフェース。
// Chatは同期呼び出しであり、リトライはプロバイダー実装の責務に含めない。
type Provider interface {
	// Chat は1プロンプトのチャット補完を同期的に実行する。
	// タイムアウトとキャンセルはctx経由で伝播する。
	Chat(ctx context.Context, model, prompt string) (*Completion, error)

	// Models はこのデプロイでサポートするモデル識別子の一覧を返す。
	// プロバイダーへのラウンドトリップは発生しない。
	Models() []string

	// DefaultModel はモデル未指定時に使用するモデル識別子を返す。
	DefaultModel() string
}

// defaultTemperature はチャット補完リクエストのサンプリング温度。
const defaultTemperature = 0.7

// NewProviderFromConfig は設定に応じたProviderを生成する。
// エンドポイントURLはSSRFガードで事前検証し、外向きHTTPクライアントにも
// SSRF防止を適用する。セルフホストLLM等の内部エンドポイントを使う場合は
// LLM_ALLOW_PRIVATE_ENDPOINT=trueで検証とガードを無効化する。
func NewProviderFromConfig(cfg *config.Config, guard security.EndpointGuardService, logger *slog.Logger) (Provider, error) {
	var endpoint string
	switch cfg.LLMProvider {
	case "azure_openai":
		endpoint = cfg.AzureOpenAIEndpoint
	case "openai":
		endpoint = cfg.OpenAIBaseURL
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.LLMProvider)
	}

	var httpClient *http.Client
	if cfg.LLMAllowPrivateEndpoint {
		httpClient = &http.Client{Timeout: cfg.LLMTimeout}
	} else {
		if err := guard.ValidateEndpoint(endpoint); err != nil {
			return nil, fmt.Errorf("unsafe LLM endpoint %q: %w", endpoint, err)
		}
		httpClient = guard.NewSafeClient(cfg.LLMTimeout)
	}

	if cfg.LLMProvider == "azure_openai" {
		return NewAzureOpenAIClient(httpClient, logger, AzureOpenAIConfig{
			APIKey:     cfg.AzureOpenAIAPIKey,
			Endpoint:   cfg.AzureOpenAIEndpoint,
			Deployment: cfg.AzureOpenAIDeployment,
			APIVersion: cfg.AzureOpenAIAPIVersion,
			MaxTokens:  cfg.LLMMaxTokens,
		}), nil
	}

	return NewOpenAIClient(httpClient, logger, OpenAIConfig{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		DefaultModel: cfg.OpenAIModel,
		MaxTokens:    cfg.LLMMaxTokens,
	}), nil
}
