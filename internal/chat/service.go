// Package chat はチャット補完の実行と利用台帳の記録を提供する。
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/aiportal/internal/llm"
	"github.com/hitoshi/aiportal/internal/metrics"
	"github.com/hitoshi/aiportal/internal/model"
	"github.com/hitoshi/aiportal/internal/repository"
	"github.com/hitoshi/aiportal/internal/security"
)

// defaultHistoryLimit は履歴取得のデフォルト件数。
const defaultHistoryLimit = 50

// maxHistoryLimit は履歴取得の最大件数。
const maxHistoryLimit = 200

// Service はチャット補完に関するビジネスロジックを提供する。
// プロバイダー呼び出しが成功した場合のみ台帳に記録する。
// 失敗した呼び出しは台帳に残らない（課金対象のトークンが消費されていないため）。
type Service struct {
	provider  llm.Provider
	chatRepo  repository.ChatRecordRepository
	sanitizer security.ResponseSanitizerService
	collector metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	provider llm.Provider,
	chatRepo repository.ChatRecordRepository,
	sanitizer security.ResponseSanitizerService,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		provider:  provider,
		chatRepo:  chatRepo,
		sanitizer: sanitizer,
		collector: collector,
	}
}

// Send はプロンプトをLLMプロバイダーに送信し、応答を台帳に記録して返す。
// requestedModelが空またはサポート外の場合はデフォルトモデルを使用する。
// 応答テキストはサニタイズしてから保存する。
func (s *Service) Send(ctx context.Context, userID int64, prompt, requestedModel string) (*model.ChatRecord, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, model.NewInvalidRequestError("プロンプトが空です")
	}

	chatModel := s.resolveModel(requestedModel)

	start := time.Now()
	completion, err := s.provider.Chat(ctx, chatModel, prompt)
	latency := time.Since(start)
	s.collector.RecordProviderLatency(latency)

	if err != nil {
		s.collector.RecordChatFailure(chatModel, "provider_error")
		slog.Error("chat completion failed",
			slog.Int64("user_id", userID),
			slog.String("model", chatModel),
			slog.Duration("latency", latency),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProviderError(err.Error())
	}

	record := &model.ChatRecord{
		UserID:           userID,
		Prompt:           prompt,
		Response:         s.sanitizer.Sanitize(completion.Text),
		Model:            chatModel,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		TotalTokens:      completion.PromptTokens + completion.CompletionTokens,
	}

	created, err := s.chatRepo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to record chat usage: %w", err)
	}

	s.collector.RecordChatSuccess(chatModel)
	s.collector.RecordTokensConsumed(completion.PromptTokens, completion.CompletionTokens)

	slog.Info("chat completion succeeded",
		slog.Int64("user_id", userID),
		slog.String("model", chatModel),
		slog.Int("total_tokens", created.TotalTokens),
		slog.Duration("latency", latency),
	)

	return created, nil
}

// Models は選択可能なモデル識別子の一覧とデフォルトモデルを返す。
func (s *Service) Models() ([]string, string) {
	return s.provider.Models(), s.provider.DefaultModel()
}

// History は指定ユーザーの台帳エントリを新しい順に返す。
// limitが0以下の場合はデフォルト件数、上限を超える場合は上限に丸める。
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*model.ChatRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.chatRepo.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat history: %w", err)
	}

	return records, nil
}

// resolveModel は要求されたモデルがサポート一覧に含まれていればそれを、
// 空またはサポート外であればデフォルトモデルを返す。
func (s *Service) resolveModel(requested string) string {
	if requested == "" {
		return s.provider.DefaultModel()
	}
	for _, m := range s.provider.Models() {
		if m == requested {
			return requested
		}
	}
	return s.provider.DefaultModel()
}
