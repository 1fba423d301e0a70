package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/aiportal/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	// Send はプロンプトをLLMに送信し、応答を台帳に記録して返す。
	Send(ctx context.Context, userID int64, prompt, requestedModel string) (*model.ChatRecord, error)
	// Models は選択可能なモデル一覧とデフォルトモデルを返す。
	Models() ([]string, string)
	// History は指定ユーザーの台帳エントリを新しい順に返す。
	History(ctx context.Context, userID int64, limit int) ([]*model.ChatRecord, error)
}

// ChatHandler はチャットのHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{
		service: service,
	}
}

// chatRequest はチャット送信リクエストのボディ。
type chatRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// chatResponse はチャット送信のAPIレスポンス。
type chatResponse struct {
	Response         string `json:"response"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// modelsResponse はモデル一覧のAPIレスポンス。
type modelsResponse struct {
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
}

// chatRecordResponse は台帳エントリのAPIレスポンス。
type chatRecordResponse struct {
	ID               int64     `json:"id"`
	Prompt           string    `json:"prompt"`
	Response         string    `json:"response"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// Send はチャット送信を処理する。
// POST /api/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	record, err := h.service.Send(r.Context(), userID, req.Prompt, req.Model)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, chatResponse{
		Response:         record.Response,
		Model:            record.Model,
		PromptTokens:     record.PromptTokens,
		CompletionTokens: record.CompletionTokens,
		TotalTokens:      record.TotalTokens,
	})
}

// Models は選択可能なモデル一覧を返す。
// GET /api/chat/models
func (h *ChatHandler) Models(w http.ResponseWriter, r *http.Request) {
	models, defaultModel := h.service.Models()

	writeJSONResponse(w, http.StatusOK, modelsResponse{
		Models:       models,
		DefaultModel: defaultModel,
	})
}

// History は自ユーザーのチャット履歴を新しい順に返す。
// GET /api/chat/history?limit=N
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("limitは整数で指定してください"))
			return
		}
		limit = parsed
	}

	records, err := h.service.History(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]chatRecordResponse, len(records))
	for i, rec := range records {
		results[i] = chatRecordResponse{
			ID:               rec.ID,
			Prompt:           rec.Prompt,
			Response:         rec.Response,
			Model:            rec.Model,
			PromptTokens:     rec.PromptTokens,
			CompletionTokens: rec.CompletionTokens,
			TotalTokens:      rec.TotalTokens,
			CreatedAt:        rec.CreatedAt,
		}
	}

	writeJSONResponse(w, http.StatusOK, results)
}
