package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/aiportal/internal/admin"
	"github.com/hitoshi/aiportal/internal/model"
)

// AdminServiceInterface は管理者ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	// ListUsers は全ユーザーを利用合計付きで返す。
	ListUsers(ctx context.Context, callerID int64) ([]admin.UserWithUsage, error)
	// GetStats は利用状況レポートを生成する。
	GetStats(ctx context.Context, callerID int64, days int) (*admin.Stats, error)
	// SetRole は対象ユーザーのロールを変更する。
	SetRole(ctx context.Context, callerID, targetID int64, role model.Role) (*model.User, error)
	// DeleteUser は対象ユーザーを削除する。
	DeleteUser(ctx context.Context, callerID, targetID int64) error
}

// AdminHandler は管理者操作のHTTPハンドラー。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{
		service: service,
	}
}

// adminUserResponse は管理者向けユーザー一覧のAPIレスポンス。
type adminUserResponse struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	Requests    int64     `json:"requests"`
	TotalTokens int64     `json:"total_tokens"`
}

// setRoleRequest はロール変更をJSONボディで指定する場合のリクエスト。
type setRoleRequest struct {
	Role string `json:"role"`
}

// statsResponse は利用状況レポートのAPIレスポンス。
type statsResponse struct {
	TotalUsers    int64                `json:"total_users"`
	TotalRequests int64                `json:"total_requests"`
	TotalTokens   int64                `json:"total_tokens"`
	Today         periodStatsResponse  `json:"today"`
	Period        periodStatsResponse  `json:"period"`
	UsageByModel  []modelUsageResponse `json:"usage_by_model"`
	TopUsers      []userUsageResponse  `json:"top_users"`
	DailyUsage    []dailyUsageResponse `json:"daily_usage"`
}

type periodStatsResponse struct {
	Requests    int64 `json:"requests"`
	TotalTokens int64 `json:"total_tokens"`
	ActiveUsers int64 `json:"active_users"`
}

type modelUsageResponse struct {
	Model            string `json:"model"`
	Requests         int64  `json:"requests"`
	TotalTokens      int64  `json:"total_tokens"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
}

type userUsageResponse struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	Requests    int64  `json:"requests"`
	TotalTokens int64  `json:"total_tokens"`
}

type dailyUsageResponse struct {
	Date        string `json:"date"`
	Requests    int64  `json:"requests"`
	TotalTokens int64  `json:"total_tokens"`
}

// ListUsers は全ユーザーの一覧を返す。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListUsers(r.Context(), callerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]adminUserResponse, len(users))
	for i, u := range users {
		results[i] = adminUserResponse{
			ID:          u.User.ID,
			Email:       u.User.Email,
			Role:        string(u.User.Role),
			CreatedAt:   u.User.CreatedAt,
			Requests:    u.Requests,
			TotalTokens: u.TotalTokens,
		}
	}

	writeJSONResponse(w, http.StatusOK, results)
}

// GetStats は利用状況レポートを返す。
// GET /api/admin/stats?days=N
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("daysは整数で指定してください"))
			return
		}
		days = parsed
	}

	stats, err := h.service.GetStats(r.Context(), callerID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := statsResponse{
		TotalUsers:    stats.TotalUsers,
		TotalRequests: stats.TotalRequests,
		TotalTokens:   stats.TotalTokens,
		Today: periodStatsResponse{
			Requests:    stats.Today.Requests,
			TotalTokens: stats.Today.TotalTokens,
			ActiveUsers: stats.Today.ActiveUsers,
		},
		Period: periodStatsResponse{
			Requests:    stats.Period.Requests,
			TotalTokens: stats.Period.TotalTokens,
			ActiveUsers: stats.Period.ActiveUsers,
		},
		UsageByModel: make([]modelUsageResponse, len(stats.UsageByModel)),
		TopUsers:     make([]userUsageResponse, len(stats.TopUsers)),
		DailyUsage:   make([]dailyUsageResponse, len(stats.DailyUsage)),
	}
	for i, m := range stats.UsageByModel {
		resp.UsageByModel[i] = modelUsageResponse{
			Model:            m.Model,
			Requests:         m.Requests,
			TotalTokens:      m.TotalTokens,
			PromptTokens:     m.PromptTokens,
			CompletionTokens: m.CompletionTokens,
		}
	}
	for i, u := range stats.TopUsers {
		resp.TopUsers[i] = userUsageResponse{
			UserID:      u.UserID,
			Email:       u.Email,
			Requests:    u.Requests,
			TotalTokens: u.TotalTokens,
		}
	}
	for i, d := range stats.DailyUsage {
		resp.DailyUsage[i] = dailyUsageResponse{
			Date:        d.Date,
			Requests:    d.Requests,
			TotalTokens: d.TotalTokens,
		}
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// SetRole は対象ユーザーのロールを変更する。
// PATCH /api/admin/users/{id}/role?role=R
// ロールはクエリパラメータで指定する。指定がない場合はJSONボディのroleフィールドも受け付ける。
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ユーザーIDは整数で指定してください"))
		return
	}

	role := r.URL.Query().Get("role")
	if role == "" {
		var req setRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			role = req.Role
		}
	}
	if role == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("roleを指定してください"))
		return
	}

	user, err := h.service.SetRole(r.Context(), callerID, targetID, model.Role(role))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserResponse(user))
}

// DeleteUser は対象ユーザーを削除する。
// DELETE /api/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ユーザーIDは整数で指定してください"))
		return
	}

	if err := h.service.DeleteUser(r.Context(), callerID, targetID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
