package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/aiportal/internal/metrics"
	"github.com/hitoshi/aiportal/internal/middleware"
)

// HealthChecker はバックエンドの死活確認を行うインターフェース。
// *sql.DB が満たす。
type HealthChecker interface {
	Ping() error
}

// healthResponse はヘルスチェックのAPIレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler はヘルスチェックのHTTPハンドラーを返す。
// GET /healthz
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Ping(); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSONResponse(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSONResponse(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusReporter    middleware.StatusReporter

	// /metrics エンドポイント（nilの場合は公開しない）
	MetricsGatherer prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface

	// チャット
	ChatService ChatServiceInterface

	// 管理者
	AdminService AdminServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Auth → RateLimit(General)
//
// /healthz、/metrics、登録・ログインは認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusReporter))

	authHandler := NewAuthHandler(deps.AuthService)
	chatHandler := NewChatHandler(deps.ChatService)
	adminHandler := NewAdminHandler(deps.AdminService)

	// --- 認証不要のルート ---

	healthHandler := NewHealthHandler(deps.HealthChecker)
	r.Get("/healthz", healthHandler)
	r.Get("/api/healthz", healthHandler)

	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/auth/me", authHandler.Me)

		// チャット
		r.Route("/api/chat", func(r chi.Router) {
			// POST /api/chat - LLM呼び出し（チャット専用レート制限を追加）
			r.With(deps.RateLimiter.ChatMiddleware()).Post("/", chatHandler.Send)

			r.Get("/models", chatHandler.Models)
			r.Get("/history", chatHandler.History)
		})

		// 管理者
		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/users", adminHandler.ListUsers)
			r.Get("/stats", adminHandler.GetStats)

			r.Route("/users/{id}", func(r chi.Router) {
				r.Patch("/role", adminHandler.SetRole)
				r.Delete("/", adminHandler.DeleteUser)
			})
		})
	})

	return r
}
