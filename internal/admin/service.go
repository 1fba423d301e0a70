// Package admin は管理者向けのユーザー管理と利用状況レポートを提供する。
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/aiportal/internal/model"
	"github.com/hitoshi/aiportal/internal/repository"
)

// defaultStatsDays は日別集計のデフォルト日数。
const defaultStatsDays = 7

// maxStatsDays は日別集計の最大日数。
const maxStatsDays = 90

// topUserLimit はトップユーザー一覧の件数。
const topUserLimit = 10

// UserWithUsage はユーザーと利用合計の組。
type UserWithUsage struct {
	User        *model.User
	Requests    int64
	TotalTokens int64
}

// Stats は管理者ダッシュボード向けの利用状況レポート。
type Stats struct {
	TotalUsers    int64
	TotalRequests int64
	TotalTokens   int64
	Today         repository.PeriodTotals
	Period        repository.PeriodTotals
	UsageByModel  []repository.ModelUsage
	TopUsers      []repository.UserUsage
	DailyUsage    []repository.DailyUsage
}

// Service は管理者操作のビジネスロジックを提供する。
// 権限はトークンのクレームではなく、操作のたびにDBの現在のロールを確認する。
// 降格された管理者のトークンが有効期限内でも管理者操作に使えないようにするため。
type Service struct {
	userRepo repository.UserRepository
	chatRepo repository.ChatRecordRepository
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, chatRepo repository.ChatRecordRepository) *Service {
	return &Service{
		userRepo: userRepo,
		chatRepo: chatRepo,
		now:      time.Now,
	}
}

// requireAdmin は呼び出し主体が現在も管理者であることをDBで確認する。
func (s *Service) requireAdmin(ctx context.Context, callerID int64) error {
	caller, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return fmt.Errorf("failed to find caller: %w", err)
	}
	if caller == nil {
		return model.NewUnauthorizedError()
	}
	if caller.Role != model.RoleAdmin {
		return model.NewForbiddenError()
	}
	return nil
}

// ListUsers は全ユーザーを利用合計付きで返す。
func (s *Service) ListUsers(ctx context.Context, callerID int64) ([]UserWithUsage, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	totals, err := s.chatRepo.UsageTotalsByUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	result := make([]UserWithUsage, 0, len(users))
	for _, u := range users {
		t := totals[u.ID]
		result = append(result, UserWithUsage{
			User:        u,
			Requests:    t.Requests,
			TotalTokens: t.TotalTokens,
		})
	}

	return result, nil
}

// GetStats は利用状況レポートを生成する。
// daysが0以下の場合はデフォルト日数、上限を超える場合は上限に丸める。
// 期間集計は当日を含むdays日分で、境界はサーバーのローカルタイムゾーンの日付。
// 当日分の集計はdaysの指定にかかわらず常に当日0時以降を対象とする。
func (s *Service) GetStats(ctx context.Context, callerID int64, days int) (*Stats, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	if days <= 0 {
		days = defaultStatsDays
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}

	totalUsers, err := s.userRepo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	global, err := s.chatRepo.GlobalTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate global totals: %w", err)
	}

	today := s.todayStart()
	since := today.AddDate(0, 0, -(days - 1))

	period, err := s.chatRepo.TotalsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate period totals: %w", err)
	}

	todayTotals, err := s.chatRepo.TotalsSince(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate today totals: %w", err)
	}

	byModel, err := s.chatRepo.UsageByModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate model usage: %w", err)
	}

	topUsers, err := s.chatRepo.UsageByUser(ctx, topUserLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user usage: %w", err)
	}

	daily, err := s.chatRepo.DailyUsage(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily usage: %w", err)
	}

	return &Stats{
		TotalUsers:    totalUsers,
		TotalRequests: global.Requests,
		TotalTokens:   global.TotalTokens,
		Today:         todayTotals,
		Period:        period,
		UsageByModel:  byModel,
		TopUsers:      topUsers,
		DailyUsage:    daily,
	}, nil
}

// SetRole は対象ユーザーのロールを変更する。
// 自分自身への操作は、変更の有無にかかわらず常に拒否する。
func (s *Service) SetRole(ctx context.Context, callerID, targetID int64, role model.Role) (*model.User, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	if targetID == callerID {
		return nil, model.NewSelfModificationError()
	}

	if !role.IsValid() {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("不明なロールです: %s", role))
	}

	updated, err := s.userRepo.UpdateRole(ctx, targetID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	if !updated {
		return nil, model.NewUserNotFoundError()
	}

	user, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("user role updated",
		slog.Int64("admin_id", callerID),
		slog.Int64("target_id", targetID),
		slog.String("role", string(role)),
	)

	return user, nil
}

// DeleteUser は対象ユーザーを削除する。
// 自分自身の削除は拒否する。チャット台帳は削除せず監査用に保持する。
func (s *Service) DeleteUser(ctx context.Context, callerID, targetID int64) error {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return err
	}

	if targetID == callerID {
		return model.NewSelfModificationError()
	}

	deleted, err := s.userRepo.DeleteByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		return model.NewUserNotFoundError()
	}

	slog.Info("user deleted",
		slog.Int64("admin_id", callerID),
		slog.Int64("target_id", targetID),
	)

	return nil
}

// todayStart は当日0時の時刻を返す。
// サーバーのローカルタイムゾーンの日付境界を使用する。
func (s *Service) todayStart() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
