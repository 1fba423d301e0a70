// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/aiportal/internal/model"
)

// ErrDuplicateEmail は登録済みメールアドレスでの作成試行を示す。
var ErrDuplicateEmail = errors.New("duplicate email")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成し、採番されたIDと作成日時を設定して返す。
	// メールアドレスが既に登録されている場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する（大文字小文字を区別しない）。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ListAll は全ユーザーを作成日時順で返す。
	ListAll(ctx context.Context) ([]*model.User, error)

	// CountAll は登録ユーザー数を返す。
	CountAll(ctx context.Context) (int64, error)

	// UpdateRole は指定IDのユーザーのロールを更新する。
	// 対象が存在しない場合はfalseを返す。
	UpdateRole(ctx context.Context, id int64, role model.Role) (bool, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 対象が存在しない場合はfalseを返す。
	// チャット台帳は削除しない（追記専用台帳はユーザーのライフサイクルと独立）。
	DeleteByID(ctx context.Context, id int64) (bool, error)
}

// ChatRecordRepository はチャット台帳の永続化と集計のインターフェース。
// 台帳は追記専用であり、更新・削除メソッドを持たない。
type ChatRecordRepository interface {
	// Create は台帳エントリを作成し、採番されたIDと作成日時を設定して返す。
	Create(ctx context.Context, record *model.ChatRecord) (*model.ChatRecord, error)

	// ListByUserID は指定ユーザーの台帳エントリを新しい順に最大limit件返す。
	ListByUserID(ctx context.Context, userID int64, limit int) ([]*model.ChatRecord, error)

	// GlobalTotals は全期間のリクエスト数とトークン合計を返す。
	GlobalTotals(ctx context.Context) (Totals, error)

	// TotalsSince は指定時刻以降のリクエスト数・トークン合計・アクティブユーザー数を返す。
	TotalsSince(ctx context.Context, since time.Time) (PeriodTotals, error)

	// UsageByModel はモデル別の利用集計を返す。
	UsageByModel(ctx context.Context) ([]ModelUsage, error)

	// UsageByUser はユーザー別の利用集計をトークン合計の降順で最大limit件返す。
	UsageByUser(ctx context.Context, limit int) ([]UserUsage, error)

	// UsageTotalsByUser は全ユーザーのユーザーIDごとの利用合計を返す。
	// 台帳エントリを持たないユーザーはマップに含まれない。
	UsageTotalsByUser(ctx context.Context) (map[int64]Totals, error)

	// DailyUsage は指定時刻以降の日別利用集計を日付昇順で返す。
	DailyUsage(ctx context.Context, since time.Time) ([]DailyUsage, error)
}

// Totals はリクエスト数とトークン合計の組。
type Totals struct {
	Requests    int64
	TotalTokens int64
}

// PeriodTotals は期間内の利用合計とアクティブユーザー数。
type PeriodTotals struct {
	Requests    int64
	TotalTokens int64
	ActiveUsers int64
}

// ModelUsage はモデル別の利用集計。
type ModelUsage struct {
	Model            string
	Requests         int64
	TotalTokens      int64
	PromptTokens     int64
	CompletionTokens int64
}

// UserUsage はユーザー別の利用集計。
type UserUsage struct {
	UserID      int64
	Email       string
	Requests    int64
	TotalTokens int64
}

// DailyUsage は日別の利用集計。DateはYYYY-MM-DD形式。
type DailyUsage struct {
	Date        string
	Requests    int64
	TotalTokens int64
}
