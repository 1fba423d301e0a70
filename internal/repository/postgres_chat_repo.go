package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/aiportal/internal/model"
)

// PostgresChatRecordRepo はPostgreSQLを使用したチャット台帳リポジトリ。
// 集計はすべてSQLの宣言的クエリで行い、台帳全体をメモリに読み込まない。
type PostgresChatRecordRepo struct {
	db *sql.DB
}

// NewPostgresChatRecordRepo はPostgresChatRecordRepoを生成する。
func NewPostgresChatRecordRepo(db *sql.DB) *PostgresChatRecordRepo {
	return &PostgresChatRecordRepo{db: db}
}

// Create は台帳エントリを作成し、採番されたIDと作成日時を設定して返す。
func (r *PostgresChatRecordRepo) Create(ctx context.Context, record *model.ChatRecord) (*model.ChatRecord, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO chat_records (user_id, prompt, response, model, prompt_tokens, completion_tokens, total_tokens)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		record.UserID, record.Prompt, record.Response, record.Model,
		record.PromptTokens, record.CompletionTokens, record.TotalTokens,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to insert chat record: %w", err)
	}

	return record, nil
}

// ListByUserID は指定ユーザーの台帳エントリを新しい順に最大limit件返す。
func (r *PostgresChatRecordRepo) ListByUserID(ctx context.Context, userID int64, limit int) ([]*model.ChatRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, prompt, response, model, prompt_tokens, completion_tokens, total_tokens, created_at
		 FROM chat_records
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat records: %w", err)
	}
	defer rows.Close()

	var records []*model.ChatRecord
	for rows.Next() {
		rec := &model.ChatRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Prompt, &rec.Response, &rec.Model,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chat record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat record rows: %w", err)
	}

	return records, nil
}

// GlobalTotals は全期間のリクエスト数とトークン合計を返す。
func (r *PostgresChatRecordRepo) GlobalTotals(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_tokens), 0) FROM chat_records`,
	).Scan(&t.Requests, &t.TotalTokens)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to query global totals: %w", err)
	}
	return t, nil
}

// TotalsSince は指定時刻以降のリクエスト数・トークン合計・アクティブユーザー数を返す。
func (r *PostgresChatRecordRepo) TotalsSince(ctx context.Context, since time.Time) (PeriodTotals, error) {
	var t PeriodTotals
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_tokens), 0), COUNT(DISTINCT user_id)
		 FROM chat_records
		 WHERE created_at >= $1`,
		since,
	).Scan(&t.Requests, &t.TotalTokens, &t.ActiveUsers)
	if err != nil {
		return PeriodTotals{}, fmt.Errorf("failed to query totals since %s: %w", since.Format(time.RFC3339), err)
	}
	return t, nil
}

// UsageByModel はモデル別の利用集計を返す。
func (r *PostgresChatRecordRepo) UsageByModel(ctx context.Context) ([]ModelUsage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT model, COUNT(*), COALESCE(SUM(total_tokens), 0),
		        COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0)
		 FROM chat_records
		 GROUP BY model
		 ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage by model: %w", err)
	}
	defer rows.Close()

	var usages []ModelUsage
	for rows.Next() {
		var u ModelUsage
		if err := rows.Scan(&u.Model, &u.Requests, &u.TotalTokens, &u.PromptTokens, &u.CompletionTokens); err != nil {
			return nil, fmt.Errorf("failed to scan model usage row: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate model usage rows: %w", err)
	}

	return usages, nil
}

// UsageByUser はユーザー別の利用集計をトークン合計の降順で最大limit件返す。
// 削除済みユーザーの台帳エントリも集計対象に含まれる（emailは空になる）。
func (r *PostgresChatRecordRepo) UsageByUser(ctx context.Context, limit int) ([]UserUsage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.user_id, COALESCE(u.email, ''), COUNT(*), COALESCE(SUM(c.total_tokens), 0)
		 FROM chat_records c
		 LEFT JOIN users u ON u.id = c.user_id
		 GROUP BY c.user_id, u.email
		 ORDER BY COALESCE(SUM(c.total_tokens), 0) DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage by user: %w", err)
	}
	defer rows.Close()

	var usages []UserUsage
	for rows.Next() {
		var u UserUsage
		if err := rows.Scan(&u.UserID, &u.Email, &u.Requests, &u.TotalTokens); err != nil {
			return nil, fmt.Errorf("failed to scan user usage row: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user usage rows: %w", err)
	}

	return usages, nil
}

// UsageTotalsByUser は全ユーザーのユーザーIDごとの利用合計を返す。
func (r *PostgresChatRecordRepo) UsageTotalsByUser(ctx context.Context) (map[int64]Totals, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, COUNT(*), COALESCE(SUM(total_tokens), 0)
		 FROM chat_records
		 GROUP BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage totals by user: %w", err)
	}
	defer rows.Close()

	totals := make(map[int64]Totals)
	for rows.Next() {
		var userID int64
		var t Totals
		if err := rows.Scan(&userID, &t.Requests, &t.TotalTokens); err != nil {
			return nil, fmt.Errorf("failed to scan usage totals row: %w", err)
		}
		totals[userID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage totals rows: %w", err)
	}

	return totals, nil
}

// DailyUsage は指定時刻以降の日別利用集計を日付昇順で返す。
// 日付の区切りはDBセッションのタイムゾーン（サーバーローカル時刻）に従う。
func (r *PostgresChatRecordRepo) DailyUsage(ctx context.Context, since time.Time) ([]DailyUsage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT to_char(DATE(created_at), 'YYYY-MM-DD'), COUNT(*), COALESCE(SUM(total_tokens), 0)
		 FROM chat_records
		 WHERE created_at >= $1
		 GROUP BY DATE(created_at)
		 ORDER BY DATE(created_at)`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var usages []DailyUsage
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.Requests, &u.TotalTokens); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage row: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily usage rows: %w", err)
	}

	return usages, nil
}

// compile-time interface check
var _ ChatRecordRepository = (*PostgresChatRecordRepo)(nil)
