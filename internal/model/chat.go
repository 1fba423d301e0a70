package model

import "time"

// ChatRecord は1回のプロンプト/レスポンス交換を表す利用台帳エントリ。
// 作成後は不変（追記専用台帳）であり、更新・削除経路を持たない。
type ChatRecord struct {
	ID               int64
	UserID           int64
	Prompt           string
	Response         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CreatedAt        time.Time
}
