// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーのアクセス権限層を表す。
type Role string

const (
	// RoleUser は一般ユーザーを示す。
	RoleUser Role = "user"
	// RoleAdmin は管理者を示す。管理APIへのアクセスが許可される。
	RoleAdmin Role = "admin"
)

// IsValid はロール値が定義済みのいずれかであるかを返す。
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュであり、APIレスポンスには決して含めない。
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
