// Package token は署名付きセッショントークンの発行と検証を提供する。
// サーバー側に状態を持たないため、失効は有効期限切れのみで行われる。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/aiportal/internal/model"
)

// ErrInvalidToken は署名不一致・形式不正・期限切れのトークンを示す。
// 呼び出し側は原因を区別せず401として扱う。
var ErrInvalidToken = errors.New("invalid token")

// Claims はトークンに埋め込むクレーム。
// ロールは参考情報としてのみ保持し、権限判定時はDBから再取得する。
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"uid"`
	Role   string `json:"role,omitempty"`
}

// Service はHMAC-SHA256署名によるトークンの発行・検証を行う。
// サーバーシークレットと入力のみに依存する純粋な操作であり、副作用を持たない。
type Service struct {
	secret []byte
}

// NewService はServiceを生成する。
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// Issue はユーザーIDとロールを主体とする署名付きトークンを発行する。
// 有効期限は now + ttl。ttlが0以下の場合、発行されたトークンは即座に検証に失敗する。
func (s *Service) Issue(userID int64, role model.Role, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Role:   string(role),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", err
	}

	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、ユーザーIDとロールを返す。
// 署名不一致・形式不正・期限切れのいずれの場合もErrInvalidTokenを返す。
// 部分的に有効な状態は存在しない。
func (s *Service) Verify(tokenString string) (int64, model.Role, error) {
	claims := &Claims{}

	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return 0, "", ErrInvalidToken
	}

	if !tok.Valid {
		return 0, "", ErrInvalidToken
	}

	return claims.UserID, model.Role(claims.Role), nil
}
