// Package auth はユーザー登録・ログイン・本人確認のドメインロジックを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/hitoshi/aiportal/internal/model"
	"github.com/hitoshi/aiportal/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer はセッショントークンの発行インターフェース。
// token.Serviceの部分集合として定義する。
type TokenIssuer interface {
	Issue(userID int64, role model.Role, ttl time.Duration) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	TokenTTL          time.Duration // 発行するトークンの有効期間
	PasswordMinLength int           // パスワードの最小文字数
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	issuer   TokenIssuer
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, issuer TokenIssuer, config ServiceConfig) *Service {
	return &Service{
		userRepo: userRepo,
		issuer:   issuer,
		config:   config,
	}
}

// Register は新規ユーザーを登録する。
// メールアドレス形式とパスワード強度を検証してからハッシュ化・永続化する。
// 新規アカウントのロールは常にuser。
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)

	if err := validateEmail(email); err != nil {
		return nil, model.NewInvalidRequestError("メールアドレスの形式が正しくありません")
	}

	if len(password) < s.config.PasswordMinLength {
		return nil, model.NewWeakPasswordError(s.config.PasswordMinLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
	}

	created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if err == repository.ErrDuplicateEmail {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user registered",
		slog.Int64("user_id", created.ID),
		slog.String("email", created.Email),
	)

	return created, nil
}

// Login はメールアドレスとパスワードを検証し、セッショントークンを発行する。
// メールアドレス未登録とパスワード不一致は区別せず、同一のエラーを返す（列挙攻撃対策）。
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 未登録でもbcrypt比較と同等の時間を消費させ、タイミング差を減らす
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", model.NewInvalidCredentialsError()
	}

	tok, err := s.issuer.Issue(user.ID, user.Role, s.config.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
	)

	return tok, nil
}

// CurrentUser はトークン主体のユーザーをDBから再取得する。
// ロールはトークンのクレームではなく現在のレコードから取得するため、
// トークン発行後のロール変更が即座に反映される。
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}

// dummyHash は未登録メールアドレスへのログイン試行時に使用するダミーのbcryptハッシュ。
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// validateEmail はメールアドレスの形式を検証する。
func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	// 表示名付き（"Name <a@b>"形式）は許可しない
	if addr.Address != email {
		return fmt.Errorf("email must be a bare address")
	}
	return nil
}
