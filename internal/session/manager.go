// Package session はセッショントークンの発行と失効の台帳管理を提供する。
// 資格情報の検証はaccountパッケージの責務であり、ここでは行わない。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/skillmarket/internal/model"
	"github.com/hitoshi/skillmarket/internal/repository"
)

// Config はトークン発行の設定。
type Config struct {
	// Secret はJWT署名鍵（HS256）。
	Secret []byte
	// Issuer はJWTのissクレーム。
	Issuer string
	// AccessTTL はアクセストークンの有効期間。
	AccessTTL time.Duration
	// RefreshTTL はリフレッシュトークンの有効期間。
	RefreshTTL time.Duration
}

// TokenPair はログイン・登録時に発行されるアクセス/リフレッシュトークンの組。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Claims はアクセストークンのJWTクレーム。
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Manager はトークン発行・失効のビジネスロジックを提供する。
// アクセストークンはJWTだが、失効管理のため発行済みレコードを
// 永続化し、検証時に台帳と突き合わせる。
type Manager struct {
	tokenRepo repository.TokenRepository
	config    Config
}

// NewManager はManagerを生成する。
func NewManager(tokenRepo repository.TokenRepository, config Config) *Manager {
	if config.AccessTTL == 0 {
		config.AccessTTL = 24 * time.Hour
	}
	if config.RefreshTTL == 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{tokenRepo: tokenRepo, config: config}
}

// Issue は新しいトークンペアを発行し、アクセストークンを台帳に記録する。
// 登録直後の自動ログインで使用する（失効対象の旧トークンが存在しない前提）。
func (m *Manager) Issue(ctx context.Context, user *model.User) (*TokenPair, error) {
	pair, record, err := m.mint(user)
	if err != nil {
		return nil, err
	}

	if err := m.tokenRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	return pair, nil
}

// IssueReplacing は旧トークンの一括失効と新トークンペアの発行を
// アトミックに行う。再認証のたびに呼ばれ、アカウントごとに有効な
// トークン系列が常に1つであることを保証する。
func (m *Manager) IssueReplacing(ctx context.Context, user *model.User) (*TokenPair, error) {
	pair, record, err := m.mint(user)
	if err != nil {
		return nil, err
	}

	if err := m.tokenRepo.RevokeAllAndCreate(ctx, user.ID, record); err != nil {
		return nil, fmt.Errorf("failed to replace tokens: %w", err)
	}

	return pair, nil
}

// RevokeAll は指定アカウントの有効なトークンをすべて失効させる。
// 対象がなくてもエラーにならない。他のアカウントには影響しない。
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	if err := m.tokenRepo.RevokeAllByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return nil
}

// Logout は提示されたトークンの属するアカウントの全トークンを失効させる。
// 台帳にないトークンはエラーにせず無視する（冪等）。
func (m *Manager) Logout(ctx context.Context, tokenValue string) error {
	record, err := m.tokenRepo.FindByToken(ctx, tokenValue)
	if err != nil {
		return fmt.Errorf("failed to find token: %w", err)
	}
	if record == nil {
		return nil
	}

	if err := m.tokenRepo.RevokeAllByUserID(ctx, record.UserID); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}

	slog.Info("user logged out", slog.String("user_id", record.UserID))
	return nil
}

// Validate はアクセストークンを検証し、JWTクレームを返す。
// 署名と有効期限の検証に加えて、台帳上のレコードが失効していないことを
// 確認する。失効済み・台帳にないトークンは無効。
func (m *Manager) Validate(ctx context.Context, tokenValue string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenValue, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	record, err := m.tokenRepo.FindByToken(ctx, tokenValue)
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	if record == nil || record.Revoked || record.Expired {
		return nil, fmt.Errorf("token is revoked or unknown")
	}

	return claims, nil
}

// mint はトークンペアのJWTと台帳レコードを生成する。永続化は行わない。
func (m *Manager) mint(user *model.User) (*TokenPair, *model.Token, error) {
	now := time.Now().UTC()

	accessToken, err := m.sign(user, now, m.config.AccessTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refreshToken, err := m.sign(user, now, m.config.RefreshTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	record := &model.Token{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     accessToken,
		Revoked:   false,
		Expired:   false,
		CreatedAt: now,
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, record, nil
}

// sign は指定有効期間のJWTを生成する。
func (m *Manager) sign(user *model.User, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}
