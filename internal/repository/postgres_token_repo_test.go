package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/skillmarket/internal/model"
)

// PostgresTokenRepoはTokenRepositoryインターフェースを満たすことを検証
func TestPostgresTokenRepo_ImplementsInterface(t *testing.T) {
	var _ TokenRepository = (*PostgresTokenRepo)(nil)
}

// NewPostgresTokenRepoが正しく初期化されることを検証
func TestNewPostgresTokenRepo_Initializes(t *testing.T) {
	repo := NewPostgresTokenRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// 失効済みトークンのモデル状態を検証。
// 再ログイン時はRevokeAllAndCreateで既存系列が全て失効済みになる。
func TestPostgresTokenRepo_RevokedToken_Concept(t *testing.T) {
	token := &model.Token{
		ID:        "token-id-1",
		UserID:    "user-id-1",
		Token:     "eyJhbGciOiJIUzI1NiJ9.test",
		Revoked:   true,
		Expired:   false,
		CreatedAt: time.Now().Add(-1 * time.Hour),
	}

	if !token.Revoked {
		t.Error("token should be revoked after re-authentication")
	}
	if token.Expired {
		t.Error("revoked and expired are independent flags")
	}
}

// 保持期間より古い無効化済みトークンが削除対象になるという想定を検証。
// DeleteInvalidatedBeforeはcreated_atがカットオフより前の
// 失効済みまたは期限切れのトークンのみを削除する。
func TestPostgresTokenRepo_RetentionCutoff_Concept(t *testing.T) {
	retention := 30 * 24 * time.Hour
	cutoff := time.Now().Add(-retention)

	old := &model.Token{Revoked: true, CreatedAt: cutoff.Add(-time.Hour)}
	recent := &model.Token{Revoked: true, CreatedAt: cutoff.Add(time.Hour)}
	active := &model.Token{Revoked: false, Expired: false, CreatedAt: cutoff.Add(-time.Hour)}

	if !old.CreatedAt.Before(cutoff) {
		t.Error("old revoked token should fall before the cutoff")
	}
	if recent.CreatedAt.Before(cutoff) {
		t.Error("recent revoked token should be kept")
	}
	if active.Revoked || active.Expired {
		t.Error("active token should never be eligible for purge")
	}
}
