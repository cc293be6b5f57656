package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/skillmarket/internal/model"
)

// resetTokenTTL はパスワード再設定トークンの有効期間。
const resetTokenTTL = time.Hour

// RequestPasswordReset はパスワード再設定トークンを発行し、
// 再設定リンクをメールで送信する。トークンの有効期間は1時間。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	token := &model.PasswordResetToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(resetTokenTTL),
		CreatedAt: time.Now(),
	}
	if err := s.resetRepo.Create(ctx, token); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	if err := s.notifier.SendPasswordResetEmail(ctx, user.Email, token.Token); err != nil {
		slog.Error("failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordEmailSendFailure()
		return model.NewNotificationFailedError()
	}

	slog.Info("password reset requested", slog.String("user_id", user.ID))
	return nil
}

// ValidateResetToken は再設定トークンが有効（存在し、かつ期限内）かを返す。
func (s *Service) ValidateResetToken(ctx context.Context, tokenValue string) (bool, error) {
	token, err := s.resetRepo.FindByToken(ctx, tokenValue)
	if err != nil {
		return false, fmt.Errorf("failed to find reset token: %w", err)
	}
	if token == nil || time.Now().After(token.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

// ResetPassword は再設定トークンでパスワードを更新する。
// トークンは使い捨てで、成功時に削除される。パスワード変更後は
// 既存のセッショントークンをすべて失効させる。
func (s *Service) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	if len(newPassword) < 8 {
		return model.NewValidationError("パスワードは8文字以上にしてください")
	}

	token, err := s.resetRepo.FindByToken(ctx, tokenValue)
	if err != nil {
		return fmt.Errorf("failed to find reset token: %w", err)
	}
	if token == nil || time.Now().After(token.ExpiresAt) {
		return model.NewInvalidTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hashed
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := s.resetRepo.DeleteByID(ctx, token.ID); err != nil {
		return fmt.Errorf("failed to delete reset token: %w", err)
	}

	// パスワード変更後は全セッションを無効化する
	if err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	slog.Info("password reset completed", slog.String("user_id", user.ID))
	return nil
}
