// Package cleanup はトークンデータの自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過した失効済みセッショントークンと、
// 期限切れのパスワード再設定トークンを定期バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/skillmarket/internal/metrics"
	"github.com/hitoshi/skillmarket/internal/repository"
)

// CleanupJob は失効済み・期限切れトークンの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	tokenRepo repository.TokenRepository
	resetRepo repository.PasswordResetTokenRepository
	logger    *slog.Logger
	collector metrics.MetricsCollector
	Retention time.Duration // 失効済みトークンの保持期間（デフォルト: 30日）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持期間は30日。
func NewCleanupJob(
	tokenRepo repository.TokenRepository,
	resetRepo repository.PasswordResetTokenRepository,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *CleanupJob {
	return &CleanupJob{
		tokenRepo: tokenRepo,
		resetRepo: resetRepo,
		logger:    logger,
		collector: collector,
		Retention: 30 * 24 * time.Hour,
	}
}

// Run は保持期間を超過した失効済みセッショントークンと期限切れの
// パスワード再設定トークンを削除する。
// 失効は論理削除（revoked/expiredフラグ）のため監査用にしばらく残し、
// 保持期間を過ぎた行だけを物理削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := start.Add(-j.Retention)
	tokensDeleted, err := j.tokenRepo.DeleteInvalidatedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("トークンクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("トークンクリーンアップの実行に失敗: %w", err)
	}

	resetDeleted, err := j.resetRepo.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("再設定トークンクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("再設定トークンクリーンアップの実行に失敗: %w", err)
	}

	total := tokensDeleted + resetDeleted
	if j.collector != nil {
		j.collector.RecordTokensPurged(total)
	}

	duration := time.Since(start)
	j.logger.Info("トークンクリーンアップジョブが完了しました",
		slog.Int64("tokens_deleted", tokensDeleted),
		slog.Int64("reset_tokens_deleted", resetDeleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunLoop はクリーンアップジョブを指定間隔で繰り返し実行する。
// ctxのキャンセルで停止する。起動直後に1回実行してからループに入る。
func (j *CleanupJob) RunLoop(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup run failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return
		}
	}
}
