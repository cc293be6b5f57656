package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/skillmarket/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用したセッショントークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Create はトークンレコードを作成する。
func (r *PostgresTokenRepo) Create(ctx context.Context, token *model.Token) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, token, revoked, expired, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, token.Token, token.Revoked, token.Expired, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// FindByToken はトークン値（完全一致）でレコードを検索する。見つからない場合はnilを返す。
func (r *PostgresTokenRepo) FindByToken(ctx context.Context, token string) (*model.Token, error) {
	t := &model.Token{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, revoked, expired, created_at
		 FROM tokens WHERE token = $1`,
		token,
	).Scan(&t.ID, &t.UserID, &t.Token, &t.Revoked, &t.Expired, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	return t, nil
}

// RevokeAllByUserID は指定ユーザーの有効なトークンをすべてrevoked/expiredに更新する。
// 論理的な失効であり、レコードは削除しない。
func (r *PostgresTokenRepo) RevokeAllByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET revoked = true, expired = true
		 WHERE user_id = $1 AND revoked = false AND expired = false`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return nil
}

// RevokeAllAndCreate は旧トークンの一括失効と新トークンの作成を
// 同一トランザクションで行う。同一アカウントからの同時ログインが
// 競合しても、コミット時点で有効な系列は1つになる。
func (r *PostgresTokenRepo) RevokeAllAndCreate(ctx context.Context, userID string, token *model.Token) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE tokens SET revoked = true, expired = true
		 WHERE user_id = $1 AND revoked = false AND expired = false`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, token, revoked, expired, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, token.Token, token.Revoked, token.Expired, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteInvalidatedBefore は指定時刻より前に作成された失効済みトークンを削除する。
// クリーンアップジョブから日次で呼ばれる。冪等。
func (r *PostgresTokenRepo) DeleteInvalidatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens
		 WHERE revoked = true AND expired = true AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete invalidated tokens: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
