package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/skillmarket/internal/model"
)

// PostgresAvisRepo はPostgreSQLを使用したレビューリポジトリ。
type PostgresAvisRepo struct {
	db *sql.DB
}

// NewPostgresAvisRepo はPostgresAvisRepoを生成する。
func NewPostgresAvisRepo(db *sql.DB) *PostgresAvisRepo {
	return &PostgresAvisRepo{db: db}
}

// Create はレビューを作成する。
// (formation_id, user_id)の一意制約違反はErrDuplicateReviewに変換する。
// 同時投稿の競合も制約側で検出される。
func (r *PostgresAvisRepo) Create(ctx context.Context, avis *model.Avis) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO avis (id, formation_id, user_id, commentaire, note, date_creation)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		avis.ID, avis.FormationID, avis.UserID, avis.Commentaire, avis.Note, avis.DateCreation,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReview
		}
		return fmt.Errorf("failed to insert avis: %w", err)
	}
	return nil
}

// FindByFormationAndUser は研修とユーザーの組でレビューを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresAvisRepo) FindByFormationAndUser(ctx context.Context, formationID, userID string) (*model.Avis, error) {
	a := &model.Avis{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, formation_id, user_id, commentaire, note, date_creation
		 FROM avis WHERE formation_id = $1 AND user_id = $2`,
		formationID, userID,
	).Scan(&a.ID, &a.FormationID, &a.UserID, &a.Commentaire, &a.Note, &a.DateCreation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find avis: %w", err)
	}
	return a, nil
}

// ListByFormation は研修のレビュー一覧を作成日時降順で返す。
func (r *PostgresAvisRepo) ListByFormation(ctx context.Context, formationID string) ([]*model.Avis, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, formation_id, user_id, commentaire, note, date_creation
		 FROM avis WHERE formation_id = $1 ORDER BY date_creation DESC`,
		formationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list avis: %w", err)
	}
	defer rows.Close()

	var list []*model.Avis
	for rows.Next() {
		a := &model.Avis{}
		if err := rows.Scan(&a.ID, &a.FormationID, &a.UserID, &a.Commentaire, &a.Note, &a.DateCreation); err != nil {
			return nil, fmt.Errorf("failed to scan avis: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate avis: %w", err)
	}
	return list, nil
}

// compile-time interface check
var _ AvisRepository = (*PostgresAvisRepo)(nil)
