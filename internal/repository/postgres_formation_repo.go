package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/skillmarket/internal/model"
)

// PostgresFormationRepo はPostgreSQLを使用した研修リポジトリ。
type PostgresFormationRepo struct {
	db *sql.DB
}

// NewPostgresFormationRepo はPostgresFormationRepoを生成する。
func NewPostgresFormationRepo(db *sql.DB) *PostgresFormationRepo {
	return &PostgresFormationRepo{db: db}
}

const formationColumns = `id, titre, description, date_debut, date_fin, duree,
	nombre_max_participants, prix, categorie, image_formation, url_meet,
	statut, formateur_id, created_at, updated_at`

// scanFormation は1行分の研修を読み取る。
func scanFormation(row interface{ Scan(dest ...any) error }) (*model.Formation, error) {
	f := &model.Formation{}
	err := row.Scan(
		&f.ID, &f.Titre, &f.Description, &f.DateDebut, &f.DateFin, &f.Duree,
		&f.NombreMaxParticipants, &f.Prix, &f.Categorie, &f.ImageFormation,
		&f.URLMeet, &f.Statut, &f.FormateurID, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// FindByID は指定IDの研修を取得する。見つからない場合はnilを返す。
func (r *PostgresFormationRepo) FindByID(ctx context.Context, id string) (*model.Formation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+formationColumns+` FROM formations WHERE id = $1`, id)
	f, err := scanFormation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find formation by ID: %w", err)
	}
	return f, nil
}

// Create は研修を作成する。
func (r *PostgresFormationRepo) Create(ctx context.Context, f *model.Formation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO formations (`+formationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		f.ID, f.Titre, f.Description, f.DateDebut, f.DateFin, f.Duree,
		f.NombreMaxParticipants, f.Prix, f.Categorie, f.ImageFormation,
		f.URLMeet, f.Statut, f.FormateurID, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert formation: %w", err)
	}
	return nil
}

// Update は研修の記述フィールドを上書き更新する。
// statut、formateur_idは遷移専用の経路（UpdateStatus）でのみ変更する。
func (r *PostgresFormationRepo) Update(ctx context.Context, f *model.Formation) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE formations SET
		   titre = $2, description = $3, date_debut = $4, date_fin = $5,
		   duree = $6, nombre_max_participants = $7, prix = $8, categorie = $9,
		   image_formation = $10, updated_at = $11
		 WHERE id = $1`,
		f.ID, f.Titre, f.Description, f.DateDebut, f.DateFin,
		f.Duree, f.NombreMaxParticipants, f.Prix, f.Categorie,
		f.ImageFormation, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update formation: %w", err)
	}
	return nil
}

// UpdateStatus は研修の状態をfromからtoへcompare-and-swapで遷移させる。
// 現在の状態がfromでない場合（並行遷移に競り負けた場合を含む）は
// ErrStatusConflictを返す。
func (r *PostgresFormationRepo) UpdateStatus(ctx context.Context, id string, from, to model.FormationStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE formations SET statut = $3, updated_at = now()
		 WHERE id = $1 AND statut = $2`,
		id, from, to,
	)
	if err != nil {
		return fmt.Errorf("failed to update formation status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// Delete は研修を削除する。avisとformation_participantsはCASCADE削除される。
func (r *PostgresFormationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM formations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete formation: %w", err)
	}
	return nil
}

// listFormations はクエリ結果を研修一覧として読み取る共通処理。
func (r *PostgresFormationRepo) listFormations(ctx context.Context, query string, args ...any) ([]*model.Formation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list formations: %w", err)
	}
	defer rows.Close()

	var formations []*model.Formation
	for rows.Next() {
		f, err := scanFormation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan formation: %w", err)
		}
		formations = append(formations, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate formations: %w", err)
	}
	return formations, nil
}

// ListByStatut は指定状態の研修一覧を返す。
func (r *PostgresFormationRepo) ListByStatut(ctx context.Context, statut model.FormationStatus) ([]*model.Formation, error) {
	return r.listFormations(ctx,
		`SELECT `+formationColumns+` FROM formations
		 WHERE statut = $1 ORDER BY date_debut`, statut)
}

// ListByFormateur は指定expertが所有する研修一覧を返す。
func (r *PostgresFormationRepo) ListByFormateur(ctx context.Context, formateurID string) ([]*model.Formation, error) {
	return r.listFormations(ctx,
		`SELECT `+formationColumns+` FROM formations
		 WHERE formateur_id = $1 ORDER BY created_at DESC`, formateurID)
}

// ListByParticipant は指定ユーザーが参加登録している研修一覧を返す。
func (r *PostgresFormationRepo) ListByParticipant(ctx context.Context, userID string) ([]*model.Formation, error) {
	return r.listFormations(ctx,
		`SELECT f.id, f.titre, f.description, f.date_debut, f.date_fin, f.duree,
		        f.nombre_max_participants, f.prix, f.categorie, f.image_formation,
		        f.url_meet, f.statut, f.formateur_id, f.created_at, f.updated_at
		 FROM formations f
		 JOIN formation_participants p ON p.formation_id = f.id
		 WHERE p.user_id = $1 ORDER BY f.date_debut`, userID)
}

// enrollmentGuard は行ロック下で読み取った研修の状態から参加可否を判定する。
// 検証順序は 承認済み → 定員 の順で、重複登録は挿入時の一意制約違反として
// 検出される（定員超過の研修への再登録は定員エラーが先に返る）。
func enrollmentGuard(statut model.FormationStatus, count, maxParticipants int) error {
	if statut != model.StatusApprouvee {
		return ErrNotApprouvee
	}
	if count >= maxParticipants {
		return ErrCapacityExceeded
	}
	return nil
}

// AddParticipant は定員チェックと参加者追加を単一トランザクションで行う。
// 研修行をFOR UPDATEでロックすることで、同時の参加登録は直列化され、
// 定員チェックと追加の間に他の登録が割り込むことはない。
func (r *PostgresFormationRepo) AddParticipant(ctx context.Context, formationID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 研修行をロックして状態と定員を確定させる
	var statut model.FormationStatus
	var maxParticipants int
	err = tx.QueryRowContext(ctx,
		`SELECT statut, nombre_max_participants FROM formations
		 WHERE id = $1 FOR UPDATE`,
		formationID,
	).Scan(&statut, &maxParticipants)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrFormationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock formation: %w", err)
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT count(*) FROM formation_participants WHERE formation_id = $1`,
		formationID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}
	if err := enrollmentGuard(statut, count, maxParticipants); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO formation_participants (formation_id, user_id, created_at)
		 VALUES ($1, $2, now())`,
		formationID, userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyEnrolled
		}
		return fmt.Errorf("failed to insert participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountParticipants は研修の参加者数を返す。
func (r *PostgresFormationRepo) CountParticipants(ctx context.Context, formationID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM formation_participants WHERE formation_id = $1`,
		formationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// IsParticipant は指定ユーザーが研修の参加者かを返す。
func (r *PostgresFormationRepo) IsParticipant(ctx context.Context, formationID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM formation_participants
		   WHERE formation_id = $1 AND user_id = $2)`,
		formationID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ FormationRepository = (*PostgresFormationRepo)(nil)
