package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/skillmarket/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, password, nom, prenom, phone, role,
	is_verified, is_active, verification_token,
	profile_description, niveau_etude, experience, linkedin_url, portfolio_url,
	certifications, domaines, profile_image, cv_pdf, created_at, updated_at`

// scanUser は1行分のユーザーを読み取る。
func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Password, &user.Nom, &user.Prenom,
		&user.Phone, &user.Role,
		&user.IsVerified, &user.IsActive, &user.VerificationToken,
		&user.ProfileDescription, &user.NiveauEtude, &user.Experience,
		&user.LinkedinURL, &user.PortfolioURL,
		pq.Array(&user.Certifications), pq.Array(&user.Domaines),
		&user.ProfileImage, &user.CvPDF, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレス（完全一致）でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByVerificationToken は確認トークン（完全一致）でユーザーを検索する。
// 見つからない場合はnilを返す。使用済みトークンはNULLにクリアされるため一致しない。
func (r *PostgresUserRepo) FindByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE verification_token = $1`, token)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by verification token: %w", err)
	}
	return user, nil
}

// ExistsByEmail は指定メールアドレスのユーザーが存在するかを返す。
func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// Create はユーザーを作成する。
// メールアドレスの一意制約違反はErrDuplicateEmailに変換する。
// 同時登録の競合も制約側で検出される。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		         $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		user.ID, user.Email, user.Password, user.Nom, user.Prenom,
		user.Phone, user.Role,
		user.IsVerified, user.IsActive, user.VerificationToken,
		user.ProfileDescription, user.NiveauEtude, user.Experience,
		user.LinkedinURL, user.PortfolioURL,
		pq.Array(user.Certifications), pq.Array(user.Domaines),
		user.ProfileImage, user.CvPDF, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update はユーザーの全フィールドを上書き更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET
		   email = $2, password = $3, nom = $4, prenom = $5, phone = $6, role = $7,
		   is_verified = $8, is_active = $9, verification_token = $10,
		   profile_description = $11, niveau_etude = $12, experience = $13,
		   linkedin_url = $14, portfolio_url = $15,
		   certifications = $16, domaines = $17, profile_image = $18, cv_pdf = $19,
		   updated_at = $20
		 WHERE id = $1`,
		user.ID, user.Email, user.Password, user.Nom, user.Prenom,
		user.Phone, user.Role,
		user.IsVerified, user.IsActive, user.VerificationToken,
		user.ProfileDescription, user.NiveauEtude, user.Experience,
		user.LinkedinURL, user.PortfolioURL,
		pq.Array(user.Certifications), pq.Array(user.Domaines),
		user.ProfileImage, user.CvPDF, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// listExperts は条件付きでexpert一覧を取得する共通処理。
func (r *PostgresUserRepo) listExperts(ctx context.Context, where string) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE role = 'expert' AND `+where+`
		 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experts: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expert: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate experts: %w", err)
	}
	return users, nil
}

// ListPendingExperts はメール確認済みかつ未承認のexpert一覧を返す。
func (r *PostgresUserRepo) ListPendingExperts(ctx context.Context) ([]*model.User, error) {
	return r.listExperts(ctx, `is_verified = true AND is_active = false`)
}

// ListActiveExperts はメール確認済みかつ承認済みのexpert一覧を返す。
func (r *PostgresUserRepo) ListActiveExperts(ctx context.Context) ([]*model.User, error) {
	return r.listExperts(ctx, `is_verified = true AND is_active = true`)
}

// ListVerifiedExperts はメール確認済みの全expert一覧を返す。
func (r *PostgresUserRepo) ListVerifiedExperts(ctx context.Context) ([]*model.User, error) {
	return r.listExperts(ctx, `is_verified = true`)
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
