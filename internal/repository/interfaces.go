// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/skillmarket/internal/model"
)

// UserRepository はアカウントデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（完全一致）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByVerificationToken は確認トークン（完全一致）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByVerificationToken(ctx context.Context, token string) (*model.User, error)

	// ExistsByEmail は指定メールアドレスのユーザーが存在するかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create はユーザーを作成する。
	// メールアドレスの一意制約違反の場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーの全フィールドを上書き更新する。
	Update(ctx context.Context, user *model.User) error

	// ListPendingExperts はメール確認済みかつ未承認のexpert一覧を返す。
	ListPendingExperts(ctx context.Context) ([]*model.User, error)

	// ListActiveExperts はメール確認済みかつ承認済みのexpert一覧を返す。
	ListActiveExperts(ctx context.Context) ([]*model.User, error)

	// ListVerifiedExperts はメール確認済みの全expert一覧を返す。
	ListVerifiedExperts(ctx context.Context) ([]*model.User, error)
}

// TokenRepository はセッショントークンの永続化インターフェース。
type TokenRepository interface {
	// Create はトークンレコードを作成する。
	Create(ctx context.Context, token *model.Token) error

	// FindByToken はトークン値（完全一致）でレコードを検索する。
	// 見つからない場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.Token, error)

	// RevokeAllByUserID は指定ユーザーの有効な（未失効・未取消の）トークンを
	// すべてrevoked/expiredに更新する。対象がなくてもエラーにならない。
	RevokeAllByUserID(ctx context.Context, userID string) error

	// RevokeAllAndCreate は旧トークンの一括失効と新トークンの作成を
	// 同一トランザクションで行う。同時ログインでも有効な系列は1つに保たれる。
	RevokeAllAndCreate(ctx context.Context, userID string, token *model.Token) error

	// DeleteInvalidatedBefore は指定時刻より前に作成された失効済みトークンを
	// 削除し、削除件数を返す。
	DeleteInvalidatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PasswordResetTokenRepository はパスワード再設定トークンの永続化インターフェース。
type PasswordResetTokenRepository interface {
	// Create は再設定トークンを作成する。
	Create(ctx context.Context, token *model.PasswordResetToken) error

	// FindByToken はトークン値（完全一致）でレコードを検索する。
	// 見つからない場合はnilを返す。期限切れレコードも返す（判定は呼び出し側）。
	FindByToken(ctx context.Context, token string) (*model.PasswordResetToken, error)

	// DeleteByID は指定IDのトークンを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired は期限切れトークンを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// FormationRepository は研修データの永続化インターフェース。
type FormationRepository interface {
	// FindByID は指定IDの研修を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Formation, error)

	// Create は研修を作成する。
	Create(ctx context.Context, formation *model.Formation) error

	// Update は研修の記述フィールドを上書き更新する。
	// statut、formateur_idはこのメソッドでは変更しない。
	Update(ctx context.Context, formation *model.Formation) error

	// UpdateStatus は研修の状態をfromからtoへ遷移させる。
	// 現在の状態がfromでない場合は何も更新せずErrStatusConflictを返す
	// （compare-and-swapによる遷移ガード）。
	UpdateStatus(ctx context.Context, id string, from, to model.FormationStatus) error

	// Delete は研修を削除する。関連するavisと参加者はCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// ListByStatut は指定状態の研修一覧を返す。
	ListByStatut(ctx context.Context, statut model.FormationStatus) ([]*model.Formation, error)

	// ListByFormateur は指定expertが所有する研修一覧を返す。
	ListByFormateur(ctx context.Context, formateurID string) ([]*model.Formation, error)

	// ListByParticipant は指定ユーザーが参加登録している研修一覧を返す。
	ListByParticipant(ctx context.Context, userID string) ([]*model.Formation, error)

	// AddParticipant は定員チェックと参加者追加を単一トランザクションで行う。
	// 研修行をFOR UPDATEでロックした上で状態・定員・重複を再検証するため、
	// 同時実行でも定員超過は起こらない。
	// 検証失敗時はErrFormationNotFound、ErrNotApprouvee、
	// ErrCapacityExceeded、ErrAlreadyEnrolledのいずれかを返す。
	AddParticipant(ctx context.Context, formationID, userID string) error

	// CountParticipants は研修の参加者数を返す。
	CountParticipants(ctx context.Context, formationID string) (int, error)

	// IsParticipant は指定ユーザーが研修の参加者かを返す。
	IsParticipant(ctx context.Context, formationID, userID string) (bool, error)
}

// AvisRepository はレビューデータの永続化インターフェース。
type AvisRepository interface {
	// Create はレビューを作成する。
	// (formation, user)の一意制約違反の場合はErrDuplicateReviewを返す。
	Create(ctx context.Context, avis *model.Avis) error

	// FindByFormationAndUser は研修とユーザーの組でレビューを検索する。
	// 見つからない場合はnilを返す。
	FindByFormationAndUser(ctx context.Context, formationID, userID string) (*model.Avis, error)

	// ListByFormation は研修のレビュー一覧を作成日時降順で返す。
	ListByFormation(ctx context.Context, formationID string) ([]*model.Avis, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
