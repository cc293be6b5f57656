// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアカウントの役割を表す。作成後は変更されない。
type Role string

const (
	// RoleApprenant は受講者（学習者）。
	RoleApprenant Role = "apprenant"
	// RoleExpert は研修を公開する講師。
	RoleExpert Role = "expert"
	// RoleAdmin はアカウントと研修を承認する管理者。
	RoleAdmin Role = "admin"
)

// User はサービス利用者のアカウントを表す。
// IsVerified はメール所有確認の完了、IsActive は操作許可を意味する。
// 役割ごとにライフサイクルが異なる: apprenant は登録直後から
// IsActive=true、expert はメール確認後さらに管理者の承認が必要。
type User struct {
	ID       string
	Email    string
	Password string // bcryptハッシュ。平文は保持しない
	Nom      string
	Prenom   string
	Phone    string
	Role     Role

	IsVerified bool
	IsActive   bool
	// VerificationToken はメール確認待ちの間のみ非nil。
	// 確認成功時にクリアされる（使い捨て）。
	VerificationToken *string

	// プロフィール（本人のみ更新可能）
	ProfileDescription string
	NiveauEtude        string
	Experience         string
	LinkedinURL        string
	PortfolioURL       string
	Certifications     []string
	Domaines           []string
	ProfileImage       []byte
	CvPDF              []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Token はアカウントに紐づく発行済みセッショントークンを表す。
// 再ログイン時に旧トークンは revoked/expired に倒され、
// アカウントごとに有効なトークン系列は常に1つに保たれる。
type Token struct {
	ID        string
	UserID    string
	Token     string
	Revoked   bool
	Expired   bool
	CreatedAt time.Time
}

// PasswordResetToken はパスワード再設定用の使い捨てトークンを表す。
type PasswordResetToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
