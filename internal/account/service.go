// Package account はアカウントライフサイクルのドメインロジックを提供する。
// 登録 → メール確認 → （expertのみ）管理者承認 → セッション発行、の
// 状態遷移と、その前提条件の検証を担う。
package account

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/skillmarket/internal/model"
	"github.com/hitoshi/skillmarket/internal/repository"
	"github.com/hitoshi/skillmarket/internal/session"
)

// SessionIssuer はアカウントエンジンが必要とするトークン発行インターフェース。
// session.Managerの部分集合として定義する。
type SessionIssuer interface {
	Issue(ctx context.Context, user *model.User) (*session.TokenPair, error)
	IssueReplacing(ctx context.Context, user *model.User) (*session.TokenPair, error)
	RevokeAll(ctx context.Context, userID string) error
}

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	Hash(rawPassword string) (string, error)
	Verify(rawPassword, hashed string) bool
}

// Notifier はメール送信のインターフェース。
// 送信失敗の扱いは操作ごとに異なる（Registerでは非致命、Resendでは伝搬）。
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// Sanitizer は自由記述フィールドのサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Metrics はアカウント関連メトリクスの記録インターフェース。
type Metrics interface {
	RecordRegistration(role string)
	RecordAuthFailure()
	RecordEmailSendFailure()
}

// Service はアカウントライフサイクルのサービス層。
type Service struct {
	userRepo  repository.UserRepository
	resetRepo repository.PasswordResetTokenRepository
	sessions  SessionIssuer
	hasher    PasswordHasher
	notifier  Notifier
	sanitizer Sanitizer
	metrics   Metrics
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	resetRepo repository.PasswordResetTokenRepository,
	sessions SessionIssuer,
	hasher PasswordHasher,
	notifier Notifier,
	sanitizer Sanitizer,
	metrics Metrics,
) *Service {
	return &Service{
		userRepo:  userRepo,
		resetRepo: resetRepo,
		sessions:  sessions,
		hasher:    hasher,
		notifier:  notifier,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// RegisterRequest は登録時の入力。
type RegisterRequest struct {
	Nom      string
	Prenom   string
	Email    string
	Password string
	Phone    string

	// expert用フィールド
	ProfileDescription string
	NiveauEtude        string
	Experience         string
	LinkedinURL        string
	PortfolioURL       string
	Certifications     []string
	Domaines           []string
	ProfileImage       []byte
	CvPDF              []byte
}

// AuthResponse は登録・ログインの結果。
// 発行されたトークンペアと、クライアントが次の画面を判断するための
// アカウント状態フラグを含む。
type AuthResponse struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	IsVerified   bool
	IsActive     bool
}

// RegisterApprenant は受講者アカウントを登録する。
// apprenantはメール確認前からIsActive=trueで作成される（意図的な設計。
// expertとの非対称は仕様通りに保存する）。
func (s *Service) RegisterApprenant(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return s.register(ctx, req, model.RoleApprenant)
}

// RegisterExpert は講師アカウントを登録する。
// 証明書とプロフィール説明が必須。メール確認と管理者承認が完了するまで
// IsActive=falseのまま。
func (s *Service) RegisterExpert(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if len(req.Certifications) == 0 {
		return nil, model.NewValidationError("expertの登録には証明書が必要です")
	}
	if strings.TrimSpace(req.ProfileDescription) == "" {
		return nil, model.NewValidationError("expertの登録にはプロフィール説明が必要です")
	}
	return s.register(ctx, req, model.RoleExpert)
}

// register は役割共通の登録処理。
// 検証と重複チェックはすべて書き込み前に行い、部分的な状態を残さない。
func (s *Service) register(ctx context.Context, req RegisterRequest, role model.Role) (*AuthResponse, error) {
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		return nil, model.NewValidationError("メールアドレスの形式が不正です")
	}
	if len(req.Password) < 8 {
		return nil, model.NewValidationError("パスワードは8文字以上にしてください")
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		slog.Warn("registration rejected: email already exists", slog.String("email", req.Email))
		return nil, model.NewEmailAlreadyExistsError(req.Email)
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// 確認トークンはここで生成され、確認成功時にクリアされるまで
	// アカウントに高々1つだけ存在する
	verificationToken := uuid.New().String()
	now := time.Now()

	user := &model.User{
		ID:                uuid.New().String(),
		Email:             req.Email,
		Password:          hashed,
		Nom:               req.Nom,
		Prenom:            req.Prenom,
		Phone:             req.Phone,
		Role:              role,
		IsVerified:        false,
		IsActive:          role == model.RoleApprenant,
		VerificationToken: &verificationToken,

		ProfileDescription: s.sanitizer.Sanitize(req.ProfileDescription),
		NiveauEtude:        req.NiveauEtude,
		Experience:         req.Experience,
		LinkedinURL:        req.LinkedinURL,
		PortfolioURL:       req.PortfolioURL,
		Certifications:     req.Certifications,
		Domaines:           req.Domaines,
		ProfileImage:       req.ProfileImage,
		CvPDF:              req.CvPDF,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 同時登録との競合は一意制約で検出される
		if err == repository.ErrDuplicateEmail {
			return nil, model.NewEmailAlreadyExistsError(req.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(role)),
	)
	s.metrics.RecordRegistration(string(role))

	// 登録直後の自動ログイン
	pair, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	// 確認メールはベストエフォート: 送信失敗しても登録は成立している
	if err := s.notifier.SendVerificationEmail(ctx, user.Email, verificationToken); err != nil {
		slog.Error("failed to send verification email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordEmailSendFailure()
	}

	return &AuthResponse{
		UserID:       user.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IsVerified:   user.IsVerified,
		IsActive:     user.IsActive,
	}, nil
}

// Authenticate はメールアドレスとパスワードで認証し、トークンペアを発行する。
// 成功時は旧トークンをすべて失効させてから新トークンを発行するため、
// アカウントごとに有効なトークン系列は常に1つになる。
// メールアドレス不明とパスワード不一致は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) Authenticate(ctx context.Context, email, rawPassword string) (*AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !s.hasher.Verify(rawPassword, user.Password) {
		s.metrics.RecordAuthFailure()
		return nil, model.NewInvalidCredentialsError()
	}

	// verified↦enabled、active↦non-locked の対応でログインをゲートする
	if !user.IsVerified || !user.IsActive {
		slog.Warn("authentication rejected: account disabled",
			slog.String("user_id", user.ID),
			slog.Bool("is_verified", user.IsVerified),
			slog.Bool("is_active", user.IsActive),
		)
		return nil, model.NewAccountDisabledError()
	}

	pair, err := s.sessions.IssueReplacing(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	slog.Info("user authenticated", slog.String("user_id", user.ID))

	return &AuthResponse{
		UserID:       user.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IsVerified:   user.IsVerified,
		IsActive:     user.IsActive,
	}, nil
}

// VerifyAccount は確認トークンでメール所有を確認する。
// トークンは使い捨て: 成功時にクリアされるため、同じトークンでの
// 2回目の呼び出しは常にINVALID_TOKENになる。
// apprenantは確認と同時にIsActive=trueになる。expertのIsActiveは
// 管理者承認（ValidateExpertAccount）まで変化しない。
func (s *Service) VerifyAccount(ctx context.Context, token string) error {
	user, err := s.userRepo.FindByVerificationToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to find user by token: %w", err)
	}
	if user == nil {
		return model.NewInvalidTokenError()
	}
	if user.IsVerified {
		return model.NewAlreadyVerifiedError()
	}

	user.IsVerified = true
	user.VerificationToken = nil
	if user.Role == model.RoleApprenant {
		user.IsActive = true
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("account verified",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return nil
}

// ResendVerification は確認メールを再送信する。
// 新しいトークンが旧トークンを上書きするため、生きているトークンは
// 常に高々1つ。送信失敗はNOTIFICATION_FAILEDとして呼び出し元に伝搬する。
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if user.IsVerified {
		return model.NewAlreadyVerifiedError()
	}

	newToken := uuid.New().String()
	user.VerificationToken = &newToken
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if err := s.notifier.SendVerificationEmail(ctx, user.Email, newToken); err != nil {
		slog.Error("failed to resend verification email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordEmailSendFailure()
		return model.NewNotificationFailedError()
	}

	slog.Info("verification email resent", slog.String("user_id", user.ID))
	return nil
}

// ValidateExpertAccount は管理者によるexpertアカウントの承認。
// メール確認済みのexpertのみ承認できる。既に承認済みの場合は
// エラーではなくno-op。管理者権限の確認は呼び出し側（ハンドラー）の責務。
func (s *Service) ValidateExpertAccount(ctx context.Context, expertID string) error {
	user, err := s.userRepo.FindByID(ctx, expertID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if user.Role != model.RoleExpert {
		return model.NewNotAnExpertError()
	}
	if !user.IsVerified {
		return model.NewNotYetVerifiedError()
	}
	if user.IsActive {
		// 再承認は冪等: 状態を変えずに成功させる
		slog.Info("expert already active", slog.String("user_id", user.ID))
		return nil
	}

	user.IsActive = true
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("expert account activated", slog.String("user_id", user.ID))
	return nil
}

// ProfileUpdateRequest はプロフィール部分更新の入力。
// nilのフィールドは変更しない。ProfileImage/CvPDFはbase64文字列で受け取り、
// 空文字列の場合は削除を意味する。
type ProfileUpdateRequest struct {
	Nom                *string
	Prenom             *string
	Phone              *string
	ProfileDescription *string
	NiveauEtude        *string
	Experience         *string
	LinkedinURL        *string
	PortfolioURL       *string
	Certifications     []string
	Domaines           []string
	ProfileImage       *string
	CvPDF              *string
}

// UpdateProfile はアカウント所有者によるプロフィールの部分更新。
// メールアドレス、パスワード、役割、確認・承認フラグはこの経路では
// 決して変更されない。base64が不正な場合は何も書き込まずに失敗する。
func (s *Service) UpdateProfile(ctx context.Context, ownerEmail string, req ProfileUpdateRequest) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	// バイナリフィールドは書き込み前にデコードを済ませる
	// （途中で失敗した場合に部分的な更新を残さないため）
	var profileImage, cvPDF []byte
	if req.ProfileImage != nil && *req.ProfileImage != "" {
		profileImage, err = base64.StdEncoding.DecodeString(*req.ProfileImage)
		if err != nil {
			return nil, model.NewValidationError("プロフィール画像のbase64が不正です")
		}
	}
	if req.CvPDF != nil && *req.CvPDF != "" {
		cvPDF, err = base64.StdEncoding.DecodeString(*req.CvPDF)
		if err != nil {
			return nil, model.NewValidationError("CVのbase64が不正です")
		}
	}

	if req.Nom != nil {
		user.Nom = *req.Nom
	}
	if req.Prenom != nil {
		user.Prenom = *req.Prenom
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.ProfileDescription != nil {
		user.ProfileDescription = s.sanitizer.Sanitize(*req.ProfileDescription)
	}
	if req.NiveauEtude != nil {
		user.NiveauEtude = *req.NiveauEtude
	}
	if req.Experience != nil {
		user.Experience = *req.Experience
	}
	if req.LinkedinURL != nil {
		user.LinkedinURL = *req.LinkedinURL
	}
	if req.PortfolioURL != nil {
		user.PortfolioURL = *req.PortfolioURL
	}
	if req.Certifications != nil {
		user.Certifications = req.Certifications
	}
	if req.Domaines != nil {
		user.Domaines = req.Domaines
	}
	if req.ProfileImage != nil {
		user.ProfileImage = profileImage
	}
	if req.CvPDF != nil {
		user.CvPDF = cvPDF
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("profile updated", slog.String("user_id", user.ID))
	return user, nil
}

// GetByID は指定IDのユーザーを返す。見つからない場合はUSER_NOT_FOUND。
func (s *Service) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// GetByEmail は指定メールアドレスのユーザーを返す。見つからない場合はUSER_NOT_FOUND。
func (s *Service) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// PendingExperts はメール確認済みで管理者承認待ちのexpert一覧を返す。
func (s *Service) PendingExperts(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.ListPendingExperts(ctx)
}

// ActiveExperts は承認済みのexpert一覧を返す。
func (s *Service) ActiveExperts(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.ListActiveExperts(ctx)
}

// VerifiedExperts はメール確認済みの全expert一覧を返す。
func (s *Service) VerifiedExperts(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.ListVerifiedExperts(ctx)
}
