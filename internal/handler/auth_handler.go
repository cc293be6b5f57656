package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/skillmarket/internal/account"
	"github.com/hitoshi/skillmarket/internal/model"
)

// AccountServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	RegisterApprenant(ctx context.Context, req account.RegisterRequest) (*account.AuthResponse, error)
	RegisterExpert(ctx context.Context, req account.RegisterRequest) (*account.AuthResponse, error)
	Authenticate(ctx context.Context, email, rawPassword string) (*account.AuthResponse, error)
	VerifyAccount(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ValidateResetToken(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// SessionServiceInterface はログアウトに必要なサービスインターフェース。
type SessionServiceInterface interface {
	Logout(ctx context.Context, tokenValue string) error
}

// AuthHandler はアカウント登録・認証関連のHTTPハンドラー。
type AuthHandler struct {
	accounts AccountServiceInterface
	sessions SessionServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(accounts AccountServiceInterface, sessions SessionServiceInterface) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
	}
}

// registerRequest は登録リクエストのボディ。
type registerRequest struct {
	Nom      string `json:"nom"`
	Prenom   string `json:"prenom"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`

	// expert用フィールド
	ProfileDescription string   `json:"profile_description"`
	NiveauEtude        string   `json:"niveau_etude"`
	Experience         string   `json:"experience"`
	LinkedinURL        string   `json:"linkedin_url"`
	PortfolioURL       string   `json:"portfolio_url"`
	Certifications     []string `json:"certifications"`
	Domaines           []string `json:"domaines"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// emailRequest はメールアドレスのみを受け取るリクエストのボディ。
type emailRequest struct {
	Email string `json:"email"`
}

// resetPasswordRequest はパスワード再設定リクエストのボディ。
type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IsVerified   bool   `json:"is_verified"`
	IsActive     bool   `json:"is_active"`
}

// toAuthResponse はサービス層の結果をAPIレスポンスに変換する。
func toAuthResponse(res *account.AuthResponse) authResponse {
	return authResponse{
		UserID:       res.UserID,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		IsVerified:   res.IsVerified,
		IsActive:     res.IsActive,
	}
}

// toRegisterRequest はAPIリクエストをサービス層の入力に変換する。
func (req registerRequest) toServiceRequest() account.RegisterRequest {
	return account.RegisterRequest{
		Nom:                req.Nom,
		Prenom:             req.Prenom,
		Email:              req.Email,
		Password:           req.Password,
		Phone:              req.Phone,
		ProfileDescription: req.ProfileDescription,
		NiveauEtude:        req.NiveauEtude,
		Experience:         req.Experience,
		LinkedinURL:        req.LinkedinURL,
		PortfolioURL:       req.PortfolioURL,
		Certifications:     req.Certifications,
		Domaines:           req.Domaines,
	}
}

// RegisterApprenant は受講者アカウントの登録を処理する。
// POST /api/auth/register/apprenant
func (h *AuthHandler) RegisterApprenant(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	res, err := h.accounts.RegisterApprenant(r.Context(), req.toServiceRequest())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

// RegisterExpert は講師アカウントの登録を処理する。
// POST /api/auth/register/expert
func (h *AuthHandler) RegisterExpert(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	res, err := h.accounts.RegisterExpert(r.Context(), req.toServiceRequest())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

// Login はメールアドレスとパスワードによるログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	res, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// Verify は確認トークンによるメール所有確認を処理する。
// GET /api/auth/verify?token=xxx
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("tokenパラメータが必要です"))
		return
	}

	if err := h.accounts.VerifyAccount(r.Context(), token); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "アカウントを確認しました。",
	})
}

// ResendVerification は確認メールの再送信を処理する。
// POST /api/auth/resend-verification
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	if err := h.accounts.ResendVerification(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "確認メールを再送信しました。",
	})
}

// Logout は提示されたトークンの系列を失効させる。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		writeUnauthorized(w)
		return
	}

	if err := h.sessions.Logout(r.Context(), strings.TrimPrefix(header, prefix)); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset はパスワード再設定メールの送信を処理する。
// POST /api/auth/password-reset/request
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "パスワード再設定メールを送信しました。",
	})
}

// ValidateResetToken は再設定トークンの有効性を返す。
// GET /api/auth/password-reset/validate?token=xxx
func (h *AuthHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("tokenパラメータが必要です"))
		return
	}

	valid, err := h.accounts.ValidateResetToken(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// ResetPassword は再設定トークンによるパスワード更新を処理する。
// POST /api/auth/password-reset/confirm
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "パスワードを更新しました。",
	})
}
