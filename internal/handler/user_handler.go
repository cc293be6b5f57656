package handler

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skillmarket/internal/account"
	"github.com/hitoshi/skillmarket/internal/middleware"
	"github.com/hitoshi/skillmarket/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, ownerEmail string, req account.ProfileUpdateRequest) (*model.User, error)
	ValidateExpertAccount(ctx context.Context, expertID string) error
	PendingExperts(ctx context.Context) ([]*model.User, error)
	ActiveExperts(ctx context.Context) ([]*model.User, error)
	VerifiedExperts(ctx context.Context) ([]*model.User, error)
}

// UserHandler はプロフィールとexpert管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
// バイナリフィールドはbase64文字列で返す。パスワードと確認トークンは含めない。
type userResponse struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	Nom                string   `json:"nom"`
	Prenom             string   `json:"prenom"`
	Phone              string   `json:"phone,omitempty"`
	Role               string   `json:"role"`
	IsVerified         bool     `json:"is_verified"`
	IsActive           bool     `json:"is_active"`
	ProfileDescription string   `json:"profile_description,omitempty"`
	NiveauEtude        string   `json:"niveau_etude,omitempty"`
	Experience         string   `json:"experience,omitempty"`
	LinkedinURL        string   `json:"linkedin_url,omitempty"`
	PortfolioURL       string   `json:"portfolio_url,omitempty"`
	Certifications     []string `json:"certifications,omitempty"`
	Domaines           []string `json:"domaines,omitempty"`
	ProfileImage       string   `json:"profile_image,omitempty"`
	CvPDF              string   `json:"cv_pdf,omitempty"`
}

// toUserResponse はドメインモデルをAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	res := userResponse{
		ID:                 user.ID,
		Email:              user.Email,
		Nom:                user.Nom,
		Prenom:             user.Prenom,
		Phone:              user.Phone,
		Role:               string(user.Role),
		IsVerified:         user.IsVerified,
		IsActive:           user.IsActive,
		ProfileDescription: user.ProfileDescription,
		NiveauEtude:        user.NiveauEtude,
		Experience:         user.Experience,
		LinkedinURL:        user.LinkedinURL,
		PortfolioURL:       user.PortfolioURL,
		Certifications:     user.Certifications,
		Domaines:           user.Domaines,
	}
	if len(user.ProfileImage) > 0 {
		res.ProfileImage = base64.StdEncoding.EncodeToString(user.ProfileImage)
	}
	if len(user.CvPDF) > 0 {
		res.CvPDF = base64.StdEncoding.EncodeToString(user.CvPDF)
	}
	return res
}

// toUserListResponse はユーザー一覧をAPIレスポンスに変換する。
func toUserListResponse(users []*model.User) []userResponse {
	results := make([]userResponse, len(users))
	for i, user := range users {
		results[i] = toUserResponse(user)
	}
	return results
}

// profileUpdateRequest はプロフィール部分更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type profileUpdateRequest struct {
	Nom                *string  `json:"nom"`
	Prenom             *string  `json:"prenom"`
	Phone              *string  `json:"phone"`
	ProfileDescription *string  `json:"profile_description"`
	NiveauEtude        *string  `json:"niveau_etude"`
	Experience         *string  `json:"experience"`
	LinkedinURL        *string  `json:"linkedin_url"`
	PortfolioURL       *string  `json:"portfolio_url"`
	Certifications     []string `json:"certifications"`
	Domaines           []string `json:"domaines"`
	ProfileImage       *string  `json:"profile_image"`
	CvPDF              *string  `json:"cv_pdf"`
}

// Me は現在のログインユーザーの情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	user, err := h.service.GetByEmail(r.Context(), identity.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateProfile は現在のログインユーザーのプロフィールを部分更新する。
// PUT /api/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), identity.Email, account.ProfileUpdateRequest{
		Nom:                req.Nom,
		Prenom:             req.Prenom,
		Phone:              req.Phone,
		ProfileDescription: req.ProfileDescription,
		NiveauEtude:        req.NiveauEtude,
		Experience:         req.Experience,
		LinkedinURL:        req.LinkedinURL,
		PortfolioURL:       req.PortfolioURL,
		Certifications:     req.Certifications,
		Domaines:           req.Domaines,
		ProfileImage:       req.ProfileImage,
		CvPDF:              req.CvPDF,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ListActiveExperts は承認済みexpert一覧を返す。
// GET /api/experts
func (h *UserHandler) ListActiveExperts(w http.ResponseWriter, r *http.Request) {
	experts, err := h.service.ActiveExperts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserListResponse(experts))
}

// ListPendingExperts は管理者向けの承認待ちexpert一覧を返す。
// GET /api/admin/experts/pending
func (h *UserHandler) ListPendingExperts(w http.ResponseWriter, r *http.Request) {
	experts, err := h.service.PendingExperts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserListResponse(experts))
}

// ListVerifiedExperts は管理者向けのメール確認済みexpert一覧を返す。
// GET /api/admin/experts
func (h *UserHandler) ListVerifiedExperts(w http.ResponseWriter, r *http.Request) {
	experts, err := h.service.VerifiedExperts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserListResponse(experts))
}

// ValidateExpert は管理者によるexpertアカウントの承認を処理する。
// POST /api/admin/experts/{id}/validate
func (h *UserHandler) ValidateExpert(w http.ResponseWriter, r *http.Request) {
	expertID := chi.URLParam(r, "id")

	if err := h.service.ValidateExpertAccount(r.Context(), expertID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "expertアカウントを承認しました。",
	})
}
