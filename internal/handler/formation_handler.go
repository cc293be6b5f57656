package handler

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skillmarket/internal/formation"
	"github.com/hitoshi/skillmarket/internal/middleware"
	"github.com/hitoshi/skillmarket/internal/model"
)

// FormationServiceInterface は研修ハンドラーが必要とするサービスインターフェース。
type FormationServiceInterface interface {
	Create(ctx context.Context, callerID string, req formation.CreateRequest) (*model.Formation, error)
	Update(ctx context.Context, formationID, callerID string, req formation.UpdateRequest) (*model.Formation, error)
	Delete(ctx context.Context, formationID, callerID string) error
	Approve(ctx context.Context, formationID string) error
	Reject(ctx context.Context, formationID string) error
	Start(ctx context.Context, formationID, callerID string) error
	Finish(ctx context.Context, formationID, callerID string) error
	Enroll(ctx context.Context, formationID, learnerID string) error
	AddReview(ctx context.Context, formationID, reviewerID, commentaire string, note int) (*model.Avis, error)
	GetByID(ctx context.Context, formationID string) (*model.Formation, error)
	ListApproved(ctx context.Context) ([]*model.Formation, error)
	ListPending(ctx context.Context) ([]*model.Formation, error)
	ListMine(ctx context.Context, formateurID string) ([]*model.Formation, error)
	ListMyEnrollments(ctx context.Context, userID string) ([]*model.Formation, error)
	ListReviewsFor(ctx context.Context, formationID string) ([]*model.Avis, error)
}

// FormationHandler は研修ライフサイクルのHTTPハンドラー。
type FormationHandler struct {
	service FormationServiceInterface
}

// NewFormationHandler はFormationHandlerを生成する。
func NewFormationHandler(service FormationServiceInterface) *FormationHandler {
	return &FormationHandler{
		service: service,
	}
}

// createFormationRequest は研修作成リクエストのボディ。
type createFormationRequest struct {
	Titre                 string    `json:"titre"`
	Description           string    `json:"description"`
	DateDebut             time.Time `json:"date_debut"`
	DateFin               time.Time `json:"date_fin"`
	Duree                 int       `json:"duree"`
	NombreMaxParticipants int       `json:"nombre_max_participants"`
	Prix                  float64   `json:"prix"`
	Categorie             string    `json:"categorie"`
	ImageFormation        string    `json:"image_formation"`
}

// updateFormationRequest は研修部分更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateFormationRequest struct {
	Titre                 *string    `json:"titre"`
	Description           *string    `json:"description"`
	DateDebut             *time.Time `json:"date_debut"`
	DateFin               *time.Time `json:"date_fin"`
	Duree                 *int       `json:"duree"`
	NombreMaxParticipants *int       `json:"nombre_max_participants"`
	Prix                  *float64   `json:"prix"`
	Categorie             *string    `json:"categorie"`
	ImageFormation        *string    `json:"image_formation"`
}

// addReviewRequest はレビュー投稿リクエストのボディ。
type addReviewRequest struct {
	Commentaire string `json:"commentaire"`
	Note        int    `json:"note"`
}

// formationResponse は研修情報のAPIレスポンス。
type formationResponse struct {
	ID                    string    `json:"id"`
	Titre                 string    `json:"titre"`
	Description           string    `json:"description"`
	DateDebut             time.Time `json:"date_debut"`
	DateFin               time.Time `json:"date_fin"`
	Duree                 int       `json:"duree"`
	NombreMaxParticipants int       `json:"nombre_max_participants"`
	Prix                  float64   `json:"prix"`
	Categorie             string    `json:"categorie"`
	ImageFormation        string    `json:"image_formation,omitempty"`
	URLMeet               *string   `json:"url_meet"`
	Statut                string    `json:"statut"`
	FormateurID           string    `json:"formateur_id"`
	CreatedAt             time.Time `json:"created_at"`
}

// avisResponse はレビューのAPIレスポンス。
type avisResponse struct {
	ID           string    `json:"id"`
	FormationID  string    `json:"formation_id"`
	UserID       string    `json:"user_id"`
	Commentaire  string    `json:"commentaire"`
	Note         int       `json:"note"`
	DateCreation time.Time `json:"date_creation"`
}

// toFormationResponse はドメインモデルをAPIレスポンスに変換する。
func toFormationResponse(f *model.Formation) formationResponse {
	res := formationResponse{
		ID:                    f.ID,
		Titre:                 f.Titre,
		Description:           f.Description,
		DateDebut:             f.DateDebut,
		DateFin:               f.DateFin,
		Duree:                 f.Duree,
		NombreMaxParticipants: f.NombreMaxParticipants,
		Prix:                  f.Prix,
		Categorie:             string(f.Categorie),
		URLMeet:               f.URLMeet,
		Statut:                string(f.Statut),
		FormateurID:           f.FormateurID,
		CreatedAt:             f.CreatedAt,
	}
	if len(f.ImageFormation) > 0 {
		res.ImageFormation = base64.StdEncoding.EncodeToString(f.ImageFormation)
	}
	return res
}

// toFormationListResponse は研修一覧をAPIレスポンスに変換する。
func toFormationListResponse(formations []*model.Formation) []formationResponse {
	results := make([]formationResponse, len(formations))
	for i, f := range formations {
		results[i] = toFormationResponse(f)
	}
	return results
}

// toAvisResponse はレビューをAPIレスポンスに変換する。
func toAvisResponse(a *model.Avis) avisResponse {
	return avisResponse{
		ID:           a.ID,
		FormationID:  a.FormationID,
		UserID:       a.UserID,
		Commentaire:  a.Commentaire,
		Note:         a.Note,
		DateCreation: a.DateCreation,
	}
}

// Create は研修の作成を処理する。
// POST /api/formations
func (h *FormationHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createFormationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	var image []byte
	if req.ImageFormation != "" {
		image, err = base64.StdEncoding.DecodeString(req.ImageFormation)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("研修画像のbase64が不正です"))
			return
		}
	}

	created, err := h.service.Create(r.Context(), identity.UserID, formation.CreateRequest{
		Titre:                 req.Titre,
		Description:           req.Description,
		DateDebut:             req.DateDebut,
		DateFin:               req.DateFin,
		Duree:                 req.Duree,
		NombreMaxParticipants: req.NombreMaxParticipants,
		Prix:                  req.Prix,
		Categorie:             model.FormationCategory(req.Categorie),
		ImageFormation:        image,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFormationResponse(created))
}

// Update は研修の部分更新を処理する。
// PUT /api/formations/{id}
func (h *FormationHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateFormationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	var categorie *model.FormationCategory
	if req.Categorie != nil {
		c := model.FormationCategory(*req.Categorie)
		categorie = &c
	}

	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), identity.UserID, formation.UpdateRequest{
		Titre:                 req.Titre,
		Description:           req.Description,
		DateDebut:             req.DateDebut,
		DateFin:               req.DateFin,
		Duree:                 req.Duree,
		NombreMaxParticipants: req.NombreMaxParticipants,
		Prix:                  req.Prix,
		Categorie:             categorie,
		ImageFormation:        req.ImageFormation,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFormationResponse(updated))
}

// Delete は研修の削除を処理する。
// DELETE /api/formations/{id}
func (h *FormationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), identity.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Approve は管理者による研修の承認を処理する。
// POST /api/admin/formations/{id}/approve
func (h *FormationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Approve(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "研修を承認しました。",
	})
}

// Reject は管理者による研修の却下を処理する。
// POST /api/admin/formations/{id}/reject
func (h *FormationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reject(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "研修を却下しました。",
	})
}

// Start は研修の開講を処理する。
// POST /api/formations/{id}/start
func (h *FormationHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Start(r.Context(), chi.URLParam(r, "id"), identity.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "研修を開講しました。",
	})
}

// Finish は研修の終了を処理する。
// POST /api/formations/{id}/finish
func (h *FormationHandler) Finish(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Finish(r.Context(), chi.URLParam(r, "id"), identity.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "研修を終了しました。",
	})
}

// Enroll は受講登録を処理する。
// POST /api/formations/{id}/enroll
func (h *FormationHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Enroll(r.Context(), chi.URLParam(r, "id"), identity.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "受講登録が完了しました。",
	})
}

// AddReview はレビュー投稿を処理する。
// POST /api/formations/{id}/avis
func (h *FormationHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req addReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	avis, err := h.service.AddReview(r.Context(), chi.URLParam(r, "id"), identity.UserID, req.Commentaire, req.Note)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAvisResponse(avis))
}

// Get は研修の詳細を返す。
// GET /api/formations/{id}
func (h *FormationHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFormationResponse(f))
}

// ListApproved は受講登録可能な研修一覧を返す。
// GET /api/formations
func (h *FormationHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	formations, err := h.service.ListApproved(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFormationListResponse(formations))
}

// ListPending は管理者向けの承認待ち研修一覧を返す。
// GET /api/admin/formations/pending
func (h *FormationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	formations, err := h.service.ListPending(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFormationListResponse(formations))
}

// ListMine はログイン中のformateurが所有する研修一覧を返す。
// GET /api/formations/mine
func (h *FormationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	formations, err := h.service.ListMine(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFormationListResponse(formations))
}

// ListMyEnrollments はログイン中のユーザーが受講登録している研修一覧を返す。
// GET /api/formations/enrollments
func (h *FormationHandler) ListMyEnrollments(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	formations, err := h.service.ListMyEnrollments(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFormationListResponse(formations))
}

// ListReviews は研修のレビュー一覧を返す。
// GET /api/formations/{id}/avis
func (h *FormationHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.ListReviewsFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]avisResponse, len(reviews))
	for i, a := range reviews {
		results[i] = toAvisResponse(a)
	}
	writeJSON(w, http.StatusOK, results)
}
