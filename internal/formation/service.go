// Package formation は研修ライフサイクルのドメインロジックを提供する。
// 状態機械の遷移ガード、定員付き受講登録、参加資格付きレビューを担う。
//
//	en_attente --approve--> approuvee --start--> en_cours --finish--> terminee
//	en_attente --reject--> rejetee
package formation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/skillmarket/internal/model"
	"github.com/hitoshi/skillmarket/internal/repository"
)

// MeetProvisioner は外部会議URLの発行インターフェース。
// 失敗は非致命で、研修はURLなしで作成される。
type MeetProvisioner interface {
	CreateMeetingLink(ctx context.Context, titre, description string, debut, fin time.Time) (string, error)
}

// Sanitizer は自由記述フィールドのサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Metrics は研修関連メトリクスの記録インターフェース。
type Metrics interface {
	RecordFormationCreated()
	RecordEnrollment()
	RecordProvisionFailure()
}

// Service は研修ライフサイクルのサービス層。
// 呼び出し元の身元はすべて明示的なパラメータで受け取る
// （暗黙の認証コンテキストには依存しない）。
type Service struct {
	formationRepo repository.FormationRepository
	avisRepo      repository.AvisRepository
	userRepo      repository.UserRepository
	provisioner   MeetProvisioner
	sanitizer     Sanitizer
	metrics       Metrics
}

// NewService はServiceを生成する。
func NewService(
	formationRepo repository.FormationRepository,
	avisRepo repository.AvisRepository,
	userRepo repository.UserRepository,
	provisioner MeetProvisioner,
	sanitizer Sanitizer,
	metrics Metrics,
) *Service {
	return &Service{
		formationRepo: formationRepo,
		avisRepo:      avisRepo,
		userRepo:      userRepo,
		provisioner:   provisioner,
		sanitizer:     sanitizer,
		metrics:       metrics,
	}
}

// CreateRequest は研修作成の入力。
type CreateRequest struct {
	Titre                 string
	Description           string
	DateDebut             time.Time
	DateFin               time.Time
	Duree                 int
	NombreMaxParticipants int
	Prix                  float64
	Categorie             model.FormationCategory
	ImageFormation        []byte
}

// Create はexpertが新しい研修をen_attente状態で作成する。
// 呼び出し元はメール確認済みかつ承認済みのexpertでなければならない。
// 会議URLの発行はベストエフォート: 失敗しても研修の作成は成立する。
func (s *Service) Create(ctx context.Context, callerID string, req CreateRequest) (*model.Formation, error) {
	caller, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find caller: %w", err)
	}
	if caller == nil {
		return nil, model.NewUserNotFoundError()
	}
	if caller.Role != model.RoleExpert {
		return nil, model.NewAccessDeniedError("expertのみ研修を作成できます")
	}
	if !caller.IsVerified || !caller.IsActive {
		return nil, model.NewAccessDeniedError("承認済みのexpertアカウントが必要です")
	}

	if err := validateDescriptiveFields(req.Titre, req.DateDebut, req.DateFin, req.NombreMaxParticipants, req.Prix, req.Categorie); err != nil {
		return nil, err
	}

	// 会議URLの発行は永続化の前段として隔離する。失敗はnil URLに退化し、
	// 主たる書き込みを決してロールバックさせない
	var urlMeet *string
	if link, err := s.provisioner.CreateMeetingLink(ctx, req.Titre, req.Description, req.DateDebut, req.DateFin); err != nil {
		slog.Warn("failed to provision meeting link",
			slog.String("titre", req.Titre),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordProvisionFailure()
	} else {
		urlMeet = &link
	}

	now := time.Now()
	formation := &model.Formation{
		ID:                    uuid.New().String(),
		Titre:                 req.Titre,
		Description:           s.sanitizer.Sanitize(req.Description),
		DateDebut:             req.DateDebut,
		DateFin:               req.DateFin,
		Duree:                 req.Duree,
		NombreMaxParticipants: req.NombreMaxParticipants,
		Prix:                  req.Prix,
		Categorie:             req.Categorie,
		ImageFormation:        req.ImageFormation,
		URLMeet:               urlMeet,
		Statut:                model.StatusEnAttente,
		FormateurID:           caller.ID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.formationRepo.Create(ctx, formation); err != nil {
		return nil, fmt.Errorf("failed to create formation: %w", err)
	}

	slog.Info("formation created",
		slog.String("formation_id", formation.ID),
		slog.String("formateur_id", caller.ID),
		slog.Bool("has_meet_url", urlMeet != nil),
	)
	s.metrics.RecordFormationCreated()

	return formation, nil
}

// Approve は管理者が承認待ちの研修を承認する。
// en_attente以外の状態からの承認はINVALID_TRANSITION
// （状態の無条件上書きは許さない）。管理者権限の確認は呼び出し側の責務。
func (s *Service) Approve(ctx context.Context, formationID string) error {
	return s.transition(ctx, formationID, model.StatusEnAttente, model.StatusApprouvee, "承認")
}

// Reject は管理者が承認待ちの研修を却下する。rejeteeは終端状態。
func (s *Service) Reject(ctx context.Context, formationID string) error {
	return s.transition(ctx, formationID, model.StatusEnAttente, model.StatusRejetee, "却下")
}

// Start はformateurが承認済みの研修を開講する。所有者のみ実行できる。
func (s *Service) Start(ctx context.Context, formationID, callerID string) error {
	if err := s.requireOwner(ctx, formationID, callerID); err != nil {
		return err
	}
	return s.transition(ctx, formationID, model.StatusApprouvee, model.StatusEnCours, "開講")
}

// Finish はformateurが開講中の研修を終了する。termineeは終端状態で、
// 以降はレビュー追加のみ受け付ける。
func (s *Service) Finish(ctx context.Context, formationID, callerID string) error {
	if err := s.requireOwner(ctx, formationID, callerID); err != nil {
		return err
	}
	return s.transition(ctx, formationID, model.StatusEnCours, model.StatusTerminee, "終了")
}

// Enroll はapprenantが承認済みの研修に受講登録する。
// 状態・定員・重複のチェックと参加者追加は永続化層で単一トランザクション
// として実行されるため、同時登録でも定員超過は起こらない。
func (s *Service) Enroll(ctx context.Context, formationID, learnerID string) error {
	learner, err := s.userRepo.FindByID(ctx, learnerID)
	if err != nil {
		return fmt.Errorf("failed to find learner: %w", err)
	}
	if learner == nil {
		return model.NewUserNotFoundError()
	}
	if learner.Role != model.RoleApprenant {
		return model.NewAccessDeniedError("apprenantのみ受講登録できます")
	}

	err = s.formationRepo.AddParticipant(ctx, formationID, learnerID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrFormationNotFound):
		return model.NewFormationNotFoundError(formationID)
	case errors.Is(err, repository.ErrNotApprouvee):
		return s.transitionErrorFor(ctx, formationID, "受講登録")
	case errors.Is(err, repository.ErrCapacityExceeded):
		return model.NewCapacityExceededError()
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		return model.NewAlreadyEnrolledError()
	default:
		return fmt.Errorf("failed to add participant: %w", err)
	}

	slog.Info("learner enrolled",
		slog.String("formation_id", formationID),
		slog.String("user_id", learnerID),
	)
	s.metrics.RecordEnrollment()
	return nil
}

// AddReview は終了した研修の参加者がレビューを投稿する。
// (研修, 投稿者)の組につき高々1件。noteは1〜5。
func (s *Service) AddReview(ctx context.Context, formationID, reviewerID, commentaire string, note int) (*model.Avis, error) {
	if note < 1 || note > 5 {
		return nil, model.NewValidationError("評価は1から5の整数にしてください")
	}

	formation, err := s.formationRepo.FindByID(ctx, formationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find formation: %w", err)
	}
	if formation == nil {
		return nil, model.NewFormationNotFoundError(formationID)
	}
	if formation.Statut != model.StatusTerminee {
		return nil, model.NewInvalidTransitionError(formation.Statut, "レビュー投稿")
	}

	isParticipant, err := s.formationRepo.IsParticipant(ctx, formationID, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check participant: %w", err)
	}
	if !isParticipant {
		return nil, model.NewAccessDeniedError("この研修の参加者のみレビューを投稿できます")
	}

	avis := &model.Avis{
		ID:           uuid.New().String(),
		FormationID:  formationID,
		UserID:       reviewerID,
		Commentaire:  s.sanitizer.Sanitize(commentaire),
		Note:         note,
		DateCreation: time.Now(),
	}
	if err := s.avisRepo.Create(ctx, avis); err != nil {
		// 同時投稿との競合は一意制約で検出される
		if errors.Is(err, repository.ErrDuplicateReview) {
			return nil, model.NewDuplicateReviewError()
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	slog.Info("review added",
		slog.String("formation_id", formationID),
		slog.String("user_id", reviewerID),
		slog.Int("note", note),
	)
	return avis, nil
}

// UpdateRequest は研修の部分更新の入力。nilのフィールドは変更しない。
// ImageFormationはbase64文字列で受け取り、空文字列は削除を意味する。
type UpdateRequest struct {
	Titre                 *string
	Description           *string
	DateDebut             *time.Time
	DateFin               *time.Time
	Duree                 *int
	NombreMaxParticipants *int
	Prix                  *float64
	Categorie             *model.FormationCategory
	ImageFormation        *string
}

// Update は所有者による記述フィールドの部分更新。
// statut、formateur、参加者、レビューはこの経路では決して変更されない。
func (s *Service) Update(ctx context.Context, formationID, callerID string, req UpdateRequest) (*model.Formation, error) {
	formation, err := s.formationRepo.FindByID(ctx, formationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find formation: %w", err)
	}
	if formation == nil {
		return nil, model.NewFormationNotFoundError(formationID)
	}
	if formation.FormateurID != callerID {
		return nil, model.NewAccessDeniedError("自分の研修のみ更新できます")
	}

	var image []byte
	if req.ImageFormation != nil && *req.ImageFormation != "" {
		image, err = base64.StdEncoding.DecodeString(*req.ImageFormation)
		if err != nil {
			return nil, model.NewValidationError("研修画像のbase64が不正です")
		}
	}

	if req.Titre != nil {
		formation.Titre = *req.Titre
	}
	if req.Description != nil {
		formation.Description = s.sanitizer.Sanitize(*req.Description)
	}
	if req.DateDebut != nil {
		formation.DateDebut = *req.DateDebut
	}
	if req.DateFin != nil {
		formation.DateFin = *req.DateFin
	}
	if req.Duree != nil {
		formation.Duree = *req.Duree
	}
	if req.NombreMaxParticipants != nil {
		formation.NombreMaxParticipants = *req.NombreMaxParticipants
	}
	if req.Prix != nil {
		formation.Prix = *req.Prix
	}
	if req.Categorie != nil {
		formation.Categorie = *req.Categorie
	}
	if req.ImageFormation != nil {
		formation.ImageFormation = image
	}

	if err := validateDescriptiveFields(formation.Titre, formation.DateDebut, formation.DateFin, formation.NombreMaxParticipants, formation.Prix, formation.Categorie); err != nil {
		return nil, err
	}
	formation.UpdatedAt = time.Now()

	if err := s.formationRepo.Update(ctx, formation); err != nil {
		return nil, fmt.Errorf("failed to update formation: %w", err)
	}

	slog.Info("formation updated", slog.String("formation_id", formationID))
	return formation, nil
}

// Delete は所有者による研修の削除。関連するレビューと参加登録も削除される。
func (s *Service) Delete(ctx context.Context, formationID, callerID string) error {
	formation, err := s.formationRepo.FindByID(ctx, formationID)
	if err != nil {
		return fmt.Errorf("failed to find formation: %w", err)
	}
	if formation == nil {
		return model.NewFormationNotFoundError(formationID)
	}
	if formation.FormateurID != callerID {
		return model.NewAccessDeniedError("自分の研修のみ削除できます")
	}

	if err := s.formationRepo.Delete(ctx, formationID); err != nil {
		return fmt.Errorf("failed to delete formation: %w", err)
	}

	slog.Info("formation deleted", slog.String("formation_id", formationID))
	return nil
}

// GetByID は指定IDの研修を返す。見つからない場合はFORMATION_NOT_FOUND。
func (s *Service) GetByID(ctx context.Context, formationID string) (*model.Formation, error) {
	formation, err := s.formationRepo.FindByID(ctx, formationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find formation: %w", err)
	}
	if formation == nil {
		return nil, model.NewFormationNotFoundError(formationID)
	}
	return formation, nil
}

// ListApproved は承認済みで受講登録可能な研修一覧を返す。
func (s *Service) ListApproved(ctx context.Context) ([]*model.Formation, error) {
	return s.formationRepo.ListByStatut(ctx, model.StatusApprouvee)
}

// ListPending は管理者向けの承認待ち研修一覧を返す。
func (s *Service) ListPending(ctx context.Context) ([]*model.Formation, error) {
	return s.formationRepo.ListByStatut(ctx, model.StatusEnAttente)
}

// ListMine は指定formateurが所有する研修一覧を返す。
func (s *Service) ListMine(ctx context.Context, formateurID string) ([]*model.Formation, error) {
	return s.formationRepo.ListByFormateur(ctx, formateurID)
}

// ListMyEnrollments は指定ユーザーが受講登録している研修一覧を返す。
func (s *Service) ListMyEnrollments(ctx context.Context, userID string) ([]*model.Formation, error) {
	return s.formationRepo.ListByParticipant(ctx, userID)
}

// ListReviewsFor は研修のレビュー一覧を返す。研修が存在しない場合は
// FORMATION_NOT_FOUND。
func (s *Service) ListReviewsFor(ctx context.Context, formationID string) ([]*model.Avis, error) {
	formation, err := s.formationRepo.FindByID(ctx, formationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find formation: %w", err)
	}
	if formation == nil {
		return nil, model.NewFormationNotFoundError(formationID)
	}
	return s.avisRepo.ListByFormation(ctx, formationID)
}

// transition は状態遷移をcompare-and-swapで実行する。
// 遷移失敗時は現在の状態を取得して、未検出か遷移違反かを区別する。
func (s *Service) transition(ctx context.Context, formationID string, from, to model.FormationStatus, operation string) error {
	err := s.formationRepo.UpdateStatus(ctx, formationID, from, to)
	if err == nil {
		slog.Info("formation status changed",
			slog.String("formation_id", formationID),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
		return nil
	}
	if errors.Is(err, repository.ErrStatusConflict) {
		return s.transitionErrorFor(ctx, formationID, operation)
	}
	return fmt.Errorf("failed to update status: %w", err)
}

// transitionErrorFor は遷移失敗の原因（未検出 or 状態違反）を
// 現在の状態から組み立てる。
func (s *Service) transitionErrorFor(ctx context.Context, formationID, operation string) error {
	formation, err := s.formationRepo.FindByID(ctx, formationID)
	if err != nil {
		return fmt.Errorf("failed to find formation: %w", err)
	}
	if formation == nil {
		return model.NewFormationNotFoundError(formationID)
	}
	return model.NewInvalidTransitionError(formation.Statut, operation)
}

// requireOwner は呼び出し元が研修の所有者であることを確認する。
func (s *Service) requireOwner(ctx context.Context, formationID, callerID string) error {
	formation, err := s.formationRepo.FindByID(ctx, formationID)
	if err != nil {
		return fmt.Errorf("failed to find formation: %w", err)
	}
	if formation == nil {
		return model.NewFormationNotFoundError(formationID)
	}
	if formation.FormateurID != callerID {
		return model.NewAccessDeniedError("自分の研修のみ操作できます")
	}
	return nil
}

// validateDescriptiveFields は作成・更新共通の記述フィールド検証。
func validateDescriptiveFields(titre string, debut, fin time.Time, maxParticipants int, prix float64, categorie model.FormationCategory) error {
	if titre == "" {
		return model.NewValidationError("タイトルは必須です")
	}
	if !debut.Before(fin) {
		return model.NewValidationError("開始日時は終了日時より前にしてください")
	}
	if maxParticipants <= 0 {
		return model.NewValidationError("定員は1以上にしてください")
	}
	if prix < 0 {
		return model.NewValidationError("価格は0以上にしてください")
	}
	switch categorie {
	case model.CategoryDeveloppement, model.CategoryDesign, model.CategoryMarketing,
		model.CategoryBusiness, model.CategoryLangues, model.CategoryAutre:
		return nil
	default:
		return model.NewValidationError("カテゴリが不正です")
	}
}
