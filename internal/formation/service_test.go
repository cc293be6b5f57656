package formation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/skillmarket/internal/model"
	"github.com/hitoshi/skillmarket/internal/repository"
)

// --- テスト用モック ---

// mockFormationRepo はテスト用のFormationRepositoryモック。
// AddParticipantは本番実装と同じ検証順序（存在 → 状態 → 定員 → 重複）で
// センチネルエラーを返す。
type mockFormationRepo struct {
	formations   map[string]*model.Formation // ID -> Formation
	participants map[string]map[string]bool  // FormationID -> UserID -> enrolled
	createCalls  int
	updateCalls  int
}

func newMockFormationRepo() *mockFormationRepo {
	return &mockFormationRepo{
		formations:   make(map[string]*model.Formation),
		participants: make(map[string]map[string]bool),
	}
}

func (m *mockFormationRepo) FindByID(_ context.Context, id string) (*model.Formation, error) {
	f, ok := m.formations[id]
	if !ok {
		return nil, nil
	}
	return f, nil
}

func (m *mockFormationRepo) Create(_ context.Context, formation *model.Formation) error {
	m.createCalls++
	m.formations[formation.ID] = formation
	return nil
}

func (m *mockFormationRepo) Update(_ context.Context, formation *model.Formation) error {
	m.updateCalls++
	existing, ok := m.formations[formation.ID]
	if !ok {
		return errors.New("formation not found")
	}
	// statutとformateur_idはUpdateでは変更されない
	formation.Statut = existing.Statut
	formation.FormateurID = existing.FormateurID
	m.formations[formation.ID] = formation
	return nil
}

func (m *mockFormationRepo) UpdateStatus(_ context.Context, id string, from, to model.FormationStatus) error {
	f, ok := m.formations[id]
	if !ok || f.Statut != from {
		return repository.ErrStatusConflict
	}
	f.Statut = to
	return nil
}

func (m *mockFormationRepo) Delete(_ context.Context, id string) error {
	delete(m.formations, id)
	delete(m.participants, id)
	return nil
}

func (m *mockFormationRepo) ListByStatut(_ context.Context, statut model.FormationStatus) ([]*model.Formation, error) {
	var results []*model.Formation
	for _, f := range m.formations {
		if f.Statut == statut {
			results = append(results, f)
		}
	}
	return results, nil
}

func (m *mockFormationRepo) ListByFormateur(_ context.Context, formateurID string) ([]*model.Formation, error) {
	var results []*model.Formation
	for _, f := range m.formations {
		if f.FormateurID == formateurID {
			results = append(results, f)
		}
	}
	return results, nil
}

func (m *mockFormationRepo) ListByParticipant(_ context.Context, userID string) ([]*model.Formation, error) {
	var results []*model.Formation
	for id, users := range m.participants {
		if users[userID] {
			results = append(results, m.formations[id])
		}
	}
	return results, nil
}

func (m *mockFormationRepo) AddParticipant(_ context.Context, formationID, userID string) error {
	f, ok := m.formations[formationID]
	if !ok {
		return repository.ErrFormationNotFound
	}
	if f.Statut != model.StatusApprouvee {
		return repository.ErrNotApprouvee
	}
	if len(m.participants[formationID]) >= f.NombreMaxParticipants {
		return repository.ErrCapacityExceeded
	}
	if m.participants[formationID][userID] {
		return repository.ErrAlreadyEnrolled
	}
	if m.participants[formationID] == nil {
		m.participants[formationID] = make(map[string]bool)
	}
	m.participants[formationID][userID] = true
	return nil
}

func (m *mockFormationRepo) CountParticipants(_ context.Context, formationID string) (int, error) {
	return len(m.participants[formationID]), nil
}

func (m *mockFormationRepo) IsParticipant(_ context.Context, formationID, userID string) (bool, error) {
	return m.participants[formationID][userID], nil
}

// mockAvisRepo はテスト用のAvisRepositoryモック。
type mockAvisRepo struct {
	avis map[string]*model.Avis // FormationID+"/"+UserID -> Avis
}

func newMockAvisRepo() *mockAvisRepo {
	return &mockAvisRepo{avis: make(map[string]*model.Avis)}
}

func (m *mockAvisRepo) Create(_ context.Context, avis *model.Avis) error {
	key := avis.FormationID + "/" + avis.UserID
	if _, exists := m.avis[key]; exists {
		return repository.ErrDuplicateReview
	}
	m.avis[key] = avis
	return nil
}

func (m *mockAvisRepo) FindByFormationAndUser(_ context.Context, formationID, userID string) (*model.Avis, error) {
	a, ok := m.avis[formationID+"/"+userID]
	if !ok {
		return nil, nil
	}
	return a, nil
}

func (m *mockAvisRepo) ListByFormation(_ context.Context, formationID string) ([]*model.Avis, error) {
	var results []*model.Avis
	for key, a := range m.avis {
		if strings.HasPrefix(key, formationID+"/") {
			results = append(results, a)
		}
	}
	return results, nil
}

// mockUserRepo はテスト用のUserRepositoryモック。
// 研修サービスはFindByIDしか使わないため、他のメソッドは最小実装。
type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) FindByVerificationToken(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) ExistsByEmail(_ context.Context, _ string) (bool, error) { return false, nil }

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) ListPendingExperts(_ context.Context) ([]*model.User, error)  { return nil, nil }
func (m *mockUserRepo) ListActiveExperts(_ context.Context) ([]*model.User, error)   { return nil, nil }
func (m *mockUserRepo) ListVerifiedExperts(_ context.Context) ([]*model.User, error) { return nil, nil }

// mockProvisioner はテスト用のMeetProvisionerモック。
type mockProvisioner struct {
	calls int
	fail  bool
}

func (m *mockProvisioner) CreateMeetingLink(_ context.Context, _, _ string, _, _ time.Time) (string, error) {
	m.calls++
	if m.fail {
		return "", errors.New("meet API unavailable")
	}
	return "https://meet.example.com/room-42", nil
}

// mockSanitizer はテスト用のSanitizerモック。入力をそのまま返す。
type mockSanitizer struct{}

func (m *mockSanitizer) Sanitize(raw string) string { return raw }

// mockMetrics はテスト用のMetricsモック。
type mockMetrics struct {
	formationsCreated int
	enrollments       int
	provisionFailures int
}

func (m *mockMetrics) RecordFormationCreated() { m.formationsCreated++ }
func (m *mockMetrics) RecordEnrollment()       { m.enrollments++ }
func (m *mockMetrics) RecordProvisionFailure() { m.provisionFailures++ }

type testDeps struct {
	formationRepo *mockFormationRepo
	avisRepo      *mockAvisRepo
	userRepo      *mockUserRepo
	provisioner   *mockProvisioner
	metrics       *mockMetrics
}

func newTestService() (*Service, *testDeps) {
	deps := &testDeps{
		formationRepo: newMockFormationRepo(),
		avisRepo:      newMockAvisRepo(),
		userRepo:      newMockUserRepo(),
		provisioner:   &mockProvisioner{},
		metrics:       &mockMetrics{},
	}
	svc := NewService(
		deps.formationRepo, deps.avisRepo, deps.userRepo,
		deps.provisioner, &mockSanitizer{}, deps.metrics,
	)
	return svc, deps
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("expected error code %s, got %s", code, apiErr.Code)
	}
}

// seedUser はテスト用ユーザーを直接リポジトリに投入する。
func seedUser(deps *testDeps, id string, role model.Role, verified, active bool) *model.User {
	u := &model.User{
		ID:         id,
		Email:      id + "@example.com",
		Role:       role,
		IsVerified: verified,
		IsActive:   active,
	}
	deps.userRepo.users[id] = u
	return u
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		Titre:                 "Introduction à Go",
		Description:           "Les bases du langage Go",
		DateDebut:             time.Now().Add(24 * time.Hour),
		DateFin:               time.Now().Add(48 * time.Hour),
		Duree:                 8,
		NombreMaxParticipants: 10,
		Prix:                  150.0,
		Categorie:             model.CategoryDeveloppement,
	}
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	svc, deps := newTestService()
	seedUser(deps, "expert-1", model.RoleExpert, true, true)

	f, err := svc.Create(context.Background(), "expert-1", validCreateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 新規作成は常にen_attente
	if f.Statut != model.StatusEnAttente {
		t.Errorf("expected statut en_attente, got %s", f.Statut)
	}
	if f.FormateurID != "expert-1" {
		t.Errorf("expected formateur expert-1, got %s", f.FormateurID)
	}
	if f.URLMeet == nil || *f.URLMeet != "https://meet.example.com/room-42" {
		t.Error("expected provisioned meeting URL")
	}
	if deps.metrics.formationsCreated != 1 {
		t.Errorf("expected 1 creation metric, got %d", deps.metrics.formationsCreated)
	}
}

func TestCreate_ProvisionFailureIsNonFatal(t *testing.T) {
	svc, deps := newTestService()
	seedUser(deps, "expert-1", model.RoleExpert, true, true)
	deps.provisioner.fail = true

	// 会議URLの発行失敗は研修作成を妨げない
	f, err := svc.Create(context.Background(), "expert-1", validCreateRequest())
	if err != nil {
		t.Fatalf("creation should succeed despite provision failure: %v", err)
	}
	if f.URLMeet != nil {
		t.Error("expected nil URLMeet after provision failure")
	}
	if deps.formationRepo.createCalls != 1 {
		t.Error("expected formation to be persisted")
	}
	if deps.metrics.provisionFailures != 1 {
		t.Errorf("expected 1 provision failure metric, got %d", deps.metrics.provisionFailures)
	}
}

func TestCreate_CallerMustBeActiveVerifiedExpert(t *testing.T) {
	svc, deps := newTestService()
	seedUser(deps, "apprenant-1", model.RoleApprenant, true, true)
	seedUser(deps, "unverified-expert", model.RoleExpert, false, false)
	seedUser(deps, "pending-expert", model.RoleExpert, true, false)
	ctx := context.Background()

	_, err := svc.Create(ctx, "no-such-user", validCreateRequest())
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)

	_, err = svc.Create(ctx, "apprenant-1", validCreateRequest())
	assertAPIErrorCode(t, err, model.ErrCodeAccessDenied)

	_, err = svc.Create(ctx, "unverified-expert", validCreateRequest())
	assertAPIErrorCode(t, err, model.ErrCodeAccessDenied)

	_, err = svc.Create(ctx, "pending-expert", validCreateRequest())
	assertAPIErrorCode(t, err, model.ErrCodeAccessDenied)
}

func TestCreate_Validation(t *testing.T) {
	svc, deps := newTestService()
	seedUser(deps, "expert-1", model.RoleExpert, true, true)

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"empty title", func(r *CreateRequest) { r.Titre = "" }},
		{"end before start", func(r *CreateRequest) { r.DateFin = r.DateDebut.Add(-time.Hour) }},
		{"zero capacity", func(r *CreateRequest) { r.NombreMaxParticipants = 0 }},
		{"negative price", func(r *CreateRequest) { r.Prix = -1 }},
		{"unknown category", func(r *CreateRequest) { r.Categorie = "cuisine" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			_, err := svc.Create(context.Background(), "expert-1", req)
			assertAPIErrorCode(t, err, model.ErrCodeValidation)
		})
	}
}

// --- 状態遷移 ---

// createFormation はexpert-1所有の研修をテスト用に作成する。
func createFormation(t *testing.T, svc *Service, deps *testDeps, maxParticipants int) *model.Formation {
	t.Helper()
	seedUser(deps, "expert-1", model.RoleExpert, true, true)
	req := validCreateRequest()
	req.NombreMaxParticipants = maxParticipants
	f, err := svc.Create(context.Background(), "expert-1", req)
	if err != nil {
		t.Fatalf("formation creation failed: %v", err)
	}
	return f
}

func TestApprove_RequiresPendingState(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)
	ctx := context.Background()

	if err := svc.Approve(ctx, f.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if f.Statut != model.StatusApprouvee {
		t.Errorf("expected approuvee, got %s", f.Statut)
	}

	// 承認済みの研修への再承認・却下は状態を上書きしない
	err := svc.Approve(ctx, f.ID)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidTransition)

	err = svc.Reject(ctx, f.ID)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidTransition)

	if f.Statut != model.StatusApprouvee {
		t.Errorf("statut must remain approuvee, got %s", f.Statut)
	}
}

func TestApprove_UnknownFormation(t *testing.T) {
	svc, _ := newTestService()
	err := svc.Approve(context.Background(), "no-such-id")
	assertAPIErrorCode(t, err, model.ErrCodeFormationNotFound)
}

func TestReject_IsTerminal(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)
	ctx := context.Background()

	if err := svc.Reject(ctx, f.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if f.Statut != model.StatusRejetee {
		t.Errorf("expected rejetee, got %s", f.Statut)
	}

	// 却下後の承認・開講はできない
	err := svc.Approve(ctx, f.ID)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidTransition)

	err = svc.Start(ctx, f.ID, "expert-1")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidTransition)
}

func TestStart_RequiresApprovedStateAndOwner(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)
	seedUser(deps, "expert-2", model.RoleExpert, true, true)
	ctx := context.Background()

	// en_attenteからの開講は状態違反
	err := svc.Start(ctx, f.ID, "expert-1")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidTransition)

	if err := svc.Approve(ctx, f.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// 所有者以外は開講できない
	err = svc.Start(ctx, f.ID, "expert-2")
	assertAPIErrorCode(t, err, model.ErrCodeAccessDenied)

	if err := svc.Start(ctx, f.ID, "expert-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if f.Statut != model.StatusEnCours {
		t.Errorf("expected en_cours, got %s", f.Statut)
	}
}

func TestFinish_RequiresInProgressState(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)
	ctx := context.Background()

	if err := svc.Approve(ctx, f.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// 開講前の終了は状態違反
	err := svc.Finish(ctx, f.ID, "expert-1")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidTransition)

	if err := svc.Start(ctx, f.ID, "expert-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := svc.Finish(ctx, f.ID, "expert-1"); err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if f.Statut != model.StatusTerminee {
		t.Errorf("expected terminee, got %s", f.Statut)
	}

	// termineeは終端状態
	err = svc.Finish(ctx, f.ID, "expert-1")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidTransition)
}

// --- Enroll ---

func TestEnroll_BeforeApprovalFails(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)
	seedUser(deps, "apprenant-1", model.RoleApprenant, true, true)

	err := svc.Enroll(context.Background(), f.ID, "apprenant-1")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidTransition)
}

func TestEnroll_CapacityAndDuplicates(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 2)
	seedUser(deps, "apprenant-1", model.RoleApprenant, true, true)
	seedUser(deps, "apprenant-2", model.RoleApprenant, true, true)
	seedUser(deps, "apprenant-3", model.RoleApprenant, true, true)
	ctx := context.Background()

	if err := svc.Approve(ctx, f.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if err := svc.Enroll(ctx, f.ID, "apprenant-1"); err != nil {
		t.Fatalf("first enrollment failed: %v", err)
	}
	if deps.metrics.enrollments != 1 {
		t.Errorf("expected 1 enrollment metric, got %d", deps.metrics.enrollments)
	}

	// 空きがある間の重複登録は重複として検出される
	err := svc.Enroll(ctx, f.ID, "apprenant-1")
	assertAPIErrorCode(t, err, model.ErrCodeAlreadyEnrolled)

	if err := svc.Enroll(ctx, f.ID, "apprenant-2"); err != nil {
		t.Fatalf("second enrollment failed: %v", err)
	}

	// 定員2なので3人目は登録できない
	err = svc.Enroll(ctx, f.ID, "apprenant-3")
	assertAPIErrorCode(t, err, model.ErrCodeCapacityExceeded)

	// 満席になった後は既存参加者の再登録も定員チェックが先に返る
	err = svc.Enroll(ctx, f.ID, "apprenant-1")
	assertAPIErrorCode(t, err, model.ErrCodeCapacityExceeded)

	count, _ := deps.formationRepo.CountParticipants(ctx, f.ID)
	if count != 2 {
		t.Errorf("expected 2 participants, got %d", count)
	}
}

func TestEnroll_OnlyApprenants(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)
	seedUser(deps, "expert-2", model.RoleExpert, true, true)
	ctx := context.Background()

	if err := svc.Approve(ctx, f.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	err := svc.Enroll(ctx, f.ID, "no-such-user")
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)

	err = svc.Enroll(ctx, f.ID, "expert-2")
	assertAPIErrorCode(t, err, model.ErrCodeAccessDenied)
}

func TestEnroll_UnknownFormation(t *testing.T) {
	svc, deps := newTestService()
	seedUser(deps, "apprenant-1", model.RoleApprenant, true, true)

	err := svc.Enroll(context.Background(), "no-such-id", "apprenant-1")
	assertAPIErrorCode(t, err, model.ErrCodeFormationNotFound)
}

// --- AddReview ---

// finishedFormationWithParticipant はapprenant-1が参加したterminee状態の
// 研修をテスト用に用意する。
func finishedFormationWithParticipant(t *testing.T, svc *Service, deps *testDeps) *model.Formation {
	t.Helper()
	f := createFormation(t, svc, deps, 10)
	seedUser(deps, "apprenant-1", model.RoleApprenant, true, true)
	ctx := context.Background()

	if err := svc.Approve(ctx, f.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := svc.Enroll(ctx, f.ID, "apprenant-1"); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if err := svc.Start(ctx, f.ID, "expert-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := svc.Finish(ctx, f.ID, "expert-1"); err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	return f
}

func TestAddReview_Success(t *testing.T) {
	svc, deps := newTestService()
	f := finishedFormationWithParticipant(t, svc, deps)

	avis, err := svc.AddReview(context.Background(), f.ID, "apprenant-1", "Très bonne formation", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if avis.Note != 5 {
		t.Errorf("expected note 5, got %d", avis.Note)
	}

	reviews, err := svc.ListReviewsFor(context.Background(), f.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reviews) != 1 {
		t.Errorf("expected 1 review, got %d", len(reviews))
	}
}

func TestAddReview_OnePerParticipant(t *testing.T) {
	svc, deps := newTestService()
	f := finishedFormationWithParticipant(t, svc, deps)
	ctx := context.Background()

	if _, err := svc.AddReview(ctx, f.ID, "apprenant-1", "Très bien", 4); err != nil {
		t.Fatalf("first review failed: %v", err)
	}

	_, err := svc.AddReview(ctx, f.ID, "apprenant-1", "Encore un avis", 5)
	assertAPIErrorCode(t, err, model.ErrCodeDuplicateReview)
}

func TestAddReview_ParticipantsOnly(t *testing.T) {
	svc, deps := newTestService()
	f := finishedFormationWithParticipant(t, svc, deps)
	seedUser(deps, "apprenant-2", model.RoleApprenant, true, true)

	// 参加していないユーザーはレビューを投稿できない
	_, err := svc.AddReview(context.Background(), f.ID, "apprenant-2", "Jamais suivi", 1)
	assertAPIErrorCode(t, err, model.ErrCodeAccessDenied)
}

func TestAddReview_OnlyAfterCompletion(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)
	seedUser(deps, "apprenant-1", model.RoleApprenant, true, true)
	ctx := context.Background()

	if err := svc.Approve(ctx, f.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := svc.Enroll(ctx, f.ID, "apprenant-1"); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	// 終了前のレビューは状態違反
	_, err := svc.AddReview(ctx, f.ID, "apprenant-1", "Trop tôt", 3)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidTransition)
}

func TestAddReview_NoteRange(t *testing.T) {
	svc, deps := newTestService()
	f := finishedFormationWithParticipant(t, svc, deps)
	ctx := context.Background()

	_, err := svc.AddReview(ctx, f.ID, "apprenant-1", "note trop basse", 0)
	assertAPIErrorCode(t, err, model.ErrCodeValidation)

	_, err = svc.AddReview(ctx, f.ID, "apprenant-1", "note trop haute", 6)
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

// --- Update / Delete ---

func TestUpdate_OwnerOnlyAndPreservesStatus(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)
	seedUser(deps, "expert-2", model.RoleExpert, true, true)
	ctx := context.Background()

	if err := svc.Approve(ctx, f.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	titre := "Go avancé"
	_, err := svc.Update(ctx, f.ID, "expert-2", UpdateRequest{Titre: &titre})
	assertAPIErrorCode(t, err, model.ErrCodeAccessDenied)

	updated, err := svc.Update(ctx, f.ID, "expert-1", UpdateRequest{Titre: &titre})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Titre != "Go avancé" {
		t.Errorf("expected updated title, got %s", updated.Titre)
	}
	// statutは更新経路では変化しない
	if updated.Statut != model.StatusApprouvee {
		t.Errorf("expected statut approuvee, got %s", updated.Statut)
	}
	// 省略されたフィールドは変更されない
	if updated.NombreMaxParticipants != 10 {
		t.Errorf("expected untouched capacity, got %d", updated.NombreMaxParticipants)
	}
}

func TestUpdate_RevalidatesFields(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)

	zero := 0
	_, err := svc.Update(context.Background(), f.ID, "expert-1", UpdateRequest{NombreMaxParticipants: &zero})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)

	bad := "not-base64!!!"
	_, err = svc.Update(context.Background(), f.ID, "expert-1", UpdateRequest{ImageFormation: &bad})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestDelete_OwnerOnly(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)
	seedUser(deps, "expert-2", model.RoleExpert, true, true)
	ctx := context.Background()

	err := svc.Delete(ctx, f.ID, "expert-2")
	assertAPIErrorCode(t, err, model.ErrCodeAccessDenied)

	if err := svc.Delete(ctx, f.ID, "expert-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	_, err = svc.GetByID(ctx, f.ID)
	assertAPIErrorCode(t, err, model.ErrCodeFormationNotFound)
}

// --- 一覧取得 ---

func TestListApproved_FiltersByStatus(t *testing.T) {
	svc, deps := newTestService()
	pending := createFormation(t, svc, deps, 10)

	req := validCreateRequest()
	req.Titre = "Formation approuvée"
	approved, err := svc.Create(context.Background(), "expert-1", req)
	if err != nil {
		t.Fatalf("creation failed: %v", err)
	}
	if err := svc.Approve(context.Background(), approved.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	list, err := svc.ListApproved(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != approved.ID {
		t.Errorf("expected only the approved formation, got %d results", len(list))
	}

	pendingList, err := svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pendingList) != 1 || pendingList[0].ID != pending.ID {
		t.Errorf("expected only the pending formation, got %d results", len(pendingList))
	}
}

func TestListMyEnrollments(t *testing.T) {
	svc, deps := newTestService()
	f := createFormation(t, svc, deps, 10)
	seedUser(deps, "apprenant-1", model.RoleApprenant, true, true)
	ctx := context.Background()

	if err := svc.Approve(ctx, f.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := svc.Enroll(ctx, f.ID, "apprenant-1"); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	list, err := svc.ListMyEnrollments(ctx, "apprenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != f.ID {
		t.Errorf("expected the enrolled formation, got %d results", len(list))
	}
}

func TestListReviewsFor_UnknownFormation(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.ListReviewsFor(context.Background(), "no-such-id")
	assertAPIErrorCode(t, err, model.ErrCodeFormationNotFound)
}
