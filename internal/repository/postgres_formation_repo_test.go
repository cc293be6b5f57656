package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/hitoshi/skillmarket/internal/model"
)

// PostgresFormationRepoはFormationRepositoryインターフェースを満たすことを検証
func TestPostgresFormationRepo_ImplementsInterface(t *testing.T) {
	var _ FormationRepository = (*PostgresFormationRepo)(nil)
}

// NewPostgresFormationRepoが正しく初期化されることを検証
func TestNewPostgresFormationRepo_Initializes(t *testing.T) {
	repo := NewPostgresFormationRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// 参加登録の検証順序を検証: 承認済みチェックが定員チェックより先に行われる
func TestEnrollmentGuard_ValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		statut  model.FormationStatus
		count   int
		max     int
		wantErr error
	}{
		{"承認済み・空きあり", model.StatusApprouvee, 2, 10, nil},
		{"承認済み・残り1席", model.StatusApprouvee, 9, 10, nil},
		{"承認済み・満席", model.StatusApprouvee, 10, 10, ErrCapacityExceeded},
		{"承認済み・定員超過", model.StatusApprouvee, 11, 10, ErrCapacityExceeded},
		{"承認待ち", model.StatusEnAttente, 0, 10, ErrNotApprouvee},
		{"却下済み", model.StatusRejetee, 0, 10, ErrNotApprouvee},
		{"開講中", model.StatusEnCours, 0, 10, ErrNotApprouvee},
		{"終了済み", model.StatusTerminee, 0, 10, ErrNotApprouvee},
		// 満席かつ未承認の場合は承認チェックが優先される
		{"承認待ち・満席", model.StatusEnAttente, 10, 10, ErrNotApprouvee},
		{"開講中・満席", model.StatusEnCours, 10, 10, ErrNotApprouvee},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := enrollmentGuard(tt.statut, tt.count, tt.max)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("enrollmentGuard(%q, %d, %d) = %v, want %v",
					tt.statut, tt.count, tt.max, err, tt.wantErr)
			}
		})
	}
}

// 満席の研修への再登録は重複エラーではなく定員エラーになることを検証。
// 重複登録は挿入時の一意制約違反で検出されるため、定員チェックが先に走る。
func TestEnrollmentGuard_FullFormation_CapacityBeforeDuplicate(t *testing.T) {
	err := enrollmentGuard(model.StatusApprouvee, 10, 10)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("err = %v, want ErrCapacityExceeded", err)
	}
	if errors.Is(err, ErrAlreadyEnrolled) {
		t.Error("full formation should not report ErrAlreadyEnrolled")
	}
}

// 一意制約違反の判定を検証: 参加者テーブルの重複挿入がErrAlreadyEnrolledに対応する
func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"一意制約違反(23505)", &pq.Error{Code: pq.ErrorCode(pqUniqueViolation)}, true},
		{"外部キー制約違反(23503)", &pq.Error{Code: "23503"}, false},
		{"pq以外のエラー", errors.New("connection refused"), false},
		{"ラップされた一意制約違反", fmt.Errorf("query failed: %w", &pq.Error{Code: "23505"}), true},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// 永続化層のエラーが互いに区別可能であることを検証
func TestRepositoryErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrDuplicateEmail,
		ErrDuplicateReview,
		ErrStatusConflict,
		ErrFormationNotFound,
		ErrNotApprouvee,
		ErrCapacityExceeded,
		ErrAlreadyEnrolled,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v should not match %v", a, b)
			}
		}
	}
}

// Formationモデルのフィールドが正しく構築されることを検証
func TestPostgresFormationRepo_FormationModel_Fields(t *testing.T) {
	f := &model.Formation{
		ID:                    "formation-1",
		Titre:                 "Introduction à Go",
		NombreMaxParticipants: 20,
		Statut:                model.StatusEnAttente,
		FormateurID:           "expert-1",
	}

	if f.Statut != model.StatusEnAttente {
		t.Errorf("f.Statut = %q, want %q", f.Statut, model.StatusEnAttente)
	}
	if f.NombreMaxParticipants != 20 {
		t.Errorf("f.NombreMaxParticipants = %d, want 20", f.NombreMaxParticipants)
	}
}
