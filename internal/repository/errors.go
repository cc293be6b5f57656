package repository

import (
	"errors"

	"github.com/lib/pq"
)

// 永続化層の判別可能なエラー。サービス層がドメインエラーへ変換する。
// 生のドライバエラーを呼び出し元に漏らさないための境界となる。
var (
	// ErrDuplicateEmail はusersのメールアドレス一意制約違反。
	ErrDuplicateEmail = errors.New("repository: duplicate email")

	// ErrDuplicateReview はavisの(formation, user)一意制約違反。
	ErrDuplicateReview = errors.New("repository: duplicate review")

	// ErrStatusConflict はUpdateStatusのCAS失敗（現在の状態が期待と不一致）。
	ErrStatusConflict = errors.New("repository: status conflict")

	// ErrFormationNotFound はロック取得時に研修行が存在しなかった。
	ErrFormationNotFound = errors.New("repository: formation not found")

	// ErrNotApprouvee は参加登録時に研修が承認済み状態でなかった。
	ErrNotApprouvee = errors.New("repository: formation not approved")

	// ErrCapacityExceeded は参加登録時に定員に達していた。
	ErrCapacityExceeded = errors.New("repository: capacity exceeded")

	// ErrAlreadyEnrolled は参加登録時に既に参加者だった。
	ErrAlreadyEnrolled = errors.New("repository: already enrolled")
)

// pqUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pqUniqueViolation = "23505"

// isUniqueViolation はエラーがPostgreSQLの一意制約違反かを判定する。
// 重複メール、重複レビュー、重複参加登録の競合検出に共通で使用する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}
