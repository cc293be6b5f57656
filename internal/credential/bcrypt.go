// Package credential はパスワードのハッシュ化と照合を提供する。
// サービス層は生のパスワードをこのパッケージの外に持ち出さない。
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher はbcryptによるパスワードハッシュの実装。
// コストはbcrypt.DefaultCost（10）を使用する。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

// Hash は生パスワードのbcryptハッシュを返す。
func (h *BcryptHasher) Hash(rawPassword string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(rawPassword), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify は生パスワードがハッシュと一致するかを返す。
// 不一致はエラーではなくfalseとして扱う。
func (h *BcryptHasher) Verify(rawPassword, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(rawPassword)) == nil
}
