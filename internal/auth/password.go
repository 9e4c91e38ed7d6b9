// Package auth は認証（パスワード検証とベアラートークン）を提供する。
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword はbcryptでパスワードをハッシュ化する。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword は平文パスワードとハッシュを照合する。一致すればtrueを返す。
func ComparePassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
