package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/picshelf/internal/model"
)

// ErrInvalidToken は無効または期限切れのトークンを表す。
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims はベアラートークンに含めるカスタムクレーム。
// ユーザーの識別子・メール・ロールを符号化する。
type Claims struct {
	UserID string         `json:"userId"`
	Email  string         `json:"email"`
	Role   model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager はベアラートークンの発行と検証を行う。
// HS256署名・有効期限付き（デフォルト7日）の不透明なクレデンシャルを扱う。
type JWTManager struct {
	secretKey []byte
	tokenTTL  time.Duration
}

// NewJWTManager はJWTManagerを生成する。
// secretKeyには十分に長いランダム文字列を渡すこと。
func NewJWTManager(secretKey string, tokenTTL time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
	}
}

// Generate はユーザーの署名済みトークンを発行する。
func (m *JWTManager) Generate(user *model.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate はトークンを検証し、クレームを返す。
// 署名不正・期限切れ・形式不正はすべてErrInvalidTokenとして扱う。
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
