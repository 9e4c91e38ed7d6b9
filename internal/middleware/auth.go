// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/picshelf/internal/auth"
	"github.com/hitoshi/picshelf/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストに認証済みクレームを格納するためのキー。
var claimsContextKey = contextKey("auth_claims")

// TokenVerifier はベアラートークンの検証に必要なインターフェース。
// auth.JWTManagerの部分集合として定義する。
type TokenVerifier interface {
	Validate(tokenString string) (*auth.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダのBearerトークンを検証し、
// 認証済みクレームをリクエストコンテキストに注入するミドルウェアを返す。
// トークンの欠落・無効・期限切れには401を返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Authorization: Bearer <token> を取り出す
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. トークンを検証する
			claims, err := verifier.Validate(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. 認証済みクレームをコンテキストに注入する
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAdminOnlyMiddleware は管理者ロールを要求するミドルウェアを返す。
// 認証ミドルウェアの後段に配置すること。有効なトークンでもロールが
// adminでない場合は403を返す。
func NewAdminOnlyMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ClaimsFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if claims.Role != model.RoleAdmin {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext はリクエストコンテキストから認証済みクレームを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*auth.Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	if !ok || claims == nil {
		return nil, model.NewUnauthorizedError()
	}
	return claims, nil
}

// ContextWithClaims はコンテキストにクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
