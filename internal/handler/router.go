package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/picshelf/internal/middleware"
)

// StorePinger はヘルスチェックが必要とするストア疎通確認のインターフェース。
type StorePinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusObserver    middleware.StatusObserver

	// 認証
	AuthService AuthServiceInterface

	// 画像
	ImageService      ImageServiceInterface
	AdminImageService AdminImageServiceInterface
	FileStorage       FileStorage
	ByteResizer       ByteResizer

	// ユーザー管理
	AdminUserService AdminUserServiceInterface

	// ストレージパッケージ
	PackageService PackageServiceInterface

	// ヘルスチェック
	Store StorePinger

	// リバースプロキシ配下で付与されるパスプレフィックス（例: /picshelf）
	BasePath string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → RecoveryMiddleware → LoggingMiddleware
//
// 認証ルート（/api/auth/*）・ファイル配信（/uploads-images/*）・公開パッケージ取得は
// 認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusObserver))

	authHandler := NewAuthHandler(deps.AuthService)
	imageHandler := NewImageHandler(deps.ImageService)
	serveHandler := NewServeHandler(deps.FileStorage, deps.ByteResizer)
	adminImageHandler := NewAdminImageHandler(deps.AdminImageService)
	adminUserHandler := NewAdminUserHandler(deps.AdminUserService)
	packageHandler := NewPackageHandler(deps.PackageService)

	// --- 認証不要のルート ---

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// 料金表の公開表示用
	r.Get("/api/packages", packageHandler.Get)

	// アップロード済みファイルの配信
	r.Get("/uploads-images/{filename}", serveHandler.Serve)
	r.Get("/api/uploads-images/{filename}", serveHandler.Serve)

	// ヘルスチェック（ストア疎通込み）
	r.Get("/healthz", newHealthzHandler(deps.Store))

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// アップロード（専用レート制限を追加）
		r.With(deps.RateLimiter.UploadMiddleware()).Post("/api/upload", imageHandler.Upload)

		// 自分の画像
		r.Route("/api/images", func(r chi.Router) {
			r.Get("/", imageHandler.List)
			r.Delete("/", imageHandler.Delete)
			r.Delete("/{id}", imageHandler.Delete)
		})

		// --- 管理者限定のルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAdminOnlyMiddleware())

			r.Route("/api/admin/images", func(r chi.Router) {
				r.Get("/", adminImageHandler.List)

				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", adminImageHandler.Update)
					r.Delete("/", adminImageHandler.Delete)
					r.Post("/resize", adminImageHandler.Resize)
				})
			})

			r.Route("/api/admin/users", func(r chi.Router) {
				r.Get("/", adminUserHandler.List)
				r.Post("/", adminUserHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", adminUserHandler.Update)
					r.Delete("/", adminUserHandler.Delete)
				})
			})

			r.Route("/api/admin/packages", func(r chi.Router) {
				r.Get("/", packageHandler.Get)
				r.Put("/", packageHandler.Put)
			})
		})
	})

	if deps.BasePath != "" {
		return withBasePath(deps.BasePath, r)
	}
	return r
}

// newHealthzHandler はストア疎通を確認するヘルスチェックハンドラーを返す。
func newHealthzHandler(store StorePinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

// withBasePath はリバースプロキシ配下で付与されるプレフィックスを取り除いてから
// 内部ルーターに委譲するハンドラーを返す。プレフィックスなしのパスもそのまま通す。
func withBasePath(basePath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, basePath) {
			trimmed := strings.TrimPrefix(r.URL.Path, basePath)
			if trimmed == "" {
				trimmed = "/"
			}
			r2 := r.Clone(r.Context())
			r2.URL.Path = trimmed
			next.ServeHTTP(w, r2)
			return
		}
		next.ServeHTTP(w, r)
	})
}
