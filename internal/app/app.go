// Package app はアプリケーションの起動・依存関係のワイヤリング・
// シャットダウンを担う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/picshelf/internal/auth"
	"github.com/hitoshi/picshelf/internal/config"
	"github.com/hitoshi/picshelf/internal/handler"
	"github.com/hitoshi/picshelf/internal/image"
	"github.com/hitoshi/picshelf/internal/logger"
	"github.com/hitoshi/picshelf/internal/metrics"
	"github.com/hitoshi/picshelf/internal/middleware"
	"github.com/hitoshi/picshelf/internal/packages"
	"github.com/hitoshi/picshelf/internal/quota"
	"github.com/hitoshi/picshelf/internal/repository"
	"github.com/hitoshi/picshelf/internal/resize"
	"github.com/hitoshi/picshelf/internal/security"
	"github.com/hitoshi/picshelf/internal/storage"
	"github.com/hitoshi/picshelf/internal/store"
	"github.com/hitoshi/picshelf/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_path", cfg.BasePath),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// ストア接続を開き、全依存関係をワイヤリングし、HTTPサーバーと
// メトリクスサーバーを起動する。SIGINTまたはSIGTERMシグナルを
// 受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストア接続
	kv, err := store.NewRedisKV(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer kv.Close()

	slog.Info("store connection established")

	ctx := context.Background()

	// 2. リポジトリの初期化
	userRepo := repository.NewRedisUserRepo(kv)
	imageRepo := repository.NewRedisImageRepo(kv)
	packageRepo := repository.NewRedisPackageRepo(kv)

	// 3. 起動時メンテナンス: 管理者シードと旧スキーマキーの掃除
	if err := seedAdmin(ctx, userRepo, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}
	cleanupLegacyKeys(ctx, kv)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(userRepo, jwtManager)

	backend := storage.New(storage.Config{
		UploadDir:       cfg.UploadDir,
		LegacyUploadDir: cfg.LegacyUploadDir,
		PublicDir:       cfg.PublicDir,
		BasePath:        cfg.BasePath,
	})
	processor := resize.NewProcessor()
	sanitizer := security.NewSVGSanitizer()
	quotaEngine := quota.NewEngine(userRepo, imageRepo)

	imageService := image.NewService(
		imageRepo, userRepo, quotaEngine, backend, processor, sanitizer, collector,
	)
	userService := user.NewService(userRepo, imageService)
	packageService := packages.NewService(packageRepo)

	// 6. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfigFromLimits(cfg.RateLimitGeneral, cfg.RateLimitUpload)
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenVerifier:     jwtManager,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		StatusObserver:    collector,

		AuthService: authService,

		ImageService:      imageService,
		AdminImageService: imageService,
		FileStorage:       backend,
		ByteResizer:       processor,

		AdminUserService: userService,
		PackageService:   packageService,

		Store:    kv,
		BasePath: cfg.BasePath,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// メトリクスサーバーは別ポートで公開する（外部へは晒さない前提）
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
