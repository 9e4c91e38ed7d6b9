package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/picshelf/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	UploadRate      rate.Limit    // アップロードのレート（req/sec）
	UploadBurst     int           // アップロードのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、アップロード 10 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		UploadRate:      rate.Limit(10.0 / 60.0),
		UploadBurst:     10,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimiterConfigFromLimits は毎分あたりのリクエスト数からレート制限設定を生成する。
// 0以下の値は該当項目をデフォルトのままにする。
func RateLimiterConfigFromLimits(generalPerMinute, uploadPerMinute int) RateLimiterConfig {
	cfg := DefaultRateLimiterConfig()
	if generalPerMinute > 0 {
		cfg.GeneralRate = rate.Limit(float64(generalPerMinute) / 60.0)
		cfg.GeneralBurst = generalPerMinute
	}
	if uploadPerMinute > 0 {
		cfg.UploadRate = rate.Limit(float64(uploadPerMinute) / 60.0)
		cfg.UploadBurst = uploadPerMinute
	}
	return cfg
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般のレート制限とアップロードのレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.Mutex
	generalLimiters map[string]*userLimiter

	uploadMu       sync.Mutex
	uploadLimiters map[string]*userLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*userLimiter),
		uploadLimiters:  make(map[string]*userLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// 認証ミドルウェアの後段に配置すること（ユーザーのメールをキーとする）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(&rl.generalMu, rl.generalLimiters, rl.config.GeneralRate, rl.config.GeneralBurst)
}

// UploadMiddleware はアップロード専用のより厳しいレート制限ミドルウェアを返す。
func (rl *RateLimiter) UploadMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(&rl.uploadMu, rl.uploadLimiters, rl.config.UploadRate, rl.config.UploadBurst)
}

func (rl *RateLimiter) middleware(mu *sync.Mutex, limiters map[string]*userLimiter, r rate.Limit, burst int) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims, err := ClaimsFromContext(req.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			mu.Lock()
			ul, ok := limiters[claims.Email]
			if !ok {
				ul = &userLimiter{limiter: rate.NewLimiter(r, burst)}
				limiters[claims.Email] = ul
			}
			ul.lastAccess = time.Now()
			mu.Unlock()

			if !ul.limiter.Allow() {
				WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
					Code:     "RATE_LIMITED",
					Message:  "リクエストが多すぎます。",
					Category: "system",
					Action:   "しばらく待ってから再度お試しください。",
				})
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// cleanupLoop は一定時間アクセスのないリミッターエントリを破棄する。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.config.CleanupInterval * 2)

			rl.generalMu.Lock()
			for key, ul := range rl.generalLimiters {
				if ul.lastAccess.Before(cutoff) {
					delete(rl.generalLimiters, key)
				}
			}
			rl.generalMu.Unlock()

			rl.uploadMu.Lock()
			for key, ul := range rl.uploadLimiters {
				if ul.lastAccess.Before(cutoff) {
					delete(rl.uploadLimiters, key)
				}
			}
			rl.uploadMu.Unlock()
		}
	}
}
