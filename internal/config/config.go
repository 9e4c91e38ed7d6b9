package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Redis
	RedisURL      string
	RedisPassword string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Storage
	UploadDir       string // uploads-images/<f> 形式が解決されるルート
	LegacyUploadDir string // uploads/<f> 形式（移行前のURL）が解決されるルート
	PublicDir       string // 未知のパス形式のフォールバックルート
	BasePath        string // 生成URLに付与し、逆引き時に除去するマウントプレフィックス

	// Rate Limit
	RateLimitGeneral int
	RateLimitUpload  int

	// Admin seed
	AdminEmail    string
	AdminPassword string

	// Server
	ServerPort  string
	MetricsPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 7*24*time.Hour)
	cfg.UploadDir = getEnvString("UPLOAD_DIR", "public/uploads")
	cfg.LegacyUploadDir = getEnvString("LEGACY_UPLOAD_DIR", cfg.UploadDir)
	cfg.PublicDir = getEnvString("PUBLIC_DIR", "public")
	cfg.BasePath = normalizeBasePath(os.Getenv("BASE_PATH"))
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 10)
	cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9091")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// normalizeBasePath はベースパスを「先頭スラッシュあり・末尾スラッシュなし」に正規化する。
// 空文字または"/"の場合はプレフィックスなしとして空文字を返す。
func normalizeBasePath(raw string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
