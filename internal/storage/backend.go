// Package storage はローカルディスク上の画像ファイルの読み書きと、
// 公開URLからディスクパスへの逆引きを提供する。
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ServePathPrefix はハンドラ経由配信のURLパス部分。
const ServePathPrefix = "uploads-images"

// schemeHostPattern は先頭の scheme://host 部分を取り除くためのパターン。
var schemeHostPattern = regexp.MustCompile(`^https?://[^/]+`)

// pathRule は「URLプレフィックス→ストレージルート」の解決規則を表す。
// ストレージレイアウト移行後も発行済みURLを解決し続けるため、
// レイアウト変更時は分岐を増やすのではなく規則を追加する。
type pathRule struct {
	prefix string
	root   string
}

// Config はBackendの構成を保持する。
type Config struct {
	UploadDir       string // uploads-images/<f> 形式のルート（現行）
	LegacyUploadDir string // uploads/<f> 形式のルート（移行前の直接静的配信）
	PublicDir       string // 未知のパス形式のフォールバックルート
	BasePath        string // マウントプレフィックス（空または /prefix 形式）
}

// Backend はローカルファイルシステム上のストレージバックエンド。
type Backend struct {
	cfg   Config
	rules []pathRule
}

// New はBackendを生成する。
func New(cfg Config) *Backend {
	return &Backend{
		cfg: cfg,
		rules: []pathRule{
			// ハンドラ経由の現行形式（APIプレフィックスあり/なし両方）
			{prefix: "api/" + ServePathPrefix + "/", root: cfg.UploadDir},
			{prefix: ServePathPrefix + "/", root: cfg.UploadDir},
			// 移行前の直接静的配信形式
			{prefix: "uploads/", root: cfg.LegacyUploadDir},
		},
	}
}

// PublicURL はストレージファイル名から公開URLを組み立てる。
// ベースパスが設定されている場合は先頭に付与する。
func (b *Backend) PublicURL(fileName string) string {
	return fmt.Sprintf("%s/%s/%s", b.cfg.BasePath, ServePathPrefix, fileName)
}

// ResolvePath は公開URLからディスク上のパスを決定的に復元する。
// scheme+hostを除去し、ベースパスを除去した後、既知のパス形式を
// それぞれのストレージルートにマップする。未知の形式は
// 汎用公開ルートからの相対パスとして扱う。
func (b *Backend) ResolvePath(rawURL string) string {
	p := schemeHostPattern.ReplaceAllString(rawURL, "")
	p = strings.TrimLeft(p, "/")

	if b.cfg.BasePath != "" {
		base := strings.TrimLeft(b.cfg.BasePath, "/") + "/"
		p = strings.TrimPrefix(p, base)
	}

	for _, rule := range b.rules {
		if strings.HasPrefix(p, rule.prefix) {
			rest := strings.TrimPrefix(p, rule.prefix)
			return filepath.Join(rule.root, filepath.FromSlash(rest))
		}
	}

	return filepath.Join(b.cfg.PublicDir, filepath.FromSlash(p))
}

// FilePath はストレージファイル名から現行ルート上のパスを返す。
// パストラバーサルを防ぐためファイル名のベース部分のみを使用する。
func (b *Backend) FilePath(fileName string) string {
	return filepath.Join(b.cfg.UploadDir, filepath.Base(fileName))
}

// Save は画像バイト列を現行ルートに書き込み、ディスクパスを返す。
func (b *Backend) Save(fileName string, data []byte) (string, error) {
	if err := os.MkdirAll(b.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	path := b.FilePath(fileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

// Read は指定パスのファイルを読み込む。
func (b *Backend) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Delete は公開URLに対応するファイルを削除する。
// ファイルが存在しない場合はエラーとせずnilを返す（ベストエフォート削除）。
func (b *Backend) Delete(rawURL string) error {
	path := b.ResolvePath(rawURL)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	return nil
}
