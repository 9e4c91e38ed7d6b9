package model

import (
	"strings"
	"time"
)

// 許可する画像形式。拡張子とMIMEタイプの両方が一致しない限りアップロードを拒否する。
var (
	// AllowedMIMETypes はアップロード可能なMIMEタイプの集合。
	AllowedMIMETypes = map[string]bool{
		"image/png":     true,
		"image/jpeg":    true,
		"image/svg+xml": true,
	}
	// AllowedExtensions はアップロード可能な拡張子の集合（小文字）。
	AllowedExtensions = map[string]bool{
		".png":  true,
		".jpg":  true,
		".jpeg": true,
		".svg":  true,
	}
)

// Image はアップロード済み画像のメタデータレコードを表す。
// 所有者ごとの台帳リスト `images:{email}` に1エントリ1JSONとして格納される。
// 全台帳リストを通してレコードはちょうど1つだけ存在する（所有者間で重複しない）。
type Image struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	OriginalName string `json:"originalName"`
	FileName     string `json:"fileName"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	UploadedAt   string `json:"uploadedAt"`
}

// UploadedTime はアップロード時刻をtime.Timeとして返す。
// パースできない場合はゼロ値を返す（ソート時に最古扱いになる）。
func (i *Image) UploadedTime() time.Time {
	t, err := time.Parse(time.RFC3339, i.UploadedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FileUUID はストレージファイル名から拡張子を除いたUUID部分を返す。
func (i *Image) FileUUID() string {
	name := i.FileName
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[:idx]
	}
	return name
}

// IsSVG は画像がSVG（ベクター形式）かどうかを返す。
// SVGはラスタライズ対象外のためリサイズ操作を受け付けない。
func (i *Image) IsSVG() bool {
	return strings.ToLower(i.Type) == "image/svg+xml" ||
		strings.HasSuffix(strings.ToLower(i.FileName), ".svg")
}
