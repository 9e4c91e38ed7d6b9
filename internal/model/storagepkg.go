package model

// StoragePackageCount は容量パッケージの固定数。常にちょうど3件を保持する。
const StoragePackageCount = 3

// StoragePackage は容量ティアのプレゼンテーション用テンプレートを表す。
// 個別のライフサイクルは持たず、リスト全体を1つのJSON文字列として置き換える。
type StoragePackage struct {
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
}

// DefaultStoragePackages はキー未設定時に返すデフォルトの3パッケージを返す。
func DefaultStoragePackages() []StoragePackage {
	return []StoragePackage{
		{Name: "ベーシック", Bytes: 1 * 1024 * 1024 * 1024},
		{Name: "アドバンス", Bytes: 5 * 1024 * 1024 * 1024},
		{Name: "プロ", Bytes: 20 * 1024 * 1024 * 1024},
	}
}
