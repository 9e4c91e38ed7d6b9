// Package model はドメインモデルを定義する。
package model

// UserRole はユーザーの権限ロールを表す。
type UserRole string

const (
	// RoleAdmin は管理者ロール。全ユーザー・全画像・容量パッケージを管理できる。
	RoleAdmin UserRole = "admin"
	// RoleUser は一般ユーザーロール。自分の画像のみ管理できる。
	RoleUser UserRole = "user"
)

// DefaultStorageMb はユーザーのデフォルト保存容量（MB）。
const DefaultStorageMb = 1024

// User はサービス利用ユーザーを表す。
// `user_list` リストに1エントリ1JSONとして直列化される唯一の真実の源であり、
// ユーザー個別のキーは存在しない。JSONタグは既存データとの互換のため変更しない。
type User struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"password"`
	Role         UserRole `json:"role"`
	CreatedAt    string   `json:"createdAt"`
	StorageMb    int64    `json:"storageMb,omitempty"`
}

// CapacityBytes はユーザーの保存容量をバイト単位で返す。
// StorageMb が未設定または0以下の場合はデフォルト（1024MB）を適用する。
func (u *User) CapacityBytes() int64 {
	mb := u.StorageMb
	if mb <= 0 {
		mb = DefaultStorageMb
	}
	return mb * 1024 * 1024
}

// IsAdmin はユーザーが管理者かどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
