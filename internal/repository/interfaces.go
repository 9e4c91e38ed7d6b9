// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/picshelf/internal/model"
)

// UserRepository はユーザーディレクトリ（user_list）の永続化インターフェース。
// ユーザーの唯一の真実の源は単一のリストであり、ユーザー個別のキーは存在しない。
type UserRepository interface {
	// List は全ユーザーを返す。パースできないエントリはスキップされる。
	List(ctx context.Context) ([]*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// メールアドレスは格納時の表記のまま大文字小文字を区別して比較する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーをリスト先頭に追加する。
	Create(ctx context.Context, user *model.User) error

	// Update は同一IDのエントリを置き換えてリスト全体を書き戻す。
	// 対象が存在しない場合はエラーを返す。
	Update(ctx context.Context, user *model.User) error

	// Delete は指定IDのユーザーをリストから取り除く。
	// 対象が存在しない場合はエラーを返す。
	Delete(ctx context.Context, id string) error
}

// ImageRepository は所有者別台帳リスト（images:{email}）の永続化インターフェース。
// 台帳は最新が先頭の順序を保つ（アップロード時に先頭へ挿入する）。
type ImageRepository interface {
	// Append は画像レコードを所有者の台帳の先頭に挿入する。
	Append(ctx context.Context, ownerEmail string, img *model.Image) error

	// ListByOwner は所有者の台帳の1ページ分と総件数を返す。
	ListByOwner(ctx context.Context, ownerEmail string, offset, limit int64) ([]*model.Image, int64, error)

	// ListAllByOwner は所有者の台帳の全レコードを返す。容量集計で使用する。
	ListAllByOwner(ctx context.Context, ownerEmail string) ([]*model.Image, error)

	// ListAll は全台帳を平坦化し、アップロード時刻の降順で返す。
	// 全画像数に比例するフルスキャンであり、データセットが小さい前提の操作。
	ListAll(ctx context.Context) ([]*model.Image, error)

	// FindByID は画像IDで全台帳を線形走査し、レコードと所有者メールを返す。
	// ストレージファイル名のUUID部分との一致も許容する。見つからない場合はnilと空文字を返す。
	FindByID(ctx context.Context, imageID string) (*model.Image, string, error)

	// Remove は所有者の台帳から指定IDのレコードを1件取り除き、取り除いたレコードを返す。
	// 台帳はキー削除後、残エントリがある場合のみ書き戻される。
	// 対象が存在しない場合はnilを返す（エラーではない）。
	Remove(ctx context.Context, ownerEmail, imageID string) (*model.Image, error)

	// UpdateInPlace は同一IDのレコードを置き換えて台帳を書き戻す。位置は保持される。
	// 対象が存在しない場合はエラーを返す。
	UpdateInPlace(ctx context.Context, ownerEmail string, img *model.Image) error

	// DeleteAllByOwner は所有者の台帳キーごと削除し、削除前のレコード一覧を返す。
	// 呼び出し側は返されたレコードの実ファイル削除に使用する。
	DeleteAllByOwner(ctx context.Context, ownerEmail string) ([]*model.Image, error)
}

// PackageRepository は容量パッケージ（packages:storage）の永続化インターフェース。
// パッケージは常にちょうど3件で、リスト全体を単一のJSON文字列として置き換える。
type PackageRepository interface {
	// Get は格納済みパッケージを返す。未設定の場合はデフォルト3件を返す。
	Get(ctx context.Context) ([]model.StoragePackage, error)

	// Put はパッケージリスト全体を置き換える。
	Put(ctx context.Context, pkgs []model.StoragePackage) error
}
