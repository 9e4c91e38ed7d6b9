// Package quota はユーザーごとの保存容量の判定を提供する。
package quota

import (
	"context"

	"github.com/hitoshi/picshelf/internal/model"
)

// UserFinder は容量設定の参照に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// UsageLister は使用量集計に必要なインターフェース。
// repository.ImageRepositoryの部分集合として定義する。
type UsageLister interface {
	ListAllByOwner(ctx context.Context, ownerEmail string) ([]*model.Image, error)
}

// Result は容量判定の結果を表す。
type Result struct {
	Allowed        bool
	UsedBytes      int64
	CapacityBytes  int64
	RemainingBytes int64 // max(0, capacity - used)。拒否時の表示用ヒント。
}

// Engine は容量判定エンジン。
// 判定は台帳のスナップショットに対して行われ、トランザクショナルではない。
// 同一ユーザーの並行アップロードが互いに古いスナップショットで判定を通過し、
// 合計で容量を超える可能性がある（許容された弱整合性）。
type Engine struct {
	users  UserFinder
	images UsageLister
}

// NewEngine はEngineを生成する。
func NewEngine(users UserFinder, images UsageLister) *Engine {
	return &Engine{users: users, images: images}
}

// CheckAndReserve は追加incomingBytesのアップロードが容量内に収まるか判定する。
// 容量はユーザー設定（未設定またはユーザー不在の場合は1024MB）から算出する。
// 使用量は台帳の全レコードのsizeの合計（パース不能エントリは除外済み）。
// 拒否時に書き込みは一切発生しない。判定はアップロード時のみで、
// 管理者による容量引き下げ後の既存超過状態は再検証しない。
func (e *Engine) CheckAndReserve(ctx context.Context, ownerEmail string, incomingBytes int64) (*Result, error) {
	capacity := int64(model.DefaultStorageMb) * 1024 * 1024
	user, err := e.users.FindByEmail(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}
	if user != nil {
		capacity = user.CapacityBytes()
	}

	images, err := e.images.ListAllByOwner(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}

	var used int64
	for _, img := range images {
		if img.Size > 0 {
			used += img.Size
		}
	}

	remaining := capacity - used
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:        used+incomingBytes <= capacity,
		UsedBytes:      used,
		CapacityBytes:  capacity,
		RemainingBytes: remaining,
	}, nil
}
